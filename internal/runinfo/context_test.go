package runinfo

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/me/runsheet/internal/config"
	"github.com/me/runsheet/internal/logging"
)

func parseDoc(t *testing.T, text string) any {
	t.Helper()
	var doc any
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		t.Fatalf("parse test document: %v", err)
	}
	return doc
}

func TestExtractGlobalContext_Mapping(t *testing.T) {
	doc := parseDoc(t, `
fc_name: run one
fc_date: "2024-03-01"
upload:
  dir: final
globals:
  my_regions: /data/regions.bed
resources:
  gatk:
    memory: 4g
arvados:
  reference: su92l-4zz18-ref
details:
  - description: s1
  - description: s2
`)
	entries, ctx, err := extractGlobalContext(doc, config.Directories{Work: "/work"}, logging.Discard())
	if err != nil {
		t.Fatalf("extractGlobalContext: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if ctx.FCName != "run_one" {
		t.Errorf("fc_name = %q, want run_one", ctx.FCName)
	}
	if ctx.FCDate != "2024-03-01" {
		t.Errorf("fc_date = %q", ctx.FCDate)
	}
	if ctx.GlobalVars["my_regions"] != "/data/regions.bed" {
		t.Errorf("globals = %v", ctx.GlobalVars)
	}
	if ctx.Resources["gatk"]["memory"] != "4g" {
		t.Errorf("resources = %v", ctx.Resources)
	}
	if ctx.Integrations["arvados"]["reference"] != "su92l-4zz18-ref" {
		t.Errorf("integrations = %v", ctx.Integrations)
	}
	up, ok := ctx.Upload.(map[string]any)
	if !ok || up["dir"] != "final" {
		t.Errorf("upload = %v", ctx.Upload)
	}
}

func TestExtractGlobalContext_BareSequence(t *testing.T) {
	doc := parseDoc(t, `
- description: s1
- description: s2
`)
	entries, ctx, err := extractGlobalContext(doc, config.Directories{}, logging.Discard())
	if err != nil {
		t.Fatalf("extractGlobalContext: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("entries = %d, want 2", len(entries))
	}
	if ctx.FCName != "" || ctx.FCDate != "" {
		t.Errorf("unexpected flowcell naming: %q %q", ctx.FCName, ctx.FCDate)
	}
}

func TestExtractGlobalContext_FlowcellDirname(t *testing.T) {
	dirs := config.Directories{Flowcell: "/runs/110106_FC70BUKAAXX"}
	doc := parseDoc(t, "- description: s1\n")
	_, ctx, err := extractGlobalContext(doc, dirs, logging.Discard())
	if err != nil {
		t.Fatalf("extractGlobalContext: %v", err)
	}
	if ctx.FCName != "FC70BUKAAXX" {
		t.Errorf("fc_name = %q, want FC70BUKAAXX", ctx.FCName)
	}
	if ctx.FCDate != "110106" {
		t.Errorf("fc_date = %q, want 110106", ctx.FCDate)
	}
}

func TestExtractGlobalContext_MissingDetails(t *testing.T) {
	doc := parseDoc(t, "fc_name: run1\n")
	_, _, err := extractGlobalContext(doc, config.Directories{}, logging.Discard())
	if err == nil {
		t.Fatal("expected error for mapping without details")
	}
}

func TestExtractGlobalContext_NonMappingEntry(t *testing.T) {
	doc := parseDoc(t, "details:\n  - just-a-string\n")
	_, _, err := extractGlobalContext(doc, config.Directories{}, logging.Discard())
	if err == nil {
		t.Fatal("expected error for non-mapping sample entry")
	}
}

func TestLoadDocument_Missing(t *testing.T) {
	if _, err := loadDocument(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadDocument_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadDocument(path); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestLoadDocument_DuplicateKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.yaml")
	text := "details:\n  - description: s1\n    description: s2\n"
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadDocument(path); err == nil {
		t.Fatal("expected error for duplicate mapping keys")
	}
}
