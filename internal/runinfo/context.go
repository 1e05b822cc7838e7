package runinfo

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/me/runsheet/internal/config"
	"github.com/me/runsheet/internal/flowcell"
	"github.com/me/runsheet/pkg/model"
)

// Context is the immutable global context extracted once from a run sheet
// and passed by reference through every normalization call. Per-sample
// merges copy out of it; nothing mutates it after extraction.
type Context struct {
	Dirs         config.Directories
	FCName       string
	FCDate       string
	GlobalVars   map[string]any
	Resources    map[string]map[string]any
	Upload       any
	Integrations map[string]map[string]any
}

// loadDocument reads and parses a run sheet. yaml.v3 rejects duplicate
// mapping keys, which covers the lint the original ran separately.
func loadDocument(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.MalformedInputError{Path: path, Reason: "cannot read", Err: err}
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &model.MalformedInputError{Path: path, Reason: "YAML parse error", Err: err}
	}
	if doc == nil {
		return nil, &model.MalformedInputError{Path: path, Reason: "empty document"}
	}
	return doc, nil
}

// extractGlobalContext splits the document top level into the raw sample
// entries and the global context. A bare sequence is the legacy form with
// no global section. Flowcell name/date come from explicit fc_name/fc_date
// fields when present, else from the flowcell directory name; a directory
// parse failure is non-fatal.
func extractGlobalContext(doc any, dirs config.Directories, logger *slog.Logger) ([]map[string]any, *Context, error) {
	ctx := &Context{
		Dirs:         dirs,
		GlobalVars:   map[string]any{},
		Resources:    map[string]map[string]any{},
		Integrations: map[string]map[string]any{},
	}
	if dirs.Flowcell != "" {
		name, date, err := flowcell.ParseDirname(dirs.Flowcell)
		if err == nil {
			ctx.FCName, ctx.FCDate = name, date
		} else {
			logger.Debug("flowcell directory name not parseable", "dir", dirs.Flowcell)
		}
	}

	var rawEntries []any
	switch root := doc.(type) {
	case []any:
		rawEntries = root
	case map[string]any:
		details, ok := root["details"].([]any)
		if !ok {
			return nil, nil, &model.MalformedInputError{
				Reason: "document mapping requires a 'details' list of samples",
			}
		}
		rawEntries = details
		if v, ok := root["fc_name"].(string); ok {
			ctx.FCName = strings.ReplaceAll(v, " ", "_")
		}
		if v, ok := root["fc_date"]; ok {
			ctx.FCDate = strings.ReplaceAll(fmt.Sprint(v), " ", "_")
		}
		if v, ok := root["globals"].(map[string]any); ok {
			ctx.GlobalVars = v
		}
		if v, ok := root["resources"].(map[string]any); ok {
			ctx.Resources = toResourceTable(v)
		}
		ctx.Upload = root["upload"]
		for _, iname := range integrationNames {
			if v, ok := root[iname].(map[string]any); ok && len(v) > 0 {
				ctx.Integrations[iname] = v
			}
		}
	default:
		return nil, nil, &model.MalformedInputError{
			Reason: fmt.Sprintf("document root must be a sequence or mapping, got %T", doc),
		}
	}

	entries := make([]map[string]any, 0, len(rawEntries))
	for i, e := range rawEntries {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, nil, &model.MalformedInputError{
				Reason: fmt.Sprintf("sample entry #%d must be a mapping, got %T", i+1, e),
			}
		}
		entries = append(entries, m)
	}
	return entries, ctx, nil
}

// toResourceTable coerces the loosely-typed global resources mapping into
// tool name -> key/value overrides, skipping malformed entries.
func toResourceTable(raw map[string]any) map[string]map[string]any {
	out := make(map[string]map[string]any, len(raw))
	for prog, v := range raw {
		kvs, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out[prog] = kvs
	}
	return out
}
