// Package refdata binds genome reference resources to sample records and
// resolves shorthand names against the installed reference-data tree.
package refdata

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/me/runsheet/internal/objectstore"
	"github.com/me/runsheet/pkg/model"
)

// Binder supplies reference-sequence and annotation locations for a genome
// build. Implementations live outside the resolution engine.
type Binder interface {
	// GetReferences returns the reference binding (fasta, aligner indexes,
	// annotation files) for a genome build.
	GetReferences(genomeBuild, aligner string) (map[string]any, error)
	// GetResources returns genome-level resource metadata given the
	// reference location.
	GetResources(genomeBuild, refLocation string) (map[string]any, error)
}

// RefFile returns the base fasta path from a reference binding, or "".
func RefFile(reference map[string]any) string {
	fasta, _ := reference["fasta"].(map[string]any)
	base, _ := fasta["base"].(string)
	return base
}

// AddReferenceResources binds reference data onto a normalized record and
// resolves installed validation, prioritization, and capture shorthands.
// The pass order matters: prioritization may leave `coverage` as a bare
// name for the capture pass to resolve.
func AddReferenceResources(rec *model.SampleRecord, binder Binder) error {
	aligner, _ := rec.Algorithm["aligner"].(string)
	ref, err := binder.GetReferences(rec.GenomeBuild, aligner)
	if err != nil {
		return fmt.Errorf("bind references for %s: %w", rec.Description, err)
	}
	rec.Reference = ref
	if err := checkRefFiles(rec); err != nil {
		return err
	}
	refLoc := RefFile(rec.Reference)
	resources, err := binder.GetResources(rec.GenomeBuild, refLoc)
	if err != nil {
		return fmt.Errorf("bind genome resources for %s: %w", rec.Description, err)
	}
	rec.GenomeResources = resources

	if err := fillValidationTargets(rec); err != nil {
		return err
	}
	if err := fillPrioritizationTargets(rec); err != nil {
		return err
	}
	return fillCaptureRegions(rec)
}

const allowedContigChars = "0123456789abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ-_*:."

// checkRefFiles verifies the binding carries a fasta reference and that
// contig names (from the fasta index, when present) use allowed characters.
func checkRefFiles(rec *model.SampleRecord) error {
	if rec.GenomeBuild == "" {
		return &model.InconsistentConfigError{
			Sample: rec.Description,
			Reason: "did not find genome_build",
		}
	}
	refFile := RefFile(rec.Reference)
	if refFile == "" {
		return &model.InconsistentConfigError{
			Sample: rec.Description,
			Reason: fmt.Sprintf("did not find fasta reference file for genome %s", rec.GenomeBuild),
		}
	}
	var problems []string
	for _, contig := range faiContigs(refFile + ".fai") {
		var bad []string
		for _, r := range contig {
			if !strings.ContainsRune(allowedContigChars, r) {
				bad = append(bad, string(r))
			}
		}
		if len(bad) > 0 {
			problems = append(problems,
				fmt.Sprintf("non-allowed characters in chromosome name %s: %s",
					contig, strings.Join(bad, " ")))
		}
	}
	if len(problems) > 0 {
		return &model.InconsistentConfigError{
			Sample: rec.Description,
			Reason: fmt.Sprintf("problems with reference file %s:\n%s",
				refFile, strings.Join(problems, "\n")),
		}
	}
	return nil
}

// faiContigs reads contig names from a fasta index. A missing index is not
// an error; the check is skipped.
func faiContigs(faiPath string) []string {
	f, err := os.Open(faiPath)
	if err != nil {
		return nil
	}
	defer f.Close()
	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.SplitN(scanner.Text(), "\t", 2)
		if len(fields) > 0 && fields[0] != "" {
			names = append(names, fields[0])
		}
	}
	return names
}

// fillValidationTargets points validation truth-set shorthands at the
// installed <refdir>/../validation tree. A shorthand with no installed
// match is a hard error.
func fillValidationTargets(rec *model.SampleRecord) error {
	refFile := RefFile(rec.Reference)
	for _, key := range []string{"validate", "validate_regions"} {
		val, _ := rec.Algorithm[key].(string)
		resolved, err := installedValidation(refFile, key, val)
		if err != nil {
			return err
		}
		if resolved != "" {
			rec.Algorithm[key] = resolved
		}
	}
	// svvalidate maps truth-set names to files.
	if svTruth, ok := rec.Algorithm["svvalidate"].(map[string]any); ok {
		for name, v := range svTruth {
			val, _ := v.(string)
			resolved, err := installedValidation(refFile, "svvalidate."+name, val)
			if err != nil {
				return err
			}
			if resolved != "" {
				svTruth[name] = resolved
			}
		}
	} else if val, ok := rec.Algorithm["svvalidate"].(string); ok {
		resolved, err := installedValidation(refFile, "svvalidate", val)
		if err != nil {
			return err
		}
		if resolved != "" {
			rec.Algorithm["svvalidate"] = resolved
		}
	}
	return nil
}

func installedValidation(refFile, key, val string) (string, error) {
	if val == "" || fileExists(val) || objectstore.IsRemote(val) {
		return "", nil
	}
	installed := filepath.Clean(filepath.Join(filepath.Dir(refFile), "..", "validation", val))
	if fileExists(installed) {
		return installed, nil
	}
	return "", &model.UnresolvedPathError{Target: key + ": " + val, Tried: []string{installed}}
}

// captureSpecial tolerates sv_regions shorthands resolved by downstream
// annotation rather than installed files.
var captureSpecial = map[string][]string{
	"sv_regions": {"exons", "transcripts"},
}

// fillCaptureRegions resolves short-hand BED capture region names against
// <refdir>/../coverage.
func fillCaptureRegions(rec *model.SampleRecord) error {
	refFile := RefFile(rec.Reference)
	for _, target := range []string{"variant_regions", "sv_regions", "coverage"} {
		val, _ := rec.Algorithm[target].(string)
		if val == "" || fileExists(val) || objectstore.IsRemote(val) {
			continue
		}
		var installed []string
		for _, ext := range []string{".bed", ".bed.gz"} {
			cand := filepath.Clean(filepath.Join(filepath.Dir(refFile), "..", "coverage", val+ext))
			if fileExists(cand) {
				installed = append(installed, cand)
			}
		}
		switch len(installed) {
		case 0:
			if prefixes, ok := captureSpecial[target]; ok && hasAnyPrefix(val, prefixes) {
				continue
			}
			return &model.UnresolvedPathError{
				Target: target + ": " + val,
				Tried:  []string{filepath.Join(filepath.Dir(refFile), "..", "coverage")},
			}
		case 1:
			rec.Algorithm[target] = installed[0]
		default:
			return fmt.Errorf("multiple installed BED files for %s %q: %v", target, val, installed)
		}
	}
	return nil
}

// fillPrioritizationTargets resolves prioritization shorthand names against
// <refdir>/../coverage/prioritize, preferring exact suffix matches and
// falling back to the latest date-stamped candidate. Missing `coverage`
// targets stay as bare names for the capture pass.
func fillPrioritizationTargets(rec *model.SampleRecord) error {
	refFile := RefFile(rec.Reference)
	for _, target := range []string{"svprioritize", "coverage"} {
		val, _ := rec.Algorithm[target].(string)
		if val == "" || fileExists(val) || objectstore.IsRemote(val) {
			continue
		}
		var installed []string
		for _, ext := range []string{".bed", ".bed.gz"} {
			pattern := filepath.Clean(filepath.Join(filepath.Dir(refFile), "..", "coverage",
				"prioritize", val+"*"+ext))
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return err
			}
			installed = append(installed, matches...)
		}
		switch len(installed) {
		case 0:
			if target != "coverage" {
				return &model.UnresolvedPathError{
					Target: target + ": " + val,
					Tried:  []string{filepath.Join(filepath.Dir(refFile), "..", "coverage", "prioritize")},
				}
			}
			// coverage can be filled in by the capture pass.
		case 1:
			rec.Algorithm[target] = installed[0]
		default:
			rec.Algorithm[target] = pickInstalled(installed, val)
		}
	}
	return nil
}

// pickInstalled disambiguates multiple installed matches: exact suffix
// match wins; otherwise take the lexicographically greatest (latest
// date-stamped) candidate.
func pickInstalled(installed []string, val string) string {
	for _, cand := range installed {
		if strings.HasSuffix(cand, val+".bed") || strings.HasSuffix(cand, val+".bed.gz") {
			return cand
		}
	}
	sorted := append([]string(nil), installed...)
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))
	return sorted[0]
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
