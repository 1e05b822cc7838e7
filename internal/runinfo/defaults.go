package runinfo

import (
	"fmt"

	"github.com/me/runsheet/pkg/model"
)

// algorithmDefaults yields the default value map for absent algorithm keys.
// mark_duplicates defaults on only when an aligner is configured.
func algorithmDefaults(algorithm map[string]any) map[string]any {
	markDups := false
	if v, ok := algorithm["aligner"]; ok && truthy(v) {
		markDups = true
	}
	return map[string]any{
		"archive":             nil,
		"tools_off":           []any{},
		"tools_on":            []any{},
		"qc":                  []any{},
		"trim_reads":          false,
		"adapters":            []any{},
		"effects":             "snpeff",
		"quality_format":      "standard",
		"align_split_size":    nil,
		"bam_clean":           false,
		"nomap_split_size":    250,
		"nomap_split_targets": 200,
		"mark_duplicates":     markDups,
		"coverage_interval":   nil,
		"recalibrate":         false,
		"realign":             false,
		"variant_regions":     nil,
		"validate":            nil,
		"validate_regions":    nil,
	}
}

// addAlgorithmDefaults fills absent algorithm keys with defaults and applies
// scalar/list coercion: list-coercible keys normalize scalars (and
// mapping-of-scalar values) to sequences, scalar-only keys unwrap
// one-element sequences and reject longer ones.
func addAlgorithmDefaults(description string, algorithm map[string]any) (map[string]any, error) {
	if algorithm == nil {
		algorithm = map[string]any{}
	}
	for k, v := range algorithmDefaults(algorithm) {
		if _, ok := algorithm[k]; !ok {
			algorithm[k] = v
		}
	}
	for k, v := range algorithm {
		switch {
		case algListKeys[k]:
			algorithm[k] = listify(v)
		case algSingleKeys[k]:
			single, err := singleize(k, v)
			if err != nil {
				return nil, &model.InconsistentConfigError{Sample: description, Reason: err.Error()}
			}
			algorithm[k] = single
		}
	}
	return algorithm, nil
}

// listify coerces a scalar to a one-element sequence, a nil to an empty
// sequence, and the values of a mapping-of-scalars to sequences. Sequences
// pass through.
func listify(v any) any {
	switch val := v.(type) {
	case nil:
		return []any{}
	case []any:
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			switch iv := inner.(type) {
			case nil, []any, map[string]any:
				out[k] = inner
			default:
				out[k] = []any{iv}
			}
		}
		return out
	case bool:
		// false disables the option; true stays for boolean-misuse checks.
		return val
	default:
		return []any{val}
	}
}

// singleize unwraps a one-element sequence for scalar-only keys.
func singleize(key string, v any) (any, error) {
	seq, ok := v.([]any)
	if !ok {
		return v, nil
	}
	if len(seq) == 1 {
		return seq[0], nil
	}
	return nil, fmt.Errorf("need a single item for %s: %v", key, seq)
}

// addMetadataDefaults fills the always-present metadata keys.
func addMetadataDefaults(md map[string]any) map[string]any {
	if md == nil {
		md = map[string]any{}
	}
	if _, ok := md["batch"]; !ok {
		md["batch"] = nil
	}
	if _, ok := md["phenotype"]; !ok {
		md["phenotype"] = ""
	}
	return md
}

// truthy mirrors the loose truth test applied to loosely-typed option
// values.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case float64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
