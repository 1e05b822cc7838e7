package model

// SampleRecord is the canonical, resolved unit of work produced by run-sheet
// resolution. It is built once per run, normalized in a fixed pass order, and
// treated as read-only by downstream pipeline stages.
type SampleRecord struct {
	// Description is the sample's canonical name, unique within the run.
	Description string `yaml:"description"`
	// Lane is unique within the run; defaults to the 1-based input position.
	Lane     string `yaml:"lane"`
	Analysis string `yaml:"analysis,omitempty"`
	// GenomeBuild may be empty, but reference binding then fails.
	GenomeBuild string `yaml:"genome_build"`
	// Files holds absolute input paths: one BAM, or one/two FASTQs.
	Files   []string `yaml:"files,omitempty"`
	VrnFile string   `yaml:"vrn_file,omitempty"`
	// Metadata always carries "batch" and "phenotype" after normalization.
	Metadata map[string]any `yaml:"metadata"`
	// Algorithm holds processing options; every key comes from a fixed
	// allow-list.
	Algorithm map[string]any `yaml:"algorithm"`
	// Resources maps tool name to key/value overrides, global defaults
	// merged under per-sample values.
	Resources map[string]map[string]any `yaml:"resources,omitempty"`
	Upload    map[string]any            `yaml:"upload,omitempty"`
	// Reference is the opaque binding supplied by the reference binder.
	Reference       map[string]any `yaml:"reference,omitempty"`
	GenomeResources map[string]any `yaml:"genome_resources,omitempty"`
	RGNames         *RGNames       `yaml:"rgnames,omitempty"`
	// Name is the optional two-part prefixed name set during organize.
	Name []string `yaml:"name,omitempty"`
	// Integrations holds provider sections merged from the global document
	// section (for example "arvados").
	Integrations map[string]map[string]any `yaml:"integrations,omitempty"`
	// Dirs captures the run directory layout during organize.
	Dirs map[string]string `yaml:"dirs,omitempty"`
	// Raw preserves the entry as authored, for cross-section key checks.
	Raw map[string]any `yaml:"-"`
}

// RGNames is the derived read-group naming record.
type RGNames struct {
	RG     string `yaml:"rg"`
	Sample string `yaml:"sample"`
	Lane   string `yaml:"lane"`
	PL     string `yaml:"pl"`
	LB     string `yaml:"lb,omitempty"`
	PU     string `yaml:"pu"`
}

// Batches returns the record's batch identifiers as a slice, handling the
// scalar, list, and absent shapes of metadata.batch.
func (r *SampleRecord) Batches() []string {
	if r.Metadata == nil {
		return nil
	}
	switch v := r.Metadata["batch"].(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Phenotype returns metadata.phenotype, or "" when unset.
func (r *SampleRecord) Phenotype() string {
	if r.Metadata == nil {
		return ""
	}
	s, _ := r.Metadata["phenotype"].(string)
	return s
}
