// Package registry exposes the sets of downstream tool names a run sheet
// may select. The validation engine only needs membership and enumeration,
// so registries are read-only.
package registry

import "sort"

// Registry is a read-only set of registered tool names.
type Registry interface {
	Contains(name string) bool
	Names() []string
}

// Set is a static Registry built from a name list.
type Set map[string]struct{}

// NewSet builds a Set from names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s Set) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Built-in registries for the downstream tools shipped with the pipeline.

func Aligners() Registry {
	return NewSet("bbmap", "bowtie", "bowtie2", "bwa", "hisat2", "minimap2",
		"novoalign", "snap", "star", "tophat2")
}

func VariantCallers() Registry {
	return NewSet("deepvariant", "freebayes", "gatk-haplotype", "haplotyper",
		"mutect", "mutect2", "octopus", "platypus", "samtools", "scalpel",
		"strelka2", "vardict", "vardict-java", "varscan")
}

func SVCallers() Registry {
	return NewSet("battenberg", "cnvkit", "delly", "gatk-cnv", "lumpy",
		"manta", "metasv", "purple", "seq2c", "titancna", "wham")
}

func JointCallers() Registry {
	return NewSet("deepvariant-joint", "freebayes-joint", "gatk-haplotype-joint",
		"platypus-joint", "samtools-joint", "strelka2-joint")
}

func HLACallers() Registry {
	return NewSet("optitype")
}

// SomaticCallers names variant callers with tumor/normal pairing
// requirements checked during batch validation.
func SomaticCallers() Registry {
	return NewSet("freebayes", "mutect", "mutect2", "strelka2", "vardict",
		"vardict-java", "varscan")
}
