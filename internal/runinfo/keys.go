package runinfo

// Allow-lists and key groups for run-sheet entries. These are versioned by
// hand: new options must be added here or they are rejected as typos.

func stringSet(names ...string) map[string]bool {
	s := make(map[string]bool, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

// topLevelKeys is the allow-list for sample entry top-level keys.
var topLevelKeys = stringSet(
	"description", "analysis", "genome_build", "metadata", "algorithm",
	"resources", "files", "vrn_file", "lane", "upload", "rgnames",
)

// algorithmKeys is the allow-list for the algorithm section.
var algorithmKeys = stringSet(
	"platform", "aligner", "bam_clean", "bam_sort",
	"trim_reads", "trim_ends", "adapters", "custom_trim", "species", "kraken",
	"align_split_size", "save_diskspace",
	"transcriptome_align",
	"quality_format", "write_summary", "merge_bamprep",
	"coverage", "coverage_interval", "maxcov_downsample",
	"ploidy", "indelcaller",
	"variantcaller", "jointcaller", "variant_regions",
	"peakcaller", "chip_method",
	"effects", "effects_transcripts", "mark_duplicates",
	"svcaller", "svvalidate", "svprioritize",
	"hlacaller", "hlavalidate",
	"sv_regions", "hetcaller", "recalibrate", "realign",
	"phasing", "validate",
	"validate_regions", "validate_genome_build", "validate_method",
	"clinical_reporting", "nomap_split_size", "transcriptome_fasta",
	"transcriptome_gtf",
	"nomap_split_targets", "ensemble", "background",
	"disambiguate", "strandedness", "fusion_mode", "fusion_caller",
	"ericscript_db",
	"min_read_length", "coverage_depth_min", "callable_min_size",
	"min_allele_fraction", "umi_type", "minimum_barcode_depth",
	"cellular_barcodes", "vcfanno",
	"sample_barcodes",
	"remove_lcr", "joint_group_size",
	"archive", "tools_off", "tools_on", "transcript_assembler",
	"mixup_check", "expression_caller", "qc", "positional_umi",
	"cellular_barcode_correction",
	"singlecell_quantifier", "spikein_fasta", "preseq",
	// back compatibility
	"coverage_depth_max", "coverage_depth",
)

// algAllowBooleans may legally be set true.
var algAllowBooleans = stringSet(
	"merge_bamprep", "mark_duplicates", "remove_lcr",
	"clinical_reporting", "transcriptome_align",
	"fusion_mode", "assemble_transcripts", "trim_reads",
	"recalibrate", "realign", "save_diskspace",
)

// algAllowFalse may additionally be set false to disable a choice.
var algAllowFalse = stringSet(
	"aligner", "align_split_size", "bam_clean", "bam_sort",
	"effects", "phasing", "mixup_check", "indelcaller",
	"variantcaller", "positional_umi", "maxcov_downsample", "preseq",
)

// algNoPathKeys are caller/tool selectors whose values are never file
// paths.
var algNoPathKeys = stringSet(
	"variantcaller", "realign", "recalibrate", "peakcaller",
	"expression_caller",
	"svcaller", "hetcaller", "jointcaller", "tools_off",
	"mixup_check", "qc",
)

// algFileOnlyKeys are paths only when naming an existing local file; they
// never trigger a remote download.
var algFileOnlyKeys = stringSet("custom_trim", "vcfanno")

// algListKeys accept a scalar or mapping-of-scalars and normalize to
// sequence form.
var algListKeys = stringSet(
	"tools_off", "tools_on", "hetcaller", "variantcaller", "qc",
	"disambiguate", "vcfanno", "adapters", "custom_trim",
)

// algSingleKeys accept a one-element sequence and unwrap it; longer
// sequences are rejected.
var algSingleKeys = stringSet("hlacaller", "indelcaller", "validate_method")

// misplacedTopLevel are top-level keys checked for accidental nesting under
// the algorithm section.
var misplacedTopLevel = []string{
	"resources", "metadata", "analysis", "description", "genome_build",
	"lane", "files",
}

// integrationNames are the provider sections extracted from the global
// document section.
var integrationNames = []string{"arvados"}
