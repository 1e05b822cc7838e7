package runinfo

// BamReader supplies metadata embedded in BAM inputs. Implementations live
// with the alignment tooling, not the resolution engine.
type BamReader interface {
	// SampleName returns the sample name recorded in the BAM's read group.
	SampleName(path string) (string, error)
}

// VariantIndexer compresses and indexes variant file inputs. The engine
// calls it for local, uncompressed vrn_file inputs and never mutates the
// original file.
type VariantIndexer interface {
	// BgzipAndIndex compresses path into outDir (when not already
	// compressed), indexes it, and returns the prepared path.
	BgzipAndIndex(path, outDir string) (string, error)
}
