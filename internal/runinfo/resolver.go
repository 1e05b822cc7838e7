// Package runinfo resolves and validates run sheets: it turns the raw,
// hierarchical description of samples to process into fully-resolved,
// internally-consistent per-sample records ready to drive the pipeline.
package runinfo

import (
	"context"
	"log/slog"

	"github.com/me/runsheet/internal/config"
	"github.com/me/runsheet/internal/objectstore"
	"github.com/me/runsheet/internal/provenance"
	"github.com/me/runsheet/internal/refdata"
	"github.com/me/runsheet/pkg/model"
)

// Resolver sequences the end-to-end transform: load, extract global
// context, normalize each sample in input order, bind reference resources,
// validate the whole set. It is synchronous and keeps no state between
// invocations.
type Resolver struct {
	cfg    *config.SystemConfig
	dirs   config.Directories
	binder refdata.Binder
	bam    BamReader
	vcf    VariantIndexer
	store  objectstore.Store
	regs   Registries
	logger *slog.Logger
}

// Option configures optional collaborators on a Resolver.
type Option func(*Resolver)

// WithBamReader supplies the BAM metadata collaborator.
func WithBamReader(r BamReader) Option { return func(rs *Resolver) { rs.bam = r } }

// WithVariantIndexer supplies the variant compress/index collaborator.
func WithVariantIndexer(v VariantIndexer) Option { return func(rs *Resolver) { rs.vcf = v } }

// WithObjectStore supplies the remote-store collaborator used to fetch
// remote algorithm inputs.
func WithObjectStore(s objectstore.Store) Option { return func(rs *Resolver) { rs.store = s } }

// WithRegistries overrides the built-in caller registries.
func WithRegistries(regs Registries) Option { return func(rs *Resolver) { rs.regs = regs } }

// NewResolver creates a Resolver. binder may be nil, in which case
// reference binding and installed-resource resolution are skipped (useful
// for configuration checking without an installed data tree).
func NewResolver(cfg *config.SystemConfig, dirs config.Directories, binder refdata.Binder,
	logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		cfg:    cfg,
		dirs:   dirs,
		binder: binder,
		regs:   DefaultRegistries(),
		logger: logger.With("component", "runinfo"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs the full pipeline over a run sheet and returns the resolved
// record set in input order. sampleNames optionally restricts resolution to
// matching descriptions. A normalization failure aborts immediately;
// validation findings are aggregated into one error.
func (r *Resolver) Resolve(runSheet string, sampleNames []string) ([]*model.SampleRecord, error) {
	r.logger.Info("using input run sheet", "path", runSheet)
	doc, err := loadDocument(runSheet)
	if err != nil {
		return nil, err
	}
	entries, rctx, err := extractGlobalContext(doc, r.dirs, r.logger)
	if err != nil {
		return nil, err
	}
	if len(sampleNames) > 0 {
		entries = filterByDescription(entries, sampleNames)
	}

	norm := NewNormalizer(rctx, r.bam, r.vcf, r.store, r.logger)
	records := make([]*model.SampleRecord, 0, len(entries))
	for i, entry := range entries {
		rec, err := norm.Normalize(entry, i)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if r.binder != nil {
		for _, rec := range records {
			if err := refdata.AddReferenceResources(rec, r.binder); err != nil {
				return nil, err
			}
		}
	}

	r.logger.Info("checking sample configuration", "path", runSheet, "samples", len(records))
	engine := NewEngine(r.regs, r.logger)
	if err := engine.Check(records); err != nil {
		return nil, err
	}
	return records, nil
}

// Organize resolves a run sheet and prepares records for downstream
// processing: directory layout, two-part naming, system algorithm defaults,
// and (when a store is supplied) provenance rows.
func (r *Resolver) Organize(ctx context.Context, runSheet string, sampleNames []string,
	prov *provenance.Store) ([]*model.SampleRecord, error) {
	records, err := r.Resolve(runSheet, sampleNames)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		rec.Dirs = r.dirs.Map()
		switch len(rec.Name) {
		case 0:
			rec.Name = []string{"", rec.Description}
		case 1:
			// A pre-set prefix yields a combined, file-safe description.
			combined := rec.Name[0] + "-" + CleanName(rec.Description)
			rec.Name = []string{rec.Name[0], combined}
			rec.Description = combined
		}
		// System-level defaults sit beneath per-sample values.
		for k, v := range r.cfg.Algorithm {
			if _, ok := rec.Algorithm[k]; !ok {
				rec.Algorithm[k] = v
			}
		}
		for prog, kvs := range r.cfg.Resources {
			if _, ok := rec.Resources[prog]; !ok {
				rec.Resources[prog] = map[string]any{}
			}
			for key, val := range kvs {
				if _, ok := rec.Resources[prog][key]; !ok {
					rec.Resources[prog][key] = val
				}
			}
		}
	}
	if prov != nil {
		runID, err := prov.StoreRun(ctx, runSheet)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if _, err := prov.StoreEntity(ctx, runID, rec); err != nil {
				return nil, err
			}
		}
		r.logger.Info("recorded run provenance", "run_id", runID, "entities", len(records))
	}
	return records, nil
}

func filterByDescription(entries []map[string]any, names []string) []map[string]any {
	want := stringSet(names...)
	var out []map[string]any
	for _, e := range entries {
		if d, ok := e["description"].(string); ok && want[d] {
			out = append(out, e)
		}
	}
	return out
}
