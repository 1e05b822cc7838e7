package runinfo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/me/runsheet/internal/objectstore"
	"github.com/me/runsheet/internal/pathres"
	"github.com/me/runsheet/pkg/model"
)

// Normalizer turns one raw sample entry into a SampleRecord. The pass order
// inside Normalize is fixed: later steps assume earlier ones completed.
type Normalizer struct {
	ctx    *Context
	logger *slog.Logger
	bam    BamReader
	vcf    VariantIndexer
	store  objectstore.Store
}

// NewNormalizer creates a Normalizer. bam, vcf, and store may be nil; the
// corresponding steps then degrade (missing descriptions on BAM-only
// entries become errors, vrn_file inputs stay unindexed, remote algorithm
// values stay remote).
func NewNormalizer(ctx *Context, bam BamReader, vcf VariantIndexer, store objectstore.Store, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		ctx:    ctx,
		logger: logger.With("component", "normalizer"),
		bam:    bam,
		vcf:    vcf,
		store:  store,
	}
}

// Normalize builds the record for the index-th raw entry (0-based).
func (n *Normalizer) Normalize(raw map[string]any, index int) (*model.SampleRecord, error) {
	rec := &model.SampleRecord{Raw: raw}
	rec.Analysis, _ = raw["analysis"].(string)

	if err := n.normalizeFiles(rec, raw); err != nil {
		return nil, err
	}
	if err := n.setLaneAndDescription(rec, raw, index); err != nil {
		return nil, err
	}
	if err := n.buildUpload(rec, raw); err != nil {
		return nil, err
	}

	algorithm, _ := raw["algorithm"].(map[string]any)
	algorithm = replaceGlobalVars(algorithm, n.ctx.GlobalVars)
	resolved, err := pathres.AbsFilePaths(algorithm, n.ctx.Dirs.Work,
		algNoPathKeys, algFileOnlyKeys, n.downloadFunc())
	if err != nil {
		return nil, fmt.Errorf("resolve algorithm paths for %s: %w", rec.Description, err)
	}
	if resolved == nil {
		algorithm = map[string]any{}
	} else {
		algorithm = resolved.(map[string]any)
	}

	if v, ok := raw["genome_build"]; ok && v != nil {
		rec.GenomeBuild = fmt.Sprint(v)
	}

	algorithm, err = addAlgorithmDefaults(rec.Description, algorithm)
	if err != nil {
		return nil, err
	}
	rec.Algorithm = algorithm

	md, _ := raw["metadata"].(map[string]any)
	rec.Metadata = addMetadataDefaults(md)

	rec.RGNames = n.prepRGNames(rec)

	if err := n.normalizeVrnFile(rec, raw); err != nil {
		return nil, err
	}
	if err := n.cleanMetadata(rec); err != nil {
		return nil, err
	}
	cleanAlgorithm(rec.Algorithm)
	if err := n.cleanBackground(rec); err != nil {
		return nil, err
	}
	n.mergeResources(rec, raw)
	n.mergeIntegrations(rec)
	return rec, nil
}

// normalizeFiles resolves the files field to absolute paths against the
// work, flowcell, and fastq directories, then runs the file-type sanity
// check.
func (n *Normalizer) normalizeFiles(rec *model.SampleRecord, raw map[string]any) error {
	var inputs []string
	switch v := raw["files"].(type) {
	case nil:
	case string:
		inputs = []string{v}
	case []any:
		for _, x := range v {
			if s, ok := x.(string); ok {
				inputs = append(inputs, s)
			} else {
				return &model.MalformedInputError{
					Reason: fmt.Sprintf("files entries must be strings, got %T", x),
				}
			}
		}
	default:
		return &model.MalformedInputError{
			Reason: fmt.Sprintf("files must be a string or sequence, got %T", v),
		}
	}
	if len(inputs) == 0 {
		return nil
	}

	fastqDir := n.ctx.Dirs.Fastq
	if fastqDir == "" {
		fastqDir = n.ctx.Dirs.Work
	}
	dirs := []string{n.ctx.Dirs.Work, n.ctx.Dirs.Flowcell, fastqDir}
	files := make([]string, 0, len(inputs))
	for _, f := range inputs {
		abs, err := pathres.FileToAbs(f, dirs, false)
		if err != nil {
			return err
		}
		if abs != "" {
			files = append(files, abs)
		}
	}
	if err := sanityCheckFiles(rec, raw, files); err != nil {
		return err
	}
	rec.Files = files
	return nil
}

// sanityCheckFiles enforces supported input layouts: one BAM, or one/two
// distinct FASTQs (multi-file FASTQ only for scrna-seq).
func sanityCheckFiles(rec *model.SampleRecord, raw map[string]any, files []string) error {
	if len(files) == 0 {
		return nil
	}
	bam, fastq := false, false
	for _, f := range files {
		if strings.HasSuffix(f, ".bam") {
			bam = true
		} else {
			fastq = true
		}
	}
	desc, _ := raw["description"].(string)
	analysis, _ := raw["analysis"].(string)
	var msg string
	switch {
	case bam && fastq:
		msg = "found multiple file types (BAM and fastq)"
	case bam && len(files) != 1:
		msg = "expect a single BAM file input"
	case fastq && len(files) != 1 && len(files) != 2 &&
		!strings.EqualFold(analysis, "scrna-seq"):
		msg = "expect either 1 (single end) or 2 (paired end) fastq inputs"
	case fastq && len(files) == 2 && files[0] == files[1]:
		msg = "expect both fastq files to not be the same"
	}
	if msg != "" {
		return &model.InconsistentConfigError{
			Sample: desc,
			Reason: fmt.Sprintf("%s: %v", msg, files),
		}
	}
	return nil
}

// setLaneAndDescription defaults lane from input position and description
// from the BAM sample name when possible, then sanitizes both.
func (n *Normalizer) setLaneAndDescription(rec *model.SampleRecord, raw map[string]any, index int) error {
	lane := strconv.Itoa(index + 1)
	if v, ok := raw["lane"]; ok && v != nil {
		lane = fmt.Sprint(v)
	}
	rec.Lane = cleanCharacters(lane)

	desc := ""
	if v, ok := raw["description"]; ok && v != nil {
		desc = fmt.Sprint(v)
	} else if len(rec.Files) == 1 && strings.HasSuffix(rec.Files[0], ".bam") && n.bam != nil {
		name, err := n.bam.SampleName(rec.Files[0])
		if err != nil {
			return fmt.Errorf("read sample name from %s: %w", rec.Files[0], err)
		}
		desc = name
	}
	if desc == "" {
		return &model.MalformedInputError{
			Reason: fmt.Sprintf("no 'description' sample name provided for input #%d", index+1),
		}
	}
	rec.Description = cleanCharacters(desc)
	return nil
}

// buildUpload constructs the upload section from the global default,
// injecting flowcell naming and a resolved (created if missing) upload
// directory. Each record gets an independent copy; the global default is
// never shared by reference.
func (n *Normalizer) buildUpload(rec *model.SampleRecord, raw map[string]any) error {
	var upload map[string]any
	if v, ok := raw["upload"]; ok {
		switch uv := v.(type) {
		case string:
			upload = map[string]any{"dir": uv}
		case map[string]any:
			upload = copyMap(uv)
		default:
			return &model.InconsistentConfigError{
				Sample: rec.Description,
				Reason: fmt.Sprintf("unexpected upload specification: %v", v),
			}
		}
		rec.Upload = upload
		return nil
	}

	switch uv := n.ctx.Upload.(type) {
	case nil:
		upload = map[string]any{}
	case string:
		upload = map[string]any{"dir": uv}
	case map[string]any:
		upload = copyMap(uv)
	default:
		return &model.InconsistentConfigError{
			Sample: rec.Description,
			Reason: fmt.Sprintf("unexpected upload specification: %v", n.ctx.Upload),
		}
	}
	if n.ctx.FCName != "" {
		upload["fc_name"] = n.ctx.FCName
	}
	if n.ctx.FCDate != "" {
		upload["fc_date"] = n.ctx.FCDate
	}
	upload["run_id"] = ""
	if dir, ok := upload["dir"].(string); ok && dir != "" {
		abs, err := pathres.FileToAbs(dir, []string{n.ctx.Dirs.Work}, true)
		if err != nil {
			return err
		}
		upload["dir"] = abs
	}
	rec.Upload = upload
	return nil
}

// replaceGlobalVars substitutes string values matching global variable
// names with the table's value. Substitution recurses one level into
// mappings and sequences.
func replaceGlobalVars(xs map[string]any, globalVars map[string]any) map[string]any {
	if xs == nil {
		return nil
	}
	out := make(map[string]any, len(xs))
	for k, v := range xs {
		out[k] = substituteValue(v, globalVars)
	}
	return out
}

func substituteValue(v any, globalVars map[string]any) any {
	switch val := v.(type) {
	case string:
		if sub, ok := globalVars[val]; ok {
			return sub
		}
		return val
	case []any:
		out := make([]any, len(val))
		for i, x := range val {
			if s, ok := x.(string); ok {
				if sub, found := globalVars[s]; found {
					out[i] = sub
					continue
				}
			}
			out[i] = x
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, x := range val {
			if s, ok := x.(string); ok {
				if sub, found := globalVars[s]; found {
					out[k] = sub
					continue
				}
			}
			out[k] = x
		}
		return out
	default:
		return v
	}
}

// prepRGNames derives the read-group naming record.
func (n *Normalizer) prepRGNames(rec *model.SampleRecord) *model.RGNames {
	laneName := rec.Description
	if n.ctx.FCName != "" && n.ctx.FCDate != "" {
		laneName = fmt.Sprintf("%s_%s_%s", rec.Lane, n.ctx.FCDate, n.ctx.FCName)
	}
	platform := "illumina"
	if v, ok := rec.Algorithm["platform"].(string); ok && v != "" {
		platform = v
	}
	library, _ := rec.Metadata["library"].(string)
	pu, _ := rec.Metadata["platform_unit"].(string)
	if pu == "" {
		pu = laneName
	}
	return &model.RGNames{
		RG:     rec.Description,
		Sample: rec.Description,
		Lane:   laneName,
		PL:     strings.ToLower(platform),
		LB:     library,
		PU:     pu,
	}
}

// normalizeVrnFile resolves a vrn_file input and prepares it (compressed
// and indexed into a per-sample inputs directory) without mutating the
// original. A vrn_file plus a validation request requires a metadata batch.
func (n *Normalizer) normalizeVrnFile(rec *model.SampleRecord, raw map[string]any) error {
	v, ok := raw["vrn_file"].(string)
	if !ok || v == "" {
		return nil
	}
	abs, err := pathres.FileToAbs(v, []string{n.ctx.Dirs.Work}, false)
	if err != nil {
		return err
	}
	rec.VrnFile = abs
	if abs != "" && n.vcf != nil && !objectstore.IsRemote(abs) {
		if info, statErr := os.Stat(abs); statErr == nil && !info.IsDir() {
			inputsDir := filepath.Join(n.ctx.Dirs.Work, "inputs", rec.Description)
			if err := os.MkdirAll(inputsDir, 0o755); err != nil {
				return fmt.Errorf("create inputs dir: %w", err)
			}
			prepared, err := n.vcf.BgzipAndIndex(abs, inputsDir)
			if err != nil {
				return fmt.Errorf("prepare vrn_file for %s: %w", rec.Description, err)
			}
			rec.VrnFile = prepared
		}
	}
	if len(rec.Batches()) == 0 && truthy(rec.Algorithm["validate"]) {
		return &model.InconsistentConfigError{
			Sample: rec.Description,
			Reason: "please specify a metadata batch for variant file (vrn_file) input; " +
				"batching with a standard sample provides callable regions for validation",
		}
	}
	return nil
}

// cleanMetadata deduplicates, sorts, and sanitizes batch identifiers, and
// synthesizes a "<description>-joint" batch for joint-calling samples
// without one.
func (n *Normalizer) cleanMetadata(rec *model.SampleRecord) error {
	batch := rec.Metadata["batch"]
	switch b := batch.(type) {
	case nil:
		if truthy(rec.Algorithm["jointcaller"]) {
			rec.Metadata["batch"] = rec.Description + "-joint"
		}
	case string:
		if b == "" {
			if truthy(rec.Algorithm["jointcaller"]) {
				rec.Metadata["batch"] = rec.Description + "-joint"
			}
		} else {
			rec.Metadata["batch"] = cleanCharacters(b)
		}
	case []any:
		seen := map[string]bool{}
		var cleaned []string
		for _, x := range b {
			s := cleanCharacters(fmt.Sprint(x))
			if !seen[s] {
				seen[s] = true
				cleaned = append(cleaned, s)
			}
		}
		sort.Strings(cleaned)
		rec.Metadata["batch"] = cleaned
	default:
		rec.Metadata["batch"] = cleanCharacters(fmt.Sprint(b))
	}
	return nil
}

// callerListKeys are caller selections cleaned to list-or-false form.
var callerListKeys = []string{"variantcaller", "jointcaller", "svcaller"}

// cleanAlgorithm coerces caller selections: a scalar becomes a one-element
// list; a one-element list holding a falsy or "none"/"false" sentinel
// collapses to boolean false.
func cleanAlgorithm(algorithm map[string]any) {
	for _, key := range callerListKeys {
		v, ok := algorithm[key]
		if !ok || !truthy(v) {
			continue
		}
		if s, isStr := v.(string); isStr {
			v = []any{s}
		}
		if seq, isSeq := v.([]any); isSeq && len(seq) == 1 {
			if isFalseSentinel(seq[0]) {
				v = false
			}
		}
		algorithm[key] = v
	}
}

func isFalseSentinel(v any) bool {
	if !truthy(v) {
		return true
	}
	if s, ok := v.(string); ok {
		lower := strings.ToLower(s)
		return lower == "none" || lower == "false"
	}
	return false
}

// backgroundKeys is the allowed key set for the background specification.
var backgroundKeys = stringSet("variant", "cnv_reference")

// cleanBackground normalizes the background specification: the legacy bare
// string form becomes the variant sub-key; mappings are restricted to the
// allowed key set, with file values resolved.
func (n *Normalizer) cleanBackground(rec *model.SampleRecord) error {
	v, ok := rec.Algorithm["background"]
	if !ok || !truthy(v) {
		return nil
	}
	out := map[string]any{}
	var errs []string
	switch bg := v.(type) {
	case string:
		abs, err := pathres.FileToAbs(bg, []string{n.ctx.Dirs.Work}, false)
		if err != nil {
			return err
		}
		out["variant"] = abs
	case map[string]any:
		for k, val := range bg {
			if !backgroundKeys[k] {
				errs = append(errs, fmt.Sprintf("unexpected key: %s", k))
				continue
			}
			s, isStr := val.(string)
			if !isStr {
				errs = append(errs, fmt.Sprintf("unexpected value for %s: %v", k, val))
				continue
			}
			abs, err := pathres.FileToAbs(s, []string{n.ctx.Dirs.Work}, false)
			if err != nil {
				return err
			}
			out[k] = abs
		}
	default:
		errs = append(errs, fmt.Sprintf("unexpected input: %v", v))
	}
	if len(errs) > 0 {
		return &model.InconsistentConfigError{
			Sample: rec.Description,
			Reason: "problematic algorithm background specification:\n " + strings.Join(errs, "\n "),
		}
	}
	rec.Algorithm["background"] = out
	return nil
}

// mergeResources merges global resource-override defaults beneath the
// per-sample resources mapping; sample-specified keys win.
func (n *Normalizer) mergeResources(rec *model.SampleRecord, raw map[string]any) {
	rec.Resources = map[string]map[string]any{}
	if v, ok := raw["resources"].(map[string]any); ok {
		for prog, kvs := range v {
			if m, isMap := kvs.(map[string]any); isMap {
				rec.Resources[prog] = copyMap(m)
			}
		}
	}
	for prog, kvs := range n.ctx.Resources {
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

// mergeIntegrations merges named provider sections into the record the same
// way, sample values taking precedence.
func (n *Normalizer) mergeIntegrations(rec *model.SampleRecord) {
	if len(n.ctx.Integrations) == 0 {
		return
	}
	rec.Integrations = map[string]map[string]any{}
	for iname, ivals := range n.ctx.Integrations {
		section := map[string]any{}
		if v, ok := rec.Raw[iname].(map[string]any); ok {
			section = copyMap(v)
		}
		for k, val := range ivals {
			if _, ok := section[k]; !ok {
				section[k] = val
			}
		}
		rec.Integrations[iname] = section
	}
}

// downloadFunc adapts the object store into the path resolver's download
// hook; remote values stay remote when no store is configured.
func (n *Normalizer) downloadFunc() pathres.DownloadFunc {
	if n.store == nil {
		return nil
	}
	inputsDir := filepath.Join(n.ctx.Dirs.Work, "inputs")
	return func(path string) (string, error) {
		return n.store.Download(context.Background(), path, inputsDir)
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
