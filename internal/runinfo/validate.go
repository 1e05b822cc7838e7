package runinfo

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/me/runsheet/internal/fastq"
	"github.com/me/runsheet/internal/objectstore"
	"github.com/me/runsheet/internal/registry"
	"github.com/me/runsheet/pkg/model"
)

// Registries holds the read-only tool-name sets the validation engine
// checks caller selections against.
type Registries struct {
	Aligners       registry.Registry
	VariantCallers registry.Registry
	SVCallers      registry.Registry
	JointCallers   registry.Registry
	HLACallers     registry.Registry
	SomaticCallers registry.Registry
}

// DefaultRegistries returns the built-in tool registries.
func DefaultRegistries() Registries {
	return Registries{
		Aligners:       registry.Aligners(),
		VariantCallers: registry.VariantCallers(),
		SVCallers:      registry.SVCallers(),
		JointCallers:   registry.JointCallers(),
		HLACallers:     registry.HLACallers(),
		SomaticCallers: registry.SomaticCallers(),
	}
}

// hlaSupportedGenomes are the genome builds HLA calling supports.
var hlaSupportedGenomes = stringSet("hg38")

// Engine runs the consistency rule battery over the full normalized record
// set. Each rule is independent and reports every concrete problem it finds
// before the engine fails, so one run surfaces all fixes.
type Engine struct {
	regs   Registries
	logger *slog.Logger
}

// NewEngine creates a validation Engine.
func NewEngine(regs Registries, logger *slog.Logger) *Engine {
	return &Engine{regs: regs, logger: logger.With("component", "validate")}
}

// Check validates the complete record set. It returns nil when clean, or a
// *model.ValidationError aggregating every finding.
func (e *Engine) Check(records []*model.SampleRecord) error {
	var issues []model.Issue
	issues = append(issues, e.checkQualityFormat(records)...)
	issues = append(issues, checkDuplicates(records, "lane", func(r *model.SampleRecord) string { return r.Lane })...)
	issues = append(issues, checkDuplicates(records, "description", func(r *model.SampleRecord) string { return r.Description })...)
	issues = append(issues, checkBatchClashes(records)...)
	issues = append(issues, e.checkSomaticBatches(records)...)
	issues = append(issues, checkMisplaced(records)...)
	issues = append(issues, checkTopLevel(records)...)
	issues = append(issues, checkAlgorithmKeys(records)...)
	issues = append(issues, checkAlgorithmValues(records)...)
	for _, rec := range records {
		issues = append(issues, e.checkAligner(rec)...)
		issues = append(issues, e.checkVariantCaller(rec)...)
		issues = append(issues, e.checkSVCaller(rec)...)
		issues = append(issues, e.checkJointCaller(rec)...)
		issues = append(issues, checkIndelCaller(rec)...)
		issues = append(issues, e.checkHLACaller(rec)...)
		issues = append(issues, checkRealign(rec)...)
		issues = append(issues, checkTrim(rec)...)
	}
	if len(issues) == 0 {
		return nil
	}
	return model.NewValidationError("run sheet validation failed", issues...)
}

// checkDuplicates reports values of a uniqueness-constrained field shared
// by two or more records.
func checkDuplicates(records []*model.SampleRecord, field string, get func(*model.SampleRecord) string) []model.Issue {
	byValue := map[string][]string{}
	order := []string{}
	for _, rec := range records {
		val := get(rec)
		if len(byValue[val]) == 0 {
			order = append(order, val)
		}
		byValue[val] = append(byValue[val], rec.Description)
	}
	var issues []model.Issue
	for _, val := range order {
		if descrs := byValue[val]; len(descrs) > 1 {
			issues = append(issues, model.Issue{
				Code:  model.CodeDuplicate,
				Field: field,
				Message: fmt.Sprintf("duplicate %q; required to be unique for a project, found in samples %v",
					val, descrs),
			})
		}
	}
	return issues
}

// checkBatchClashes enforces batch/sample namespace separation.
func checkBatchClashes(records []*model.SampleRecord) []model.Issue {
	names := map[string]bool{}
	for _, rec := range records {
		names[rec.Description] = true
	}
	clashes := map[string]bool{}
	for _, rec := range records {
		for _, batch := range rec.Batches() {
			if names[batch] {
				clashes[batch] = true
			}
		}
	}
	if len(clashes) == 0 {
		return nil
	}
	sorted := make([]string, 0, len(clashes))
	for b := range clashes {
		sorted = append(sorted, b)
	}
	sort.Strings(sorted)
	return []model.Issue{{
		Code:  model.CodeBatchClash,
		Field: "metadata.batch",
		Message: fmt.Sprintf("batch names must be unique from sample descriptions; clashing: %v",
			sorted),
	}}
}

// checkSomaticBatches identifies problem batch setups for somatic calling:
// multiple tumors in one batch, normals without a tumor, and pooled calling
// with callers that only handle tumor/normal pairs.
func (e *Engine) checkSomaticBatches(records []*model.SampleRecord) []model.Issue {
	byBatch := map[string][]*model.SampleRecord{}
	var order []string
	for _, rec := range records {
		for _, batch := range rec.Batches() {
			if len(byBatch[batch]) == 0 {
				order = append(order, batch)
			}
			byBatch[batch] = append(byBatch[batch], rec)
		}
	}
	var issues []model.Issue
	for _, batch := range order {
		items := byBatch[batch]
		var tumors, normals []string
		for _, rec := range items {
			switch rec.Phenotype() {
			case "tumor":
				tumors = append(tumors, rec.Description)
			case "normal":
				normals = append(normals, rec.Description)
			}
		}
		somatic := e.somaticCallers(items)
		switch {
		case len(tumors) > 1:
			issues = append(issues, model.Issue{
				Code:  model.CodeSomaticBatch,
				Field: "metadata.batch",
				Message: fmt.Sprintf("multiple tumor samples in batch %s are not supported: %v",
					batch, tumors),
			})
		case len(tumors) == 1 && len(normals) == 0:
			e.logger.Info("tumor-only batch, calling without a matched normal",
				"batch", batch, "sample", tumors[0])
		case len(tumors) == 0 && len(normals) > 0 && len(somatic) > 0:
			issues = append(issues, model.Issue{
				Code:  model.CodeSomaticBatch,
				Field: "metadata.batch",
				Message: fmt.Sprintf("batch %s has normal samples %v but no tumor for somatic callers %v",
					batch, normals, somatic),
			})
		case len(tumors) == 0 && len(items) > 1:
			for _, caller := range somatic {
				if caller == "vardict" || caller == "vardict-java" {
					issues = append(issues, model.Issue{
						Code:  model.CodeSomaticBatch,
						Field: "algorithm.variantcaller",
						Message: fmt.Sprintf("VarDict does not support pooled non-tumor/normal calling, in batch %s: %v",
							batch, descriptions(items)),
					})
				}
				if caller == "mutect" || caller == "mutect2" {
					issues = append(issues, model.Issue{
						Code:  model.CodeSomaticBatch,
						Field: "algorithm.variantcaller",
						Message: fmt.Sprintf("MuTect requires a 'phenotype: tumor' sample for calling, in batch %s: %v",
							batch, descriptions(items)),
					})
				}
			}
		}
	}
	return issues
}

// somaticCallers returns the somatic-capable callers configured across a
// batch, sorted.
func (e *Engine) somaticCallers(items []*model.SampleRecord) []string {
	seen := map[string]bool{}
	for _, rec := range items {
		for _, name := range callerNames(rec.Algorithm["variantcaller"]) {
			if e.regs.SomaticCallers.Contains(name) && !seen[name] {
				seen[name] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// checkMisplaced reports top-level keys nested under the algorithm section.
func checkMisplaced(records []*model.SampleRecord) []model.Issue {
	var issues []model.Issue
	for _, rec := range records {
		for _, key := range misplacedTopLevel {
			if _, ok := rec.Algorithm[key]; ok {
				issues = append(issues, model.Issue{
					Code:    model.CodeMisplacedKey,
					Sample:  rec.Description,
					Field:   key,
					Message: fmt.Sprintf("%q should be top level, found nested under 'algorithm'", key),
				})
			}
		}
	}
	return issues
}

// checkTopLevel reports algorithm keys placed at the top level and any
// top-level keys outside the allow-list.
func checkTopLevel(records []*model.SampleRecord) []model.Issue {
	var issues []model.Issue
	for _, rec := range records {
		keys := make([]string, 0, len(rec.Raw))
		for k := range rec.Raw {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch {
			case algorithmKeys[k]:
				issues = append(issues, model.Issue{
					Code:    model.CodeMisplacedKey,
					Sample:  rec.Description,
					Field:   k,
					Message: fmt.Sprintf("%q belongs in the 'algorithm' section, found at top level", k),
				})
			case !topLevelKeys[k] && !isIntegrationName(k):
				issues = append(issues, model.Issue{
					Code:    model.CodeUnknownOption,
					Sample:  rec.Description,
					Field:   k,
					Message: fmt.Sprintf("unexpected top-level configuration keyword %q", k),
				})
			}
		}
	}
	return issues
}

// checkAlgorithmKeys rejects algorithm keys outside the fixed allow-list.
// This is the typo protection for the ~70 supported options.
func checkAlgorithmKeys(records []*model.SampleRecord) []model.Issue {
	var issues []model.Issue
	for _, rec := range records {
		var problem []string
		for k := range rec.Algorithm {
			if !algorithmKeys[k] {
				problem = append(problem, k)
			}
		}
		if len(problem) > 0 {
			sort.Strings(problem)
			issues = append(issues, model.Issue{
				Code:   model.CodeUnknownOption,
				Sample: rec.Description,
				Field:  "algorithm",
				Message: fmt.Sprintf("unexpected configuration keywords in 'algorithm' section: %v",
					problem),
			})
		}
	}
	return issues
}

// checkAlgorithmValues catches boolean values on options requiring a
// choice.
func checkAlgorithmValues(records []*model.SampleRecord) []model.Issue {
	var issues []model.Issue
	for _, rec := range records {
		keys := make([]string, 0, len(rec.Algorithm))
		for k := range rec.Algorithm {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v, isBool := rec.Algorithm[k].(bool)
			if !isBool {
				continue
			}
			if v && !algAllowBooleans[k] {
				issues = append(issues, model.Issue{
					Code:    model.CodeBooleanMisuse,
					Sample:  rec.Description,
					Field:   k,
					Message: fmt.Sprintf("%s set as true; a choice is required", k),
				})
			} else if !v && !algAllowBooleans[k] && !algAllowFalse[k] {
				issues = append(issues, model.Issue{
					Code:    model.CodeBooleanMisuse,
					Sample:  rec.Description,
					Field:   k,
					Message: fmt.Sprintf("%s set as false", k),
				})
			}
		}
	}
	return issues
}

func (e *Engine) checkAligner(rec *model.SampleRecord) []model.Issue {
	v, ok := rec.Algorithm["aligner"]
	if !ok || !truthy(v) {
		return nil
	}
	name, isStr := v.(string)
	if isStr && e.regs.Aligners.Contains(name) {
		return nil
	}
	return []model.Issue{{
		Code:   model.CodeUnknownCaller,
		Sample: rec.Description,
		Field:  "aligner",
		Message: fmt.Sprintf("unexpected 'aligner' %v; supported options: %v",
			v, e.regs.Aligners.Names()),
	}}
}

func (e *Engine) checkVariantCaller(rec *model.SampleRecord) []model.Issue {
	v, ok := rec.Algorithm["variantcaller"]
	if !ok || !truthy(v) {
		return nil
	}
	var issues []model.Issue
	var problem []string
	for _, name := range callerNames(v) {
		if !e.regs.VariantCallers.Contains(name) {
			problem = append(problem, name)
		}
	}
	if len(problem) > 0 {
		issues = append(issues, model.Issue{
			Code:   model.CodeUnknownCaller,
			Sample: rec.Description,
			Field:  "variantcaller",
			Message: fmt.Sprintf("unexpected 'variantcaller' %v; supported options: %v",
				problem, e.regs.VariantCallers.Names()),
		})
	}
	// Keyed germline/somatic calling only works with tumor/normal samples.
	if m, isMap := v.(map[string]any); isMap {
		_, hasGermline := m["germline"]
		_, hasSomatic := m["somatic"]
		if (hasGermline || hasSomatic) && rec.Phenotype() != "tumor" && rec.Phenotype() != "normal" {
			issues = append(issues, model.Issue{
				Code:   model.CodeBadCombination,
				Sample: rec.Description,
				Field:  "variantcaller",
				Message: "somatic/germline calling in 'variantcaller' but tumor/normal " +
					"metadata phenotype not specified",
			})
		}
	}
	return issues
}

func (e *Engine) checkSVCaller(rec *model.SampleRecord) []model.Issue {
	v, ok := rec.Algorithm["svcaller"]
	if !ok || !truthy(v) {
		return nil
	}
	var problem []string
	for _, name := range callerNames(v) {
		if !e.regs.SVCallers.Contains(name) {
			problem = append(problem, name)
		}
	}
	if len(problem) == 0 {
		return nil
	}
	return []model.Issue{{
		Code:   model.CodeUnknownCaller,
		Sample: rec.Description,
		Field:  "svcaller",
		Message: fmt.Sprintf("unexpected 'svcaller' %v; supported options: %v",
			problem, e.regs.SVCallers.Names()),
	}}
}

func (e *Engine) checkJointCaller(rec *model.SampleRecord) []model.Issue {
	v, ok := rec.Algorithm["jointcaller"]
	if !ok || !truthy(v) {
		return nil
	}
	var problem []string
	for _, name := range callerNames(v) {
		if !e.regs.JointCallers.Contains(name) {
			problem = append(problem, name)
		}
	}
	if len(problem) == 0 {
		return nil
	}
	return []model.Issue{{
		Code:   model.CodeUnknownCaller,
		Sample: rec.Description,
		Field:  "jointcaller",
		Message: fmt.Sprintf("unexpected 'jointcaller' %v; supported options: %v",
			problem, e.regs.JointCallers.Names()),
	}}
}

// checkIndelCaller rejects sequence-valued indelcaller selections; only a
// single caller is supported.
func checkIndelCaller(rec *model.SampleRecord) []model.Issue {
	v, ok := rec.Algorithm["indelcaller"]
	if !ok || !truthy(v) {
		return nil
	}
	if _, isSeq := v.([]any); !isSeq {
		return nil
	}
	return []model.Issue{{
		Code:    model.CodeBadCombination,
		Sample:  rec.Description,
		Field:   "indelcaller",
		Message: fmt.Sprintf("indelcaller specified as list; can only be a single item: %v", v),
	}}
}

func (e *Engine) checkHLACaller(rec *model.SampleRecord) []model.Issue {
	v, ok := rec.Algorithm["hlacaller"]
	if !ok || !truthy(v) {
		return nil
	}
	var issues []model.Issue
	if name, isStr := v.(string); isStr && !e.regs.HLACallers.Contains(name) {
		issues = append(issues, model.Issue{
			Code:   model.CodeUnknownCaller,
			Sample: rec.Description,
			Field:  "hlacaller",
			Message: fmt.Sprintf("unexpected 'hlacaller' %q; supported options: %v",
				name, e.regs.HLACallers.Names()),
		})
	}
	if !hlaSupportedGenomes[rec.GenomeBuild] {
		supported := make([]string, 0, len(hlaSupportedGenomes))
		for g := range hlaSupportedGenomes {
			supported = append(supported, g)
		}
		sort.Strings(supported)
		issues = append(issues, model.Issue{
			Code:   model.CodeBadCombination,
			Sample: rec.Description,
			Field:  "hlacaller",
			Message: fmt.Sprintf("HLA caller specified but genome %q not in supported: %v",
				rec.GenomeBuild, supported),
		})
	}
	return issues
}

// checkRealign flags realignment requests while the GATK4 engine, which
// does not support it, is active.
func checkRealign(rec *model.SampleRecord) []model.Issue {
	if !truthy(rec.Algorithm["realign"]) {
		return nil
	}
	if toolsOffHas(rec, "gatk4") {
		return nil
	}
	return []model.Issue{{
		Code:   model.CodeBadCombination,
		Sample: rec.Description,
		Field:  "realign",
		Message: "realign specified but not supported for GATK4; " +
			"realignment is generally not necessary for most variant callers",
	}}
}

// checkTrim enforces trimmer/option combinations.
func checkTrim(rec *model.SampleRecord) []model.Issue {
	trim, _ := rec.Algorithm["trim_reads"].(string)
	if trim != "fastp" {
		return nil
	}
	if v, ok := rec.Algorithm["align_split_size"].(bool); ok && !v {
		return nil
	}
	return []model.Issue{{
		Code:    model.CodeBadCombination,
		Sample:  rec.Description,
		Field:   "trim_reads",
		Message: "'trim_reads: fastp' currently requires 'align_split_size: false'",
	}}
}

// checkQualityFormat verifies the declared quality encoding is supported
// and agrees with the encoding detected by sampling FASTQ quality
// characters.
func (e *Engine) checkQualityFormat(records []*model.SampleRecord) []model.Issue {
	supported := map[string]bool{}
	var supportedList []string
	for _, v := range fastq.DeclaredFormat {
		if !supported[v] {
			supported[v] = true
			supportedList = append(supportedList, v)
		}
	}
	sort.Strings(supportedList)

	var issues []model.Issue
	for _, rec := range records {
		declared := "standard"
		if v, ok := rec.Algorithm["quality_format"].(string); ok && v != "" {
			declared = strings.ToLower(v)
		}
		if !supported[declared] {
			issues = append(issues, model.Issue{
				Code:   model.CodeQualityMismatch,
				Sample: rec.Description,
				Field:  "quality_format",
				Message: fmt.Sprintf("quality format %q is not supported; supported values: %v",
					declared, supportedList),
			})
			continue
		}
		fastqFile := firstFastq(rec.Files)
		if fastqFile == "" || objectstore.IsRemote(fastqFile) {
			continue
		}
		if _, err := os.Stat(fastqFile); err != nil {
			continue
		}
		encodings, err := fastq.DetectEncodings(fastqFile)
		if err != nil {
			e.logger.Warn("could not detect fastq quality encoding",
				"file", fastqFile, "error", err)
			continue
		}
		detected := map[string]bool{}
		var detectedList []string
		for _, enc := range encodings {
			name := fastq.DeclaredFormat[enc]
			if name != "" && !detected[name] {
				detected[name] = true
				detectedList = append(detectedList, name)
			}
		}
		if len(detectedList) > 0 && !detected[declared] {
			sort.Strings(detectedList)
			issues = append(issues, model.Issue{
				Code:   model.CodeQualityMismatch,
				Sample: rec.Description,
				Field:  "quality_format",
				Message: fmt.Sprintf("%q declared but possible formats detected were %s",
					declared, strings.Join(detectedList, ", ")),
			})
		}
	}
	return issues
}

// callerNames flattens a caller selection (scalar, sequence, or keyed
// mapping) into the configured tool names.
func callerNames(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		var out []string
		for _, x := range val {
			out = append(out, callerNames(x)...)
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			out = append(out, callerNames(val[k])...)
		}
		return out
	default:
		return nil
	}
}

func toolsOffHas(rec *model.SampleRecord, name string) bool {
	switch v := rec.Algorithm["tools_off"].(type) {
	case string:
		return v == name
	case []any:
		for _, x := range v {
			if s, ok := x.(string); ok && s == name {
				return true
			}
		}
	}
	return false
}

func firstFastq(files []string) string {
	for _, f := range files {
		if fastq.IsFastq(f) {
			return f
		}
	}
	return ""
}

func isIntegrationName(k string) bool {
	for _, n := range integrationNames {
		if k == n {
			return true
		}
	}
	return false
}

func descriptions(items []*model.SampleRecord) []string {
	out := make([]string, 0, len(items))
	for _, rec := range items {
		out = append(out, rec.Description)
	}
	return out
}
