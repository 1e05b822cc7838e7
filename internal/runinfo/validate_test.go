package runinfo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/me/runsheet/internal/logging"
	"github.com/me/runsheet/pkg/model"
)

func testEngine() *Engine {
	return NewEngine(DefaultRegistries(), logging.Discard())
}

// testRecord returns a minimal clean record for validation tests.
func testRecord(desc, lane string) *model.SampleRecord {
	return &model.SampleRecord{
		Description: desc,
		Lane:        lane,
		Metadata:    map[string]any{"batch": nil, "phenotype": ""},
		Algorithm:   map[string]any{},
		Raw:         map[string]any{"description": desc},
	}
}

func issuesOf(t *testing.T, err error) []model.Issue {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error")
	}
	verr, ok := err.(*model.ValidationError)
	if !ok {
		t.Fatalf("expected *model.ValidationError, got %T: %v", err, err)
	}
	return verr.Issues
}

func hasCode(issues []model.Issue, code model.IssueCode) bool {
	for _, iss := range issues {
		if iss.Code == code {
			return true
		}
	}
	return false
}

func TestCheck_CleanRecords(t *testing.T) {
	e := testEngine()
	records := []*model.SampleRecord{
		testRecord("sample1", "1"),
		testRecord("sample2", "2"),
	}
	if err := e.Check(records); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestCheck_DuplicateLane(t *testing.T) {
	e := testEngine()
	records := []*model.SampleRecord{
		testRecord("sample1", "1"),
		testRecord("sample2", "1"),
	}
	issues := issuesOf(t, e.Check(records))
	if !hasCode(issues, model.CodeDuplicate) {
		t.Errorf("expected duplicate issue, got %v", issues)
	}
}

func TestCheck_DuplicateDescription(t *testing.T) {
	e := testEngine()
	records := []*model.SampleRecord{
		testRecord("sample1", "1"),
		testRecord("sample1", "2"),
	}
	issues := issuesOf(t, e.Check(records))
	if !hasCode(issues, model.CodeDuplicate) {
		t.Errorf("expected duplicate issue, got %v", issues)
	}
}

func TestCheck_BatchClashesWithDescription(t *testing.T) {
	e := testEngine()
	r1 := testRecord("sample1", "1")
	r2 := testRecord("sample2", "2")
	r2.Metadata["batch"] = "sample1"
	issues := issuesOf(t, e.Check([]*model.SampleRecord{r1, r2}))
	if !hasCode(issues, model.CodeBatchClash) {
		t.Errorf("expected batch clash issue, got %v", issues)
	}
}

func TestCheck_UnknownAlgorithmKey(t *testing.T) {
	e := testEngine()
	r := testRecord("sample1", "1")
	r.Algorithm["alignr"] = "bwa"
	issues := issuesOf(t, e.Check([]*model.SampleRecord{r}))
	if !hasCode(issues, model.CodeUnknownOption) {
		t.Errorf("expected unknown option issue, got %v", issues)
	}
}

func TestCheck_AlgorithmKeyAtTopLevel(t *testing.T) {
	e := testEngine()
	r := testRecord("sample1", "1")
	r.Raw["variantcaller"] = "gatk-haplotype"
	issues := issuesOf(t, e.Check([]*model.SampleRecord{r}))
	if !hasCode(issues, model.CodeMisplacedKey) {
		t.Errorf("expected misplaced key issue, got %v", issues)
	}
}

func TestCheck_TopLevelKeyInAlgorithm(t *testing.T) {
	e := testEngine()
	r := testRecord("sample1", "1")
	r.Algorithm["metadata"] = map[string]any{"batch": "b1"}
	issues := issuesOf(t, e.Check([]*model.SampleRecord{r}))
	if !hasCode(issues, model.CodeMisplacedKey) {
		t.Errorf("expected misplaced key issue, got %v", issues)
	}
}

func TestCheck_UnknownTopLevelKey(t *testing.T) {
	e := testEngine()
	r := testRecord("sample1", "1")
	r.Raw["descriptoin"] = "oops"
	issues := issuesOf(t, e.Check([]*model.SampleRecord{r}))
	if !hasCode(issues, model.CodeUnknownOption) {
		t.Errorf("expected unknown option issue, got %v", issues)
	}
}

func TestCheck_IntegrationSectionAllowedTopLevel(t *testing.T) {
	e := testEngine()
	r := testRecord("sample1", "1")
	r.Raw["arvados"] = map[string]any{"token": "x"}
	if err := e.Check([]*model.SampleRecord{r}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestCheck_BooleanWhereChoiceRequired(t *testing.T) {
	e := testEngine()
	r := testRecord("sample1", "1")
	r.Algorithm["coverage"] = true
	issues := issuesOf(t, e.Check([]*model.SampleRecord{r}))
	if !hasCode(issues, model.CodeBooleanMisuse) {
		t.Errorf("expected boolean misuse issue, got %v", issues)
	}
}

func TestCheck_FalseDisablesListedOptions(t *testing.T) {
	e := testEngine()
	r := testRecord("sample1", "1")
	r.Algorithm["aligner"] = false
	r.Algorithm["variantcaller"] = false
	r.Algorithm["mark_duplicates"] = true
	if err := e.Check([]*model.SampleRecord{r}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestCheck_UnknownAligner(t *testing.T) {
	e := testEngine()
	r := testRecord("sample1", "1")
	r.Algorithm["aligner"] = "supermapper"
	issues := issuesOf(t, e.Check([]*model.SampleRecord{r}))
	if !hasCode(issues, model.CodeUnknownCaller) {
		t.Errorf("expected unknown caller issue, got %v", issues)
	}
}

func TestCheck_KnownCallers(t *testing.T) {
	e := testEngine()
	r := testRecord("sample1", "1")
	r.Algorithm["aligner"] = "bwa"
	r.Algorithm["variantcaller"] = []any{"gatk-haplotype", "freebayes"}
	r.Algorithm["svcaller"] = []any{"manta"}
	if err := e.Check([]*model.SampleRecord{r}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestCheck_UnknownVariantCaller(t *testing.T) {
	e := testEngine()
	r := testRecord("sample1", "1")
	r.Algorithm["variantcaller"] = []any{"gatk-haplotype", "bogus"}
	issues := issuesOf(t, e.Check([]*model.SampleRecord{r}))
	if !hasCode(issues, model.CodeUnknownCaller) {
		t.Errorf("expected unknown caller issue, got %v", issues)
	}
	found := false
	for _, iss := range issues {
		if strings.Contains(iss.Message, "bogus") {
			found = true
		}
		if strings.Contains(iss.Message, "gatk-haplotype]") &&
			iss.Code == model.CodeUnknownCaller {
			t.Errorf("known caller reported as unknown: %v", iss)
		}
	}
	if !found {
		t.Errorf("expected the unknown name in the message, got %v", issues)
	}
}

func TestCheck_GermlineSomaticRequiresPhenotype(t *testing.T) {
	e := testEngine()
	r := testRecord("sample1", "1")
	r.Algorithm["variantcaller"] = map[string]any{
		"germline": "gatk-haplotype",
		"somatic":  "vardict",
	}
	issues := issuesOf(t, e.Check([]*model.SampleRecord{r}))
	if !hasCode(issues, model.CodeBadCombination) {
		t.Errorf("expected bad combination issue, got %v", issues)
	}

	r.Metadata["phenotype"] = "tumor"
	if err := e.Check([]*model.SampleRecord{r}); err != nil {
		t.Errorf("expected nil with tumor phenotype, got %v", err)
	}
}

func TestCheck_MultipleTumorsInBatch(t *testing.T) {
	e := testEngine()
	r1 := testRecord("tumor1", "1")
	r1.Metadata["batch"] = "b1"
	r1.Metadata["phenotype"] = "tumor"
	r2 := testRecord("tumor2", "2")
	r2.Metadata["batch"] = "b1"
	r2.Metadata["phenotype"] = "tumor"
	issues := issuesOf(t, e.Check([]*model.SampleRecord{r1, r2}))
	if !hasCode(issues, model.CodeSomaticBatch) {
		t.Errorf("expected somatic batch issue, got %v", issues)
	}
}

func TestCheck_NormalsWithoutTumor(t *testing.T) {
	e := testEngine()
	r := testRecord("normal1", "1")
	r.Metadata["batch"] = "b1"
	r.Metadata["phenotype"] = "normal"
	r.Algorithm["variantcaller"] = []any{"mutect2"}
	issues := issuesOf(t, e.Check([]*model.SampleRecord{r}))
	if !hasCode(issues, model.CodeSomaticBatch) {
		t.Errorf("expected somatic batch issue, got %v", issues)
	}
}

func TestCheck_TumorNormalPair(t *testing.T) {
	e := testEngine()
	r1 := testRecord("tum", "1")
	r1.Metadata["batch"] = "b1"
	r1.Metadata["phenotype"] = "tumor"
	r1.Algorithm["variantcaller"] = []any{"mutect2"}
	r2 := testRecord("norm", "2")
	r2.Metadata["batch"] = "b1"
	r2.Metadata["phenotype"] = "normal"
	r2.Algorithm["variantcaller"] = []any{"mutect2"}
	if err := e.Check([]*model.SampleRecord{r1, r2}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestCheck_VarDictPooledUnpaired(t *testing.T) {
	e := testEngine()
	r1 := testRecord("s1", "1")
	r1.Metadata["batch"] = "pool"
	r1.Algorithm["variantcaller"] = []any{"vardict"}
	r2 := testRecord("s2", "2")
	r2.Metadata["batch"] = "pool"
	r2.Algorithm["variantcaller"] = []any{"vardict"}
	issues := issuesOf(t, e.Check([]*model.SampleRecord{r1, r2}))
	if !hasCode(issues, model.CodeSomaticBatch) {
		t.Errorf("expected somatic batch issue, got %v", issues)
	}
}

func TestCheck_IndelCallerList(t *testing.T) {
	e := testEngine()
	r := testRecord("sample1", "1")
	r.Algorithm["indelcaller"] = []any{"scalpel", "pindel"}
	issues := issuesOf(t, e.Check([]*model.SampleRecord{r}))
	if !hasCode(issues, model.CodeBadCombination) {
		t.Errorf("expected bad combination issue, got %v", issues)
	}
}

func TestCheck_HLACallerGenomeSupport(t *testing.T) {
	e := testEngine()
	r := testRecord("sample1", "1")
	r.Algorithm["hlacaller"] = "optitype"
	r.GenomeBuild = "hg19"
	issues := issuesOf(t, e.Check([]*model.SampleRecord{r}))
	if !hasCode(issues, model.CodeBadCombination) {
		t.Errorf("expected bad combination issue, got %v", issues)
	}

	r.GenomeBuild = "hg38"
	if err := e.Check([]*model.SampleRecord{r}); err != nil {
		t.Errorf("expected nil for hg38, got %v", err)
	}
}

func TestCheck_RealignNeedsGATK4Off(t *testing.T) {
	e := testEngine()
	r := testRecord("sample1", "1")
	r.Algorithm["realign"] = true
	issues := issuesOf(t, e.Check([]*model.SampleRecord{r}))
	if !hasCode(issues, model.CodeBadCombination) {
		t.Errorf("expected bad combination issue, got %v", issues)
	}

	r.Algorithm["tools_off"] = []any{"gatk4"}
	if err := e.Check([]*model.SampleRecord{r}); err != nil {
		t.Errorf("expected nil with gatk4 off, got %v", err)
	}
}

func TestCheck_FastpRequiresNoSplit(t *testing.T) {
	e := testEngine()
	r := testRecord("sample1", "1")
	r.Algorithm["trim_reads"] = "fastp"
	issues := issuesOf(t, e.Check([]*model.SampleRecord{r}))
	if !hasCode(issues, model.CodeBadCombination) {
		t.Errorf("expected bad combination issue, got %v", issues)
	}

	r.Algorithm["align_split_size"] = false
	if err := e.Check([]*model.SampleRecord{r}); err != nil {
		t.Errorf("expected nil with split disabled, got %v", err)
	}
}

func TestCheck_UnsupportedQualityFormat(t *testing.T) {
	e := testEngine()
	r := testRecord("sample1", "1")
	r.Algorithm["quality_format"] = "fastq-made-up"
	issues := issuesOf(t, e.Check([]*model.SampleRecord{r}))
	if !hasCode(issues, model.CodeQualityMismatch) {
		t.Errorf("expected quality mismatch issue, got %v", issues)
	}
}

func TestCheck_QualityFormatDetectionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample1_1.fastq")
	// '!' (33) is outside every illumina range, so only sanger survives.
	content := "@read1\n" + strings.Repeat("A", 30) + "\n+\n" + strings.Repeat("!", 30) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	e := testEngine()
	r := testRecord("sample1", "1")
	r.Files = []string{path}
	r.Algorithm["quality_format"] = "illumina"
	issues := issuesOf(t, e.Check([]*model.SampleRecord{r}))
	if !hasCode(issues, model.CodeQualityMismatch) {
		t.Errorf("expected quality mismatch issue, got %v", issues)
	}

	r.Algorithm["quality_format"] = "standard"
	if err := e.Check([]*model.SampleRecord{r}); err != nil {
		t.Errorf("expected nil for matching declaration, got %v", err)
	}
}

func TestCallerNames(t *testing.T) {
	cases := []struct {
		in   any
		want []string
	}{
		{"gatk-haplotype", []string{"gatk-haplotype"}},
		{[]any{"vardict", "mutect2"}, []string{"vardict", "mutect2"}},
		{map[string]any{"somatic": "vardict", "germline": "freebayes"},
			[]string{"freebayes", "vardict"}},
		{nil, nil},
		{false, nil},
	}
	for _, c := range cases {
		got := callerNames(c.in)
		if len(got) != len(c.want) {
			t.Errorf("callerNames(%v) = %v, want %v", c.in, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("callerNames(%v) = %v, want %v", c.in, got, c.want)
				break
			}
		}
	}
}
