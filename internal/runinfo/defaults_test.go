package runinfo

import (
	"reflect"
	"testing"
)

func TestAddAlgorithmDefaults_FillsAbsentKeys(t *testing.T) {
	got, err := addAlgorithmDefaults("s1", map[string]any{"quality_format": "illumina"})
	if err != nil {
		t.Fatalf("addAlgorithmDefaults: %v", err)
	}
	if got["quality_format"] != "illumina" {
		t.Errorf("explicit value overwritten: %v", got["quality_format"])
	}
	if got["effects"] != "snpeff" {
		t.Errorf("effects default = %v", got["effects"])
	}
	if got["nomap_split_size"] != 250 {
		t.Errorf("nomap_split_size default = %v", got["nomap_split_size"])
	}
}

func TestAddAlgorithmDefaults_SingleKeyRejectsList(t *testing.T) {
	_, err := addAlgorithmDefaults("s1", map[string]any{
		"hlacaller": []any{"optitype", "bwakit"},
	})
	if err == nil {
		t.Fatal("expected error for multi-item hlacaller")
	}
}

func TestAddAlgorithmDefaults_SingleKeyUnwraps(t *testing.T) {
	got, err := addAlgorithmDefaults("s1", map[string]any{
		"hlacaller": []any{"optitype"},
	})
	if err != nil {
		t.Fatalf("addAlgorithmDefaults: %v", err)
	}
	if got["hlacaller"] != "optitype" {
		t.Errorf("hlacaller = %v, want unwrapped scalar", got["hlacaller"])
	}
}

func TestListify(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{nil, []any{}},
		{"gatk", []any{"gatk"}},
		{[]any{"a", "b"}, []any{"a", "b"}},
		{false, false},
		{map[string]any{"germline": "gatk"}, map[string]any{"germline": []any{"gatk"}}},
	}
	for _, c := range cases {
		if got := listify(c.in); !reflect.DeepEqual(got, c.want) {
			t.Errorf("listify(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{"", false},
		{"x", true},
		{0, false},
		{3, true},
		{[]any{}, false},
		{[]any{"a"}, true},
		{map[string]any{}, false},
		{map[string]any{"k": 1}, true},
	}
	for _, c := range cases {
		if got := truthy(c.in); got != c.want {
			t.Errorf("truthy(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
