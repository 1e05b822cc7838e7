package model

import (
	"fmt"
	"strings"
)

// IssueCode classifies a validation finding.
type IssueCode string

const (
	CodeDuplicate       IssueCode = "DUPLICATE"
	CodeBatchClash      IssueCode = "BATCH_CLASH"
	CodeSomaticBatch    IssueCode = "SOMATIC_BATCH"
	CodeMisplacedKey    IssueCode = "MISPLACED_KEY"
	CodeUnknownOption   IssueCode = "UNKNOWN_OPTION"
	CodeBooleanMisuse   IssueCode = "BOOLEAN_MISUSE"
	CodeUnknownCaller   IssueCode = "UNKNOWN_CALLER"
	CodeBadCombination  IssueCode = "BAD_COMBINATION"
	CodeQualityMismatch IssueCode = "QUALITY_MISMATCH"
)

// Issue is a single structured validation finding. Sample names the
// offending record's description where one applies.
type Issue struct {
	Code    IssueCode `json:"code"`
	Sample  string    `json:"sample,omitempty"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message"`
}

func (i Issue) String() string {
	var b strings.Builder
	b.WriteString(string(i.Code))
	if i.Sample != "" {
		fmt.Fprintf(&b, " sample=%s", i.Sample)
	}
	if i.Field != "" {
		fmt.Fprintf(&b, " field=%s", i.Field)
	}
	b.WriteString(": ")
	b.WriteString(i.Message)
	return b.String()
}

// ValidationError aggregates every finding of a validation pass so one run
// surfaces all problems instead of forcing fix-rerun cycles.
type ValidationError struct {
	Message string  `json:"message"`
	Issues  []Issue `json:"issues"`
}

func (e *ValidationError) Error() string {
	lines := make([]string, 0, len(e.Issues)+1)
	lines = append(lines, e.Message)
	for _, iss := range e.Issues {
		lines = append(lines, "  "+iss.String())
	}
	return strings.Join(lines, "\n")
}

// NewValidationError creates a ValidationError with the given findings.
func NewValidationError(msg string, issues ...Issue) *ValidationError {
	return &ValidationError{Message: msg, Issues: issues}
}

// MalformedInputError reports a run sheet that does not parse or lacks
// required structure.
type MalformedInputError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed run sheet %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed run sheet %s: %s", e.Path, e.Reason)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// UnresolvedPathError reports a file reference that could not be located in
// any candidate directory.
type UnresolvedPathError struct {
	Target string
	Tried  []string
}

func (e *UnresolvedPathError) Error() string {
	return fmt.Sprintf("did not find input file %s in %v", e.Target, e.Tried)
}

// InconsistentConfigError reports a cross-field or cross-sample rule
// violation found during normalization.
type InconsistentConfigError struct {
	Sample string
	Reason string
}

func (e *InconsistentConfigError) Error() string {
	if e.Sample != "" {
		return fmt.Sprintf("inconsistent configuration for %s: %s", e.Sample, e.Reason)
	}
	return "inconsistent configuration: " + e.Reason
}
