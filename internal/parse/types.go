// Package parse turns oracle free text into the typed results each role
// produces. Decoding is total: malformed text degrades to a fallback
// value carrying a visible parsing_error marker, never an error return,
// so the pipeline always has a decidable value to act on.
package parse

import "strings"

// Severity ranks an issue. Only critical issues block approval.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// NormalizeSeverity maps arbitrary oracle casing onto the known set,
// defaulting unknown values to medium.
func NormalizeSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// Confidence expresses how sure the fixer is about a change.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// NormalizeConfidence defaults unknown values to low so an unreadable
// confidence never inflates trust in a fix.
func NormalizeConfidence(s string) Confidence {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	case ConfidenceLow:
		return ConfidenceLow
	default:
		return ConfidenceLow
	}
}

// Verdict is the judge's terminal decision for one iteration.
type Verdict string

const (
	VerdictApproved          Verdict = "APPROVED"
	VerdictApprovedWithNotes Verdict = "APPROVED_WITH_NOTES"
	VerdictRejected          Verdict = "REJECTED"
	VerdictNeedsRevision     Verdict = "NEEDS_REVISION"
)

// Accepted reports whether the verdict ends the fix/judge loop
// successfully.
func (v Verdict) Accepted() bool {
	return v == VerdictApproved || v == VerdictApprovedWithNotes
}

// NormalizeVerdict maps arbitrary oracle output onto the known verdict
// set. Anything unrecognized becomes NEEDS_REVISION: an unreadable
// verdict must never approve a change.
func NormalizeVerdict(s string) Verdict {
	switch Verdict(strings.ToUpper(strings.TrimSpace(s))) {
	case VerdictApproved:
		return VerdictApproved
	case VerdictApprovedWithNotes:
		return VerdictApprovedWithNotes
	case VerdictRejected:
		return VerdictRejected
	case VerdictNeedsRevision:
		return VerdictNeedsRevision
	default:
		return VerdictNeedsRevision
	}
}

// CategoryParsingError marks issues synthesized by the parser itself
// when oracle output could not be decoded. Downstream stages use it to
// distinguish a parsing artifact from a genuine code issue.
const CategoryParsingError = "parsing_error"

// Issue is one finding in a body of code.
type Issue struct {
	File           string   `json:"file"`
	LineStart      int      `json:"line_start"`
	LineEnd        int      `json:"line_end"`
	Severity       Severity `json:"severity"`
	Category       string   `json:"category"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
}

// IsParsingArtifact reports whether the issue was synthesized by a
// decode fallback rather than found in code.
func (i Issue) IsParsingArtifact() bool { return i.Category == CategoryParsingError }

// AuditReport is the auditor's output: everything wrong with the target.
type AuditReport struct {
	Issues  []Issue `json:"issues"`
	Summary string  `json:"summary"`

	// ParseFailed marks a fallback report built from undecodable text.
	ParseFailed bool `json:"-"`

	// BaselineScore is the analyzer score observed at audit time, used
	// later to detect regressions. Filled by the auditor, not decoded.
	BaselineScore float64 `json:"-"`
}

// Clean reports whether the audit found nothing to fix.
func (r AuditReport) Clean() bool { return !r.ParseFailed && len(r.Issues) == 0 }

// Fix is one proposed code change. OriginalCode must match the live file
// byte for byte before FixedCode may replace it.
type Fix struct {
	File         string     `json:"file"`
	OriginalCode string     `json:"original_code"`
	FixedCode    string     `json:"fixed_code"`
	Explanation  string     `json:"explanation"`
	Confidence   Confidence `json:"confidence"`
	LineStart    int        `json:"line_start"`
	LineEnd      int        `json:"line_end"`
}

// FixSet is the fixer's output for one iteration.
type FixSet struct {
	Fixes   []Fix  `json:"fixes"`
	Summary string `json:"summary"`

	ParseFailed bool `json:"-"`
}

// Judgment is the judge's output: verdict plus the evidence behind it.
type Judgment struct {
	Verdict          Verdict  `json:"verdict"`
	OverallScore     float64  `json:"overall_score"`
	IssuesFound      []Issue  `json:"issues_found"`
	BlockingIssues   []string `json:"blocking_issues"`
	RequiresRevision bool     `json:"requires_revision"`
	Feedback         string   `json:"feedback"`

	ParseFailed bool `json:"-"`
}
