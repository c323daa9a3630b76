package parse

import (
	"encoding/json"
	"strings"
)

// ExtractPayload strips one layer of markdown fencing from oracle text.
// Preference order: a ```json fenced block, then any fenced block, then
// the first brace-balanced JSON value, then the whole trimmed text.
func ExtractPayload(text string) string {
	text = strings.TrimSpace(text)

	if block, ok := fencedBlock(text, "json"); ok {
		return block
	}
	if block, ok := fencedBlock(text, ""); ok {
		return block
	}
	if v := balancedJSON(text); v != "" {
		return v
	}
	return text
}

// fencedBlock returns the content of the first ``` block with the given
// language tag ("" matches any tag).
func fencedBlock(text, lang string) (string, bool) {
	rest := text
	for {
		start := strings.Index(rest, "```")
		if start == -1 {
			return "", false
		}
		rest = rest[start+3:]
		nl := strings.IndexByte(rest, '\n')
		if nl == -1 {
			return "", false
		}
		tag := strings.ToLower(strings.TrimSpace(rest[:nl]))
		body := rest[nl+1:]
		end := strings.Index(body, "```")
		if end == -1 {
			// Truncated fence: take what is there rather than discard it.
			end = len(body)
		}
		if lang == "" || tag == lang {
			return strings.TrimSpace(body[:end]), true
		}
		if end == len(body) {
			return "", false
		}
		rest = body[end+3:]
	}
}

// balancedJSON returns the first brace-balanced object or array in text,
// respecting string literals and escapes.
func balancedJSON(text string) string {
	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return ""
	}
	open := text[start]
	var closing byte = '}'
	if open == '[' {
		closing = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == closing:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// decode extracts the payload and strictly unmarshals it into v.
func decode(text string, v interface{}) error {
	return json.Unmarshal([]byte(ExtractPayload(text)), v)
}

// excerpt returns a short prefix of text for embedding in fallback
// descriptions.
func excerpt(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > 200 {
		return text[:200] + "..."
	}
	return text
}

// ParseAuditReport decodes auditor output. Undecodable text degrades to a
// report with one synthetic low-severity parsing_error issue: the loop
// then proceeds (there is "something to fix") instead of halting, and
// the marker keeps the artifact distinguishable from a real finding.
func ParseAuditReport(text string) AuditReport {
	var report AuditReport
	if err := decode(text, &report); err != nil {
		return AuditReport{
			ParseFailed: true,
			Summary:     "auditor output could not be decoded",
			Issues: []Issue{{
				Severity:    SeverityLow,
				Category:    CategoryParsingError,
				Description: "undecodable auditor output: " + excerpt(text),
			}},
		}
	}
	for i := range report.Issues {
		report.Issues[i].Severity = NormalizeSeverity(string(report.Issues[i].Severity))
	}
	return report
}

// ParseFixSet decodes fixer output. Undecodable text degrades to an
// empty set with the marker raised; the judge then sees no applied
// change and the iteration counts against the budget.
func ParseFixSet(text string) FixSet {
	var set FixSet
	if err := decode(text, &set); err != nil {
		return FixSet{
			ParseFailed: true,
			Summary:     "fixer output could not be decoded: " + excerpt(text),
		}
	}
	for i := range set.Fixes {
		set.Fixes[i].Confidence = NormalizeConfidence(string(set.Fixes[i].Confidence))
	}
	return set
}

// ParseJudgment decodes judge output. Undecodable text degrades to
// NEEDS_REVISION with one synthetic critical parsing_error issue: an
// unreadable verdict must never approve a change. blocking_issues is
// derived here from the critical issues when the oracle did not supply
// it, so the orchestrator never re-filters.
func ParseJudgment(text string) Judgment {
	var j Judgment
	if err := decode(text, &j); err != nil {
		return Judgment{
			ParseFailed:      true,
			Verdict:          VerdictNeedsRevision,
			RequiresRevision: true,
			Feedback:         "judge output could not be decoded; revise and resubmit",
			IssuesFound: []Issue{{
				Severity:    SeverityCritical,
				Category:    CategoryParsingError,
				Description: "undecodable judge output: " + excerpt(text),
			}},
			BlockingIssues: []string{"undecodable judge output"},
		}
	}

	j.Verdict = NormalizeVerdict(string(j.Verdict))
	for i := range j.IssuesFound {
		j.IssuesFound[i].Severity = NormalizeSeverity(string(j.IssuesFound[i].Severity))
	}
	if len(j.BlockingIssues) == 0 {
		for _, issue := range j.IssuesFound {
			if issue.Severity == SeverityCritical {
				j.BlockingIssues = append(j.BlockingIssues, issue.Description)
			}
		}
	}
	if !j.Verdict.Accepted() {
		j.RequiresRevision = true
	}
	return j
}
