package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"codeswarm/internal/parse"
	"codeswarm/internal/tools"
)

const auditorSystemPrompt = `You are a meticulous code auditor. You analyze source code for
bugs, error-handling gaps, security problems and maintainability issues.
You never modify code; you only report findings.

Respond with a single JSON object:
{
  "issues": [
    {
      "file": "<file name>",
      "line_start": <int>,
      "line_end": <int>,
      "severity": "critical|high|medium|low",
      "category": "<short category>",
      "description": "<what is wrong>",
      "recommendation": "<how to fix it>"
    }
  ],
  "summary": "<one-paragraph overall assessment>"
}

If the code has no issues worth fixing, return an empty issues array.
Output only JSON.`

const fixerSystemPrompt = `You are a careful code fixer. You receive a file, a list of issues
and optionally feedback from a previous rejected attempt. You produce
minimal, targeted fixes.

For each fix, original_code must be an exact, byte-for-byte excerpt of
the current file content, including whitespace. Fixes whose
original_code does not match exactly will be discarded.

Respond with a single JSON object:
{
  "fixes": [
    {
      "file": "<file name>",
      "original_code": "<exact excerpt to replace>",
      "fixed_code": "<replacement>",
      "explanation": "<why this change is correct>",
      "confidence": "high|medium|low",
      "line_start": <int>,
      "line_end": <int>
    }
  ],
  "summary": "<what the fixes accomplish>"
}

Output only JSON.`

const judgeSystemPrompt = `You are a strict code-review judge. You evaluate whether applied
fixes resolve the reported issues without introducing regressions.
Test and analyzer evidence, when present, outweighs your own reading.

Respond with a single JSON object:
{
  "verdict": "APPROVED|APPROVED_WITH_NOTES|REJECTED|NEEDS_REVISION",
  "overall_score": <0-100>,
  "issues_found": [
    {
      "severity": "critical|high|medium|low",
      "category": "<short category>",
      "description": "<what is still wrong>"
    }
  ],
  "blocking_issues": ["<description of each critical problem>"],
  "requires_revision": <bool>,
  "feedback": "<concrete guidance for the next attempt>"
}

Output only JSON.`

// buildAuditPrompt assembles the auditor's user prompt for one file,
// embedding analyzer evidence when available.
func buildAuditPrompt(fileName, code string, analysis *tools.AnalysisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FILE TO ANALYZE: %s\n\nCODE:\n```\n%s\n```\n", fileName, code)

	if analysis != nil {
		b.WriteString("\nSTATIC ANALYSIS:\n")
		if analysis.HasScore {
			fmt.Fprintf(&b, "Score: %.2f/10\n", analysis.Score)
		}
		fmt.Fprintf(&b, "Findings: %d\n", len(analysis.Issues))
		for i, issue := range analysis.Issues {
			if i == 20 {
				fmt.Fprintf(&b, "... and %d more\n", len(analysis.Issues)-i)
				break
			}
			fmt.Fprintf(&b, "- line %d: %s %s\n", issue.Line, issue.Code, issue.Message)
		}
	}

	b.WriteString("\nProvide your complete analysis in the specified JSON format.")
	return b.String()
}

// buildFixPrompt assembles the fixer's user prompt: current code, the
// issues to address, and judge feedback when this is a retry.
func buildFixPrompt(fileName, code string, issues []parse.Issue, feedback string) string {
	issueJSON, err := json.MarshalIndent(issues, "", "  ")
	if err != nil {
		issueJSON = []byte("[]")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "FILE: %s\n\nCURRENT CODE:\n```\n%s\n```\n\nISSUES TO FIX:\n%s\n",
		fileName, code, issueJSON)

	if feedback != "" {
		fmt.Fprintf(&b, "\nA PREVIOUS ATTEMPT WAS REJECTED WITH THIS FEEDBACK:\n%s\n\nAddress the feedback in this attempt.\n", feedback)
	}

	b.WriteString("\nProvide your fixes in the specified JSON format.")
	return b.String()
}

// buildJudgePrompt assembles the judge's user prompt: the applied fixes,
// the original findings, and tool evidence.
func buildJudgePrompt(fileName, currentCode string, fixes parse.FixSet, report parse.AuditReport, evidence *ToolEvidence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Evaluate the refactoring of %s.\n\nORIGINAL FINDINGS:\n", fileName)
	for _, issue := range report.Issues {
		fmt.Fprintf(&b, "- [%s] %s\n", issue.Severity, issue.Description)
	}

	b.WriteString("\nAPPLIED FIXES:\n")
	if len(fixes.Fixes) == 0 {
		b.WriteString("(none were applied)\n")
	}
	for _, fix := range fixes.Fixes {
		fmt.Fprintf(&b, "--- fix (%s confidence): %s\nBEFORE:\n```\n%s\n```\nAFTER:\n```\n%s\n```\n",
			fix.Confidence, fix.Explanation, fix.OriginalCode, fix.FixedCode)
	}

	fmt.Fprintf(&b, "\nFILE AFTER FIXES:\n```\n%s\n```\n", currentCode)

	if evidence != nil {
		b.WriteString("\nTOOL EVIDENCE:\n")
		if evidence.Tests != nil {
			fmt.Fprintf(&b, "Tests: %d passed, %d failed, %d errors (success=%v)\n",
				evidence.Tests.Passed, evidence.Tests.Failed, evidence.Tests.Errors, evidence.Tests.Success)
		}
		if evidence.Analysis != nil && evidence.Analysis.HasScore {
			fmt.Fprintf(&b, "Analyzer score: %.2f/10 (was %.2f/10)\n",
				evidence.Analysis.Score, evidence.BaselineScore)
		}
	}

	b.WriteString("\nProvide your judgment in the specified JSON format.")
	return b.String()
}
