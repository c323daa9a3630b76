package agent

import (
	"context"
	"fmt"
	"path/filepath"

	"codeswarm/internal/logging"
	"codeswarm/internal/oracle"
	"codeswarm/internal/parse"
	"codeswarm/internal/sandbox"
	"codeswarm/internal/tools"
)

// analyzerRegressionMargin is how far the analyzer score may drop after
// a fix before the judge treats it as a regression.
const analyzerRegressionMargin = 0.5

// ToolEvidence is what the external collaborators observed about the
// fixed file.
type ToolEvidence struct {
	Tests         *tools.TestResult
	Analysis      *tools.AnalysisResult
	BaselineScore float64
}

// Judge re-reads the fixed file, gathers tool evidence, and renders a
// verdict. Tool evidence is authoritative where it exists: failing
// tests or a regressed analyzer score override whatever the oracle
// concluded, and the oracle's reading fills in only where tools are
// silent.
type Judge struct {
	Runner
	analyzer *tools.Analyzer
	tests    *tools.TestRunner
}

// NewJudge builds the judging role. analyzer and tests may be nil.
func NewJudge(caller *oracle.Caller, box *sandbox.Guard, analyzer *tools.Analyzer, tests *tools.TestRunner) *Judge {
	return &Judge{
		Runner:   NewRunner("Judge", caller, box),
		analyzer: analyzer,
		tests:    tests,
	}
}

// Evaluate judges the applied fixes for one file. baselineScore is the
// analyzer score observed before fixing (0 when unknown).
func (j *Judge) Evaluate(ctx context.Context, path string, fixes parse.FixSet, report parse.AuditReport, baselineScore float64) (parse.Judgment, error) {
	code, err := j.box.ReadFile(path)
	if err != nil {
		return parse.Judgment{}, fmt.Errorf("judge could not read %s: %w", path, err)
	}

	evidence := j.gatherEvidence(ctx, path, baselineScore)

	fileName := filepath.Base(path)
	prompt := buildJudgePrompt(fileName, code, fixes, report, evidence)

	text, err := j.callOracle(ctx, logging.ActionAnalysis, judgeSystemPrompt, prompt,
		map[string]interface{}{"file": path, "fixes_applied": len(fixes.Fixes)})
	if err != nil {
		return parse.Judgment{}, err
	}

	judgment := parse.ParseJudgment(text)
	judgment = j.applyEvidence(judgment, evidence, fileName)
	logging.Get(logging.CategoryJudge).Info("%s: verdict=%s score=%.0f blocking=%d",
		fileName, judgment.Verdict, judgment.OverallScore, len(judgment.BlockingIssues))
	return judgment, nil
}

// gatherEvidence runs the tools against the fixed file. Tool
// unavailability leaves the corresponding evidence nil; tool failures
// are logged, not fatal, because missing evidence only weakens the
// judgment, it does not invalidate it.
func (j *Judge) gatherEvidence(ctx context.Context, path string, baselineScore float64) *ToolEvidence {
	evidence := &ToolEvidence{BaselineScore: baselineScore}

	resolved, err := j.box.ValidateRead(path)
	if err != nil {
		return evidence
	}

	if j.tests != nil {
		result, err := j.tests.Run(ctx, filepath.Dir(resolved))
		if err != nil {
			logging.Tools("judge proceeding without test evidence: %v", err)
		} else {
			evidence.Tests = result
		}
	}
	if j.analyzer != nil {
		result, err := j.analyzer.Run(ctx, resolved)
		if err != nil {
			logging.Tools("judge proceeding without analyzer evidence: %v", err)
		} else {
			evidence.Analysis = result
		}
	}
	return evidence
}

// applyEvidence enforces the precedence of tool evidence over the
// oracle's verdict.
func (j *Judge) applyEvidence(judgment parse.Judgment, evidence *ToolEvidence, fileName string) parse.Judgment {
	if evidence == nil {
		return judgment
	}

	if evidence.Tests != nil && !evidence.Tests.Success {
		reason := fmt.Sprintf("tests failing after fix: %d failed, %d errors",
			evidence.Tests.Failed, evidence.Tests.Errors)
		judgment = overrule(judgment, reason)
		logging.Get(logging.CategoryJudge).Warn("%s: oracle verdict overruled, %s", fileName, reason)
	}

	if evidence.Analysis != nil && evidence.Analysis.HasScore &&
		evidence.BaselineScore > 0 &&
		evidence.Analysis.Score < evidence.BaselineScore-analyzerRegressionMargin {
		reason := fmt.Sprintf("analyzer score regressed from %.2f to %.2f",
			evidence.BaselineScore, evidence.Analysis.Score)
		judgment = overrule(judgment, reason)
		logging.Get(logging.CategoryJudge).Warn("%s: oracle verdict overruled, %s", fileName, reason)
	}

	return judgment
}

// overrule demotes an accepting verdict to REJECTED and records why.
func overrule(judgment parse.Judgment, reason string) parse.Judgment {
	if judgment.Verdict.Accepted() {
		judgment.Verdict = parse.VerdictRejected
	}
	judgment.RequiresRevision = true
	judgment.BlockingIssues = append(judgment.BlockingIssues, reason)
	if judgment.Feedback == "" {
		judgment.Feedback = reason
	} else {
		judgment.Feedback += "; " + reason
	}
	return judgment
}
