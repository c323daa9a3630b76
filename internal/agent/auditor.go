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

// Auditor reads a file, consults the analyzer and the oracle, and
// reports every issue worth fixing. It never writes.
type Auditor struct {
	Runner
	analyzer *tools.Analyzer
}

// NewAuditor builds the auditing role. analyzer may be nil.
func NewAuditor(caller *oracle.Caller, box *sandbox.Guard, analyzer *tools.Analyzer) *Auditor {
	return &Auditor{
		Runner:   NewRunner("Auditor", caller, box),
		analyzer: analyzer,
	}
}

// Analyze audits one file and returns its report. The analyzer feeds
// evidence into the prompt when it is installed; when it is not, the
// oracle judges the code on its own.
func (a *Auditor) Analyze(ctx context.Context, path string) (parse.AuditReport, error) {
	resolved, err := a.box.ValidateRead(path)
	if err != nil {
		return parse.AuditReport{}, err
	}
	code, err := a.box.ReadFile(path)
	if err != nil {
		return parse.AuditReport{}, fmt.Errorf("auditor could not read %s: %w", path, err)
	}

	var analysis *tools.AnalysisResult
	if a.analyzer != nil {
		analysis, err = a.analyzer.Run(ctx, resolved)
		if err != nil {
			// Missing or failing analyzer downgrades to oracle-only audit.
			logging.Tools("auditor proceeding without analyzer: %v", err)
			analysis = nil
		}
	}

	fileName := filepath.Base(path)
	prompt := buildAuditPrompt(fileName, code, analysis)

	extra := map[string]interface{}{"file": path}
	if analysis != nil && analysis.HasScore {
		extra["analyzer_score"] = analysis.Score
	}

	text, err := a.callOracle(ctx, logging.ActionAnalysis, auditorSystemPrompt, prompt, extra)
	if err != nil {
		return parse.AuditReport{}, err
	}

	report := parse.ParseAuditReport(text)
	if analysis != nil && analysis.HasScore {
		report.BaselineScore = analysis.Score
	}
	for i := range report.Issues {
		if report.Issues[i].File == "" {
			report.Issues[i].File = fileName
		}
	}
	logging.Orchestrator("audit of %s: %d issues (parse_failed=%v)", fileName, len(report.Issues), report.ParseFailed)
	return report, nil
}
