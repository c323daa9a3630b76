package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"codeswarm/internal/logging"
	"codeswarm/internal/oracle"
	"codeswarm/internal/parse"
	"codeswarm/internal/sandbox"
)

// Fixer proposes fixes via the oracle and applies the ones that pass
// the apply preconditions. It is the only role that writes.
type Fixer struct {
	Runner
	backups bool
}

// NewFixer builds the fixing role. backups controls whether a .backup
// copy is taken before the first write to a file.
func NewFixer(caller *oracle.Caller, box *sandbox.Guard, backups bool) *Fixer {
	return &Fixer{Runner: NewRunner("Fixer", caller, box), backups: backups}
}

// ApplyOutcome reports what happened to each proposed fix.
type ApplyOutcome struct {
	Applied []parse.Fix
	Skipped []SkippedFix
	Backup  string
}

// SkippedFix pairs a discarded fix with the reason it was discarded.
type SkippedFix struct {
	Fix    parse.Fix
	Reason string
}

// Fix asks the oracle for fixes to the reported issues and applies the
// valid ones. feedback carries the judge's guidance from a previous
// rejected attempt; empty on the first iteration.
func (f *Fixer) Fix(ctx context.Context, path string, report parse.AuditReport, feedback string) (parse.FixSet, *ApplyOutcome, error) {
	code, err := f.box.ReadFile(path)
	if err != nil {
		return parse.FixSet{}, nil, fmt.Errorf("fixer could not read %s: %w", path, err)
	}

	fileName := filepath.Base(path)
	prompt := buildFixPrompt(fileName, code, report.Issues, feedback)

	text, err := f.callOracle(ctx, logging.ActionFix, fixerSystemPrompt, prompt,
		map[string]interface{}{"file": path, "issue_count": len(report.Issues)})
	if err != nil {
		return parse.FixSet{}, nil, err
	}

	set := parse.ParseFixSet(text)
	if set.ParseFailed {
		logging.Get(logging.CategoryFixer).Warn("fix output for %s was undecodable, nothing applied", fileName)
		return set, &ApplyOutcome{}, nil
	}

	outcome, err := f.Apply(path, set.Fixes)
	if err != nil {
		return set, nil, err
	}
	return set, outcome, nil
}

// Apply writes the fixes that satisfy the apply preconditions, in
// order, against the live file content. A fix is applied only when (a)
// its fixed code passes syntax validation in the context of the whole
// file, (b) its original code is present verbatim in the current
// content, and (c) the guarded write succeeds. A backup of the original
// file is taken before the first write. Fixes failing a precondition
// are skipped, never partially applied.
func (f *Fixer) Apply(path string, fixes []parse.Fix) (*ApplyOutcome, error) {
	outcome := &ApplyOutcome{}
	if len(fixes) == 0 {
		return outcome, nil
	}

	content, err := f.box.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("apply could not read %s: %w", path, err)
	}

	current := content
	for _, fix := range fixes {
		if fix.OriginalCode == "" || fix.FixedCode == fix.OriginalCode {
			outcome.Skipped = append(outcome.Skipped, SkippedFix{fix, "empty or identity fix"})
			continue
		}
		// The guard against stale edits: the excerpt must still exist
		// byte for byte in the live content.
		if !strings.Contains(current, fix.OriginalCode) {
			outcome.Skipped = append(outcome.Skipped, SkippedFix{fix, "original_code not found in current content"})
			logging.Get(logging.CategoryFixer).Warn("stale fix for %s skipped (lines %d-%d)", path, fix.LineStart, fix.LineEnd)
			continue
		}

		candidate := strings.Replace(current, fix.OriginalCode, fix.FixedCode, 1)
		if err := ValidateSyntax(path, candidate); err != nil {
			outcome.Skipped = append(outcome.Skipped, SkippedFix{fix, err.Error()})
			continue
		}
		current = candidate
		outcome.Applied = append(outcome.Applied, fix)
	}

	if len(outcome.Applied) == 0 {
		return outcome, nil
	}

	if f.backups {
		backup, err := f.box.BackupFile(path)
		if err != nil {
			return nil, fmt.Errorf("backup before apply failed: %w", err)
		}
		outcome.Backup = backup
	}

	if err := f.box.WriteFile(path, current); err != nil {
		return nil, fmt.Errorf("apply write failed: %w", err)
	}
	logging.Get(logging.CategoryFixer).Info("applied %d/%d fixes to %s (backup %q)",
		len(outcome.Applied), len(fixes), path, outcome.Backup)
	return outcome, nil
}
