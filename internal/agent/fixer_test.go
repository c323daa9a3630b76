package agent

import (
	"strings"
	"testing"

	"codeswarm/internal/parse"
	"codeswarm/internal/sandbox"
)

func newTestFixer(t *testing.T) (*Fixer, *sandbox.Guard) {
	t.Helper()
	box, err := sandbox.NewGuard(t.TempDir())
	if err != nil {
		t.Fatalf("NewGuard failed: %v", err)
	}
	// Apply never touches the oracle, so no caller is needed here.
	return NewFixer(nil, box, true), box
}

const fixerSeed = "def add(a, b):\n    return a+b\n\ndef sub(a, b):\n    return a-b\n"

func TestApply_MatchingFix(t *testing.T) {
	fixer, box := newTestFixer(t)
	if err := box.WriteFile("m.py", fixerSeed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	outcome, err := fixer.Apply("m.py", []parse.Fix{{
		File:         "m.py",
		OriginalCode: "    return a+b",
		FixedCode:    "    return a + b",
		Confidence:   parse.ConfidenceHigh,
	}})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(outcome.Applied) != 1 || len(outcome.Skipped) != 0 {
		t.Fatalf("applied=%d skipped=%d, want 1/0", len(outcome.Applied), len(outcome.Skipped))
	}

	content, err := box.ReadFile("m.py")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(content, "return a + b") {
		t.Errorf("fix not applied, content:\n%s", content)
	}
	if strings.Contains(content, "return a+b") {
		t.Errorf("original excerpt still present, content:\n%s", content)
	}

	if outcome.Backup == "" {
		t.Fatal("no backup recorded")
	}
	saved, err := box.ReadFile(outcome.Backup)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if saved != fixerSeed {
		t.Error("backup does not hold the pre-fix content")
	}
}

func TestApply_StaleOriginalCodeLeavesFileUntouched(t *testing.T) {
	fixer, box := newTestFixer(t)
	if err := box.WriteFile("m.py", fixerSeed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	outcome, err := fixer.Apply("m.py", []parse.Fix{{
		File:         "m.py",
		OriginalCode: "    return a * b", // never existed in the file
		FixedCode:    "    return a + b",
	}})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(outcome.Applied) != 0 {
		t.Fatalf("stale fix was applied")
	}
	if len(outcome.Skipped) != 1 {
		t.Fatalf("skipped=%d, want 1", len(outcome.Skipped))
	}
	if !strings.Contains(outcome.Skipped[0].Reason, "not found") {
		t.Errorf("skip reason %q does not name the stale match", outcome.Skipped[0].Reason)
	}

	content, _ := box.ReadFile("m.py")
	if content != fixerSeed {
		t.Error("file was modified despite the stale precondition")
	}
	if outcome.Backup != "" {
		t.Error("backup taken although nothing was applied")
	}
}

func TestApply_RejectsSyntaxBreakingFix(t *testing.T) {
	fixer, box := newTestFixer(t)
	if err := box.WriteFile("m.py", fixerSeed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	outcome, err := fixer.Apply("m.py", []parse.Fix{{
		File:         "m.py",
		OriginalCode: "    return a+b",
		FixedCode:    "    return add(a, b", // unbalanced
	}})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(outcome.Applied) != 0 {
		t.Fatal("syntax-breaking fix was applied")
	}
	content, _ := box.ReadFile("m.py")
	if content != fixerSeed {
		t.Error("file was modified by a rejected fix")
	}
}

func TestApply_SequentialFixesSeeEarlierChanges(t *testing.T) {
	fixer, box := newTestFixer(t)
	if err := box.WriteFile("m.py", fixerSeed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	fixes := []parse.Fix{
		{OriginalCode: "    return a+b", FixedCode: "    return a + b"},
		// Depends on the first fix having landed.
		{OriginalCode: "def add(a, b):\n    return a + b", FixedCode: "def add(a, b):\n    \"\"\"Add two numbers.\"\"\"\n    return a + b"},
	}
	outcome, err := fixer.Apply("m.py", fixes)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(outcome.Applied) != 2 {
		t.Fatalf("applied=%d, want 2 (skipped: %+v)", len(outcome.Applied), outcome.Skipped)
	}
	content, _ := box.ReadFile("m.py")
	if !strings.Contains(content, "Add two numbers.") {
		t.Errorf("second fix missing, content:\n%s", content)
	}
}

func TestApply_IdentityFixSkipped(t *testing.T) {
	fixer, box := newTestFixer(t)
	if err := box.WriteFile("m.py", fixerSeed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	outcome, err := fixer.Apply("m.py", []parse.Fix{
		{OriginalCode: "    return a+b", FixedCode: "    return a+b"},
		{OriginalCode: "", FixedCode: "whatever"},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(outcome.Applied) != 0 || len(outcome.Skipped) != 2 {
		t.Errorf("applied=%d skipped=%d, want 0/2", len(outcome.Applied), len(outcome.Skipped))
	}
}

func TestApply_NoBackupWhenDisabled(t *testing.T) {
	box, err := sandbox.NewGuard(t.TempDir())
	if err != nil {
		t.Fatalf("NewGuard failed: %v", err)
	}
	fixer := NewFixer(nil, box, false)
	if err := box.WriteFile("m.py", fixerSeed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	outcome, err := fixer.Apply("m.py", []parse.Fix{{
		OriginalCode: "    return a+b",
		FixedCode:    "    return a + b",
	}})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if outcome.Backup != "" {
		t.Errorf("backup %q taken with backups disabled", outcome.Backup)
	}
	if box.FileExists("m.py" + sandbox.BackupSuffix) {
		t.Error("backup file exists on disk with backups disabled")
	}
}
