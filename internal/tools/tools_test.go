package tools

import (
	"context"
	"errors"
	"testing"
	"time"
)

const pylintSample = `************* Module calculator
calculator.py:4:0: C0114: Missing module docstring (missing-module-docstring)
calculator.py:12:8: W0612: Unused variable 'tmp' (unused-variable)
calculator.py:20:4: E1120: No value for argument 'b' in function call (no-value-for-parameter)

------------------------------------------------------------------
Your code has been rated at 6.67/10 (previous run: 5.00/10, +1.67)
`

func TestParseAnalyzerOutput(t *testing.T) {
	result := parseAnalyzerOutput(pylintSample)

	if !result.HasScore {
		t.Fatal("score not detected")
	}
	if result.Score != 6.67 {
		t.Errorf("score = %v, want 6.67", result.Score)
	}
	if len(result.Issues) != 3 {
		t.Fatalf("got %d issues, want 3", len(result.Issues))
	}

	first := result.Issues[0]
	if first.Line != 4 || first.Code != "C0114" || first.Severity != "low" {
		t.Errorf("first issue = %+v", first)
	}
	if result.Issues[1].Severity != "medium" {
		t.Errorf("W-code severity = %q, want medium", result.Issues[1].Severity)
	}
	if result.Issues[2].Severity != "high" {
		t.Errorf("E-code severity = %q, want high", result.Issues[2].Severity)
	}
}

func TestParseAnalyzerOutput_NoFindings(t *testing.T) {
	result := parseAnalyzerOutput("\nYour code has been rated at 10.00/10\n")
	if !result.HasScore || result.Score != 10.0 {
		t.Errorf("score = %v has=%v", result.Score, result.HasScore)
	}
	if len(result.Issues) != 0 {
		t.Errorf("phantom issues: %+v", result.Issues)
	}
}

func TestParseTestOutput(t *testing.T) {
	out := "collected 6 items\n\n...F.E\n\n=== 4 passed, 1 failed, 1 error in 0.12s ===\n"
	result := parseTestOutput(out)

	if result.Passed != 4 || result.Failed != 1 || result.Errors != 1 {
		t.Errorf("counts = %d/%d/%d", result.Passed, result.Failed, result.Errors)
	}
	if result.Total != 6 {
		t.Errorf("total = %d, want 6", result.Total)
	}
	if result.Success {
		t.Error("suite with failures reported success")
	}
	if result.NoTests {
		t.Error("suite with tests flagged as empty")
	}
}

func TestParseTestOutput_AllPassing(t *testing.T) {
	result := parseTestOutput("=== 8 passed in 0.03s ===\n")
	if !result.Success || result.Passed != 8 {
		t.Errorf("result = %+v", result)
	}
}

func TestParseTestOutput_NoTestsMeansSuccess(t *testing.T) {
	result := parseTestOutput("collected 0 items\n\nno tests ran in 0.01s\n")
	if !result.NoTests {
		t.Error("empty suite not flagged")
	}
	if !result.Success {
		t.Error("absence of tests must count as success")
	}
}

func TestAnalyzer_MissingBinaryIsUnavailable(t *testing.T) {
	a := NewAnalyzer("definitely-not-a-real-linter-binary", time.Second)
	_, err := a.Run(context.Background(), ".")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}

	disabled := NewAnalyzer("", time.Second)
	if _, err := disabled.Run(context.Background(), "."); !errors.Is(err, ErrUnavailable) {
		t.Errorf("empty binary: err = %v, want ErrUnavailable", err)
	}
}

func TestTestRunner_BrokenRunnerIsAnError(t *testing.T) {
	// A nonzero exit with no parsable summary is a broken runner, not a
	// passing suite. `false` exits 1 and prints nothing.
	r := NewTestRunner("false", time.Second)
	result, err := r.Run(context.Background(), t.TempDir())
	if err == nil {
		t.Fatalf("count-less nonzero exit reported as result: %+v", result)
	}
	if errors.Is(err, ErrUnavailable) {
		t.Errorf("broken runner misreported as unavailable: %v", err)
	}
}

func TestTestRunner_CleanExitWithoutTests(t *testing.T) {
	// Exit 0 with no summary stays success-by-default. `true` exits 0
	// and prints nothing.
	r := NewTestRunner("true", time.Second)
	result, err := r.Run(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.NoTests || !result.Success {
		t.Errorf("result = %+v, want NoTests and Success", result)
	}
}

func TestTestRunner_MissingBinaryIsUnavailable(t *testing.T) {
	r := NewTestRunner("definitely-not-a-real-test-binary", time.Second)
	_, err := r.Run(context.Background(), t.TempDir())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}
