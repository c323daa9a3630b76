package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"codeswarm/internal/logging"
)

// TestResult carries the outcome of one test-suite run.
type TestResult struct {
	Passed  int
	Failed  int
	Errors  int
	Total   int
	Success bool
	NoTests bool
	Raw     string
}

// TestRunner executes a pytest-style suite against a directory.
type TestRunner struct {
	binary  string
	timeout time.Duration
}

// NewTestRunner configures the test command. An empty binary disables
// test evidence entirely.
func NewTestRunner(binary string, timeout time.Duration) *TestRunner {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &TestRunner{binary: binary, timeout: timeout}
}

// pytest exits 5 when no tests were collected.
const exitNoTestsCollected = 5

var summaryCount = regexp.MustCompile(`(\d+) (passed|failed|error(?:s)?)`)

// Run executes the suite in dir. A directory with no tests counts as
// success: absence of evidence is not a failing suite. Failing tests
// are a normal result, not an error; only a missing binary, a timeout
// or a spawn failure is.
func (t *TestRunner) Run(ctx context.Context, dir string) (*TestResult, error) {
	if t.binary == "" {
		return nil, ErrUnavailable
	}
	if _, err := exec.LookPath(t.binary); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, t.binary)
	}

	execCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, t.binary, dir)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if execCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("test run timed out after %s in %s", t.timeout, dir)
	}

	result := parseTestOutput(stdout.String() + stderr.String())

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("test runner failed to start: %w", err)
		}
		switch {
		case exitErr.ExitCode() == exitNoTestsCollected:
			result.NoTests = true
			result.Success = true
		case result.Total == 0:
			// Nonzero exit with no parsable counts: the runner itself
			// broke (usage error, crash), not a failing suite.
			return nil, fmt.Errorf("test runner exited %d without results in %s", exitErr.ExitCode(), dir)
		}
		// Nonzero exits with counts mean failing tests; the counts carry that.
	} else {
		result.Success = result.Failed == 0 && result.Errors == 0
	}

	logging.Tools("tests %s in %s: passed=%d failed=%d errors=%d success=%v in %v",
		t.binary, dir, result.Passed, result.Failed, result.Errors, result.Success, elapsed.Round(time.Millisecond))
	return result, nil
}

func parseTestOutput(out string) *TestResult {
	result := &TestResult{Raw: out}

	for _, m := range summaryCount.FindAllStringSubmatch(out, -1) {
		n, convErr := strconv.Atoi(m[1])
		if convErr != nil {
			continue
		}
		switch {
		case m[2] == "passed":
			result.Passed = n
		case m[2] == "failed":
			result.Failed = n
		default:
			result.Errors = n
		}
	}
	result.Total = result.Passed + result.Failed + result.Errors
	if result.Total == 0 {
		result.NoTests = true
		result.Success = true
	} else {
		result.Success = result.Failed == 0 && result.Errors == 0
	}
	return result
}
