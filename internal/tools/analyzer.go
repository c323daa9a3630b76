// Package tools wraps the external collaborators the judge consults:
// a static analyzer producing a quality score and a test runner
// producing pass/fail counts. Both are optional at runtime; a missing
// binary degrades to ErrUnavailable instead of failing the workflow.
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"codeswarm/internal/logging"
)

// ErrUnavailable signals that the tool binary is not installed. Callers
// treat it as "no evidence", not as a workflow failure.
var ErrUnavailable = errors.New("tool binary not available")

// AnalyzerIssue is one finding reported by the static analyzer.
type AnalyzerIssue struct {
	Path     string
	Line     int
	Column   int
	Code     string
	Message  string
	Severity string
}

// AnalysisResult carries the analyzer's verdict on one target.
type AnalysisResult struct {
	Score    float64 // 0..10, higher is better
	HasScore bool
	Issues   []AnalyzerIssue
	Raw      string
}

// Analyzer runs a pylint-style linter over a file or directory.
type Analyzer struct {
	binary  string
	timeout time.Duration
}

// NewAnalyzer configures the analyzer command. An empty binary disables
// analysis entirely.
func NewAnalyzer(binary string, timeout time.Duration) *Analyzer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Analyzer{binary: binary, timeout: timeout}
}

// issueLine matches "path:line:col: C0114: message" style output.
var issueLine = regexp.MustCompile(`^(.+?):(\d+):(\d+): ([A-Z]\d+):? (.+)$`)

// scoreLine matches "Your code has been rated at 7.50/10".
var scoreLine = regexp.MustCompile(`rated at (-?\d+(?:\.\d+)?)/10`)

// Run analyzes the target and parses score plus findings from the
// output. A nonzero exit is normal for a linter that found problems;
// only a missing binary or a timeout is an error.
func (a *Analyzer) Run(ctx context.Context, target string) (*AnalysisResult, error) {
	if a.binary == "" {
		return nil, ErrUnavailable
	}
	if _, err := exec.LookPath(a.binary); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, a.binary)
	}

	execCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, a.binary, target)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if execCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("analyzer timed out after %s on %s", a.timeout, target)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("analyzer failed to run: %w", err)
		}
		// Nonzero exit with output means findings, not failure.
	}

	result := parseAnalyzerOutput(stdout.String())
	logging.Tools("analyzer %s on %s: score=%.2f (has=%v) issues=%d in %v",
		a.binary, target, result.Score, result.HasScore, len(result.Issues), elapsed.Round(time.Millisecond))
	return result, nil
}

func parseAnalyzerOutput(out string) *AnalysisResult {
	result := &AnalysisResult{Raw: out}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := issueLine.FindStringSubmatch(line); m != nil {
			lineNo, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			result.Issues = append(result.Issues, AnalyzerIssue{
				Path:     m[1],
				Line:     lineNo,
				Column:   col,
				Code:     m[4],
				Message:  strings.TrimSpace(m[5]),
				Severity: severityForCode(m[4]),
			})
			continue
		}
		if m := scoreLine.FindStringSubmatch(line); m != nil {
			if score, err := strconv.ParseFloat(m[1], 64); err == nil {
				result.Score = score
				result.HasScore = true
			}
		}
	}
	return result
}

// severityForCode maps pylint message-class prefixes to a coarse
// severity.
func severityForCode(code string) string {
	switch {
	case strings.HasPrefix(code, "E"), strings.HasPrefix(code, "F"):
		return "high"
	case strings.HasPrefix(code, "W"):
		return "medium"
	default:
		return "low"
	}
}
