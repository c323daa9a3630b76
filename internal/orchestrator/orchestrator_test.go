package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeswarm/internal/agent"
	"codeswarm/internal/logging"
	"codeswarm/internal/oracle"
	"codeswarm/internal/ratelimit"
	"codeswarm/internal/sandbox"
)

// scriptedOracle replays canned responses in call order and records
// every prompt it saw.
type scriptedOracle struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (s *scriptedOracle) Complete(ctx context.Context, prompt string) (string, error) {
	return s.CompleteWithSystem(ctx, "", prompt)
}

func (s *scriptedOracle) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, prompt)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", fmt.Errorf("oracle script exhausted at call %d", i)
}

func (s *scriptedOracle) Model() string { return "scripted" }

const seedCode = "def add(a, b):\n    return a+b\n"

const cleanAudit = `{"issues": [], "summary": "nothing to fix"}`

const oneIssueAudit = `{"issues": [{"file": "m.py", "line_start": 2, "line_end": 2,
  "severity": "medium", "category": "style", "description": "missing spaces around operator",
  "recommendation": "write a + b"}], "summary": "minor style issue"}`

const matchingFixSet = `{"fixes": [{"file": "m.py", "original_code": "    return a+b",
  "fixed_code": "    return a + b", "explanation": "spacing", "confidence": "high",
  "line_start": 2, "line_end": 2}], "summary": "spacing fixed"}`

const approval = `{"verdict": "APPROVED", "overall_score": 95, "issues_found": [],
  "blocking_issues": [], "requires_revision": false, "feedback": ""}`

const rejection = `{"verdict": "NEEDS_REVISION", "overall_score": 50,
  "issues_found": [{"severity": "high", "category": "style", "description": "still wrong"}],
  "blocking_issues": [], "requires_revision": true, "feedback": "use a docstring too"}`

// newTestOrchestrator wires real roles over a scripted oracle inside a
// fresh sandbox, and seeds m.py.
func newTestOrchestrator(t *testing.T, stub *scriptedOracle, maxIterations int) (*Orchestrator, *sandbox.Guard) {
	t.Helper()
	box, err := sandbox.NewGuard(t.TempDir())
	if err != nil {
		t.Fatalf("NewGuard failed: %v", err)
	}
	if err := box.WriteFile("m.py", seedCode); err != nil {
		t.Fatalf("seed: %v", err)
	}

	expLog, err := logging.NewExperimentLog(filepath.Join(t.TempDir(), "experiment_data.json"))
	if err != nil {
		t.Fatalf("NewExperimentLog failed: %v", err)
	}
	caller := oracle.NewCaller(stub, ratelimit.New(time.Millisecond), expLog, 3)

	orch := New(
		agent.NewAuditor(caller, box, nil),
		agent.NewFixer(caller, box, true),
		agent.NewJudge(caller, box, nil, nil),
		box,
		Config{MaxIterations: maxIterations, Parallelism: 1},
	)
	return orch, box
}

func TestRunFile_CleanAuditStopsImmediately(t *testing.T) {
	stub := &scriptedOracle{responses: []string{cleanAudit}}
	orch, _ := newTestOrchestrator(t, stub, 3)

	state := orch.RunFile(context.Background(), "m.py")
	if state.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s (err %v), want SUCCESS", state.Outcome, state.Err)
	}
	if state.Iterations != 0 {
		t.Errorf("iterations = %d, want 0", state.Iterations)
	}
	if stub.calls != 1 {
		t.Errorf("oracle called %d times, want 1 (audit only)", stub.calls)
	}
}

func TestRunFile_FixApprovedFirstIteration(t *testing.T) {
	stub := &scriptedOracle{responses: []string{oneIssueAudit, matchingFixSet, approval}}
	orch, box := newTestOrchestrator(t, stub, 3)

	state := orch.RunFile(context.Background(), "m.py")
	if state.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s (err %v), want SUCCESS", state.Outcome, state.Err)
	}
	if state.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", state.Iterations)
	}
	if stub.calls != 3 {
		t.Errorf("oracle called %d times, want 3", stub.calls)
	}

	content, err := box.ReadFile("m.py")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(content, "return a + b") {
		t.Errorf("fix not applied:\n%s", content)
	}
	if state.Judgment == nil || !state.Judgment.Verdict.Accepted() {
		t.Errorf("final judgment = %+v", state.Judgment)
	}
}

func TestRunFile_BudgetExhaustionAndFeedbackThreading(t *testing.T) {
	stub := &scriptedOracle{responses: []string{
		oneIssueAudit,
		matchingFixSet, rejection, // iteration 1
		matchingFixSet, rejection, // iteration 2
	}}
	orch, _ := newTestOrchestrator(t, stub, 2)

	state := orch.RunFile(context.Background(), "m.py")
	if state.Outcome != OutcomeMaxIterations {
		t.Fatalf("outcome = %s (err %v), want MAX_ITERATIONS", state.Outcome, state.Err)
	}
	if state.Iterations != 2 {
		t.Errorf("iterations = %d, want exactly the budget of 2", state.Iterations)
	}
	if stub.calls != 5 {
		t.Fatalf("oracle called %d times, want 5 (1 audit + 2*(fix+judge))", stub.calls)
	}

	// The second fix prompt must carry the judge's feedback; the first
	// must not carry any.
	firstFixPrompt, secondFixPrompt := stub.prompts[1], stub.prompts[3]
	if strings.Contains(firstFixPrompt, "use a docstring too") {
		t.Error("first fix prompt already contains feedback")
	}
	if !strings.Contains(secondFixPrompt, "use a docstring too") {
		t.Error("judge feedback not threaded into the second fix prompt")
	}
}

func TestRunFile_OperationalFailureAbortsImmediately(t *testing.T) {
	stub := &scriptedOracle{
		responses: []string{oneIssueAudit},
		errs:      []error{nil, errors.New("invalid request: context too large")},
	}
	orch, box := newTestOrchestrator(t, stub, 5)

	state := orch.RunFile(context.Background(), "m.py")
	if state.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want FAILED", state.Outcome)
	}
	if state.Err == nil || !strings.Contains(state.Err.Error(), "fix stage") {
		t.Errorf("state.Err = %v, want a fix-stage error", state.Err)
	}
	// Fail fast: one audit, one failed fix call, no judge call.
	if stub.calls != 2 {
		t.Errorf("oracle called %d times, want 2", stub.calls)
	}

	content, _ := box.ReadFile("m.py")
	if content != seedCode {
		t.Error("file modified despite operational failure")
	}
}

func TestRunFile_UndecodableFixConsumesIteration(t *testing.T) {
	stub := &scriptedOracle{responses: []string{
		oneIssueAudit,
		"I cannot produce JSON right now", rejection,
		matchingFixSet, approval,
	}}
	orch, _ := newTestOrchestrator(t, stub, 3)

	state := orch.RunFile(context.Background(), "m.py")
	if state.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s (err %v), want SUCCESS on iteration 2", state.Outcome, state.Err)
	}
	if state.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", state.Iterations)
	}
}

func TestRun_AggregatesAcrossFiles(t *testing.T) {
	// Files process in sorted order: a.py audits clean, b.py exhausts
	// a budget of 1.
	stub := &scriptedOracle{responses: []string{
		cleanAudit,
		oneIssueAudit, matchingFixSet, rejection,
	}}
	orch, box := newTestOrchestrator(t, stub, 1)
	if err := box.WriteFile("a.py", "x = 1\n"); err != nil {
		t.Fatalf("seed a.py: %v", err)
	}
	// Rename the default seed so ordering is explicit.
	if err := box.WriteFile("b.py", seedCode); err != nil {
		t.Fatalf("seed b.py: %v", err)
	}

	summary, err := orch.Run(context.Background(), "[ab].py")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(summary.States) != 2 {
		t.Fatalf("got %d states, want 2", len(summary.States))
	}
	if summary.Final != OutcomeMaxIterations {
		t.Errorf("final = %s, want MAX_ITERATIONS to dominate SUCCESS", summary.Final)
	}
	counts := summary.Counts()
	if counts[OutcomeSuccess] != 1 || counts[OutcomeMaxIterations] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestRun_NoMatchingFilesIsAnError(t *testing.T) {
	stub := &scriptedOracle{}
	orch, _ := newTestOrchestrator(t, stub, 1)

	if _, err := orch.Run(context.Background(), "*.rs"); err == nil {
		t.Fatal("Run over an empty file set succeeded")
	}
	if stub.calls != 0 {
		t.Errorf("oracle consulted despite empty file set")
	}
}

func TestFinalOutcome_FailureDominates(t *testing.T) {
	states := []*WorkflowState{
		{Outcome: OutcomeSuccess},
		{Outcome: OutcomeMaxIterations},
		{Outcome: OutcomeFailed},
	}
	if got := finalOutcome(states); got != OutcomeFailed {
		t.Errorf("finalOutcome = %s, want FAILED", got)
	}
	if got := finalOutcome(states[:2]); got != OutcomeMaxIterations {
		t.Errorf("finalOutcome = %s, want MAX_ITERATIONS", got)
	}
	if got := finalOutcome(states[:1]); got != OutcomeSuccess {
		t.Errorf("finalOutcome = %s, want SUCCESS", got)
	}
}
