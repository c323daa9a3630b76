// Package orchestrator drives the audit, fix, judge loop per target
// file and aggregates the run's final status. It owns no I/O and no
// oracle access of its own; it sequences the roles and decides when to
// retry and when to stop.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"codeswarm/internal/agent"
	"codeswarm/internal/logging"
	"codeswarm/internal/parse"
	"codeswarm/internal/sandbox"
)

// Outcome is the terminal status of one file's workflow.
type Outcome string

const (
	OutcomeSuccess       Outcome = "SUCCESS"
	OutcomeMaxIterations Outcome = "MAX_ITERATIONS"
	OutcomeFailed        Outcome = "FAILED"
)

// WorkflowState is the per-file record mutated by each stage. It is
// never shared across files and is read-only once the run completes.
type WorkflowState struct {
	FilePath     string
	OriginalCode string
	AuditReport  *parse.AuditReport
	FixSet       *parse.FixSet
	Judgment     *parse.Judgment
	Outcome      Outcome
	Iterations   int
	Err          error
	Duration     time.Duration
}

// Summary aggregates per-file outcomes for one run.
type Summary struct {
	States  []*WorkflowState
	Final   Outcome
	Elapsed time.Duration
}

// Counts returns how many workflows ended in each outcome.
func (s *Summary) Counts() map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, st := range s.States {
		counts[st.Outcome]++
	}
	return counts
}

// Config bounds the loop.
type Config struct {
	MaxIterations int
	Parallelism   int
}

// Orchestrator wires the three roles into the state machine.
type Orchestrator struct {
	auditor *agent.Auditor
	fixer   *agent.Fixer
	judge   *agent.Judge
	box     *sandbox.Guard
	cfg     Config
}

// New assembles an orchestrator over already-constructed roles.
func New(auditor *agent.Auditor, fixer *agent.Fixer, judge *agent.Judge, box *sandbox.Guard, cfg Config) *Orchestrator {
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 10
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	return &Orchestrator{auditor: auditor, fixer: fixer, judge: judge, box: box, cfg: cfg}
}

// Run processes every file matching the glob under the sandbox root.
// Files run sequentially by default; with Parallelism > 1 they run in a
// bounded group, sharing nothing but the rate limiter inside the oracle
// caller. One file failing does not stop the others.
func (o *Orchestrator) Run(ctx context.Context, glob string) (*Summary, error) {
	files, err := o.box.ListSourceFiles(glob)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files matching %q under %s", glob, o.box.Root())
	}

	start := time.Now()
	states := make([]*WorkflowState, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Parallelism)
	for i, file := range files {
		g.Go(func() error {
			states[i] = o.RunFile(gctx, file)
			return nil
		})
	}
	// Workers never return errors; failures live in their states.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := &Summary{States: states, Elapsed: time.Since(start)}
	summary.Final = finalOutcome(states)
	logging.Orchestrator("run complete: %d files, final=%s in %v",
		len(files), summary.Final, summary.Elapsed.Round(time.Second))
	return summary, nil
}

// RunFile drives one file through the full state machine.
func (o *Orchestrator) RunFile(ctx context.Context, path string) *WorkflowState {
	start := time.Now()
	state := &WorkflowState{FilePath: path}
	defer func() { state.Duration = time.Since(start) }()

	original, err := o.box.ReadFile(path)
	if err != nil {
		return o.fail(state, fmt.Errorf("workflow setup: %w", err))
	}
	state.OriginalCode = original

	logging.Orchestrator("workflow start: %s", path)

	report, err := o.auditor.Analyze(ctx, path)
	if err != nil {
		return o.fail(state, fmt.Errorf("audit stage: %w", err))
	}
	state.AuditReport = &report

	if report.Clean() {
		state.Outcome = OutcomeSuccess
		logging.Orchestrator("workflow done: %s clean at audit, 0 iterations", path)
		return state
	}

	// The only cross-iteration memory: the judge's feedback string.
	feedback := ""

	for i := 1; i <= o.cfg.MaxIterations; i++ {
		state.Iterations = i
		logging.Orchestrator("iteration %d/%d: %s", i, o.cfg.MaxIterations, path)

		fixSet, applied, err := o.fixer.Fix(ctx, path, report, feedback)
		if err != nil {
			return o.fail(state, fmt.Errorf("fix stage (iteration %d): %w", i, err))
		}
		state.FixSet = &fixSet

		judgment, err := o.judge.Evaluate(ctx, path, appliedOnly(fixSet, applied), report, report.BaselineScore)
		if err != nil {
			return o.fail(state, fmt.Errorf("judge stage (iteration %d): %w", i, err))
		}
		state.Judgment = &judgment

		if judgment.Verdict.Accepted() {
			state.Outcome = OutcomeSuccess
			logging.Orchestrator("workflow done: %s %s after %d iteration(s)", path, judgment.Verdict, i)
			return state
		}

		feedback = feedbackFrom(judgment)
	}

	state.Outcome = OutcomeMaxIterations
	logging.Orchestrator("workflow done: %s budget exhausted after %d iterations", path, o.cfg.MaxIterations)
	return state
}

func (o *Orchestrator) fail(state *WorkflowState, err error) *WorkflowState {
	state.Outcome = OutcomeFailed
	state.Err = err
	logging.Orchestrator("workflow failed: %s: %v", state.FilePath, err)
	return state
}

// appliedOnly narrows a fix set to the fixes that actually reached the
// file, so the judge evaluates what happened, not what was proposed.
func appliedOnly(set parse.FixSet, outcome *agent.ApplyOutcome) parse.FixSet {
	if outcome == nil {
		return parse.FixSet{Summary: set.Summary, ParseFailed: set.ParseFailed}
	}
	return parse.FixSet{
		Fixes:       outcome.Applied,
		Summary:     set.Summary,
		ParseFailed: set.ParseFailed,
	}
}

// feedbackFrom condenses a rejecting judgment into the single string
// the next fix attempt sees.
func feedbackFrom(j parse.Judgment) string {
	if j.Feedback != "" {
		return j.Feedback
	}
	if len(j.BlockingIssues) > 0 {
		msg := "blocking issues:"
		for _, issue := range j.BlockingIssues {
			msg += " " + issue + ";"
		}
		return msg
	}
	return fmt.Sprintf("previous attempt was %s; produce a stronger fix", j.Verdict)
}

// finalOutcome folds per-file outcomes into the run's status: any
// failure dominates, then an exhausted budget, then success.
func finalOutcome(states []*WorkflowState) Outcome {
	final := OutcomeSuccess
	for _, st := range states {
		switch st.Outcome {
		case OutcomeFailed:
			return OutcomeFailed
		case OutcomeMaxIterations:
			final = OutcomeMaxIterations
		}
	}
	return final
}
