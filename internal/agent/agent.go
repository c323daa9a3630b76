// Package agent implements the three cooperating roles: the auditor
// finds issues, the fixer proposes and applies changes, the judge
// decides whether the result is acceptable. Each role composes the
// oracle caller with role-specific prompts and the typed decoders in
// internal/parse. All file access goes through the sandbox guard.
package agent

import (
	"context"

	"codeswarm/internal/logging"
	"codeswarm/internal/oracle"
	"codeswarm/internal/sandbox"
)

// Agent identifies one role in the pipeline.
type Agent interface {
	Name() string
}

// Runner is the shared base every role embeds: the audited oracle
// caller and the sandbox all reads and writes are confined to.
type Runner struct {
	name   string
	oracle *oracle.Caller
	box    *sandbox.Guard
}

// NewRunner binds a role name to the shared oracle caller and sandbox.
func NewRunner(name string, caller *oracle.Caller, box *sandbox.Guard) Runner {
	return Runner{name: name, oracle: caller, box: box}
}

// Name returns the role name used in logs and quota accounting.
func (r Runner) Name() string { return r.name }

var (
	_ Agent = (*Auditor)(nil)
	_ Agent = (*Fixer)(nil)
	_ Agent = (*Judge)(nil)
)

// callOracle performs one audited exchange for this role.
func (r Runner) callOracle(ctx context.Context, action logging.ActionType, system, prompt string, extra map[string]interface{}) (string, error) {
	return r.oracle.Call(ctx, oracle.CallRequest{
		Agent:  r.name,
		Action: action,
		System: system,
		Prompt: prompt,
		Extra:  extra,
	})
}
