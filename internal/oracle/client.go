// Package oracle wraps the text-generation service behind a narrow
// prompt-in/text-out contract. The rest of the system never sees a
// provider SDK type: agents talk to Client, and Caller layers the rate
// limiter, throttling retries and the experiment audit trail on top.
package oracle

import "context"

// Client defines the minimal interface agents use to call the oracle.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
}
