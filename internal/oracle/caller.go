package oracle

import (
	"context"
	"fmt"
	"time"

	"codeswarm/internal/logging"
	"codeswarm/internal/ratelimit"
)

// CallRequest describes one oracle exchange to perform.
type CallRequest struct {
	Agent  string                 // calling agent, used for quota accounting and audit
	Action logging.ActionType     // what the exchange is for
	System string                 // optional system prompt
	Prompt string                 // user prompt
	Extra  map[string]interface{} // additional audit detail fields
}

// Caller is the uniform call contract to the oracle: acquire the shared
// quota slot, invoke the client, log the exchange, retry on throttling.
// It returns raw text and never interprets it.
type Caller struct {
	client     Client
	limiter    *ratelimit.Limiter
	log        *logging.ExperimentLog
	maxRetries int
}

// NewCaller wires a client to the shared limiter and experiment log.
// The limiter is injected, not global: one limiter instance per run is
// what makes the quota clock shared across all roles.
func NewCaller(client Client, limiter *ratelimit.Limiter, log *logging.ExperimentLog, maxRetries int) *Caller {
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &Caller{client: client, limiter: limiter, log: log, maxRetries: maxRetries}
}

// Model returns the underlying client's model name.
func (c *Caller) Model() string { return c.client.Model() }

// Call performs one logical oracle exchange. Throttling is retried up to
// the configured bound with escalating backoff (attempt * interval * 2);
// any other error propagates immediately since it is likely deterministic.
// Every attempt is recorded in the experiment log; a failed log write is
// itself a reportable error, because the audit trail is not best-effort.
func (c *Caller) Call(ctx context.Context, req CallRequest) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Acquire(ctx, req.Agent); err != nil {
			return "", fmt.Errorf("rate limiter wait aborted: %w", err)
		}

		start := time.Now()
		text, err := c.complete(ctx, req)
		elapsed := time.Since(start)

		if err == nil {
			logging.Oracle("%s: %s ok in %v (attempt %d)", req.Agent, req.Action, elapsed.Round(time.Millisecond), attempt)
			if logErr := c.record(req, attempt, text, logging.StatusSuccess); logErr != nil {
				return "", fmt.Errorf("oracle call succeeded but audit log write failed: %w", logErr)
			}
			return text, nil
		}

		if logErr := c.record(req, attempt, "ERROR: "+err.Error(), logging.StatusFailure); logErr != nil {
			return "", fmt.Errorf("audit log write failed while recording oracle error %v: %w", err, logErr)
		}

		if !IsThrottling(err) {
			return "", fmt.Errorf("oracle call failed: %w", err)
		}

		lastErr = err
		if attempt == c.maxRetries {
			break
		}

		backoff := time.Duration(attempt) * c.limiter.Interval() * 2
		logging.Oracle("%s: throttled, backing off %v before attempt %d/%d",
			req.Agent, backoff.Round(time.Second), attempt+1, c.maxRetries)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	return "", fmt.Errorf("oracle throttled after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Caller) complete(ctx context.Context, req CallRequest) (string, error) {
	if req.System != "" {
		return c.client.CompleteWithSystem(ctx, req.System, req.Prompt)
	}
	return c.client.Complete(ctx, req.Prompt)
}

func (c *Caller) record(req CallRequest, attempt int, response string, status logging.Status) error {
	details := logging.Details(req.Prompt, response)
	details["attempt"] = attempt
	for k, v := range req.Extra {
		details[k] = v
	}
	_, err := c.log.Record(req.Agent, c.client.Model(), req.Action, details, status)
	return err
}
