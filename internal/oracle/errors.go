package oracle

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ThrottlingError marks a rate/quota rejection from the provider.
// Only this class of failure is retried; everything else is assumed
// deterministic and propagates immediately.
type ThrottlingError struct {
	Err error
}

func (e *ThrottlingError) Error() string {
	return fmt.Sprintf("oracle throttled: %v", e.Err)
}

func (e *ThrottlingError) Unwrap() error { return e.Err }

// IsThrottling reports whether err is a rate/quota signal, either a typed
// *ThrottlingError or a provider error carrying a 429 / RESOURCE_EXHAUSTED
// marker.
func IsThrottling(err error) bool {
	if err == nil {
		return false
	}
	var te *ThrottlingError
	if errors.As(err, &te) {
		return true
	}
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "resource exhausted")
}

// classify wraps throttling signals in *ThrottlingError so callers can
// switch on the error type instead of re-sniffing strings.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if IsThrottling(err) {
		return &ThrottlingError{Err: err}
	}
	return err
}
