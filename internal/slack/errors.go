package slack

import (
	"errors"
	"fmt"
	"time"
)

// Machine-readable reasons Slack returns for channel-level failures the
// ingestor treats as zero-progress rather than a crash.
const (
	ReasonNotInChannel    = "not_in_channel"
	ReasonChannelNotFound = "channel_not_found"
)

// RateLimitedError is an HTTP 429 from Slack. RetryAfter carries the
// advisory delay from the Retry-After header; zero when absent.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("slack: rate limited, retry after %s", e.RetryAfter)
	}
	return "slack: rate limited"
}

// APIError is an ok:false response body. Reason is Slack's error code,
// e.g. "not_in_channel" or "invalid_auth".
type APIError struct {
	Reason string
}

func (e *APIError) Error() string {
	return "slack: " + e.Reason
}

// TransportError wraps connection failures and timeouts below the API layer.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "slack: transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// APIReason extracts the machine reason from an APIError anywhere in the
// chain, or "" when the error is not an API error.
func APIReason(err error) string {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ""
}
