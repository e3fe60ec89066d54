package sources

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kswift/oreotrends/internal/models"
)

// The collector error taxonomy. The poller branches on these with errors.As:
// auth errors disable a platform, rate limits pause it until the hinted time,
// transient errors are retried here and surfaced as degraded data when
// retries run out.

// AuthError means the platform rejected our credentials. Fatal for the
// platform; only an operator can fix it.
type AuthError struct {
	Platform models.Platform
	Status   int
	Reason   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth rejected (status %d): %s", e.Platform, e.Status, e.Reason)
}

// RateLimitError means the platform asked us to slow down. RetryAfter is the
// service-provided hint (or a default when the service gave none).
type RateLimitError struct {
	Platform   models.Platform
	RetryAfter time.Duration
	Reason     string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited, retry after %s: %s", e.Platform, e.RetryAfter, e.Reason)
}

// TransientError covers timeouts, connection failures and 5xx responses.
// Worth a bounded retry before giving up until the next cycle.
type TransientError struct {
	Platform models.Platform
	Status   int
	Err      error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s transient failure: %v", e.Platform, e.Err)
	}
	return fmt.Sprintf("%s transient failure (status %d)", e.Platform, e.Status)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// errorReason digs a human-readable reason out of a provider error payload.
// Twitter v2 uses {"title","detail"}, Google APIs use
// {"error":{"message","errors":[{"reason"}]}}; shapes vary enough that gjson
// beats one struct per provider.
func errorReason(body []byte) string {
	for _, path := range []string{"error.errors.0.reason", "error.message", "detail", "title", "error"} {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return "unknown"
}
