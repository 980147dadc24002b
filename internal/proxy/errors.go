package proxy

import (
	"fmt"
	"time"
)

// RateLimitedError tells a rejected client how long to back off.
type RateLimitedError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit of %d requests per window exceeded, retry after %s", e.Limit, e.RetryAfter)
}
