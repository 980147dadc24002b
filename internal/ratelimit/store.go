// Package ratelimit enforces per-account request ceilings over a fixed
// window, independent of the quota ledger.
package ratelimit

import (
	"context"
	"time"
)

// CounterStore is an expiring counter keyed by account. Incr returns
// the count within the current window, including this call. Counters
// for unrelated keys never contend with each other.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}
