package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Decision is the outcome of evaluating one request.
type Decision struct {
	Allowed bool

	// Triggered is the period whose limit was exceeded; empty when allowed.
	Triggered Period

	// RetryAfter is the number of seconds until the triggering window resets,
	// within [1, window length]. Zero when allowed.
	RetryAfter int

	// Limit, Remaining and ResetAt describe the triggering period when denied,
	// otherwise the period with the fewest remaining requests.
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type periodWindow struct {
	period Period
	window time.Duration
}

// Engine charges requests against per-period counters and decides whether
// they are allowed.
type Engine struct {
	store    CounterStore
	notifier Notifier
	now      func() time.Time
}

// NewEngine returns an engine backed by store. notifier may be nil.
func NewEngine(store CounterStore, notifier Notifier, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: store, notifier: notifier, now: now}
}

// Evaluate increments the counter of every enabled period of limit for the
// identity and path, then denies the request if any post-increment count
// exceeds its period's limit. When several periods are exceeded the one that
// resets last triggers, so the Retry-After hint is never too short.
//
// Every enabled period is charged, including for requests that end up
// denied. An error from the store aborts evaluation; periods incremented
// before the error stay charged.
func (e *Engine) Evaluate(ctx context.Context, id Identity, path string, limit TierLimit, windowSeconds int) (Decision, error) {
	now := e.now()
	dec := Decision{Allowed: true, Remaining: -1}

	windows := [...]periodWindow{
		{PeriodMinute, time.Duration(windowSeconds) * time.Second},
		{PeriodHour, hourWindow},
		{PeriodDay, dayWindow},
	}

	for _, pw := range windows {
		max := limit.For(pw.period)
		if max <= 0 || pw.window <= 0 {
			continue
		}

		secs := int64(pw.window / time.Second)
		start := now.Unix() - now.Unix()%secs
		resetAt := time.Unix(start+secs, 0)

		key := CounterKey{Identity: id.Key(), Path: path, Period: pw.period, WindowStart: start}
		count, err := e.store.Increment(ctx, key, pw.window)
		if err != nil {
			return Decision{Allowed: true}, fmt.Errorf("increment %s counter: %w", pw.period, err)
		}

		if count > int64(max) {
			if dec.Allowed || resetAt.After(dec.ResetAt) {
				dec = Decision{
					Allowed:    false,
					Triggered:  pw.period,
					RetryAfter: retryAfterSeconds(now, resetAt, secs),
					Limit:      max,
					Remaining:  0,
					ResetAt:    resetAt,
				}
			}
			continue
		}

		if e.notifier != nil && count == approachThreshold(max) {
			e.notifier.ApproachingLimit(ctx, Approaching{
				Identity: id.ID,
				Path:     path,
				Period:   pw.period,
				Count:    count,
				Limit:    max,
			})
		}

		remaining := max - int(count)
		if dec.Allowed && (dec.Remaining < 0 || remaining < dec.Remaining) {
			dec.Limit = max
			dec.Remaining = remaining
			dec.ResetAt = resetAt
		}
	}

	if dec.Remaining < 0 {
		dec.Remaining = 0
	}
	return dec, nil
}

// approachThreshold is 80% of limit, rounded up.
func approachThreshold(limit int) int64 {
	return int64((limit*4 + 4) / 5)
}

func retryAfterSeconds(now, resetAt time.Time, window int64) int {
	secs := int64(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		secs = 1
	}
	if secs > window {
		secs = window
	}
	return int(secs)
}
