// Package ratelimit admits or rejects API requests against a multi-tier quota
// policy. Each request is checked against a bypass gate, resolved to a caller
// identity and an effective quota tier (endpoint override, role override,
// authenticated or anonymous default), and charged against fixed-window
// counters for the minute, hour and day periods. Requests over quota receive a
// 429 response with a Retry-After header; all other requests pass through
// untouched.
//
// Counters live in a CounterStore. MemoryStore is the in-process default and
// coordinates only within a single instance.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Period names one of the three quota periods of a tier.
type Period string

const (
	PeriodMinute Period = "minute"
	PeriodHour   Period = "hour"
	PeriodDay    Period = "day"
)

// Fixed lengths of the hour and day periods. The minute period uses
// GeneralSettings.WindowSeconds.
const (
	hourWindow = time.Hour
	dayWindow  = 24 * time.Hour
)

var (
	// ErrStoreClosed is returned by a CounterStore after Close.
	ErrStoreClosed = errors.New("counter store closed")

	// ErrInvalidWindow is returned when a non-positive window is requested.
	ErrInvalidWindow = errors.New("window must be positive")
)

// CounterKey identifies one fixed-window counter. Path is the raw request
// path, so distinct paths never share a counter.
type CounterKey struct {
	Identity    string
	Path        string
	Period      Period
	WindowStart int64 // unix seconds
}

func (k CounterKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%d", k.Identity, k.Path, k.Period, k.WindowStart)
}

// CounterStore holds expiring request counters. Implementations must be safe
// for concurrent use and must serialize increments of the same key.
type CounterStore interface {
	// Increment adds one to the counter for key and returns the new value.
	// A counter starts at zero and expires window after key.WindowStart;
	// an expired counter is treated as absent.
	Increment(ctx context.Context, key CounterKey, window time.Duration) (int64, error)

	// Close stops background goroutines and releases resources.
	Close() error
}
