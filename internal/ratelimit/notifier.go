package ratelimit

import (
	"context"
	"log/slog"
)

// Approaching describes a counter that has just reached 80% of its limit.
type Approaching struct {
	Identity string
	Path     string
	Period   Period
	Count    int64
	Limit    int
}

// Notifier receives approaching-limit events. It is purely informational and
// cannot influence the decision.
type Notifier interface {
	ApproachingLimit(ctx context.Context, ev Approaching)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, ev Approaching)

func (f NotifierFunc) ApproachingLimit(ctx context.Context, ev Approaching) {
	f(ctx, ev)
}

// LogNotifier writes approaching-limit events to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier logging to logger, or to the default
// logger when logger is nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) ApproachingLimit(ctx context.Context, ev Approaching) {
	logger := n.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "approaching rate limit",
		"identity", ev.Identity,
		"path", ev.Path,
		"period", string(ev.Period),
		"count", ev.Count,
		"limit", ev.Limit,
	)
}
