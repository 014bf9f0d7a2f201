package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Result records what the limiter did with one request.
type Result struct {
	Identity   Identity
	Path       string
	Method     string
	Resolution Resolution
	Decision   Decision
	Bypassed   bool

	// Err is set when the counter store failed. The request is allowed.
	Err error
}

// Observer is told about every non-bypassed decision, e.g. to record metrics.
type Observer interface {
	ObserveDecision(ctx context.Context, res Result)
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithNotifier sets the approaching-limit notifier.
func WithNotifier(n Notifier) Option {
	return func(l *Limiter) { l.notifier = n }
}

// WithObserver sets the decision observer.
func WithObserver(o Observer) Option {
	return func(l *Limiter) { l.observer = o }
}

// WithClock overrides the time source used to compute windows.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger used for store failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Limiter enforces the policy supplied by a PolicyProvider against a
// CounterStore.
type Limiter struct {
	policy   PolicyProvider
	engine   *Engine
	notifier Notifier
	observer Observer
	logger   *slog.Logger
	now      func() time.Time

	// Store failures are logged at most once per interval.
	failOpenLog rate.Sometimes
}

// New creates a Limiter. Without WithNotifier, approaching-limit events are
// written to the limiter's logger.
func New(policy PolicyProvider, store CounterStore, opts ...Option) *Limiter {
	l := &Limiter{
		policy:      policy,
		logger:      slog.Default(),
		now:         time.Now,
		failOpenLog: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.notifier == nil {
		l.notifier = NewLogNotifier(l.logger)
	}
	l.engine = NewEngine(store, l.notifier, l.now)
	return l
}

// Check evaluates r without writing a response. A request is allowed when
// the limiter is disabled or has no policy, when the client is whitelisted,
// when it is within quota, or when the counter store fails.
func (l *Limiter) Check(r *http.Request) Result {
	res, _ := l.check(r)
	return res
}

// check also returns the snapshot the decision was made against so the deny
// message comes from the same policy version.
func (l *Limiter) check(r *http.Request) (Result, *Snapshot) {
	s := l.policy.Snapshot()
	if s == nil {
		return Result{Bypassed: true, Decision: Decision{Allowed: true}}, nil
	}

	ip := ClientIP(r, s.General.TrustForwardedHeaders)
	if Bypass(s.General, ip) {
		return Result{Bypassed: true, Decision: Decision{Allowed: true}}, s
	}

	ctx := r.Context()
	id := ResolveIdentity(ctx, ip)
	res := Resolve(s, r.URL.Path, r.Method, id)

	result := Result{
		Identity:   id,
		Path:       r.URL.Path,
		Method:     r.Method,
		Resolution: res,
	}

	dec, err := l.engine.Evaluate(ctx, id, r.URL.Path, res.Limit, s.General.WindowSeconds)
	if err != nil {
		result.Err = err
		result.Decision = Decision{Allowed: true}
		l.failOpenLog.Do(func() {
			l.logger.WarnContext(ctx, "Rate limit store unavailable, allowing request",
				"error", err,
				"identity", id.Key(),
				"path", r.URL.Path,
			)
		})
	} else {
		result.Decision = dec
	}

	if l.observer != nil {
		l.observer.ObserveDecision(ctx, result)
	}
	return result, s
}

// Middleware wraps next. Denied requests receive a 429 response and never
// reach next; allowed requests are passed on untouched.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, s := l.check(r)
		if res.Decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}
		writeTooManyRequests(w, res.Decision, s.General.ErrorMessage)
	})
}

// Middleware returns HTTP middleware enforcing policy against store.
func Middleware(policy PolicyProvider, store CounterStore, opts ...Option) func(http.Handler) http.Handler {
	return New(policy, store, opts...).Middleware
}
