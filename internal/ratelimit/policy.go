package ratelimit

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"marketplace/internal/models"
)

// GeneralSettings are the policy-wide switches.
type GeneralSettings struct {
	Enabled               bool
	WindowSeconds         int
	IPWhitelistEnabled    bool
	WhitelistedIPs        map[string]struct{}
	ErrorMessage          string
	TrustForwardedHeaders bool
}

// IsWhitelisted reports whether ip is a literal, case-sensitive member of the whitelist.
func (g GeneralSettings) IsWhitelisted(ip string) bool {
	if ip == "" {
		return false
	}
	_, ok := g.WhitelistedIPs[ip]
	return ok
}

// TierLimit is one quota bundle. A zero value disables that period.
type TierLimit struct {
	RequestsPerMinute int
	RequestsPerHour   int
	RequestsPerDay    int
}

// For returns the limit configured for period p.
func (t TierLimit) For(p Period) int {
	switch p {
	case PeriodMinute:
		return t.RequestsPerMinute
	case PeriodHour:
		return t.RequestsPerHour
	case PeriodDay:
		return t.RequestsPerDay
	default:
		return 0
	}
}

// EndpointLimit overrides the tier for paths matching Pattern.
type EndpointLimit struct {
	Name                 string
	Pattern              string
	Methods              []string
	Limit                TierLimit
	ApplyToAnonymous     bool
	ApplyToAuthenticated bool

	matcher Matcher
}

// Applies reports whether the override matches the request and covers the
// caller's authentication state. path must already be normalized. Overrides
// not built by NewSnapshot have no compiled matcher and never apply.
func (e *EndpointLimit) Applies(path, method string, authenticated bool) bool {
	if e.matcher == nil {
		return false
	}
	if authenticated && !e.ApplyToAuthenticated {
		return false
	}
	if !authenticated && !e.ApplyToAnonymous {
		return false
	}
	if len(e.Methods) > 0 && !containsFold(e.Methods, method) {
		return false
	}
	return e.matcher.Match(path)
}

// Snapshot is an immutable view of the rate limit policy. Build one with
// NewSnapshot and replace it wholesale to change policy.
type Snapshot struct {
	General       GeneralSettings
	Anonymous     TierLimit
	Authenticated TierLimit
	Roles         map[string]TierLimit
	Endpoints     []EndpointLimit
}

// NewSnapshot compiles a validated configuration into a Snapshot. Endpoint
// overrides are ordered by name so that evaluation order does not depend on
// map iteration.
func NewSnapshot(cfg models.RateLimitConfig) (*Snapshot, error) {
	if cfg.General.WindowSeconds <= 0 {
		return nil, fmt.Errorf("window seconds must be positive, got %d", cfg.General.WindowSeconds)
	}

	whitelist := make(map[string]struct{}, len(cfg.General.WhitelistedIPs))
	for _, ip := range cfg.General.WhitelistedIPs {
		whitelist[strings.TrimSpace(ip)] = struct{}{}
	}

	s := &Snapshot{
		General: GeneralSettings{
			Enabled:               cfg.General.Enabled,
			WindowSeconds:         cfg.General.WindowSeconds,
			IPWhitelistEnabled:    cfg.General.IPWhitelistEnabled,
			WhitelistedIPs:        whitelist,
			ErrorMessage:          cfg.General.ErrorMessage,
			TrustForwardedHeaders: cfg.General.TrustForwardedHeaders,
		},
		Anonymous:     tierFromConfig(cfg.Anonymous),
		Authenticated: tierFromConfig(cfg.Authenticated),
		Roles:         make(map[string]TierLimit, len(cfg.RoleLimits)),
		Endpoints:     make([]EndpointLimit, 0, len(cfg.EndpointLimits)),
	}

	for role, limit := range cfg.RoleLimits {
		s.Roles[role] = tierFromConfig(limit)
	}

	names := make([]string, 0, len(cfg.EndpointLimits))
	for name := range cfg.EndpointLimits {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ec := cfg.EndpointLimits[name]
		m, err := CompileGlob(ec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("endpoint %s: %w", name, err)
		}
		methods := make([]string, 0, len(ec.Methods))
		for _, method := range ec.Methods {
			methods = append(methods, strings.ToUpper(method))
		}
		s.Endpoints = append(s.Endpoints, EndpointLimit{
			Name:                 name,
			Pattern:              ec.Pattern,
			Methods:              methods,
			Limit:                tierFromConfig(ec.TierLimitConfig),
			ApplyToAnonymous:     ec.ApplyToAnonymous,
			ApplyToAuthenticated: ec.ApplyToAuthenticated,
			matcher:              m,
		})
	}

	return s, nil
}

func tierFromConfig(c models.TierLimitConfig) TierLimit {
	return TierLimit{
		RequestsPerMinute: c.RequestsPerMinute,
		RequestsPerHour:   c.RequestsPerHour,
		RequestsPerDay:    c.RequestsPerDay,
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// PolicyProvider supplies the current policy. The middleware calls Snapshot
// once per request and never caches the result.
type PolicyProvider interface {
	Snapshot() *Snapshot
}

// AtomicPolicy is a PolicyProvider whose snapshot can be swapped while
// requests are in flight.
type AtomicPolicy struct {
	current atomic.Pointer[Snapshot]
}

// NewAtomicPolicy returns a provider initialised with s.
func NewAtomicPolicy(s *Snapshot) *AtomicPolicy {
	p := &AtomicPolicy{}
	p.current.Store(s)
	return p
}

func (p *AtomicPolicy) Snapshot() *Snapshot {
	return p.current.Load()
}

// Store replaces the current snapshot.
func (p *AtomicPolicy) Store(s *Snapshot) {
	p.current.Store(s)
}
