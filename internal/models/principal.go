package models

import "context"

// Principal is an authenticated caller as resolved by the authenticator.
type Principal struct {
	Subject string
	Roles   []string
}

// HasRole reports whether the principal holds any of the given roles.
func (p *Principal) HasRole(roles ...string) bool {
	if p == nil {
		return false
	}
	for _, have := range p.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

type principalKey struct{}

// ContextWithPrincipal returns a copy of ctx carrying p.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored in ctx, if any. A
// principal with an empty subject is treated as absent.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	if !ok || p == nil || p.Subject == "" {
		return nil, false
	}
	return p, true
}
