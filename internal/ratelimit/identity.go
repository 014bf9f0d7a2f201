package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"

	"marketplace/internal/models"
)

// UnknownClient is the identity of anonymous callers whose address cannot be
// determined. Every such caller shares one set of counters, so a proxy that
// strips the client address will throttle unrelated clients together.
const UnknownClient = "unknown"

// Identity is the resolved caller a request is charged to.
type Identity struct {
	ID            string // subject id when authenticated, otherwise client IP
	IP            string // client IP, empty when unavailable
	Authenticated bool
	Roles         []string
}

// Key returns the counter namespace for the identity. Subjects and addresses
// live in separate namespaces so a subject id can never collide with an IP.
func (id Identity) Key() string {
	if id.Authenticated {
		return "sub:" + id.ID
	}
	return "ip:" + id.ID
}

// Bypass reports whether a request skips enforcement entirely: the limiter is
// disabled, or the whitelist is enabled and ip is on it.
func Bypass(g GeneralSettings, ip string) bool {
	if !g.Enabled {
		return true
	}
	return g.IPWhitelistEnabled && g.IsWhitelisted(ip)
}

// ResolveIdentity derives the caller identity from the principal stored in
// ctx by the authenticator, falling back to the client IP.
func ResolveIdentity(ctx context.Context, ip string) Identity {
	if p, ok := models.PrincipalFromContext(ctx); ok {
		roles := make([]string, len(p.Roles))
		copy(roles, p.Roles)
		return Identity{ID: p.Subject, IP: ip, Authenticated: true, Roles: roles}
	}
	if ip == "" {
		return Identity{ID: UnknownClient}
	}
	return Identity{ID: ip, IP: ip}
}

// ClientIP extracts the client address from the request. Proxy headers are
// consulted only when trustForwarded is set. The port is stripped from
// RemoteAddr. An empty string means the address is unavailable.
func ClientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
