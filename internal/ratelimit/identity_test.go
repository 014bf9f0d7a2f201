package ratelimit

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"marketplace/internal/models"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trust      bool
		want       string
	}{
		{name: "remote addr with port", remoteAddr: "192.168.1.1:12345", want: "192.168.1.1"},
		{name: "remote addr without port", remoteAddr: "192.168.1.1", want: "192.168.1.1"},
		{name: "ipv6 remote addr", remoteAddr: "[::1]:8080", want: "::1"},
		{name: "missing remote addr", remoteAddr: "", want: ""},
		{
			name:       "forwarded headers ignored when untrusted",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50"},
			want:       "10.0.0.1",
		},
		{
			name:       "first forwarded-for entry when trusted",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": " 203.0.113.50 , 70.41.3.18"},
			trust:      true,
			want:       "203.0.113.50",
		},
		{
			name:       "real ip when trusted",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			trust:      true,
			want:       "198.51.100.7",
		},
		{
			name:       "trusted but no headers",
			remoteAddr: "10.0.0.1:1234",
			trust:      true,
			want:       "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req, tt.trust))
		})
	}
}

func TestResolveIdentity(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		id := ResolveIdentity(context.Background(), "10.0.0.1")
		assert.False(t, id.Authenticated)
		assert.Equal(t, "10.0.0.1", id.ID)
		assert.Equal(t, "ip:10.0.0.1", id.Key())
	})

	t.Run("unknown address", func(t *testing.T) {
		id := ResolveIdentity(context.Background(), "")
		assert.False(t, id.Authenticated)
		assert.Equal(t, UnknownClient, id.ID)
	})

	t.Run("authenticated", func(t *testing.T) {
		ctx := models.ContextWithPrincipal(context.Background(), &models.Principal{
			Subject: "user-1",
			Roles:   []string{"seller", "admin"},
		})
		id := ResolveIdentity(ctx, "10.0.0.1")
		assert.True(t, id.Authenticated)
		assert.Equal(t, "user-1", id.ID)
		assert.Equal(t, "10.0.0.1", id.IP)
		assert.Equal(t, []string{"seller", "admin"}, id.Roles)
		assert.Equal(t, "sub:user-1", id.Key())
	})

	t.Run("subject and address never collide", func(t *testing.T) {
		ctx := models.ContextWithPrincipal(context.Background(), &models.Principal{Subject: "10.0.0.1"})
		assert.NotEqual(t, ResolveIdentity(ctx, "").Key(), ResolveIdentity(context.Background(), "10.0.0.1").Key())
	})
}

func TestBypass(t *testing.T) {
	whitelist := map[string]struct{}{"127.0.0.1": {}}

	tests := []struct {
		name string
		g    GeneralSettings
		ip   string
		want bool
	}{
		{"disabled", GeneralSettings{Enabled: false}, "10.0.0.1", true},
		{"enabled not whitelisted", GeneralSettings{Enabled: true, IPWhitelistEnabled: true, WhitelistedIPs: whitelist}, "10.0.0.1", false},
		{"whitelisted", GeneralSettings{Enabled: true, IPWhitelistEnabled: true, WhitelistedIPs: whitelist}, "127.0.0.1", true},
		{"whitelist switched off", GeneralSettings{Enabled: true, WhitelistedIPs: whitelist}, "127.0.0.1", false},
		{"unknown address never whitelisted", GeneralSettings{Enabled: true, IPWhitelistEnabled: true, WhitelistedIPs: whitelist}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Bypass(tt.g, tt.ip))
		})
	}
}
