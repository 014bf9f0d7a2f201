package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileGlob(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/api/v1/search*", "/api/v1/search", true},
		{"/api/v1/search*", "/api/v1/search/recent", true},
		{"/api/v1/search*", "/v2/api/v1/search", false},
		{"/api/v1/listings/*", "/api/v1/listings/abc", true},
		{"/api/v1/listings/*", "/api/v1/listings", false},
		{"/api/v1/listings/?", "/api/v1/listings/a", true},
		{"/api/v1/listings/?", "/api/v1/listings/ab", false},
		{"/API/V1/Search", "/api/v1/search", true},
		{"/api/v1.0/items", "/api/v1x0/items", false},
		{"*", "/anything/at/all", true},
		{"/exact", "/exact/", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			m, err := CompileGlob(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Match(tt.path))
			assert.Equal(t, tt.pattern, m.Pattern())
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"":                       "/",
		"/":                      "/",
		"api/v1":                 "/api/v1",
		"/api/v1/":               "/api/v1",
		"/api//v1///listings":    "/api/v1/listings",
		"/api/v1/../v1/listings": "/api/v1/listings",
		"/api/./v1":              "/api/v1",
	}

	for in, want := range tests {
		assert.Equal(t, want, NormalizePath(in), "input %q", in)
	}
}
