package ratelimit

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Matcher decides whether a normalized request path belongs to an endpoint override.
type Matcher interface {
	Match(path string) bool
	Pattern() string
}

type globMatcher struct {
	pattern string
	re      *regexp.Regexp
}

// CompileGlob compiles a glob pattern into a Matcher. '*' matches any run of
// characters including '/', '?' matches exactly one character and every
// other character matches itself. Matching is case-insensitive and anchored
// at both ends, so "/api/search*" matches "/api/search" and
// "/api/search/recent" but not "/v2/api/search".
func CompileGlob(pattern string) (Matcher, error) {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return &globMatcher{pattern: pattern, re: re}, nil
}

func (g *globMatcher) Match(p string) bool {
	return g.re.MatchString(p)
}

func (g *globMatcher) Pattern() string {
	return g.pattern
}

// NormalizePath prepares a request path for pattern matching: it ensures a
// leading slash, resolves "." and ".." elements, collapses repeated slashes
// and drops any trailing slash. Counters are still keyed by the raw path.
func NormalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}
