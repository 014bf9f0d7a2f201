package ratelimit

// Source tags which tier produced the effective limit.
type Source string

const (
	SourceEndpoint      Source = "endpoint"
	SourceRole          Source = "role"
	SourceAuthenticated Source = "authenticated"
	SourceAnonymous     Source = "anonymous"
)

// Resolution is the effective tier for one request.
type Resolution struct {
	Limit  TierLimit
	Source Source
	Rule   string // endpoint override name or role name; empty for defaults
}

// Resolve picks the effective tier. The first rule that applies wins:
//
//  1. an endpoint override whose pattern matches the path and whose
//     applicability flags cover the caller's authentication state;
//  2. for authenticated callers, the first of the caller's roles (in claim
//     order) that has a role override;
//  3. the authenticated default;
//  4. the anonymous default.
//
// An endpoint override that matches the path but excludes the caller does not
// end resolution; later overrides and the remaining tiers are still considered.
func Resolve(s *Snapshot, path, method string, id Identity) Resolution {
	normalized := NormalizePath(path)

	for i := range s.Endpoints {
		e := &s.Endpoints[i]
		if e.Applies(normalized, method, id.Authenticated) {
			return Resolution{Limit: e.Limit, Source: SourceEndpoint, Rule: e.Name}
		}
	}

	if !id.Authenticated {
		return Resolution{Limit: s.Anonymous, Source: SourceAnonymous}
	}

	for _, role := range id.Roles {
		if limit, ok := s.Roles[role]; ok {
			return Resolution{Limit: limit, Source: SourceRole, Rule: role}
		}
	}

	return Resolution{Limit: s.Authenticated, Source: SourceAuthenticated}
}
