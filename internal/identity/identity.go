// Package identity resolves a free-text viewer identity into the tokens
// that may appear in a thread's assignee field.
//
// A viewer identity has the shape type:namespace:id. Assignees are often
// recorded at a coarser or finer granularity than the viewer's own string,
// so an identity like "agent:team-a:worker-7" also answers to "team-a" and
// "worker-7".
package identity

import (
	"sort"
	"strings"
)

// Tokens is the set of lowercase candidate identity tokens for a viewer.
type Tokens map[string]struct{}

// Has reports whether token is in the set.
func (t Tokens) Has(token string) bool {
	_, ok := t[token]
	return ok
}

// Sorted returns the tokens in lexical order.
func (t Tokens) Sorted() []string {
	out := make([]string, 0, len(t))
	for token := range t {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func parts(normalized string) []string {
	var out []string
	for _, part := range strings.Split(normalized, ":") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DeriveTokens returns the candidate tokens for viewerID. A blank viewer
// yields an empty set.
func DeriveTokens(viewerID string) Tokens {
	tokens := Tokens{}
	normalized := normalize(viewerID)
	if normalized == "" {
		return tokens
	}
	tokens[normalized] = struct{}{}

	p := parts(normalized)
	if len(p) >= 2 {
		tokens[p[1]] = struct{}{}
	}
	if len(p) >= 3 {
		tokens[p[len(p)-1]] = struct{}{}
	}
	return tokens
}

// Matches reports whether assignee refers to the viewer described by tokens.
func Matches(assignee string, tokens Tokens) bool {
	if len(tokens) == 0 {
		return false
	}
	normalized := normalize(assignee)
	if normalized == "" {
		return false
	}
	if tokens.Has(normalized) {
		return true
	}

	p := parts(normalized)
	if len(p) >= 2 && tokens.Has(p[1]) {
		return true
	}
	if len(p) >= 3 && tokens.Has(p[len(p)-1]) {
		return true
	}
	return false
}
