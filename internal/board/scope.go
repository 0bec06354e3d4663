// Package board turns raw backend rows into the operator's work buckets.
//
// Everything here is pure: the engine fetches rows, board classifies them,
// and the engine publishes the result.
package board

import (
	"sort"
	"strings"

	"github.com/kball/forumwatch/internal/types"
)

// ResolveScope builds the query scope from the raw ticket and run inputs.
// Fields are present only when non-empty after trimming.
func ResolveScope(ticket, run string) types.Scope {
	return types.Scope{
		Ticket: strings.TrimSpace(ticket),
		RunID:  strings.TrimSpace(run),
	}
}

// ScopeLabel renders a short human label for the current board scope, e.g.
// "ticket:T-1 · run:r1 · agent:all". A board with no narrowing is "global".
func ScopeLabel(scope types.Scope, mode types.TopicMode, agent string) string {
	var parts []string
	if t := strings.TrimSpace(scope.Ticket); t != "" {
		parts = append(parts, "ticket:"+t)
	}
	if r := strings.TrimSpace(scope.RunID); r != "" {
		parts = append(parts, "run:"+r)
	}
	if mode == types.TopicAgent {
		if agent != "" {
			parts = append(parts, "agent:"+agent)
		} else {
			parts = append(parts, "agent:all")
		}
	}
	if len(parts) == 0 {
		return "global"
	}
	return strings.Join(parts, " · ")
}

// KnownTickets returns the distinct non-blank tickets referenced by runs,
// sorted.
func KnownTickets(runs []types.RunSnapshot) []string {
	seen := make(map[string]struct{})
	for _, run := range runs {
		for _, ticket := range run.Tickets {
			ticket = strings.TrimSpace(ticket)
			if ticket != "" {
				seen[ticket] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
