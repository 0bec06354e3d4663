package board

import (
	"strings"

	"github.com/kball/forumwatch/internal/types"
)

// ApplyAgentFilter keeps only rows whose agent_name equals agent
// (trimmed, case-insensitive). It is a no-op outside agent topic mode or
// when no agent is selected.
func ApplyAgentFilter(rows []types.Thread, mode types.TopicMode, agent string) []types.Thread {
	if mode != types.TopicAgent {
		return rows
	}
	want := strings.ToLower(strings.TrimSpace(agent))
	if want == "" {
		return rows
	}
	out := make([]types.Thread, 0, len(rows))
	for _, row := range rows {
		if strings.ToLower(strings.TrimSpace(row.AgentName)) == want {
			out = append(out, row)
		}
	}
	return out
}

// ApplyQueryFilter keeps rows whose title, thread id, assignee or agent name
// contains query, case-insensitively. Queue endpoints do not filter by text
// server-side, so this only runs over queue rows.
func ApplyQueryFilter(rows []types.Thread, query string) []types.Thread {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return rows
	}
	out := make([]types.Thread, 0, len(rows))
	for _, row := range rows {
		if containsFold(row.Title, q) ||
			containsFold(row.ThreadID, q) ||
			containsFold(row.AssigneeName, q) ||
			containsFold(row.AgentName, q) {
			out = append(out, row)
		}
	}
	return out
}

func containsFold(field, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(field), lowerQuery)
}
