package forumapi

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kball/forumwatch/internal/types"
)

// Run records come from a backend that has shipped both snake_case and
// Go-default field names, so every field is looked up by an ordered list of
// candidate keys.
var (
	runIDKeys    = []string{"run_id", "RunID"}
	runStatusKey = []string{"status", "Status"}
	ticketsKeys  = []string{"tickets", "Tickets"}
	guidanceKeys = []string{"pending_guidance", "PendingGuidance"}

	guidanceThreadKeys    = []string{"thread_id", "ThreadID"}
	guidanceAgentKeys     = []string{"agent_name", "AgentName"}
	guidanceWorkspaceKeys = []string{"workspace_name", "WorkspaceName"}
	guidanceQuestionKeys  = []string{"question", "Question"}
)

// ListRuns returns the normalized run snapshots. Records that cannot be
// normalized are dropped without failing the whole response.
func (c *Client) ListRuns(ctx context.Context) ([]types.RunSnapshot, error) {
	var resp struct {
		Runs []json.RawMessage `json:"runs"`
	}
	if err := c.getJSON(ctx, "/api/v1/runs", nil, &resp); err != nil {
		return nil, err
	}

	runs := make([]types.RunSnapshot, 0, len(resp.Runs))
	for _, raw := range resp.Runs {
		if run, ok := NormalizeRun(raw); ok {
			runs = append(runs, run)
		}
	}
	return runs, nil
}

// NormalizeRun converts one raw run record. It reports false when the
// record is not an object or carries no run id.
func NormalizeRun(raw json.RawMessage) (types.RunSnapshot, bool) {
	var rec map[string]any
	if err := json.Unmarshal(raw, &rec); err != nil || rec == nil {
		return types.RunSnapshot{}, false
	}

	runID, ok := pickString(rec, runIDKeys...)
	if !ok {
		return types.RunSnapshot{}, false
	}
	status, ok := pickString(rec, runStatusKey...)
	if !ok {
		status = "unknown"
	}

	return types.RunSnapshot{
		RunID:           runID,
		Status:          status,
		Tickets:         stringArray(pickValue(rec, ticketsKeys...)),
		PendingGuidance: guidanceArray(pickValue(rec, guidanceKeys...)),
	}, true
}

// pickString returns the first candidate key holding a non-blank string.
func pickString(rec map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := rec[key].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// pickValue returns the first candidate key that is present and not null.
func pickValue(rec map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := rec[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringArray(v any) []string {
	items, ok := v.([]any)
	out := []string{}
	if !ok {
		return out
	}
	for _, item := range items {
		if s, ok := item.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func guidanceArray(v any) []types.PendingGuidance {
	items, ok := v.([]any)
	out := []types.PendingGuidance{}
	if !ok {
		return out
	}
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		threadID, ok1 := pickString(rec, guidanceThreadKeys...)
		agent, ok2 := pickString(rec, guidanceAgentKeys...)
		workspace, ok3 := pickString(rec, guidanceWorkspaceKeys...)
		question, ok4 := pickString(rec, guidanceQuestionKeys...)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		out = append(out, types.PendingGuidance{
			ThreadID:      threadID,
			AgentName:     agent,
			WorkspaceName: workspace,
			Question:      question,
		})
	}
	return out
}
