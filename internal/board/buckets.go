package board

import (
	"strings"

	"github.com/kball/forumwatch/internal/identity"
	"github.com/kball/forumwatch/internal/types"
)

// Rows are the four raw result sets of one reconciliation pass.
type Rows struct {
	All        []types.Thread // general search, no state filter
	Closed     []types.Thread // search restricted to state=closed
	Unseen     []types.Thread // unseen queue for the viewer
	Unanswered []types.Thread // unanswered queue for the viewer
}

// Buckets are the seven named thread sequences shown on the boards.
// A Buckets value is never mutated after Classify returns it.
type Buckets struct {
	InProgressNew           []types.Thread `json:"in_progress_new" yaml:"in_progress_new"`
	InProgressActive        []types.Thread `json:"in_progress_active" yaml:"in_progress_active"`
	InProgressAwaitingClose []types.Thread `json:"in_progress_awaiting_close" yaml:"in_progress_awaiting_close"`
	NeedsMeUnseen           []types.Thread `json:"needs_me_unseen" yaml:"needs_me_unseen"`
	NeedsMeUnanswered       []types.Thread `json:"needs_me_unanswered" yaml:"needs_me_unanswered"`
	NeedsMeAssigned         []types.Thread `json:"needs_me_assigned" yaml:"needs_me_assigned"`
	RecentlyClosed          []types.Thread `json:"recently_closed" yaml:"recently_closed"`
}

// Counts are the per-board summary numbers.
type Counts struct {
	InProgress        int `json:"in_progress" yaml:"in_progress"`
	NeedsMe           int `json:"needs_me" yaml:"needs_me"`
	RecentlyCompleted int `json:"recently_completed" yaml:"recently_completed"`
}

// Classify post-filters rows and partitions them into buckets.
//
// The agent filter applies to all four row sets; the free-text filter only
// to the queue rows. Closed threads never land in an in-progress bucket.
func Classify(rows Rows, filter types.Filter) Buckets {
	all := ApplyAgentFilter(rows.All, filter.TopicMode, filter.Agent)
	closed := ApplyAgentFilter(rows.Closed, filter.TopicMode, filter.Agent)
	unseen := ApplyAgentFilter(ApplyQueryFilter(rows.Unseen, filter.Query), filter.TopicMode, filter.Agent)
	unanswered := ApplyAgentFilter(ApplyQueryFilter(rows.Unanswered, filter.Query), filter.TopicMode, filter.Agent)

	b := Buckets{
		InProgressNew:           []types.Thread{},
		InProgressActive:        []types.Thread{},
		InProgressAwaitingClose: []types.Thread{},
		NeedsMeUnseen:           nonNil(unseen),
		NeedsMeUnanswered:       nonNil(unanswered),
		NeedsMeAssigned:         []types.Thread{},
		RecentlyClosed:          nonNil(closed),
	}

	for _, row := range all {
		switch {
		case row.State.Is(types.StateNew):
			b.InProgressNew = append(b.InProgressNew, row)
		case row.State.Is(types.StateTriaged, types.StateWaitingOperator, types.StateWaitingHuman):
			b.InProgressActive = append(b.InProgressActive, row)
		case row.State.Is(types.StateAnswered):
			b.InProgressAwaitingClose = append(b.InProgressAwaitingClose, row)
		}
	}

	tokens := identity.DeriveTokens(filter.ViewerID)
	for _, row := range all {
		if identity.Matches(row.AssigneeName, tokens) {
			b.NeedsMeAssigned = append(b.NeedsMeAssigned, row)
		}
	}
	return b
}

func nonNil(rows []types.Thread) []types.Thread {
	if rows == nil {
		return []types.Thread{}
	}
	return rows
}

// Board returns the buckets that make up one board, in display order.
func (b Buckets) Board(key types.BoardKey) [][]types.Thread {
	switch key {
	case types.BoardInProgress:
		return [][]types.Thread{b.InProgressNew, b.InProgressActive, b.InProgressAwaitingClose}
	case types.BoardNeedsMe:
		return [][]types.Thread{b.NeedsMeUnseen, b.NeedsMeUnanswered, b.NeedsMeAssigned}
	case types.BoardRecentlyCompleted:
		return [][]types.Thread{b.RecentlyClosed}
	}
	return nil
}

func (b Buckets) all() [][]types.Thread {
	return [][]types.Thread{
		b.InProgressNew,
		b.InProgressActive,
		b.InProgressAwaitingClose,
		b.NeedsMeUnseen,
		b.NeedsMeUnanswered,
		b.NeedsMeAssigned,
		b.RecentlyClosed,
	}
}

// Counts computes the board summary counts. In-progress buckets are
// disjoint so their lengths are summed; needs-me buckets overlap and are
// counted by distinct thread id.
func (b Buckets) Counts() Counts {
	needsMe := make(map[string]struct{})
	for _, bucket := range [][]types.Thread{b.NeedsMeUnseen, b.NeedsMeUnanswered, b.NeedsMeAssigned} {
		for _, row := range bucket {
			needsMe[row.ThreadID] = struct{}{}
		}
	}
	return Counts{
		InProgress:        len(b.InProgressNew) + len(b.InProgressActive) + len(b.InProgressAwaitingClose),
		NeedsMe:           len(needsMe),
		RecentlyCompleted: len(b.RecentlyClosed),
	}
}

// VisibleIDs returns the set of thread ids present in any bucket.
func (b Buckets) VisibleIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, bucket := range b.all() {
		for _, row := range bucket {
			ids[row.ThreadID] = struct{}{}
		}
	}
	return ids
}

// Find returns the first bucketed thread with the given id.
func (b Buckets) Find(threadID string) (types.Thread, bool) {
	for _, bucket := range b.all() {
		for _, row := range bucket {
			if row.ThreadID == threadID {
				return row, true
			}
		}
	}
	return types.Thread{}, false
}

// AvailableAgents returns the distinct non-blank agent names across all
// buckets, sorted.
func (b Buckets) AvailableAgents() []string {
	seen := make(map[string]struct{})
	for _, bucket := range b.all() {
		for _, row := range bucket {
			if name := strings.TrimSpace(row.AgentName); name != "" {
				seen[name] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

// GuardSelection returns selected if it is still visible in b, and "" otherwise.
func GuardSelection(selected string, b Buckets) string {
	if selected == "" {
		return ""
	}
	if _, ok := b.VisibleIDs()[selected]; ok {
		return selected
	}
	return ""
}
