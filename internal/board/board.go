// Package board implements the kanban board's optimistic reconciliation
// protocol. A move is applied to the local view immediately, then confirmed
// or rolled back against the authoritative server result. Ordering is
// deterministic: every move gets a monotonic per-board sequence number and
// only the outcome of the last-issued move for an issue is trusted, however
// late its confirmation arrives.
package board

import (
	"errors"
	"sort"
	"sync"

	"github.com/kidandcat/issuedeck/internal/core"
)

// ErrUnknownIssue is returned for moves on issues the board has not loaded.
var ErrUnknownIssue = errors.New("issue not on board")

// MovePermission prechecks a move locally, usually backed by the cached
// permission engine result. A denied move never reaches the network and never
// changes the view.
type MovePermission func(issue core.Issue, newStatus core.Status) bool

// Ticket identifies one issued move for confirmation or rollback.
type Ticket struct {
	IssueID int64
	Seq     uint64
}

type Board struct {
	mu      sync.Mutex
	canMove MovePermission

	confirmed map[int64]core.Issue // last server-confirmed snapshot
	view      map[int64]core.Issue // what the board displays
	inFlight  map[int64]uint64     // latest issued seq per issue
	resolved  map[int64]uint64     // latest seq whose outcome was applied
	seq       uint64
}

func New(canMove MovePermission) *Board {
	return &Board{
		canMove:   canMove,
		confirmed: map[int64]core.Issue{},
		view:      map[int64]core.Issue{},
		inFlight:  map[int64]uint64{},
		resolved:  map[int64]uint64{},
	}
}

// Load replaces the board's contents with fresh authoritative issues,
// dropping any optimistic state.
func (b *Board) Load(issues []core.Issue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmed = make(map[int64]core.Issue, len(issues))
	b.view = make(map[int64]core.Issue, len(issues))
	b.inFlight = map[int64]uint64{}
	for _, issue := range issues {
		b.confirmed[issue.ID] = issue
		b.view[issue.ID] = issue
	}
}

// Put inserts or replaces a single authoritative issue (e.g. after create or
// an out-of-band refetch).
func (b *Board) Put(issue core.Issue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmed[issue.ID] = issue
	if _, pending := b.inFlight[issue.ID]; !pending {
		b.view[issue.ID] = issue
	}
}

// Issue returns the displayed state of one issue.
func (b *Board) Issue(id int64) (core.Issue, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	issue, ok := b.view[id]
	return issue, ok
}

// Issues returns the displayed issues ordered by id.
func (b *Board) Issues() []core.Issue {
	b.mu.Lock()
	defer b.mu.Unlock()
	issues := make([]core.Issue, 0, len(b.view))
	for _, issue := range b.view {
		issues = append(issues, issue)
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].ID < issues[j].ID })
	return issues
}

// Move prechecks and optimistically applies a status change, returning the
// ticket the caller must later pass to Confirm or Fail. On precheck denial
// the view is untouched and no ticket is issued.
func (b *Board) Move(id int64, newStatus core.Status) (Ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	issue, ok := b.view[id]
	if !ok {
		return Ticket{}, ErrUnknownIssue
	}
	if !core.ValidStatus(newStatus) {
		return Ticket{}, &core.ValidationError{Field: string(core.FieldStatus), Reason: "unknown status " + string(newStatus)}
	}
	if b.canMove != nil && !b.canMove(issue, newStatus) {
		return Ticket{}, &core.AuthorizationError{Action: "move issue"}
	}

	b.seq++
	b.inFlight[id] = b.seq
	issue.Status = newStatus
	b.view[id] = issue
	return Ticket{IssueID: id, Seq: b.seq}, nil
}

// Confirm applies the authoritative result of a move. Stale confirmations,
// ones superseded by a later-issued move or a later-applied outcome, are
// ignored, so confirmations may arrive out of order or twice without
// disturbing the final state.
func (b *Board) Confirm(t Ticket, authoritative core.Issue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stale(t) {
		return
	}
	b.resolved[t.IssueID] = t.Seq
	delete(b.inFlight, t.IssueID)
	b.confirmed[t.IssueID] = authoritative
	b.view[t.IssueID] = authoritative
}

// Fail discards the optimistic move and restores the last confirmed snapshot.
// Transport timeouts are reported here exactly like rejections: the board
// must never keep a status the server did not accept.
func (b *Board) Fail(t Ticket) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stale(t) {
		return
	}
	b.resolved[t.IssueID] = t.Seq
	delete(b.inFlight, t.IssueID)
	if snapshot, ok := b.confirmed[t.IssueID]; ok {
		b.view[t.IssueID] = snapshot
	}
}

// stale reports whether the ticket's outcome must not be applied: a newer
// move for the same issue is in flight, or a newer outcome already landed.
func (b *Board) stale(t Ticket) bool {
	if latest, pending := b.inFlight[t.IssueID]; pending && t.Seq < latest {
		return true
	}
	return t.Seq < b.resolved[t.IssueID]
}
