package board

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat/issuedeck/internal/core"
)

func allowAll(core.Issue, core.Status) bool { return true }
func denyAll(core.Issue, core.Status) bool  { return false }

func loadedBoard(canMove MovePermission) *Board {
	b := New(canMove)
	b.Load([]core.Issue{
		{ID: 1, Title: "first", Status: core.StatusOpen},
		{ID: 2, Title: "second", Status: core.StatusInProgress},
	})
	return b
}

func TestMoveAppliesOptimistically(t *testing.T) {
	b := loadedBoard(allowAll)

	_, err := b.Move(1, core.StatusDone)
	require.NoError(t, err)

	issue, ok := b.Issue(1)
	require.True(t, ok)
	assert.Equal(t, core.StatusDone, issue.Status)
}

func TestMovePrecheckDenialLeavesViewUntouched(t *testing.T) {
	b := loadedBoard(denyAll)
	before := b.Issues()

	_, err := b.Move(1, core.StatusDone)
	assert.True(t, core.IsAuthorization(err))

	if diff := cmp.Diff(before, b.Issues()); diff != "" {
		t.Errorf("view changed on denied move (-before +after):\n%s", diff)
	}
}

func TestMoveUnknownIssue(t *testing.T) {
	b := loadedBoard(allowAll)
	_, err := b.Move(99, core.StatusDone)
	assert.ErrorIs(t, err, ErrUnknownIssue)
}

func TestMoveInvalidStatus(t *testing.T) {
	b := loadedBoard(allowAll)
	_, err := b.Move(1, core.Status("bogus"))
	assert.True(t, core.IsValidation(err))
}

func TestConfirmReplacesWithAuthoritative(t *testing.T) {
	b := loadedBoard(allowAll)

	ticket, err := b.Move(1, core.StatusInProgress)
	require.NoError(t, err)

	// The server's representation carries side effects the optimistic view
	// could not know about, like the auto-started timer.
	authoritative := core.Issue{ID: 1, Title: "first", Status: core.StatusInProgress, IsRunning: true}
	b.Confirm(ticket, authoritative)

	issue, _ := b.Issue(1)
	assert.True(t, issue.IsRunning)
	assert.Equal(t, core.StatusInProgress, issue.Status)
}

func TestConfirmIsIdempotent(t *testing.T) {
	b := loadedBoard(allowAll)

	ticket, _ := b.Move(1, core.StatusDone)
	authoritative := core.Issue{ID: 1, Title: "first", Status: core.StatusDone}
	b.Confirm(ticket, authoritative)
	after := b.Issues()

	b.Confirm(ticket, authoritative)
	if diff := cmp.Diff(after, b.Issues()); diff != "" {
		t.Errorf("second confirmation changed state (-once +twice):\n%s", diff)
	}
}

func TestFailRollsBackToConfirmedSnapshot(t *testing.T) {
	b := loadedBoard(allowAll)

	ticket, _ := b.Move(1, core.StatusDone)
	issue, _ := b.Issue(1)
	require.Equal(t, core.StatusDone, issue.Status)

	b.Fail(ticket)

	issue, _ = b.Issue(1)
	assert.Equal(t, core.StatusOpen, issue.Status, "rejected move must not persist")
}

func TestOutOfOrderConfirmationLastIssuedWins(t *testing.T) {
	b := loadedBoard(allowAll)

	// Move #1 to done, then move #2 to open, both in flight.
	t1, err := b.Move(1, core.StatusDone)
	require.NoError(t, err)
	t2, err := b.Move(1, core.StatusOpen)
	require.NoError(t, err)

	// #2's confirmation arrives first.
	b.Confirm(t2, core.Issue{ID: 1, Title: "first", Status: core.StatusOpen})
	// #1's slower confirmation arrives late and must not win.
	b.Confirm(t1, core.Issue{ID: 1, Title: "first", Status: core.StatusDone})

	issue, _ := b.Issue(1)
	assert.Equal(t, core.StatusOpen, issue.Status, "later-issued move wins regardless of arrival order")
}

func TestLateFailureOfSupersededMoveIsIgnored(t *testing.T) {
	b := loadedBoard(allowAll)

	t1, _ := b.Move(1, core.StatusDone)
	t2, _ := b.Move(1, core.StatusOnHold)

	b.Confirm(t2, core.Issue{ID: 1, Title: "first", Status: core.StatusOnHold})
	b.Fail(t1)

	issue, _ := b.Issue(1)
	assert.Equal(t, core.StatusOnHold, issue.Status)
}

func TestPutRespectsInFlightMove(t *testing.T) {
	b := loadedBoard(allowAll)

	ticket, _ := b.Move(1, core.StatusDone)

	// A background refetch lands while the move is still unresolved: the
	// snapshot updates but the optimistic view stays.
	b.Put(core.Issue{ID: 1, Title: "first", Status: core.StatusOnHold})
	issue, _ := b.Issue(1)
	assert.Equal(t, core.StatusDone, issue.Status)

	// When the move then fails, we roll back to the refreshed snapshot.
	b.Fail(ticket)
	issue, _ = b.Issue(1)
	assert.Equal(t, core.StatusOnHold, issue.Status)
}

func TestLoadDropsOptimisticState(t *testing.T) {
	b := loadedBoard(allowAll)
	_, _ = b.Move(1, core.StatusDone)

	b.Load([]core.Issue{{ID: 1, Title: "first", Status: core.StatusOpen}})
	issue, _ := b.Issue(1)
	assert.Equal(t, core.StatusOpen, issue.Status)
	assert.Len(t, b.Issues(), 1)
}
