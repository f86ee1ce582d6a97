package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyStatusRejectsUnknown(t *testing.T) {
	issue := &Issue{ID: 1, Status: StatusOpen}
	err := ApplyStatus(issue, Status("archived"), true, t0)
	assert.True(t, IsValidation(err))
	assert.Equal(t, StatusOpen, issue.Status)
}

func TestApplyStatusFreeMovement(t *testing.T) {
	// Every ordered pair of statuses is a legal move.
	for _, from := range Statuses {
		for _, to := range Statuses {
			issue := &Issue{ID: 1, Status: from}
			require.NoError(t, ApplyStatus(issue, to, false, t0))
			assert.Equal(t, to, issue.Status)
		}
	}
}

func TestApplyStatusAutoStartsTimer(t *testing.T) {
	issue := &Issue{ID: 1, Status: StatusOpen}
	require.NoError(t, ApplyStatus(issue, StatusInProgress, true, t0))

	assert.Equal(t, StatusInProgress, issue.Status)
	assert.True(t, issue.IsRunning)
	assert.Equal(t, t0, *issue.TimerStartedAt)
}

func TestApplyStatusNoAutoStartWithoutCapability(t *testing.T) {
	issue := &Issue{ID: 1, Status: StatusOpen}
	require.NoError(t, ApplyStatus(issue, StatusInProgress, false, t0))

	// The move succeeds, the timer stays off.
	assert.Equal(t, StatusInProgress, issue.Status)
	assert.False(t, issue.IsRunning)
}

func TestApplyStatusStopsTimerOnLeave(t *testing.T) {
	issue := &Issue{ID: 1, Status: StatusOpen}
	require.NoError(t, ApplyStatus(issue, StatusInProgress, true, t0))
	require.NoError(t, ApplyStatus(issue, StatusDone, true, t0.Add(45*time.Second)))

	assert.Equal(t, StatusDone, issue.Status)
	assert.False(t, issue.IsRunning)
	assert.Equal(t, int64(45), issue.TotalTrackedSeconds)
}

func TestApplyStatusTracksOnlyInProgressInterval(t *testing.T) {
	// open -> in-progress -> done: only the in-progress window counts.
	issue := &Issue{ID: 1, Status: StatusOpen}

	require.NoError(t, ApplyStatus(issue, StatusInProgress, true, t0.Add(10*time.Second)))
	require.NoError(t, ApplyStatus(issue, StatusDone, true, t0.Add(130*time.Second)))

	assert.Equal(t, int64(120), issue.TotalTrackedSeconds)
	assert.False(t, issue.IsRunning)
}

func TestApplyStatusLeaveStopsEvenWithoutTimerCapability(t *testing.T) {
	// The stop side effect is bookkeeping, not a privilege: a running timer
	// never survives leaving in-progress.
	issue := &Issue{ID: 1, Status: StatusInProgress}
	require.NoError(t, StartTimer(issue, t0))

	require.NoError(t, ApplyStatus(issue, StatusOnHold, false, t0.Add(time.Minute)))
	assert.False(t, issue.IsRunning)
	assert.Equal(t, int64(60), issue.TotalTrackedSeconds)
}

func TestApplyStatusReenterInProgressKeepsTimer(t *testing.T) {
	issue := &Issue{ID: 1, Status: StatusInProgress}
	require.NoError(t, StartTimer(issue, t0))

	// in-progress -> in-progress is a no-op for the timer.
	require.NoError(t, ApplyStatus(issue, StatusInProgress, true, t0.Add(time.Minute)))
	assert.True(t, issue.IsRunning)
	assert.Equal(t, t0, *issue.TimerStartedAt)
	assert.Zero(t, issue.TotalTrackedSeconds)
}
