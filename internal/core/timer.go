package core

import "time"

// StartTimer begins tracking time on the issue. At most one timer runs per
// issue: if one is already running the call fails with ConflictError and the
// issue is left untouched. It never implicitly stops and restarts.
func StartTimer(issue *Issue, now time.Time) error {
	if issue.IsRunning {
		return &ConflictError{Reason: "timer already running"}
	}
	started := now
	issue.IsRunning = true
	issue.TimerStartedAt = &started
	return nil
}

// StopTimer ends the running interval and accumulates the elapsed wall-clock
// time into TotalTrackedSeconds. Fails with ConflictError if no timer is
// running. Elapsed time is clamped at zero to defend against clock skew.
func StopTimer(issue *Issue, now time.Time) error {
	if !issue.IsRunning || issue.TimerStartedAt == nil {
		return &ConflictError{Reason: "timer not running"}
	}
	elapsed := int64(now.Sub(*issue.TimerStartedAt).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}
	issue.TotalTrackedSeconds += elapsed
	issue.IsRunning = false
	issue.TimerStartedAt = nil
	return nil
}

// ElapsedDisplay is the pure read model for live timer display: the
// accumulated total plus the currently running interval, if any. Repeated
// reads are idempotent; polling this never touches the accumulator.
func ElapsedDisplay(issue *Issue, now time.Time) time.Duration {
	total := time.Duration(issue.TotalTrackedSeconds) * time.Second
	if issue.IsRunning && issue.TimerStartedAt != nil {
		running := now.Sub(*issue.TimerStartedAt)
		if running > 0 {
			total += running
		}
	}
	return total
}
