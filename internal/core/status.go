package core

import "time"

// ApplyStatus moves the issue to newStatus and performs the mandated timer
// side effects. The board allows free movement among all four statuses, so
// the only validation is the enum itself, but two side effects are fixed:
//
//   - leaving in-progress stops a running timer and accumulates its elapsed
//     time before the new status takes effect;
//   - entering in-progress auto-starts a timer when none is running, unless
//     the actor lacks timer capability (timerAllowed), in which case the move
//     succeeds with no timer change.
func ApplyStatus(issue *Issue, newStatus Status, timerAllowed bool, now time.Time) error {
	if !ValidStatus(newStatus) {
		return &ValidationError{Field: string(FieldStatus), Reason: "unknown status " + string(newStatus)}
	}

	old := issue.Status
	if old == StatusInProgress && newStatus != StatusInProgress && issue.IsRunning {
		if err := StopTimer(issue, now); err != nil {
			return err
		}
	}
	if newStatus == StatusInProgress && old != StatusInProgress && !issue.IsRunning && timerAllowed {
		if err := StartTimer(issue, now); err != nil {
			return err
		}
	}
	issue.Status = newStatus
	return nil
}
