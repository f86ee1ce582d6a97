package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat/issuedeck/internal/core"
	"github.com/kidandcat/issuedeck/internal/db"
)

// clock is a hand-cranked time source. Timer fields round-trip through sqlite
// as unix seconds, so it always stays on whole seconds.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc   *Service
	store *db.Store
	clock *clock

	admin    *core.User // global admin, no project role
	owner    *core.User // global manager, owns the project
	assignee *core.User // project member assigned to the issue
	member   *core.User // project member, not assigned
	outsider *core.User // no relation to the project

	project *core.Project
	issue   *core.Issue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		store: store,
		clock: &clock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.svc = New(store, nil)
	f.svc.SetClock(f.clock.Now)

	ctx := context.Background()
	f.admin = mustUser(t, store, "admin@example.com", core.RoleAdmin)
	f.owner = mustUser(t, store, "owner@example.com", core.RoleManager)
	f.assignee = mustUser(t, store, "dev@example.com", core.RoleMember)
	f.member = mustUser(t, store, "member@example.com", core.RoleMember)
	f.outsider = mustUser(t, store, "outsider@example.com", core.RoleMember)

	f.project, err = f.svc.CreateProject(ctx, f.owner, "Deck", "")
	require.NoError(t, err)
	memberRole := core.ProjectRoleMember
	require.NoError(t, store.AddMember(ctx, f.project.ID, f.assignee.ID, &memberRole))
	require.NoError(t, store.AddMember(ctx, f.project.ID, f.member.ID, &memberRole))
	f.project, err = store.GetProject(ctx, f.project.ID)
	require.NoError(t, err)

	f.issue, err = f.svc.CreateIssue(ctx, f.owner, f.project.ID, "ship it", "", core.PriorityHigh, &f.assignee.ID)
	require.NoError(t, err)
	return f
}

func mustUser(t *testing.T, store *db.Store, email string, role core.Role) *core.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), email, email, role)
	require.NoError(t, err)
	return u
}

func strp(s string) *string              { return &s }
func statusp(s core.Status) *core.Status { return &s }

func TestCreateIssueValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateIssue(ctx, f.owner, f.project.ID, "   ", "", "", nil)
	assert.True(t, core.IsValidation(err), "blank title")

	_, err = f.svc.CreateIssue(ctx, f.owner, f.project.ID, "x", "", core.Priority("urgent"), nil)
	assert.True(t, core.IsValidation(err), "unknown priority")

	_, err = f.svc.CreateIssue(ctx, f.owner, f.project.ID, "x", "", "", &f.outsider.ID)
	assert.True(t, core.IsValidation(err), "assignee outside project")

	issue, err := f.svc.CreateIssue(ctx, f.owner, f.project.ID, "x", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, core.PriorityMedium, issue.Priority, "priority defaults to medium")
	assert.Equal(t, core.StatusOpen, issue.Status)
}

func TestCreateIssueRequiresManager(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateIssue(context.Background(), f.member, f.project.ID, "x", "", "", nil)
	assert.True(t, core.IsAuthorization(err))
}

func TestOutsiderDeniedEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mutations := map[string]func() error{
		"get issue": func() error {
			_, err := f.svc.GetIssue(ctx, f.outsider, f.issue.ID)
			return err
		},
		"list issues": func() error {
			_, err := f.svc.ListIssues(ctx, f.outsider, f.project.ID)
			return err
		},
		"update issue": func() error {
			_, err := f.svc.UpdateIssue(ctx, f.outsider, f.issue.ID, core.IssuePatch{Title: strp("hijack")})
			return err
		},
		"start timer": func() error {
			_, err := f.svc.StartTimer(ctx, f.outsider, f.issue.ID)
			return err
		},
		"stop timer": func() error {
			_, err := f.svc.StopTimer(ctx, f.outsider, f.issue.ID)
			return err
		},
		"invite": func() error {
			_, err := f.svc.Invite(ctx, f.outsider, f.project.ID, f.member.Email)
			return err
		},
	}
	for name, op := range mutations {
		assert.True(t, core.IsAuthorization(op()), "%s must be denied", name)
	}

	// And the issue came through all of that untouched.
	got, err := f.svc.GetIssue(ctx, f.owner, f.issue.ID)
	require.NoError(t, err)
	assert.Equal(t, f.issue.Title, got.Title)
	assert.Equal(t, f.issue.Status, got.Status)
	assert.False(t, got.IsRunning)
}

func TestUpdateIssueNoOpReturnsIdentical(t *testing.T) {
	f := newFixture(t)
	got, err := f.svc.UpdateIssue(context.Background(), f.member, f.issue.ID, core.IssuePatch{})
	require.NoError(t, err)
	assert.Equal(t, f.issue, got)
}

func TestUpdateIssueAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The assignee may edit status but not title; mixing them in one patch
	// fails the whole request.
	patch := core.IssuePatch{
		Title:  strp("new title"),
		Status: statusp(core.StatusDone),
	}
	_, err := f.svc.UpdateIssue(ctx, f.assignee, f.issue.ID, patch)
	assert.True(t, core.IsAuthorization(err))

	got, err := f.svc.GetIssue(ctx, f.owner, f.issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "ship it", got.Title)
	assert.Equal(t, core.StatusOpen, got.Status)
}

func TestUpdateIssueAssigneeMovesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.UpdateIssue(ctx, f.assignee, f.issue.ID, core.IssuePatch{Status: statusp(core.StatusInProgress)})
	require.NoError(t, err)
	assert.Equal(t, core.StatusInProgress, got.Status)
	assert.True(t, got.IsRunning, "assignee's move into in-progress auto-starts the timer")
}

func TestUpdateIssueClearAssignee(t *testing.T) {
	f := newFixture(t)
	got, err := f.svc.UpdateIssue(context.Background(), f.owner, f.issue.ID, core.IssuePatch{ClearAssignee: true})
	require.NoError(t, err)
	assert.Nil(t, got.AssigneeID)
}

func TestTimerStartStopAccumulatesExactly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.StartTimer(ctx, f.assignee, f.issue.ID)
	require.NoError(t, err)

	f.clock.Advance(150 * time.Second)

	got, err := f.svc.StopTimer(ctx, f.assignee, f.issue.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), got.TotalTrackedSeconds)
	assert.False(t, got.IsRunning)
	assert.Nil(t, got.TimerStartedAt)
}

func TestTimerStartWhileRunningConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started, err := f.svc.StartTimer(ctx, f.assignee, f.issue.ID)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)
	_, err = f.svc.StartTimer(ctx, f.owner, f.issue.ID)
	assert.True(t, core.IsConflict(err))

	// The running timer keeps its original start.
	got, err := f.svc.GetIssue(ctx, f.owner, f.issue.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRunning)
	assert.Equal(t, *started.TimerStartedAt, *got.TimerStartedAt)
}

func TestTimerStopWhenIdleConflicts(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.StopTimer(context.Background(), f.assignee, f.issue.ID)
	assert.True(t, core.IsConflict(err))
}

func TestTimerConcurrentStartsExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.StartTimer(ctx, f.assignee, f.issue.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case core.IsConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok, "exactly one start succeeds")
	assert.Equal(t, n-1, conflicts)
}

func TestAdminDeniedTimerButNotReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Admins read and edit everything but timer control stays with the
	// assignee and project-level managers.
	_, err := f.svc.GetIssue(ctx, f.admin, f.issue.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateIssue(ctx, f.admin, f.issue.ID, core.IssuePatch{Title: strp("retitled")})
	require.NoError(t, err)

	_, err = f.svc.StartTimer(ctx, f.admin, f.issue.ID)
	assert.True(t, core.IsAuthorization(err))
}

func TestAdminStatusMoveDoesNotAutoStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.UpdateIssue(ctx, f.admin, f.issue.ID, core.IssuePatch{Status: statusp(core.StatusInProgress)})
	require.NoError(t, err)
	assert.Equal(t, core.StatusInProgress, got.Status)
	assert.False(t, got.IsRunning, "no timer capability, no auto-start")
}

func TestStatusRoundTripTracksOnlyInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateIssue(ctx, f.assignee, f.issue.ID, core.IssuePatch{Status: statusp(core.StatusInProgress)})
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)

	got, err := f.svc.UpdateIssue(ctx, f.assignee, f.issue.ID, core.IssuePatch{Status: statusp(core.StatusDone)})
	require.NoError(t, err)
	assert.Equal(t, core.StatusDone, got.Status)
	assert.False(t, got.IsRunning)
	assert.Equal(t, int64(120), got.TotalTrackedSeconds)

	// Time spent outside in-progress never counts.
	f.clock.Advance(time.Hour)
	got, err = f.svc.GetIssue(ctx, f.owner, f.issue.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), got.TotalTrackedSeconds)
}

func TestInvitationFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.svc.Invite(ctx, f.owner, f.project.ID, f.outsider.Email)
	require.NoError(t, err)
	assert.Equal(t, core.InvitationPending, inv.State)

	// Only the invitee may respond.
	_, err = f.svc.RespondInvitation(ctx, f.member, inv.ID, true)
	assert.True(t, core.IsAuthorization(err))

	mine, err := f.svc.MyInvitations(ctx, f.outsider)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	resolved, err := f.svc.RespondInvitation(ctx, f.outsider, inv.ID, true)
	require.NoError(t, err)
	assert.Equal(t, core.InvitationAccepted, resolved.State)

	// Accepting joins the project, so the former outsider can now read it.
	_, err = f.svc.GetProject(ctx, f.outsider, f.project.ID)
	require.NoError(t, err)

	// Responding twice conflicts.
	_, err = f.svc.RespondInvitation(ctx, f.outsider, inv.ID, false)
	assert.True(t, core.IsConflict(err))
}

func TestInviteRejectsExistingMemberAndOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Invite(ctx, f.owner, f.project.ID, f.member.Email)
	assert.True(t, core.IsValidation(err))

	_, err = f.svc.Invite(ctx, f.owner, f.project.ID, f.owner.Email)
	assert.True(t, core.IsValidation(err))

	_, err = f.svc.Invite(ctx, f.owner, f.project.ID, "nobody@example.com")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListProjectsVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, tc := range []struct {
		name string
		user *core.User
		want int
	}{
		{"owner", f.owner, 1},
		{"member", f.member, 1},
		{"admin sees all", f.admin, 1},
		{"outsider", f.outsider, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.svc.ListProjects(ctx, tc.user)
			require.NoError(t, err)
			assert.Len(t, got, tc.want)
		})
	}
}

func TestCreateProjectRequiresManagerRole(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateProject(context.Background(), f.member, "side project", "")
	assert.True(t, core.IsAuthorization(err))
}

func TestProjectSummaryUnconfigured(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ProjectSummary(context.Background(), f.owner, f.project.ID)
	assert.True(t, core.IsValidation(err))
}

type fakeSummarizer struct {
	prompt string
}

func (f *fakeSummarizer) Summarize(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return "all good", nil
}

func TestProjectSummaryPrompt(t *testing.T) {
	f := newFixture(t)
	fake := &fakeSummarizer{}
	f.svc.summarizer = fake

	out, err := f.svc.ProjectSummary(context.Background(), f.owner, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, "all good", out)
	assert.Contains(t, fake.prompt, "ship it")
	assert.Contains(t, fake.prompt, string(core.PriorityHigh))
}
