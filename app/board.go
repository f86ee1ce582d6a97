package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maxence-charriere/go-app/v10/pkg/app"

	"github.com/kidandcat/issuedeck/internal/board"
	"github.com/kidandcat/issuedeck/internal/core"
)

// BoardView renders a project's kanban board. Moves are optimistic: the card
// changes column immediately and the board reconciler settles the final state
// once the server answers.
type BoardView struct {
	app.Compo

	projectID int64
	me        *core.User
	project   *core.Project
	board     *board.Board
	loaded    bool
	banner    string

	draggingID int64
	now        time.Time
}

func (v *BoardView) OnMount(ctx app.Context) {
	v.loadFromURL(ctx)
	v.startClock(ctx)
}

func (v *BoardView) OnNav(ctx app.Context) {
	v.loadFromURL(ctx)
}

func (v *BoardView) loadFromURL(ctx app.Context) {
	path := ctx.Page().URL().Path
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "p" {
		id, _ := strconv.ParseInt(parts[1], 10, 64)
		v.projectID = id
	}
	v.loadData(ctx)
}

// startClock refreshes the running-timer display once a second. Cosmetic
// only; the elapsed computation itself is the pure read model.
func (v *BoardView) startClock(ctx app.Context) {
	ctx.Async(func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for range ticker.C {
			ctx.Dispatch(func(ctx app.Context) {
				v.now = time.Now()
			})
		}
	})
}

func (v *BoardView) loadData(ctx app.Context) {
	ctx.Async(func() {
		var me core.User
		if err := getJSON("/api/auth/me", &me); err != nil {
			app.Log("error loading session:", err)
			return
		}

		if v.projectID == 0 {
			var projects []core.Project
			if err := getJSON("/api/projects", &projects); err != nil {
				app.Log("error loading projects:", err)
				return
			}
			if len(projects) == 0 {
				ctx.Dispatch(func(ctx app.Context) {
					v.me = &me
					v.loaded = true
					v.banner = "No projects yet."
				})
				return
			}
			v.projectID = projects[0].ID
		}

		var project core.Project
		if err := getJSON(fmt.Sprintf("/api/projects/%d", v.projectID), &project); err != nil {
			app.Log("error loading project:", err)
			return
		}
		var issues []core.Issue
		if err := getJSON(fmt.Sprintf("/api/projects/%d/issues", v.projectID), &issues); err != nil {
			app.Log("error loading issues:", err)
			return
		}

		ctx.Dispatch(func(ctx app.Context) {
			v.me = &me
			v.project = &project
			v.board = board.New(func(issue core.Issue, _ core.Status) bool {
				return core.CanMoveIssue(v.me, v.project, &issue)
			})
			v.board.Load(issues)
			v.now = time.Now()
			v.loaded = true
		})
	})
}

// refetchIssue pulls the authoritative issue after a conflict so the board
// converges instead of keeping a stale snapshot.
func (v *BoardView) refetchIssue(ctx app.Context, id int64) {
	ctx.Async(func() {
		var issue core.Issue
		if err := getJSON(fmt.Sprintf("/api/issues/%d", id), &issue); err != nil {
			app.Log("error refetching issue:", err)
			return
		}
		ctx.Dispatch(func(ctx app.Context) {
			v.board.Put(issue)
		})
	})
}

// moveIssue runs the reconciliation protocol for one drag-drop.
func (v *BoardView) moveIssue(ctx app.Context, id int64, newStatus core.Status) {
	ticket, err := v.board.Move(id, newStatus)
	if err != nil {
		// Precheck denied: no network call, view untouched.
		v.banner = err.Error()
		return
	}
	v.banner = ""

	ctx.Async(func() {
		issue, err := putJSON(fmt.Sprintf("/api/issues/%d", id), core.IssuePatch{Status: &newStatus})
		ctx.Dispatch(func(ctx app.Context) {
			if err != nil {
				v.board.Fail(ticket)
				v.banner = err.Error()
				v.refetchIssue(ctx, id)
				return
			}
			v.board.Confirm(ticket, *issue)
		})
	})
}

func (v *BoardView) toggleTimer(ctx app.Context, issue core.Issue) {
	action := "start"
	if issue.IsRunning {
		action = "stop"
	}
	ctx.Async(func() {
		fresh, err := postJSON(fmt.Sprintf("/api/issues/%d/%s", issue.ID, action), nil)
		ctx.Dispatch(func(ctx app.Context) {
			if err != nil {
				v.banner = err.Error()
				v.refetchIssue(ctx, issue.ID)
				return
			}
			v.banner = ""
			v.board.Put(*fresh)
		})
	})
}

func (v *BoardView) Render() app.UI {
	if !v.loaded {
		return app.Div().Class("loading-overlay").Body(
			app.Div().Class("loading-spinner"),
		)
	}
	if v.project == nil {
		return app.Div().Class("board-empty").Text(v.banner)
	}

	return app.Div().Class("board").Body(
		app.Div().Class("board-header").Body(
			app.H1().Text(v.project.Name),
			app.P().Class("board-description").Text(v.project.Description),
			app.If(v.banner != "", func() app.UI {
				return app.Div().Class("board-banner").Text(v.banner)
			}),
		),
		app.Div().Class("board-columns").Body(
			app.Range(core.Statuses).Slice(func(i int) app.UI {
				return v.renderColumn(core.Statuses[i])
			}),
		),
	)
}

var statusLabels = map[core.Status]string{
	core.StatusOpen:       "Open",
	core.StatusInProgress: "In Progress",
	core.StatusOnHold:     "On Hold",
	core.StatusDone:       "Done",
}

func (v *BoardView) renderColumn(status core.Status) app.UI {
	var cards []core.Issue
	for _, issue := range v.board.Issues() {
		if issue.Status == status {
			cards = append(cards, issue)
		}
	}

	return app.Div().
		Class("board-column").
		OnDragOver(func(ctx app.Context, e app.Event) {
			e.PreventDefault()
		}).
		OnDrop(func(ctx app.Context, e app.Event) {
			e.PreventDefault()
			if v.draggingID != 0 {
				v.moveIssue(ctx, v.draggingID, status)
				v.draggingID = 0
			}
		}).
		Body(
			app.Div().Class("column-title").Text(
				fmt.Sprintf("%s (%d)", statusLabels[status], len(cards))),
			app.Range(cards).Slice(func(i int) app.UI {
				return v.renderCard(cards[i])
			}),
		)
}

func (v *BoardView) renderCard(issue core.Issue) app.UI {
	classes := "board-card priority-" + string(issue.Priority)
	if v.draggingID == issue.ID {
		classes += " dragging"
	}

	return app.Div().
		Class(classes).
		Draggable(true).
		OnDragStart(func(ctx app.Context, e app.Event) {
			v.draggingID = issue.ID
		}).
		OnDragEnd(func(ctx app.Context, e app.Event) {
			v.draggingID = 0
		}).
		Body(
			app.Div().Class("card-title").Text(issue.Title),
			app.Div().Class("card-meta").Body(
				app.Span().Class("card-priority").Text(string(issue.Priority)),
				app.If(issue.Assignee != nil, func() app.UI {
					return app.Span().Class("card-assignee").Text(issue.Assignee.Name)
				}),
			),
			v.renderTimer(issue),
		)
}

func (v *BoardView) renderTimer(issue core.Issue) app.UI {
	elapsed := core.ElapsedDisplay(&issue, v.now)
	label := formatElapsed(elapsed)

	timerClass := "card-timer"
	if issue.IsRunning {
		timerClass += " running"
	}

	return app.Div().Class(timerClass).Body(
		app.Span().Class("timer-elapsed").Text(label),
		app.If(v.me != nil && v.project != nil && core.CanControlTimer(v.me, v.project, &issue), func() app.UI {
			text := "Start"
			if issue.IsRunning {
				text = "Stop"
			}
			return app.Button().
				Class("timer-btn").
				Text(text).
				OnClick(func(ctx app.Context, e app.Event) {
					e.Call("stopPropagation")
					v.toggleTimer(ctx, issue)
				})
		}),
	)
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// --- HTTP helpers ---

func getJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func putJSON(url string, body any) (*core.Issue, error) {
	payload, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPut, url, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return doIssue(req)
}

func postJSON(url string, body any) (*core.Issue, error) {
	payload, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return doIssue(req)
}

func doIssue(req *http.Request) (*core.Issue, error) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(resp)
	}
	var issue core.Issue
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func apiError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if json.NewDecoder(resp.Body).Decode(&payload) == nil && payload.Error != "" {
		return fmt.Errorf("%s", payload.Error)
	}
	return fmt.Errorf("request failed: %s", resp.Status)
}
