// Package api exposes the tracker over JSON HTTP. Handlers stay thin: they
// decode, call the service with the session's actor, and translate the core
// error taxonomy onto status codes.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/kidandcat/issuedeck/internal/core"
	"github.com/kidandcat/issuedeck/internal/service"
)

type API struct {
	svc *service.Service
}

func New(svc *service.Service) *API {
	return &API{svc: svc}
}

// RegisterRoutes mounts all API endpoints on mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	a.registerAuthRoutes(mux)

	// Users
	mux.HandleFunc("GET /api/users", a.requireUser(a.handleListUsers))

	// Projects
	mux.HandleFunc("GET /api/projects", a.requireUser(a.handleListProjects))
	mux.HandleFunc("POST /api/projects", a.requireUser(a.handleCreateProject))
	mux.HandleFunc("GET /api/projects/{id}", a.requireUser(a.handleGetProject))
	mux.HandleFunc("PUT /api/projects/{id}", a.requireUser(a.handleUpdateProject))
	mux.HandleFunc("POST /api/projects/{id}/invite", a.requireUser(a.handleInvite))
	mux.HandleFunc("GET /api/projects/{id}/issues", a.requireUser(a.handleListIssues))
	mux.HandleFunc("GET /api/ai/projects/{id}/summary", a.requireUser(a.handleProjectSummary))

	// Invitations
	mux.HandleFunc("GET /api/invitations/me", a.requireUser(a.handleMyInvitations))
	mux.HandleFunc("POST /api/invitations/{id}/accept", a.requireUser(a.handleInvitationResponse(true)))
	mux.HandleFunc("POST /api/invitations/{id}/reject", a.requireUser(a.handleInvitationResponse(false)))

	// Issues
	mux.HandleFunc("POST /api/issues", a.requireUser(a.handleCreateIssue))
	mux.HandleFunc("GET /api/issues/{id}", a.requireUser(a.handleGetIssue))
	mux.HandleFunc("PUT /api/issues/{id}", a.requireUser(a.handleUpdateIssue))
	mux.HandleFunc("POST /api/issues/{id}/start", a.requireUser(a.handleStartTimer))
	mux.HandleFunc("POST /api/issues/{id}/stop", a.requireUser(a.handleStopTimer))

	// Admin
	mux.HandleFunc("GET /api/admin/summary", a.requireUser(a.handleAdminSummary))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeCoreError maps the core error taxonomy onto HTTP statuses.
func writeCoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case core.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case core.IsAuthorization(err):
		writeError(w, http.StatusForbidden, err.Error())
	case core.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// --- Users ---

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.svc.ListUsers(r.Context(), actor(r))
	if err != nil {
		writeCoreError(w, err)
		return
	}
	if users == nil {
		users = []core.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// --- Projects ---

func (a *API) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := a.svc.ListProjects(r.Context(), actor(r))
	if err != nil {
		writeCoreError(w, err)
		return
	}
	if projects == nil {
		projects = []core.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (a *API) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	project, err := a.svc.CreateProject(r.Context(), actor(r), req.Name, req.Description)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (a *API) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	project, err := a.svc.GetProject(r.Context(), actor(r), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (a *API) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	project, err := a.svc.UpdateProject(r.Context(), actor(r), id, req.Name, req.Description)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (a *API) handleInvite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	inv, err := a.svc.Invite(r.Context(), actor(r), id, req.Email)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// --- Invitations ---

func (a *API) handleMyInvitations(w http.ResponseWriter, r *http.Request) {
	invs, err := a.svc.MyInvitations(r.Context(), actor(r))
	if err != nil {
		writeCoreError(w, err)
		return
	}
	if invs == nil {
		invs = []core.Invitation{}
	}
	writeJSON(w, http.StatusOK, invs)
}

func (a *API) handleInvitationResponse(accept bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}
		inv, err := a.svc.RespondInvitation(r.Context(), actor(r), id, accept)
		if err != nil {
			writeCoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}

// --- Issues ---

func (a *API) handleListIssues(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	issues, err := a.svc.ListIssues(r.Context(), actor(r), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	if issues == nil {
		issues = []core.Issue{}
	}
	writeJSON(w, http.StatusOK, issues)
}

func (a *API) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID   int64         `json:"projectId"`
		Title       string        `json:"title"`
		Description string        `json:"description"`
		Priority    core.Priority `json:"priority"`
		AssigneeID  *int64        `json:"assigneeId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	issue, err := a.svc.CreateIssue(r.Context(), actor(r), req.ProjectID, req.Title, req.Description, req.Priority, req.AssigneeID)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (a *API) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	issue, err := a.svc.GetIssue(r.Context(), actor(r), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (a *API) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var patch core.IssuePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	issue, err := a.svc.UpdateIssue(r.Context(), actor(r), id, patch)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (a *API) handleStartTimer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	issue, err := a.svc.StartTimer(r.Context(), actor(r), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (a *API) handleStopTimer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	issue, err := a.svc.StopTimer(r.Context(), actor(r), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// --- Admin ---

func (a *API) handleAdminSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.svc.Summary(r.Context(), actor(r))
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
