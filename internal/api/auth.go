package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kidandcat/issuedeck/internal/core"
)

type contextKey string

const actorKey contextKey = "actor"

// actor returns the authenticated user. requireUser guarantees it is set.
func actor(r *http.Request) *core.User {
	u, _ := r.Context().Value(actorKey).(*core.User)
	return u
}

// requireUser resolves the session cookie to a user and passes it along as
// the explicit actor for every core operation.
func (a *API) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		if err != nil {
			writeError(w, http.StatusUnauthorized, "not logged in")
			return
		}
		user, err := a.svc.Store().GetUserBySession(r.Context(), cookie.Value)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), actorKey, user)))
	}
}

func (a *API) registerAuthRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/magic-link", a.handleMagicLink)
	mux.HandleFunc("POST /api/auth/verify", a.handleVerify)
	mux.HandleFunc("POST /api/auth/logout", a.handleLogout)
	mux.HandleFunc("GET /api/auth/me", a.requireUser(a.handleMe))
}

// handleMagicLink issues a login token for a known user. Delivery is
// external; without a mail sender the link is logged.
func (a *API) handleMagicLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email required")
		return
	}
	if _, err := a.svc.Store().GetUserByEmail(r.Context(), email); err != nil {
		writeCoreError(w, err)
		return
	}

	token, err := a.svc.Store().CreateMagicToken(r.Context(), email)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	log.Printf("magic link for %s: /api/auth/verify token=%s", email, token)
	writeJSON(w, http.StatusOK, map[string]string{"status": "pending"})
}

// handleVerify burns a magic token and opens a session.
func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	email, err := a.svc.Store().ConsumeMagicToken(r.Context(), req.Token)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	user, err := a.svc.Store().GetUserByEmail(r.Context(), email)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	token, err := a.svc.Store().CreateSession(r.Context(), user.ID)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(30 * 24 * time.Hour),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie("session"); err == nil {
		a.svc.Store().DeleteSession(r.Context(), cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: "session", MaxAge: -1, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, actor(r))
}
