package api

import (
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
)

// handleProjectSummary returns the AI-written summary of a project, both as
// the raw markdown the model produced and rendered to HTML.
func (a *API) handleProjectSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	summary, err := a.svc.ProjectSummary(r.Context(), actor(r), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	var html strings.Builder
	if err := goldmark.Convert([]byte(summary), &html); err != nil {
		html.Reset()
		html.WriteString("<p>" + summary + "</p>")
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"markdown": summary,
		"html":     html.String(),
	})
}
