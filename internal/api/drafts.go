package api

import (
	"net/http"
	"strings"

	"siteplan/internal/model"
	"siteplan/internal/plan"
)

// DraftsHandler handles POST/GET/DELETE /v1/drafts
func (s *Server) DraftsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.getPrincipal(r).CanManage() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "management or admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req plan.DraftRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateDraftRequest(req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid draft request", err.Error(), r.URL.Path)
			return
		}
		d, err := s.Planner.GenerateDraft(r.Context(), req)
		if err != nil {
			writeError(w, r, "Generate draft failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	case http.MethodGet:
		d, err := s.Planner.GetDraft()
		if err != nil {
			writeError(w, r, "No draft", err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	case http.MethodDelete:
		if err := s.Planner.DiscardDraft(); err != nil {
			writeError(w, r, "No draft", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// DraftPlanHandler handles PUT /v1/drafts/plans/{consultantId}
func (s *Server) DraftPlanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.getPrincipal(r).CanManage() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "management or admin required", r.URL.Path)
		return
	}
	id, err := parseID(strings.TrimPrefix(r.URL.Path, "/v1/drafts/plans/"))
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), r.URL.Path)
		return
	}
	var p model.WeeklyPlan
	if err := decodeJSON(w, r, &p); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	d, err := s.Planner.UpdateDraftPlan(id, p)
	if err != nil {
		writeError(w, r, "Update draft failed", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DraftConfirmHandler handles POST /v1/drafts/confirm
func (s *Server) DraftConfirmHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.getPrincipal(r).CanManage() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "management or admin required", r.URL.Path)
		return
	}
	d, err := s.Planner.ConfirmDraft(r.Context())
	if err != nil {
		writeError(w, r, "Confirm draft failed", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
