package api

import (
	"net/http"
	"strings"

	"siteplan/internal/model"
	"siteplan/internal/plan"
	"siteplan/internal/planner"
)

// PlansHandler handles the /v1/plans/{consultantId} tree:
//
//	GET  /v1/plans/{id}                 effective weekly view
//	PUT  /v1/plans/{id}                 replace the raw plan
//	POST /v1/plans/{id}/moves/propose   early-visit guard only
//	POST /v1/plans/{id}/moves           move a site (409 when confirmation is needed)
//	GET  /v1/plans/{id}/route           route suggestion for ?day=&mode=
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/plans/"), "/")
	parts := strings.Split(rest, "/")
	id, err := parseID(parts[0])
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), r.URL.Path)
		return
	}
	if !s.getPrincipal(r).CanActFor(id) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "not authorized for this plan", r.URL.Path)
		return
	}
	switch sub := strings.Join(parts[1:], "/"); sub {
	case "":
		s.planRoot(w, r, id)
	case "moves":
		s.planMove(w, r, id)
	case "moves/propose":
		s.planPropose(w, r, id)
	case "route":
		s.planRoute(w, r, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

func (s *Server) planRoot(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		d, err := s.Planner.Plan(r.Context(), id)
		if err != nil {
			writeError(w, r, "Plan unavailable", err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	case http.MethodPut:
		var p model.WeeklyPlan
		if err := decodeJSON(w, r, &p); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		out, err := s.Planner.ReplacePlan(r.Context(), id, p)
		if err != nil {
			writeError(w, r, "Replace plan failed", err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type moveBody struct {
	SiteID  int64  `json:"siteId"`
	From    string `json:"from"`
	To      string `json:"to"`
	Confirm bool   `json:"confirm"`
}

func (b moveBody) parse() (planner.MoveRequest, error) {
	from, err := plan.ParseBucket(b.From)
	if err != nil {
		return planner.MoveRequest{}, err
	}
	to, err := plan.ParseBucket(b.To)
	if err != nil {
		return planner.MoveRequest{}, err
	}
	return planner.MoveRequest{SiteID: b.SiteID, From: from, To: to, Confirmed: b.Confirm}, nil
}

func (s *Server) planMove(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body moveBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	req, err := body.parse()
	if err != nil {
		writeError(w, r, "Invalid move", err)
		return
	}
	res, err := s.Planner.MoveSite(r.Context(), id, req)
	if err != nil {
		writeError(w, r, "Move not applied", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) planPropose(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body moveBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	req, err := body.parse()
	if err != nil {
		writeError(w, r, "Invalid move", err)
		return
	}
	out, err := s.Planner.ProposeMove(r.Context(), id, req.SiteID, req.To)
	if err != nil {
		writeError(w, r, "Propose failed", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) planRoute(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	b, err := plan.ParseBucket(q.Get("day"))
	day, isDay := b.Day()
	if err != nil || !isDay {
		writeProblem(w, http.StatusBadRequest, "Invalid day", "day must be Monday..Friday", r.URL.Path)
		return
	}
	sug, err := s.Planner.SuggestRoute(r.Context(), id, day, model.RouteMode(strings.ToLower(q.Get("mode"))))
	if err != nil {
		writeError(w, r, "Route unavailable", err)
		return
	}
	if sug == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, sug)
}
