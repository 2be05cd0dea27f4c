package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"siteplan/internal/model"
	"siteplan/internal/planner"
)

// UsersHandler handles GET/POST /v1/users
func (s *Server) UsersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.Store.ListUsers(r.Context())
		if err != nil {
			writeError(w, r, "List users failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		if !s.getPrincipal(r).IsAdmin() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
			return
		}
		var u model.User
		if err := decodeJSON(w, r, &u); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateUser(u); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid user", err.Error(), r.URL.Path)
			return
		}
		out, err := s.Store.CreateUser(r.Context(), u)
		if err != nil {
			writeError(w, r, "Create user failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SitesHandler handles GET/POST /v1/sites
func (s *Server) SitesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.Store.ListSites(r.Context())
		if err != nil {
			writeError(w, r, "List sites failed", err)
			return
		}
		q := r.URL.Query()
		if city := q.Get("city"); city != "" {
			items = filterSites(items, func(site model.Site) bool { return strings.EqualFold(site.City, city) })
		}
		if status := q.Get("status"); status != "" {
			items = filterSites(items, func(site model.Site) bool { return string(site.Status) == status })
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		if !s.getPrincipal(r).CanManage() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "management or admin required", r.URL.Path)
			return
		}
		var site model.Site
		if err := decodeJSON(w, r, &site); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateSite(site); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid site", err.Error(), r.URL.Path)
			return
		}
		if site.Status == "" {
			site.Status = model.SiteActive
		}
		if site.AssignedConsultantID != 0 {
			if _, err := s.Store.GetUser(r.Context(), site.AssignedConsultantID); err != nil {
				writeError(w, r, "Unknown consultant", err)
				return
			}
		}
		out, err := s.Store.CreateSite(r.Context(), site)
		if err != nil {
			writeError(w, r, "Create site failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SiteByIDHandler handles GET/PATCH /v1/sites/{id}
func (s *Server) SiteByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(strings.TrimPrefix(r.URL.Path, "/v1/sites/"))
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		site, err := s.Store.GetSite(r.Context(), id)
		if err != nil {
			writeError(w, r, "Site not found", err)
			return
		}
		writeJSON(w, http.StatusOK, site)
	case http.MethodPatch:
		if !s.getPrincipal(r).CanManage() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "management or admin required", r.URL.Path)
			return
		}
		var patch planner.SitePatch
		if err := decodeJSON(w, r, &patch); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateSitePatch(patch); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid site", err.Error(), r.URL.Path)
			return
		}
		site, changed, err := s.Planner.UpdateSite(r.Context(), id, patch)
		if err != nil {
			writeError(w, r, "Update site failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"site": site, "reassigned": changed})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ReassignHandler handles POST /v1/sites/reassign
func (s *Server) ReassignHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.getPrincipal(r).CanManage() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "management or admin required", r.URL.Path)
		return
	}
	var req struct {
		SiteIDs      []int64 `json:"siteIds"`
		ConsultantID int64   `json:"consultantId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if len(req.SiteIDs) == 0 || req.ConsultantID < 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid reassignment", "siteIds required and consultantId must be >= 0", r.URL.Path)
		return
	}
	changed, err := s.Planner.ReassignSites(r.Context(), req.SiteIDs, req.ConsultantID)
	if err != nil {
		writeError(w, r, "Reassign failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reassigned": changed})
}

// ReportsHandler handles GET/POST /v1/reports
func (s *Server) ReportsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var from, to time.Time
		q := r.URL.Query()
		for key, dst := range map[string]*time.Time{"from": &from, "to": &to} {
			if v := q.Get(key); v != "" {
				t, err := time.Parse(time.RFC3339, v)
				if err != nil {
					writeProblem(w, http.StatusBadRequest, "Invalid "+key, err.Error(), r.URL.Path)
					return
				}
				*dst = t
			}
		}
		items, err := s.Store.ListReports(r.Context(), from, to)
		if err != nil {
			writeError(w, r, "List reports failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var rep model.Report
		if err := decodeJSON(w, r, &rep); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateReport(rep); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid report", err.Error(), r.URL.Path)
			return
		}
		p := s.getPrincipal(r)
		if p.Role == model.RoleConsultant {
			if rep.ConsultantID == 0 {
				rep.ConsultantID = p.UserID
			}
			if !p.CanActFor(rep.ConsultantID) {
				writeProblem(w, http.StatusForbidden, "Forbidden", "consultants file their own reports", r.URL.Path)
				return
			}
		}
		out, err := s.Planner.RecordReport(r.Context(), rep)
		if err != nil {
			writeError(w, r, "Create report failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// RouteConfigHandler handles GET/PUT /v1/route-config
func (s *Server) RouteConfigHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg, err := s.Planner.RouteConfig(r.Context())
		if err != nil {
			writeError(w, r, "Route config unavailable", err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	case http.MethodPut:
		if !s.getPrincipal(r).CanManage() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "management or admin required", r.URL.Path)
			return
		}
		var cfg model.RouteOptimizationConfig
		if err := decodeJSON(w, r, &cfg); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := s.Planner.SaveRouteConfig(r.Context(), cfg); err != nil {
			writeError(w, r, "Save route config failed", err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	type pinger interface{ Ping(ctx context.Context) error }
	if b, ok := s.Broker.(pinger); ok {
		if err := b.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", "broker: "+err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func filterSites(in []model.Site, keep func(model.Site) bool) []model.Site {
	out := in[:0]
	for _, s := range in {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
