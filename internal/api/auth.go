// Package api implements the HTTP surface of the site-visit planner.
package api

import (
	"net/http"
	"strconv"

	"siteplan/internal/model"
)

// Principal is the caller as described by request headers. Identity is
// asserted by the fronting gateway; the service only checks roles.
type Principal struct {
	Role   model.Role
	UserID int64
}

// getPrincipal reads X-Role and X-User-Id. A request without X-Role is
// treated as admin for local development.
func (s *Server) getPrincipal(r *http.Request) Principal {
	role := model.Role(r.Header.Get("X-Role"))
	if role == "" {
		role = model.RoleAdmin
	}
	id, _ := strconv.ParseInt(r.Header.Get("X-User-Id"), 10, 64)
	return Principal{Role: role, UserID: id}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == model.RoleAdmin }

// CanManage covers management and admin.
func (p Principal) CanManage() bool { return p.IsAdmin() || p.Role == model.RoleManagement }

// CanActFor reports whether the principal may read or edit a consultant's plan.
func (p Principal) CanActFor(consultantID int64) bool {
	return p.CanManage() || (p.Role == model.RoleConsultant && p.UserID == consultantID)
}
