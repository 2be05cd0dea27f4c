package api

import (
	"net/http"
	"time"

	"siteplan/internal/buildinfo"
)

// DebugJSON reports build metadata and the non-secret parts of the configuration.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	if !s.getPrincipal(r).IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	c := s.Config
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":                 c.Port,
			"ENV":                  c.Env,
			"LOG_LEVEL":            c.LogLevel,
			"TIMEZONE":             c.Timezone,
			"RATE_RPS":             c.RateRPS,
			"RATE_BURST":           c.RateBurst,
			"WEBHOOK_MAX_ATTEMPTS": c.WebhookMaxAttempts,
			"HAS_DATABASE_URL":     c.DatabaseURL != "",
			"HAS_REDIS_URL":        c.RedisURL != "",
			"SEED_FILE":            c.SeedFile,
		},
		"routeDefaults": c.RouteDefaults(),
	})
}
