package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"siteplan/internal/config"
	"siteplan/internal/model"
)

var monday = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Port:                   "0",
		Env:                    "test",
		LogLevel:               "debug",
		RateRPS:                1000,
		RateBurst:              1000,
		WebhookMaxAttempts:     3,
		Timezone:               "UTC",
		RouteTravelTimeRate:    25,
		RouteDistanceRate:      0.55,
		RoutePerSiteRate:       50,
		RouteAvgSpeedKmh:       60,
		RouteMaxDailyDriveTime: 8,
		RouteMaxDailyDistance:  400,
	}
}

func newTestServerWith(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s, err := NewServer(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	s.Planner.Now = func() time.Time { return monday }
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWith(t, testConfig())
}

// seed adds two consultants, a manager and three sites owned by consultant 1.
func seed(t *testing.T, s *Server) {
	t.Helper()
	ctx := context.Background()
	home := &model.GeoPoint{Lat: 40.0, Lng: -75.0}
	friday := time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)
	users := []model.User{
		{ID: 1, Name: "Ana", Role: model.RoleConsultant, HomeBase: home},
		{ID: 2, Name: "Ben", Role: model.RoleConsultant},
		{ID: 3, Name: "Mia", Role: model.RoleManagement},
	}
	for _, u := range users {
		if _, err := s.Store.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	sites := []model.Site{
		{ID: 10, ClientName: "Bakery", City: "Springfield", AssignedConsultantID: 1, Status: model.SiteActive, Frequency: model.FrequencyWeekly, Location: &model.GeoPoint{Lat: 40.1, Lng: -75.0}, LastVisited: &friday},
		{ID: 11, ClientName: "Cafe", City: "Springfield", AssignedConsultantID: 1, Status: model.SiteActive, Frequency: model.FrequencyWeekly, Location: &model.GeoPoint{Lat: 40.3, Lng: -75.0}},
		{ID: 12, ClientName: "Depot", City: "Shelbyville", AssignedConsultantID: 1, Status: model.SiteOnHold, Frequency: model.FrequencyMonthly},
	}
	for _, site := range sites {
		if _, err := s.Store.CreateSite(ctx, site); err != nil {
			t.Fatal(err)
		}
	}
}

type call struct {
	method string
	path   string
	body   any
	role   model.Role
	userID string
}

func do(t *testing.T, h http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		if s, ok := c.body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(c.body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.role != "" {
		req.Header.Set("X-Role", string(c.role))
	}
	if c.userID != "" {
		req.Header.Set("X-User-Id", c.userID)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	if rr := do(t, h, call{method: http.MethodGet, path: "/healthz"}); rr.Code != http.StatusOK {
		t.Fatalf("health: got %d", rr.Code)
	}
	if rr := do(t, h, call{method: http.MethodGet, path: "/readyz"}); rr.Code != http.StatusOK {
		t.Fatalf("ready: got %d", rr.Code)
	}
	rr := do(t, h, call{method: http.MethodGet, path: "/metrics"})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "http_requests_total") {
		t.Fatalf("metrics: %d", rr.Code)
	}
}

func TestUsersAndSites(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rr := do(t, h, call{method: http.MethodPost, path: "/v1/users", body: model.User{Name: "Ana", Role: model.RoleConsultant}})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create user: %d %s", rr.Code, rr.Body.String())
	}
	ana := decode[model.User](t, rr)
	if rr := do(t, h, call{method: http.MethodPost, path: "/v1/users", body: model.User{Name: "X", Role: "pilot"}}); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad role: %d", rr.Code)
	}
	if rr := do(t, h, call{method: http.MethodPost, path: "/v1/users", body: model.User{Name: "X", Role: model.RoleConsultant}, role: model.RoleManagement}); rr.Code != http.StatusForbidden {
		t.Fatalf("manager creating user: %d", rr.Code)
	}

	site := model.Site{ClientName: "Bakery", City: "Springfield", AssignedConsultantID: ana.ID, Frequency: model.FrequencyWeekly}
	if rr := do(t, h, call{method: http.MethodPost, path: "/v1/sites", body: site, role: model.RoleConsultant, userID: "1"}); rr.Code != http.StatusForbidden {
		t.Fatalf("consultant creating site: %d", rr.Code)
	}
	rr = do(t, h, call{method: http.MethodPost, path: "/v1/sites", body: site, role: model.RoleManagement})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create site: %d %s", rr.Code, rr.Body.String())
	}
	created := decode[model.Site](t, rr)
	if created.Status != model.SiteActive {
		t.Fatalf("status defaulted to %q", created.Status)
	}
	if rr := do(t, h, call{method: http.MethodPost, path: "/v1/sites", body: model.Site{ClientName: "Ghost", AssignedConsultantID: 99}}); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown consultant: %d", rr.Code)
	}
	if rr := do(t, h, call{method: http.MethodPost, path: "/v1/sites", body: `{"clientName":"A","bogus":1}`}); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: %d", rr.Code)
	}

	rr = do(t, h, call{method: http.MethodGet, path: "/v1/sites?city=springfield"})
	list := decode[struct{ Items []model.Site }](t, rr)
	if len(list.Items) != 1 {
		t.Fatalf("filtered sites = %+v", list.Items)
	}
	if rr := do(t, h, call{method: http.MethodGet, path: "/v1/sites/404"}); rr.Code != http.StatusNotFound {
		t.Fatalf("missing site: %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type %q", ct)
	}
}

func TestPatchSiteAndReassign(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)
	h := s.Handler()

	rr := do(t, h, call{method: http.MethodPatch, path: "/v1/sites/11", body: map[string]any{"assignedConsultantId": 2}})
	if rr.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", rr.Code, rr.Body.String())
	}
	out := decode[struct {
		Site       model.Site      `json:"site"`
		Reassigned map[int64]int64 `json:"reassigned"`
	}](t, rr)
	if out.Site.AssignedConsultantID != 2 || out.Reassigned[11] != 2 {
		t.Fatalf("patch result = %+v", out)
	}

	rr = do(t, h, call{method: http.MethodPost, path: "/v1/sites/reassign", body: map[string]any{"siteIds": []int64{10}, "consultantId": 0}})
	if rr.Code != http.StatusOK {
		t.Fatalf("reassign: %d %s", rr.Code, rr.Body.String())
	}
	site, _ := s.Store.GetSite(context.Background(), 10)
	if site.AssignedConsultantID != 0 {
		t.Fatalf("site 10 owner = %d, want pool", site.AssignedConsultantID)
	}
	if rr := do(t, h, call{method: http.MethodPost, path: "/v1/sites/reassign", body: map[string]any{"siteIds": []int64{}}}); rr.Code != http.StatusBadRequest {
		t.Fatalf("empty reassign: %d", rr.Code)
	}
}

func TestPlanLifecycle(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)
	h := s.Handler()

	if rr := do(t, h, call{method: http.MethodGet, path: "/v1/plans/1", role: model.RoleConsultant, userID: "2"}); rr.Code != http.StatusForbidden {
		t.Fatalf("other consultant's plan: %d", rr.Code)
	}
	rr := do(t, h, call{method: http.MethodGet, path: "/v1/plans/1", role: model.RoleConsultant, userID: "1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("get plan: %d %s", rr.Code, rr.Body.String())
	}
	view := decode[struct {
		Todo   []model.Site `json:"todo"`
		OnHold []model.Site `json:"onHold"`
	}](t, rr)
	if len(view.Todo) != 2 {
		t.Fatalf("todo = %+v", view.Todo)
	}

	// Bakery was visited last Friday, so Monday needs confirmation.
	move := map[string]any{"siteId": 10, "from": "todo", "to": "monday"}
	rr = do(t, h, call{method: http.MethodPost, path: "/v1/plans/1/moves/propose", body: move})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "requires_confirmation") {
		t.Fatalf("propose: %d %s", rr.Code, rr.Body.String())
	}
	rr = do(t, h, call{method: http.MethodPost, path: "/v1/plans/1/moves", body: move})
	if rr.Code != http.StatusConflict {
		t.Fatalf("unconfirmed move: %d %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("problem content type %q", ct)
	}
	move["confirm"] = true
	rr = do(t, h, call{method: http.MethodPost, path: "/v1/plans/1/moves", body: move})
	if rr.Code != http.StatusOK {
		t.Fatalf("confirmed move: %d %s", rr.Code, rr.Body.String())
	}
	if res := decode[struct{ Moved bool }](t, rr); !res.Moved {
		t.Fatal("move not applied")
	}
	if rr := do(t, h, call{method: http.MethodPost, path: "/v1/plans/1/moves", body: map[string]any{"siteId": 10, "from": "todo", "to": "sunday"}}); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad bucket: %d", rr.Code)
	}

	dup := map[string]any{"todo": []int64{10}, "planned": map[string][]int64{"Monday": {10}}}
	if rr := do(t, h, call{method: http.MethodPut, path: "/v1/plans/1", body: dup}); rr.Code != http.StatusBadRequest {
		t.Fatalf("duplicate site: %d", rr.Code)
	}
	good := map[string]any{"todo": []int64{}, "planned": map[string][]int64{"Monday": {11, 10}}}
	if rr := do(t, h, call{method: http.MethodPut, path: "/v1/plans/1", body: good}); rr.Code != http.StatusOK {
		t.Fatalf("replace plan: %d %s", rr.Code, rr.Body.String())
	}
}

func TestRouteSuggestion(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)
	h := s.Handler()
	plan := map[string]any{"todo": []int64{}, "planned": map[string][]int64{"Monday": {11, 10}}}
	if rr := do(t, h, call{method: http.MethodPut, path: "/v1/plans/1", body: plan}); rr.Code != http.StatusOK {
		t.Fatalf("replace plan: %d", rr.Code)
	}

	rr := do(t, h, call{method: http.MethodGet, path: "/v1/plans/1/route?day=monday&mode=fastest"})
	if rr.Code != http.StatusOK {
		t.Fatalf("route: %d %s", rr.Code, rr.Body.String())
	}
	sug := decode[model.RouteSuggestion](t, rr)
	if len(sug.OrderedSites) != 2 || sug.OrderedSites[0].ID != 10 {
		t.Fatalf("route order = %+v", sug.OrderedSites)
	}
	if sug.TotalDistanceKm <= 0 {
		t.Fatalf("distance = %v", sug.TotalDistanceKm)
	}

	if rr := do(t, h, call{method: http.MethodGet, path: "/v1/plans/1/route?day=tuesday"}); rr.Code != http.StatusNoContent {
		t.Fatalf("empty day: %d", rr.Code)
	}
	if rr := do(t, h, call{method: http.MethodGet, path: "/v1/plans/1/route?day=monday&mode=scenic"}); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown mode: %d", rr.Code)
	}
	if rr := do(t, h, call{method: http.MethodGet, path: "/v1/plans/1/route?day=todo"}); rr.Code != http.StatusBadRequest {
		t.Fatalf("todo is not a day: %d", rr.Code)
	}
}

func TestRouteConfig(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	rr := do(t, h, call{method: http.MethodGet, path: "/v1/route-config"})
	cfg := decode[model.RouteOptimizationConfig](t, rr)
	if cfg.AvgSpeedKmh != 60 {
		t.Fatalf("default config = %+v", cfg)
	}
	cfg.PerSiteRate = 70
	if rr := do(t, h, call{method: http.MethodPut, path: "/v1/route-config", body: cfg, role: model.RoleConsultant, userID: "1"}); rr.Code != http.StatusForbidden {
		t.Fatalf("consultant saving config: %d", rr.Code)
	}
	if rr := do(t, h, call{method: http.MethodPut, path: "/v1/route-config", body: cfg, role: model.RoleManagement}); rr.Code != http.StatusOK {
		t.Fatalf("save config: %d %s", rr.Code, rr.Body.String())
	}
	cfg.AvgSpeedKmh = 0
	if rr := do(t, h, call{method: http.MethodPut, path: "/v1/route-config", body: cfg}); rr.Code != http.StatusBadRequest {
		t.Fatalf("zero speed: %d", rr.Code)
	}
	rr = do(t, h, call{method: http.MethodGet, path: "/v1/route-config"})
	if got := decode[model.RouteOptimizationConfig](t, rr); got.PerSiteRate != 70 {
		t.Fatalf("stored config = %+v", got)
	}
}

func TestDraftFlow(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)
	h := s.Handler()

	req := map[string]any{"consultantIds": []int64{1, 2}, "maxSitesPerConsultant": 1}
	if rr := do(t, h, call{method: http.MethodPost, path: "/v1/drafts", body: req, role: model.RoleConsultant, userID: "1"}); rr.Code != http.StatusForbidden {
		t.Fatalf("consultant drafting: %d", rr.Code)
	}
	if rr := do(t, h, call{method: http.MethodGet, path: "/v1/drafts"}); rr.Code != http.StatusNotFound {
		t.Fatalf("no draft yet: %d", rr.Code)
	}
	rr := do(t, h, call{method: http.MethodPost, path: "/v1/drafts", body: req, role: model.RoleManagement})
	if rr.Code != http.StatusCreated {
		t.Fatalf("generate: %d %s", rr.Code, rr.Body.String())
	}
	draft := decode[struct {
		ID     string                     `json:"id"`
		Plans  map[int64]model.WeeklyPlan `json:"plans"`
		Placed int                        `json:"placed"`
	}](t, rr)
	if draft.ID == "" || len(draft.Plans) != 2 {
		t.Fatalf("draft = %+v", draft)
	}

	edit := map[string]any{"todo": []int64{}, "planned": map[string][]int64{"Tuesday": {11}}}
	if rr := do(t, h, call{method: http.MethodPut, path: "/v1/drafts/plans/9", body: edit}); rr.Code != http.StatusNotFound {
		t.Fatalf("edit outside draft: %d", rr.Code)
	}
	rr = do(t, h, call{method: http.MethodPost, path: "/v1/drafts/confirm"})
	if rr.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", rr.Code, rr.Body.String())
	}
	if rr := do(t, h, call{method: http.MethodPost, path: "/v1/drafts/confirm"}); rr.Code != http.StatusNotFound {
		t.Fatalf("second confirm: %d", rr.Code)
	}
	if rr := do(t, h, call{method: http.MethodDelete, path: "/v1/drafts"}); rr.Code != http.StatusNotFound {
		t.Fatalf("discard without draft: %d", rr.Code)
	}

	rr = do(t, h, call{method: http.MethodGet, path: "/v1/notifications?consultantId=2"})
	notes := decode[struct{ Items []model.Notification }](t, rr)
	if len(notes.Items) == 0 {
		t.Fatal("consultant 2 was not notified")
	}
}

func TestReportsCompleteSite(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)
	h := s.Handler()

	// the plan exists before the visit is reported
	if rr := do(t, h, call{method: http.MethodGet, path: "/v1/plans/1"}); rr.Code != http.StatusOK {
		t.Fatalf("get plan: %d", rr.Code)
	}
	rep := map[string]any{"siteId": 11, "status": model.ReportVisitComplete}
	if rr := do(t, h, call{method: http.MethodPost, path: "/v1/reports", body: map[string]any{"siteId": 11, "consultantId": 1, "status": model.ReportVisitComplete}, role: model.RoleConsultant, userID: "2"}); rr.Code != http.StatusForbidden {
		t.Fatalf("report for someone else: %d", rr.Code)
	}
	rr := do(t, h, call{method: http.MethodPost, path: "/v1/reports", body: rep, role: model.RoleConsultant, userID: "1"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("report: %d %s", rr.Code, rr.Body.String())
	}
	rr = do(t, h, call{method: http.MethodGet, path: "/v1/plans/1"})
	view := decode[struct {
		Completed []struct {
			ID int64 `json:"id"`
		} `json:"completed"`
	}](t, rr)
	if len(view.Completed) != 1 || view.Completed[0].ID != 11 {
		t.Fatalf("completed = %+v", view.Completed)
	}
	if rr := do(t, h, call{method: http.MethodGet, path: "/v1/reports?from=yesterday"}); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad from: %d", rr.Code)
	}
}

func TestSubscriptionsAdminOnly(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	sub := map[string]any{"url": "https://example.com/hook", "events": []string{"plan.updated"}, "secret": "s3cret"}
	if rr := do(t, h, call{method: http.MethodPost, path: "/v1/subscriptions", body: sub, role: model.RoleManagement}); rr.Code != http.StatusForbidden {
		t.Fatalf("manager subscribing: %d", rr.Code)
	}
	rr := do(t, h, call{method: http.MethodPost, path: "/v1/subscriptions", body: sub})
	if rr.Code != http.StatusCreated {
		t.Fatalf("subscribe: %d %s", rr.Code, rr.Body.String())
	}
	created := decode[model.Subscription](t, rr)
	rr = do(t, h, call{method: http.MethodGet, path: "/v1/subscriptions"})
	if strings.Contains(rr.Body.String(), "s3cret") {
		t.Fatal("secret leaked in list")
	}
	if rr := do(t, h, call{method: http.MethodDelete, path: "/v1/subscriptions/" + created.ID}); rr.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rr.Code)
	}
	if rr := do(t, h, call{method: http.MethodDelete, path: "/v1/subscriptions/" + created.ID}); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", rr.Code)
	}
	if rr := do(t, h, call{method: http.MethodGet, path: "/v1/admin/webhook-deliveries"}); rr.Code != http.StatusOK {
		t.Fatalf("deliveries: %d", rr.Code)
	}
}

func TestNotificationsStreamSSE(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/notifications/stream?consultantId=1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}
	lines := bufio.NewScanner(resp.Body)
	if !lines.Scan() || lines.Text() != "event: heartbeat" {
		t.Fatalf("first line %q", lines.Text())
	}

	body := strings.NewReader(`{"todo":[],"planned":{"Monday":[11]}}`)
	put, _ := http.NewRequest(http.MethodPut, ts.URL+"/v1/plans/1", body)
	putResp, err := http.DefaultClient.Do(put)
	if err != nil {
		t.Fatal(err)
	}
	putResp.Body.Close()

	for lines.Scan() {
		if lines.Text() == "event: plan.updated" {
			return
		}
	}
	t.Fatalf("no plan.updated event: %v", lines.Err())
}

func TestNotificationsWebSocket(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/notifications/ws?consultantId=1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "connection_ack" {
		t.Fatalf("ack = %+v, %v", msg, err)
	}
	if err := conn.WriteJSON(wsMessage{Type: "ping"}); err != nil {
		t.Fatal(err)
	}
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "pong" {
		t.Fatalf("pong = %+v, %v", msg, err)
	}

	body := strings.NewReader(`{"siteId":11,"from":"todo","to":"wednesday"}`)
	resp, err := http.Post(ts.URL+"/v1/plans/1/moves", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("move: %d", resp.StatusCode)
	}
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "plan.move" {
		t.Fatalf("event = %+v, %v", msg, err)
	}

	other := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/notifications/ws?consultantId=1"
	_, resp, err = websocket.DefaultDialer.Dial(other, http.Header{"X-Role": {"consultant"}, "X-User-Id": {"2"}})
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign topic dial: %v", err)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 2
	s := newTestServerWith(t, cfg)
	h := s.Handler()
	var last *httptest.ResponseRecorder
	for range 3 {
		last = do(t, h, call{method: http.MethodGet, path: "/v1/users"})
	}
	if last.Code != http.StatusTooManyRequests || last.Header().Get("Retry-After") == "" {
		t.Fatalf("third request: %d", last.Code)
	}
	if rr := do(t, h, call{method: http.MethodGet, path: "/healthz"}); rr.Code != http.StatusOK {
		t.Fatalf("health is limited: %d", rr.Code)
	}
}

func TestOpenAPIDocument(t *testing.T) {
	old := openAPIPath
	openAPIPath = "../../openapi/openapi.yaml"
	defer func() { openAPIPath = old }()

	s := newTestServer(t)
	rr := do(t, s.Handler(), call{method: http.MethodGet, path: "/openapi.yaml"})
	if rr.Code != http.StatusOK {
		t.Fatalf("openapi: %d", rr.Code)
	}
	var doc struct {
		OpenAPI string         `yaml:"openapi"`
		Paths   map[string]any `yaml:"paths"`
	}
	if err := yaml.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"/v1/plans/{consultantId}", "/v1/plans/{consultantId}/route", "/v1/drafts/confirm"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Fatalf("openapi missing %s", p)
		}
	}
	if _, err := os.Stat(openAPIPath); err != nil {
		t.Fatal(err)
	}
}
