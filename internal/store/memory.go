package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"siteplan/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu       sync.Mutex
	sites    map[int64]model.Site
	reports  []model.Report
	users    map[int64]model.User
	plans    model.WeeklyPlanState
	routeCfg *model.RouteOptimizationConfig
	notes    []model.Notification
	subs     []model.Subscription
	// webhook queue state, in enqueue order
	deliveries []*WebhookDelivery
	seq        map[string]int64 // last id handed out per entity kind
}

func NewMemory() *Memory {
	return &Memory{
		sites: map[int64]model.Site{},
		users: map[int64]model.User{},
		plans: model.WeeklyPlanState{},
		seq:   map[string]int64{},
	}
}

// id keeps an explicit id and otherwise hands out the next one for kind.
func (m *Memory) id(kind string, want int64) int64 {
	if want > 0 {
		if want > m.seq[kind] {
			m.seq[kind] = want
		}
		return want
	}
	m.seq[kind]++
	return m.seq[kind]
}

// Sites

func (m *Memory) ListSites(ctx context.Context) ([]model.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Site, 0, len(m.sites))
	for _, s := range m.sites {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetSite(ctx context.Context, id int64) (model.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sites[id]
	if !ok {
		return model.Site{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) CreateSite(ctx context.Context, s model.Site) (model.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id("site", s.ID)
	m.sites[s.ID] = s
	return s, nil
}

func (m *Memory) UpdateSite(ctx context.Context, s model.Site) (model.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[s.ID]; !ok {
		return model.Site{}, ErrNotFound
	}
	m.sites[s.ID] = s
	return s, nil
}

func (m *Memory) AssignSites(ctx context.Context, assignments map[int64]int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cid := range assignments {
		s, ok := m.sites[id]
		if !ok {
			continue
		}
		s.AssignedConsultantID = cid
		m.sites[id] = s
	}
	return nil
}

func (m *Memory) TouchLastVisited(ctx context.Context, id int64, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sites[id]
	if !ok {
		return ErrNotFound
	}
	if s.LastVisited == nil || s.LastVisited.Before(t) {
		v := t
		s.LastVisited = &v
		m.sites[id] = s
	}
	return nil
}

// Reports

func (m *Memory) ListReports(ctx context.Context, from, to time.Time) ([]model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Report{}
	for _, r := range m.reports {
		if !from.IsZero() && r.VisitDate.Before(from) {
			continue
		}
		if !to.IsZero() && !r.VisitDate.Before(to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) CreateReport(ctx context.Context, r model.Report) (model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id("report", r.ID)
	m.reports = append(m.reports, r)
	return r, nil
}

// Users

func (m *Memory) ListUsers(ctx context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetUser(ctx context.Context, id int64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.id("user", u.ID)
	m.users[u.ID] = u
	return u, nil
}

// Weekly plans

func (m *Memory) GetPlan(ctx context.Context, consultantID int64) (model.WeeklyPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[consultantID]
	if !ok {
		return model.WeeklyPlan{}, ErrNotFound
	}
	return clonePlan(p), nil
}

func (m *Memory) ListPlans(ctx context.Context) (model.WeeklyPlanState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(model.WeeklyPlanState, len(m.plans))
	for id, p := range m.plans {
		out[id] = clonePlan(p)
	}
	return out, nil
}

func (m *Memory) InitPlan(ctx context.Context, consultantID int64, p model.WeeklyPlan) (model.WeeklyPlan, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.plans[consultantID]; ok {
		return clonePlan(cur), false, nil
	}
	m.plans[consultantID] = clonePlan(p)
	return clonePlan(p), true, nil
}

func (m *Memory) SavePlan(ctx context.Context, consultantID int64, p model.WeeklyPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[consultantID] = clonePlan(p)
	return nil
}

func (m *Memory) SavePlans(ctx context.Context, plans model.WeeklyPlanState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range plans {
		m.plans[id] = clonePlan(p)
	}
	return nil
}

// Route config

func (m *Memory) GetRouteConfig(ctx context.Context) (model.RouteOptimizationConfig, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.routeCfg == nil {
		return model.RouteOptimizationConfig{}, false, nil
	}
	return *m.routeCfg, true, nil
}

func (m *Memory) SaveRouteConfig(ctx context.Context, cfg model.RouteOptimizationConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routeCfg = &cfg
	return nil
}

// Notifications

func (m *Memory) CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	m.notes = append(m.notes, n)
	return n, nil
}

// ListNotifications returns the newest notifications first. consultantID 0 lists all.
func (m *Memory) ListNotifications(ctx context.Context, consultantID int64, limit int) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := []model.Notification{}
	for i := len(m.notes) - 1; i >= 0 && len(out) < limit; i-- {
		n := m.notes[i]
		if consultantID == 0 || n.ConsultantID == consultantID {
			out = append(out, n)
		}
	}
	return out, nil
}

// Subscriptions

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), URL: req.URL, Events: append([]string(nil), req.Events...), Secret: req.Secret}
	m.subs = append(m.subs, s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs {
		if slices.Contains(s.Events, eventType) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Subscription{}, m.subs...), nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subs {
		if s.ID == id {
			m.subs = slices.Delete(m.subs, i, i+1)
			return nil
		}
	}
	return ErrNotFound
}

// Webhook deliveries

func (m *Memory) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries = append(m.deliveries, &WebhookDelivery{
		ID: id, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret,
		Payload: payload, Status: DeliveryPending, NextAttemptAt: time.Now(),
	})
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, d := range m.deliveries {
		if (d.Status == DeliveryPending || d.Status == DeliveryRetry) && !d.NextAttemptAt.After(now) {
			out = append(out, *d)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.delivery(id)
	if d == nil {
		return nil
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = DeliveryDelivered
		now := time.Now()
		d.DeliveredAt = &now
		return nil
	}
	d.Status = DeliveryRetry
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.NextAttemptAt = time.Now().Add(1 * time.Minute)
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d := m.delivery(id); d != nil {
		d.Attempts++
		d.Status = DeliveryFailed
		d.LastError = lastError
		d.ResponseCode = responseCode
		d.LatencyMs = latencyMs
	}
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, status string, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := []WebhookDelivery{}
	for _, d := range m.deliveries {
		if status == "" || d.Status == status {
			out = append(out, *d)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) delivery(id string) *WebhookDelivery {
	for _, d := range m.deliveries {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func clonePlan(p model.WeeklyPlan) model.WeeklyPlan {
	out := model.WeeklyPlan{Todo: append([]int64{}, p.Todo...), Planned: make(map[model.Day][]int64, len(model.Weekdays))}
	for _, d := range model.Weekdays {
		out.Planned[d] = append([]int64{}, p.Planned[d]...)
	}
	return out
}
