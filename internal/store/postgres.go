package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"siteplan/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verify postgres connection: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies every *.sql file in dir in lexical order, once each.
// Applied files are recorded in schema_migrations.
func (p *Postgres) MigrateDir(ctx context.Context, dir string) error {
	if _, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("migrate: list %q: %w", dir, err)
	}
	sort.Strings(files)
	for _, f := range files {
		version := filepath.Base(f)
		var exists bool
		if err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version=$1)`, version).Scan(&exists); err != nil {
			return fmt.Errorf("migrate: check %s: %w", version, err)
		}
		if exists {
			continue
		}
		body, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("migrate: read %s: %w", version, err)
		}
		tx, err := p.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migrate: begin %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate: apply %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate: record %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate: commit %s: %w", version, err)
		}
	}
	return nil
}

// Sites

const siteColumns = `id, client_name, COALESCE(address,''), COALESCE(city,''), assigned_consultant_id, status, frequency, last_visited, lat, lng, hold, priority, COALESCE(priority_note,''), COALESCE(site_group_id,'')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (model.Site, error) {
	var s model.Site
	var last sql.NullTime
	var lat, lng sql.NullFloat64
	var hold []byte
	if err := row.Scan(&s.ID, &s.ClientName, &s.Address, &s.City, &s.AssignedConsultantID, &s.Status, &s.Frequency, &last, &lat, &lng, &hold, &s.Priority, &s.PriorityNote, &s.SiteGroupID); err != nil {
		return model.Site{}, err
	}
	if last.Valid {
		t := last.Time
		s.LastVisited = &t
	}
	if lat.Valid && lng.Valid {
		s.Location = &model.GeoPoint{Lat: lat.Float64, Lng: lng.Float64}
	}
	if len(hold) > 0 {
		var h model.HoldInfo
		if err := json.Unmarshal(hold, &h); err != nil {
			return model.Site{}, fmt.Errorf("site %d: decode hold: %w", s.ID, err)
		}
		s.Hold = &h
	}
	return s, nil
}

func siteArgs(s model.Site) []any {
	var last, lat, lng, hold any
	if s.LastVisited != nil {
		last = *s.LastVisited
	}
	if s.Location != nil {
		lat, lng = s.Location.Lat, s.Location.Lng
	}
	if s.Hold != nil {
		hold = jsonText(s.Hold)
	}
	return []any{s.ClientName, nullIfEmpty(s.Address), nullIfEmpty(s.City), s.AssignedConsultantID, string(s.Status), string(s.Frequency), last, lat, lng, hold, s.Priority, nullIfEmpty(s.PriorityNote), nullIfEmpty(s.SiteGroupID)}
}

func (p *Postgres) ListSites(ctx context.Context) ([]model.Site, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+siteColumns+` FROM sites ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Site{}
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) GetSite(ctx context.Context, id int64) (model.Site, error) {
	s, err := scanSite(p.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Site{}, ErrNotFound
	}
	return s, err
}

func (p *Postgres) CreateSite(ctx context.Context, s model.Site) (model.Site, error) {
	args := siteArgs(s)
	q := `INSERT INTO sites (client_name, address, city, assigned_consultant_id, status, frequency, last_visited, lat, lng, hold, priority, priority_note, site_group_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id`
	if s.ID > 0 {
		q = `INSERT INTO sites (client_name, address, city, assigned_consultant_id, status, frequency, last_visited, lat, lng, hold, priority, priority_note, site_group_id, id)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING id`
		args = append(args, s.ID)
	}
	if err := p.db.QueryRowContext(ctx, q, args...).Scan(&s.ID); err != nil {
		return model.Site{}, err
	}
	return s, nil
}

func (p *Postgres) UpdateSite(ctx context.Context, s model.Site) (model.Site, error) {
	args := append(siteArgs(s), s.ID)
	res, err := p.db.ExecContext(ctx, `UPDATE sites SET client_name=$1, address=$2, city=$3, assigned_consultant_id=$4, status=$5, frequency=$6, last_visited=$7,
        lat=$8, lng=$9, hold=$10, priority=$11, priority_note=$12, site_group_id=$13, updated_at=now() WHERE id=$14`, args...)
	if err != nil {
		return model.Site{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Site{}, ErrNotFound
	}
	return s, nil
}

func (p *Postgres) AssignSites(ctx context.Context, assignments map[int64]int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for id, cid := range assignments {
		if _, err := tx.ExecContext(ctx, `UPDATE sites SET assigned_consultant_id=$1, updated_at=now() WHERE id=$2`, cid, id); err != nil {
			return fmt.Errorf("assign site %d: %w", id, err)
		}
	}
	return tx.Commit()
}

func (p *Postgres) TouchLastVisited(ctx context.Context, id int64, t time.Time) error {
	res, err := p.db.ExecContext(ctx, `UPDATE sites SET last_visited=$2, updated_at=now()
        WHERE id=$1 AND (last_visited IS NULL OR last_visited < $2)`, id, t)
	if err != nil {
		return fmt.Errorf("touch site %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var exists bool
	if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM sites WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// Reports

func (p *Postgres) ListReports(ctx context.Context, from, to time.Time) ([]model.Report, error) {
	q := `SELECT id, site_id, consultant_id, visit_date, status, COALESCE(notes,''), delivered_items, documents FROM reports WHERE true`
	args := []any{}
	if !from.IsZero() {
		args = append(args, from)
		q += fmt.Sprintf(` AND visit_date >= $%d`, len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		q += fmt.Sprintf(` AND visit_date < $%d`, len(args))
	}
	rows, err := p.db.QueryContext(ctx, q+` ORDER BY visit_date, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Report{}
	for rows.Next() {
		var r model.Report
		var items, docs []byte
		if err := rows.Scan(&r.ID, &r.SiteID, &r.ConsultantID, &r.VisitDate, &r.Status, &r.Notes, &items, &docs); err != nil {
			return nil, err
		}
		if err := decodeReportJSON(&r, items, docs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateReport(ctx context.Context, r model.Report) (model.Report, error) {
	var items, docs any
	if len(r.DeliveredItems) > 0 {
		items = jsonText(r.DeliveredItems)
	}
	if len(r.Documents) > 0 {
		docs = jsonText(r.Documents)
	}
	err := p.db.QueryRowContext(ctx, `INSERT INTO reports (site_id, consultant_id, visit_date, status, notes, delivered_items, documents) VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		r.SiteID, r.ConsultantID, r.VisitDate, string(r.Status), nullIfEmpty(r.Notes), items, docs).Scan(&r.ID)
	if err != nil {
		return model.Report{}, err
	}
	return r, nil
}

// Users

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var lat, lng sql.NullFloat64
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &lat, &lng); err != nil {
		return model.User{}, err
	}
	if lat.Valid && lng.Valid {
		u.HomeBase = &model.GeoPoint{Lat: lat.Float64, Lng: lng.Float64}
	}
	return u, nil
}

func (p *Postgres) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, COALESCE(email,''), role, home_lat, home_lng FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *Postgres) GetUser(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(p.db.QueryRowContext(ctx, `SELECT id, name, COALESCE(email,''), role, home_lat, home_lng FROM users WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

func (p *Postgres) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	var lat, lng any
	if u.HomeBase != nil {
		lat, lng = u.HomeBase.Lat, u.HomeBase.Lng
	}
	args := []any{u.Name, nullIfEmpty(u.Email), string(u.Role), lat, lng}
	q := `INSERT INTO users (name, email, role, home_lat, home_lng) VALUES ($1,$2,$3,$4,$5) RETURNING id`
	if u.ID > 0 {
		q = `INSERT INTO users (name, email, role, home_lat, home_lng, id) VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`
		args = append(args, u.ID)
	}
	if err := p.db.QueryRowContext(ctx, q, args...).Scan(&u.ID); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// Weekly plans

func (p *Postgres) GetPlan(ctx context.Context, consultantID int64) (model.WeeklyPlan, error) {
	var js []byte
	err := p.db.QueryRowContext(ctx, `SELECT plan FROM weekly_plans WHERE consultant_id=$1`, consultantID).Scan(&js)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WeeklyPlan{}, ErrNotFound
	}
	if err != nil {
		return model.WeeklyPlan{}, err
	}
	return decodePlan(js)
}

func (p *Postgres) ListPlans(ctx context.Context) (model.WeeklyPlanState, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT consultant_id, plan FROM weekly_plans`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := model.WeeklyPlanState{}
	for rows.Next() {
		var id int64
		var js []byte
		if err := rows.Scan(&id, &js); err != nil {
			return nil, err
		}
		pl, err := decodePlan(js)
		if err != nil {
			return nil, fmt.Errorf("plan %d: %w", id, err)
		}
		out[id] = pl
	}
	return out, rows.Err()
}

func (p *Postgres) InitPlan(ctx context.Context, consultantID int64, pl model.WeeklyPlan) (model.WeeklyPlan, bool, error) {
	res, err := p.db.ExecContext(ctx, `INSERT INTO weekly_plans (consultant_id, plan) VALUES ($1,$2) ON CONFLICT (consultant_id) DO NOTHING`, consultantID, jsonText(pl))
	if err != nil {
		return model.WeeklyPlan{}, false, err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return pl, true, nil
	}
	cur, err := p.GetPlan(ctx, consultantID)
	return cur, false, err
}

func (p *Postgres) SavePlan(ctx context.Context, consultantID int64, pl model.WeeklyPlan) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO weekly_plans (consultant_id, plan, updated_at) VALUES ($1,$2,now())
        ON CONFLICT (consultant_id) DO UPDATE SET plan=$2, updated_at=now()`, consultantID, jsonText(pl))
	return err
}

func (p *Postgres) SavePlans(ctx context.Context, plans model.WeeklyPlanState) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for id, pl := range plans {
		if _, err := tx.ExecContext(ctx, `INSERT INTO weekly_plans (consultant_id, plan, updated_at) VALUES ($1,$2,now())
            ON CONFLICT (consultant_id) DO UPDATE SET plan=$2, updated_at=now()`, id, jsonText(pl)); err != nil {
			return fmt.Errorf("save plan %d: %w", id, err)
		}
	}
	return tx.Commit()
}

func decodeReportJSON(r *model.Report, items, docs []byte) error {
	if len(items) > 0 {
		if err := json.Unmarshal(items, &r.DeliveredItems); err != nil {
			return fmt.Errorf("report %d: decode delivered_items: %w", r.ID, err)
		}
	}
	if len(docs) > 0 {
		if err := json.Unmarshal(docs, &r.Documents); err != nil {
			return fmt.Errorf("report %d: decode documents: %w", r.ID, err)
		}
	}
	return nil
}

func decodePlan(js []byte) (model.WeeklyPlan, error) {
	var pl model.WeeklyPlan
	if err := json.Unmarshal(js, &pl); err != nil {
		return model.WeeklyPlan{}, err
	}
	if pl.Todo == nil {
		pl.Todo = []int64{}
	}
	if pl.Planned == nil {
		pl.Planned = map[model.Day][]int64{}
	}
	for _, d := range model.Weekdays {
		if pl.Planned[d] == nil {
			pl.Planned[d] = []int64{}
		}
	}
	return pl, nil
}

// Route config

func (p *Postgres) GetRouteConfig(ctx context.Context) (model.RouteOptimizationConfig, bool, error) {
	var js []byte
	err := p.db.QueryRowContext(ctx, `SELECT config FROM route_config WHERE id=1`).Scan(&js)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RouteOptimizationConfig{}, false, nil
	}
	if err != nil {
		return model.RouteOptimizationConfig{}, false, err
	}
	var cfg model.RouteOptimizationConfig
	if err := json.Unmarshal(js, &cfg); err != nil {
		return model.RouteOptimizationConfig{}, false, err
	}
	return cfg, true, nil
}

func (p *Postgres) SaveRouteConfig(ctx context.Context, cfg model.RouteOptimizationConfig) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO route_config (id, config, updated_at) VALUES (1, $1, now())
        ON CONFLICT (id) DO UPDATE SET config=$1, updated_at=now()`, jsonText(cfg))
	return err
}

// Notifications

func (p *Postgres) CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO notifications (id, consultant_id, message, target, created_at) VALUES ($1,$2,$3,$4,$5)`,
		n.ID, n.ConsultantID, n.Message, nullIfEmpty(n.Target), n.CreatedAt)
	if err != nil {
		return model.Notification{}, err
	}
	return n, nil
}

func (p *Postgres) ListNotifications(ctx context.Context, consultantID int64, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if consultantID != 0 {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, consultant_id, message, COALESCE(target,''), created_at FROM notifications WHERE consultant_id=$1 ORDER BY created_at DESC LIMIT $2`, consultantID, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, consultant_id, message, COALESCE(target,''), created_at FROM notifications ORDER BY created_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.ConsultantID, &n.Message, &n.Target, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Subscriptions

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, url, events, secret) VALUES ($1,$2,$3,$4)`, id, req.URL, jsonText(req.Events), nullIfEmpty(req.Secret))
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	filter, _ := json.Marshal([]string{eventType})
	return p.querySubscriptions(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE events @> $1::jsonb ORDER BY created_at`, string(filter))
}

func (p *Postgres) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	return p.querySubscriptions(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions ORDER BY created_at`)
}

func (p *Postgres) querySubscriptions(ctx context.Context, q string, args ...any) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(ev, &s.Events); err != nil {
			return nil, fmt.Errorf("subscription %s: decode events: %w", s.ID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Webhook deliveries

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now(),$7)
        ON CONFLICT (event_type, url, dedup_key) DO NOTHING`, id, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), string(payload), computeDedupKey(payload))
	if err != nil {
		return "", err
	}
	return id, nil
}

const deliveryColumns = `id::text, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts, next_attempt_at, COALESCE(last_error,''), COALESCE(response_code,0), COALESCE(latency_ms,0), delivered_at`

func (p *Postgres) queryDeliveries(ctx context.Context, q string, args ...any) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		var delivered sql.NullTime
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts, &d.NextAttemptAt, &d.LastError, &d.ResponseCode, &d.LatencyMs, &delivered); err != nil {
			return nil, err
		}
		if delivered.Valid {
			t := delivered.Time
			d.DeliveredAt = &t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	return p.queryDeliveries(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries
        WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, status string, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if status != "" {
		return p.queryDeliveries(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE status=$1 ORDER BY created_at LIMIT $2`, status, limit)
	}
	return p.queryDeliveries(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries ORDER BY created_at LIMIT $1`, limit)
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(1 * time.Minute)
			nextAttemptAt = &t
		}
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$1, next_attempt_at=$2, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$3`,
			nullIfEmpty(lastError), *nextAttemptAt, id, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs); err != nil {
		return err
	}
	// dead-letter a copy for later inspection
	if _, err := tx.ExecContext(ctx, `INSERT INTO webhook_dlq (delivery_id, event_type, url, secret, payload, attempts, last_error)
        SELECT id, event_type, url, secret, payload, attempts, $2 FROM webhook_deliveries WHERE id=$1`, id, nullIfEmpty(lastError)); err != nil {
		return err
	}
	return tx.Commit()
}

// computeDedupKey uses the payload's "id" when present, else a short content hash.
func computeDedupKey(payload []byte) string {
	var m map[string]any
	if json.Unmarshal(payload, &m) == nil {
		if v, ok := m["id"].(string); ok && v != "" {
			return v
		}
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}

// Helpers
func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// jsonText encodes v for a JSONB parameter.
func jsonText(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}
