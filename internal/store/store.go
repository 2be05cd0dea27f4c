package store

import (
	"context"
	"errors"
	"time"

	"siteplan/internal/model"
)

// Store is the persistence interface used by the planner and the API server.
type Store interface {
	// Sites
	ListSites(ctx context.Context) ([]model.Site, error)
	GetSite(ctx context.Context, id int64) (model.Site, error)
	CreateSite(ctx context.Context, s model.Site) (model.Site, error)
	UpdateSite(ctx context.Context, s model.Site) (model.Site, error)
	// AssignSites sets assignedConsultantId for every site in the map (site id -> consultant id)
	// as one batch. Unknown site ids are ignored.
	AssignSites(ctx context.Context, assignments map[int64]int64) error
	// TouchLastVisited moves lastVisited forward to t; an equal or later
	// stored value is kept. Only that column is written.
	TouchLastVisited(ctx context.Context, id int64, t time.Time) error

	// Reports
	ListReports(ctx context.Context, from, to time.Time) ([]model.Report, error)
	CreateReport(ctx context.Context, r model.Report) (model.Report, error)

	// Users
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, id int64) (model.User, error)
	CreateUser(ctx context.Context, u model.User) (model.User, error)

	// Weekly plans
	GetPlan(ctx context.Context, consultantID int64) (model.WeeklyPlan, error)
	ListPlans(ctx context.Context) (model.WeeklyPlanState, error)
	// InitPlan stores p only when the consultant has no plan yet and returns the
	// plan that is in effect afterwards; created reports which one it is.
	InitPlan(ctx context.Context, consultantID int64, p model.WeeklyPlan) (current model.WeeklyPlan, created bool, err error)
	SavePlan(ctx context.Context, consultantID int64, p model.WeeklyPlan) error
	SavePlans(ctx context.Context, plans model.WeeklyPlanState) error

	// Route optimisation config; ok is false when none has been stored.
	GetRouteConfig(ctx context.Context) (cfg model.RouteOptimizationConfig, ok bool, err error)
	SaveRouteConfig(ctx context.Context, cfg model.RouteOptimizationConfig) error

	// Notifications
	CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error)
	ListNotifications(ctx context.Context, consultantID int64, limit int) ([]model.Notification, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, status string, limit int) ([]WebhookDelivery, error)

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")
