package webhooks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"siteplan/internal/store"
)

// Event types emitted by the planner.
const (
	EventPlanUpdated     = "plan.updated"
	EventPlanMove        = "plan.move"
	EventDraftConfirmed  = "draft.confirmed"
	EventSitesReassigned = "sites.reassigned"
)

// Events lists every event type a subscription may ask for.
var Events = []string{EventPlanUpdated, EventPlanMove, EventDraftConfirmed, EventSitesReassigned}

type Publisher struct {
	Store store.Store
	Log   *zap.Logger
}

func NewPublisher(s store.Store, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{Store: s, Log: log}
}

// Emit enqueues a delivery of the event for every matching subscription.
// Failures are logged and otherwise ignored; the caller's mutation already happened.
func (p *Publisher) Emit(ctx context.Context, eventType string, data any) {
	subs, err := p.Store.GetSubscriptionsForEvent(ctx, eventType)
	if err != nil {
		p.Log.Warn("webhook subscriptions lookup failed", zap.String("event", eventType), zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}
	payload := map[string]any{
		"id":   "evt_" + uuid.New().String(),
		"type": eventType,
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		p.Log.Warn("webhook payload encode failed", zap.String("event", eventType), zap.Error(err))
		return
	}
	for _, s := range subs {
		if _, err := p.Store.EnqueueWebhook(ctx, s.ID, eventType, s.URL, s.Secret, body); err != nil {
			p.Log.Warn("webhook enqueue failed", zap.String("event", eventType), zap.String("subscription", s.ID), zap.Error(err))
		}
	}
}
