package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"siteplan/internal/model"
	"siteplan/internal/store"
	"siteplan/internal/webhooks"
)

// Notifier records a notification for a consultant and pushes the matching
// event to live subscribers and webhook subscriptions.
type Notifier struct {
	Store     store.Store
	Broker    EventBroker
	Publisher *webhooks.Publisher
	Log       *zap.Logger
}

func NewNotifier(s store.Store, b EventBroker, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{Store: s, Broker: b, Publisher: webhooks.NewPublisher(s, log), Log: log}
}

// Notify stores a notification for consultantID (skipped when message is
// empty) and publishes eventType with data. A zero consultantID only
// reaches TopicAll.
func (n *Notifier) Notify(ctx context.Context, consultantID int64, message, target, eventType string, data map[string]any) {
	if message != "" && consultantID != 0 {
		_, err := n.Store.CreateNotification(ctx, model.Notification{
			ConsultantID: consultantID,
			Message:      message,
			Target:       target,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			n.Log.Warn("store notification", zap.Int64("consultant", consultantID), zap.Error(err))
		}
	}
	n.Publish(consultantID, eventType, data)
	if n.Publisher != nil {
		n.Publisher.Emit(ctx, eventType, data)
	}
}

// Publish sends the event to live streams only.
func (n *Notifier) Publish(consultantID int64, eventType string, data map[string]any) {
	if n.Broker == nil {
		return
	}
	evt := Event{Type: eventType, Data: data}
	if consultantID != 0 {
		n.Broker.Publish(Topic(consultantID), evt)
	}
	n.Broker.Publish(TopicAll, evt)
}
