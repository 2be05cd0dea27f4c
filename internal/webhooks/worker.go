package webhooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"siteplan/internal/metrics"
	"siteplan/internal/store"
)

type Worker struct {
	Store       store.Store
	HTTP        *http.Client
	Log         *zap.Logger
	MaxAttempts int
	Interval    time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker // per target host
	stop     chan struct{}
	done     chan struct{}
}

func NewWorker(s store.Store, maxAttempts int, log *zap.Logger) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		Store:       s,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		Log:         log,
		MaxAttempts: maxAttempts,
		Interval:    time.Second,
	}
}

func (w *Worker) Start() {
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				w.processOnce()
			}
		}
	}()
}

// Stop ends the polling loop and waits for the in-flight batch.
func (w *Worker) Stop() {
	if w.stop == nil {
		return
	}
	close(w.stop)
	<-w.done
	w.stop = nil
}

var errStatus = errors.New("non-2xx response")

func (w *Worker) processOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	items, err := w.Store.FetchDueWebhookDeliveries(ctx, 50)
	if err != nil {
		w.Log.Warn("fetch due webhook deliveries", zap.Error(err))
		return
	}
	for _, it := range items {
		w.deliver(ctx, it)
	}
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
	next := time.Now().Add(nextBackoff(it.Attempts))
	start := time.Now()
	code := 0
	_, err := w.breaker(it.URL).Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderEventType, it.EventType)
		if it.Secret != "" {
			req.Header.Set(HeaderSignature, SignHMAC(it.Secret, it.Payload))
		}
		resp, err := w.HTTP.Do(req)
		if err != nil {
			return nil, err
		}
		_ = resp.Body.Close()
		code = resp.StatusCode
		if code < 200 || code >= 300 {
			return nil, fmt.Errorf("%w: %d", errStatus, code)
		}
		return nil, nil
	})
	latency := int(time.Since(start).Milliseconds())
	success := err == nil
	lastErr := ""
	if err != nil {
		lastErr = err.Error()
	}

	status := store.DeliveryDelivered
	switch {
	case success:
		err = w.Store.MarkWebhookDelivery(ctx, it.ID, true, nil, "", code, latency)
	case it.Attempts+1 >= w.MaxAttempts:
		status = store.DeliveryFailed
		err = w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency)
		w.Log.Warn("webhook dead-lettered", zap.String("id", it.ID), zap.String("event", it.EventType), zap.String("error", lastErr))
	default:
		status = store.DeliveryRetry
		err = w.Store.MarkWebhookDelivery(ctx, it.ID, false, &next, lastErr, code, latency)
	}
	if err != nil {
		w.Log.Warn("record webhook delivery", zap.String("id", it.ID), zap.Error(err))
	}
	metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency))
}

// breaker returns the circuit breaker for the delivery's host, so one dead
// endpoint does not slow down deliveries to the others.
func (w *Worker) breaker(target string) *gobreaker.CircuitBreaker {
	host := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		host = u.Host
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.breakers == nil {
		w.breakers = map[string]*gobreaker.CircuitBreaker{}
	}
	if cb, ok := w.breakers[host]; ok {
		return cb
	}
	log := w.Log
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook:" + host,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("webhook circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	w.breakers[host] = cb
	return cb
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
