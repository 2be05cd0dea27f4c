package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"siteplan/internal/notify"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// topicFor resolves ?consultantId= to a broker topic. Consultants always get
// their own topic; managers may omit it to follow everything.
func (s *Server) topicFor(r *http.Request) (string, int64, error) {
	p := s.getPrincipal(r)
	var id int64
	if v := r.URL.Query().Get("consultantId"); v != "" {
		n, err := parseID(v)
		if err != nil {
			return "", 0, err
		}
		id = n
	} else if !p.CanManage() {
		id = p.UserID
	}
	if id == 0 {
		return notify.TopicAll, 0, nil
	}
	if !p.CanActFor(id) {
		return "", 0, errForbidden
	}
	return notify.Topic(id), id, nil
}

var errForbidden = errors.New("not authorized for these notifications")

// NotificationsHandler handles GET /v1/notifications
func (s *Server) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	_, id, err := s.topicFor(r)
	if err != nil {
		s.topicProblem(w, r, err)
		return
	}
	items, err := s.Store.ListNotifications(r.Context(), id, queryLimit(r, 50))
	if err != nil {
		writeError(w, r, "List notifications failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// NotificationsStreamHandler streams live events as Server-Sent Events.
func (s *Server) NotificationsStreamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	topic, _, err := s.topicFor(r)
	if err != nil {
		s.topicProblem(w, r, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(topic)
	defer s.Broker.Unsubscribe(topic, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"topic\":%q,\"ts\":%q}\n\n", topic, time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		case <-ticker.C:
			heartbeat()
		}
	}
}

type wsMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// NotificationsWSHandler streams the same events over a WebSocket.
// The client may send {"type":"ping"} and gets {"type":"pong"} back.
func (s *Server) NotificationsWSHandler(w http.ResponseWriter, r *http.Request) {
	topic, _, err := s.topicFor(r)
	if err != nil {
		s.topicProblem(w, r, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	ch := s.Broker.Subscribe(topic)
	defer s.Broker.Unsubscribe(topic, ch)

	// gorilla connections allow one concurrent writer
	out := make(chan wsMessage, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(1 << 16)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(60 * time.Second)) })
		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if msg.Type == "ping" {
				select {
				case out <- wsMessage{Type: "pong"}:
				default:
				}
			}
		}
	}()

	_ = conn.WriteJSON(wsMessage{Type: "connection_ack", Data: map[string]any{"topic": topic}})
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for {
		var err error
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			err = conn.WriteJSON(wsMessage{Type: evt.Type, Data: evt.Data})
		case msg := <-out:
			err = conn.WriteJSON(msg)
		case <-ticker.C:
			err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) topicProblem(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errForbidden) {
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error(), r.URL.Path)
		return
	}
	writeProblem(w, http.StatusBadRequest, "Invalid consultantId", err.Error(), r.URL.Path)
}
