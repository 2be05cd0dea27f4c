// Package main runs a demo WebSocket client for plan notifications.
//
// It connects to /v1/notifications/ws for one consultant, moves the first
// site of their to-do list to Wednesday and prints the events that arrive.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func main() {
	consultant := flag.Int64("consultant", 1, "consultant id to follow")
	day := flag.String("day", "Wednesday", "day to move the first to-do site to")
	flag.Parse()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)
	id := strconv.FormatInt(*consultant, 10)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/notifications/ws", RawQuery: "consultantId=" + id}
	hdr := http.Header{}
	hdr.Set("X-Role", "management")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			b, _ := json.Marshal(m.Data)
			log.Printf("WS <- %s: %s", m.Type, b)
		}
	}()

	// Fetch the effective plan and move its first to-do site.
	req, _ := http.NewRequest(http.MethodGet, base+"/v1/plans/"+id, nil)
	req.Header.Set("X-Role", "management")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	var view struct {
		Todo []struct {
			ID         int64  `json:"id"`
			ClientName string `json:"clientName"`
		} `json:"todo"`
	}
	err = json.NewDecoder(resp.Body).Decode(&view)
	_ = resp.Body.Close()
	if err != nil {
		log.Fatal(err)
	}
	if len(view.Todo) == 0 {
		log.Fatal("to-do list is empty")
	}
	site := view.Todo[0]
	log.Printf("moving %s (%d) to %s", site.ClientName, site.ID, *day)

	body, _ := json.Marshal(map[string]any{"siteId": site.ID, "from": "todo", "to": *day, "confirm": true})
	mv, _ := http.NewRequest(http.MethodPost, base+"/v1/plans/"+id+"/moves", bytes.NewReader(body))
	mv.Header.Set("Content-Type", "application/json")
	mv.Header.Set("X-Role", "management")
	if resp, err := http.DefaultClient.Do(mv); err != nil {
		log.Printf("move: %v", err)
	} else {
		log.Printf("move: %s", resp.Status)
		_ = resp.Body.Close()
	}

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
