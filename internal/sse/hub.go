// Package sse fans notification count events out to connected browser
// clients over server-sent events. The hub is fed by the pub/sub
// forwarder, so every replica streams events regardless of which one
// performed the write.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/feedstream-backend/internal/logger"
	"github.com/yungbote/feedstream-backend/internal/realtime"
)

type Client struct {
	ID       uuid.UUID
	Target   string
	Outbound chan realtime.NotificationMessage
}

type Hub struct {
	mu      sync.RWMutex
	log     *logger.Logger
	clients map[string]map[*Client]struct{}
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:     log.With("component", "SSEHub"),
		clients: make(map[string]map[*Client]struct{}),
	}
}

// Subscribe registers a client for one target's notification events.
func (h *Hub) Subscribe(target string) *Client {
	client := &Client{
		ID:       uuid.New(),
		Target:   target,
		Outbound: make(chan realtime.NotificationMessage, 10),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[target]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[target] = set
	}
	set[client] = struct{}{}
	h.log.Debug("SSE client subscribed", "client_id", client.ID, "target", target)
	return client
}

func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[client.Target]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.clients, client.Target)
		}
	}
	h.log.Debug("SSE client unsubscribed", "client_id", client.ID)
}

// Broadcast delivers a message to every client watching its target.
// Slow clients drop messages instead of blocking the forwarder.
func (h *Hub) Broadcast(msg realtime.NotificationMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[msg.Target] {
		select {
		case client.Outbound <- msg:
		default:
			h.log.Warn("Dropping SSE message; outbound buffer full", "client_id", client.ID)
		}
	}
}

// ServeHTTP streams a client's events until the request context ends.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *Client) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()
	defer h.Unsubscribe(client)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case msg := <-client.Outbound:
			fmt.Fprintf(w, "event: notification\ndata: {\"target\":%q,\"unread_count\":%d,\"unseen_count\":%d}\n\n",
				msg.Target, msg.UnreadCount, msg.UnseenCount)
			flusher.Flush()
		}
	}
}
