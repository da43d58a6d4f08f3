// Package sse pushes draft events (upload finished, submit result) to the open
// form over Server-Sent Events.
package sse

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/backoffice/internal/config"
)

type Client struct {
	Msg     chan Message
	DraftID string
}

// Message is one SSE frame. An empty Event is delivered as a plain message.
type Message struct {
	Event string
	Data  string
}

func (m Message) String() string {
	var b strings.Builder
	if m.Event != "" {
		fmt.Fprintf(&b, "event: %s\n", m.Event)
	}
	for _, line := range strings.Split(m.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	return b.String()
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
	}
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[client] {
		delete(s.clients, client)
		close(client.Msg)
	}
}

// Count returns the number of clients listening on draftID.
func (s *SSEClients) Count(draftID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for client := range s.clients {
		if client.DraftID == draftID {
			n++
		}
	}
	return n
}

// Broadcast sends msg to every client of draftID without blocking; slow
// clients miss the message.
func (s *SSEClients) Broadcast(draftID string, msg Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if client.DraftID == draftID {
			select {
			case client.Msg <- msg:
			default:
			}
		}
	}
}

// Stream registers the request as a client of draftID and writes messages until
// the request is cancelled.
func (s *SSEClients) Stream(w http.ResponseWriter, r *http.Request, draftID string) {
	l := zerolog.Ctx(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, "text/event-stream")
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")

	client := &Client{
		Msg:     make(chan Message, 8),
		DraftID: draftID,
	}
	s.Add(client)
	defer func() {
		s.Delete(client)
		l.Debug().Str("draft_id", draftID).Msg("SSE client disconnected")
	}()

	fmt.Fprint(w, Message{Event: "connected", Data: draftID})
	flusher.Flush()
	l.Debug().Str("draft_id", draftID).Msg("SSE client connected")

	done := r.Context().Done()
	for {
		select {
		case msg, ok := <-client.Msg:
			if !ok {
				return
			}
			fmt.Fprint(w, msg)
			flusher.Flush()
		case <-done:
			return
		}
	}
}
