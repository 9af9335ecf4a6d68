// Package realtime pushes generation progress to HTTP clients over
// server-sent events.
package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

type SSEEvent string

const (
	SSEEventGenerationProgress  SSEEvent = "GenerationProgress"
	SSEEventGenerationCompleted SSEEvent = "GenerationCompleted"
	SSEEventGenerationFailed    SSEEvent = "GenerationFailed"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// GenerationChannel is the hub channel carrying one kind's progress.
func GenerationChannel(kind string) string {
	return "generation:" + kind
}

const clientBuffer = 32

// SSEClient is one open stream listening on a single channel.
type SSEClient struct {
	ID       uuid.UUID
	Channel  string
	Outbound chan SSEMessage

	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

// Dropped counts messages lost because the client's buffer was full.
func (c *SSEClient) Dropped() int64 { return c.dropped.Load() }

type SSEHub struct {
	mu        sync.RWMutex
	log       *logger.Logger
	channels  map[string]map[*SSEClient]struct{}
	heartbeat time.Duration
	retry     time.Duration
}

func NewSSEHub(log *logger.Logger) *SSEHub {
	return &SSEHub{
		log:       log.With("component", "SSEHub"),
		channels:  make(map[string]map[*SSEClient]struct{}),
		heartbeat: 15 * time.Second,
		retry:     3 * time.Second,
	}
}

// Subscribe registers a client on channel with the given messages queued first.
func (h *SSEHub) Subscribe(channel string, initial ...SSEMessage) *SSEClient {
	return h.SubscribeFunc(channel, func() []SSEMessage { return initial })
}

// SubscribeFunc registers a client on channel and queues snapshot's messages
// ahead of any broadcast. snapshot runs under the hub lock, so a broadcast
// either finished before it ran or reaches the new client. snapshot must not
// call back into the hub.
func (h *SSEHub) SubscribeFunc(channel string, snapshot func() []SSEMessage) *SSEClient {
	h.mu.Lock()
	initial := snapshot()
	c := &SSEClient{
		ID:       uuid.New(),
		Channel:  channel,
		Outbound: make(chan SSEMessage, clientBuffer+len(initial)),
		done:     make(chan struct{}),
	}
	for _, m := range initial {
		c.Outbound <- m
	}
	set, ok := h.channels[channel]
	if !ok {
		set = make(map[*SSEClient]struct{})
		h.channels[channel] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	h.log.Debug("stream subscribed", "client_id", c.ID, "channel", channel)
	return c
}

// Unsubscribe detaches the client before closing its buffer so Broadcast never
// sends on a closed channel. Safe to call more than once.
func (h *SSEHub) Unsubscribe(c *SSEClient) {
	c.once.Do(func() {
		close(c.done)
		h.mu.Lock()
		if set, ok := h.channels[c.Channel]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.channels, c.Channel)
			}
		}
		h.mu.Unlock()
		close(c.Outbound)
		if n := c.Dropped(); n > 0 {
			h.log.Warn("stream closed with dropped messages", "client_id", c.ID, "channel", c.Channel, "dropped", n)
		}
	})
}

// Subscribers reports how many clients listen on channel.
func (h *SSEHub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Broadcast never blocks; a client with a full buffer misses the message.
// Progress events carry the whole state, so the next one supersedes it.
func (h *SSEHub) Broadcast(msg SSEMessage) {
	if msg.Channel == "" {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.channels[msg.Channel] {
		select {
		case c.Outbound <- msg:
		default:
			if c.dropped.Add(1) == 1 {
				h.log.Warn("stream buffer full; dropping progress", "client_id", c.ID, "channel", msg.Channel)
			}
		}
	}
}

// Stream writes the client's messages as SSE frames until the request ends or
// the client is unsubscribed. Frames carry a per-stream id and the hub sends a
// reconnect hint up front.
func (h *SSEHub) Stream(w http.ResponseWriter, r *http.Request, c *SSEClient) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "retry: %d\n\n", h.retry.Milliseconds())
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	var seq int64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case msg, open := <-c.Outbound:
			if !open {
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				h.log.Warn("skipping unencodable message", "channel", msg.Channel, "error", err)
				continue
			}
			seq++
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, msg.Event, payload)
			flusher.Flush()
		}
	}
}
