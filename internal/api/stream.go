package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ridetrace/pkg/config"
	"ridetrace/pkg/metrics"
)

const (
	streamSendBuffer = 64
	streamWriteWait  = 10 * time.Second
)

// streamClient is one connected websocket consumer. Frames queue on
// send; a full queue marks the client too slow to keep.
type streamClient struct {
	send chan []byte
}

// StreamHandler pushes telemetry frames to websocket clients on the
// configured interval. It reads the same snapshot the poll endpoint
// serves.
type StreamHandler struct {
	tel      *TelemetryHandler
	provider config.Provider
	metrics  *metrics.Recorder
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

// NewStreamHandler creates the stream handler. Call Run to start the
// frame ticker.
func NewStreamHandler(tel *TelemetryHandler, provider config.Provider, m *metrics.Recorder) *StreamHandler {
	return &StreamHandler{
		tel:      tel,
		provider: provider,
		metrics:  m,
		upgrader: websocket.Upgrader{
			// The daemon binds to localhost for the paired watch;
			// origin checks would only lock out the dev UI.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*streamClient]struct{}),
	}
}

// HandleStream upgrades the request and streams frames until the
// client goes away.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Stream: upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &streamClient{send: make(chan []byte, streamSendBuffer)}
	h.add(c)
	slog.Info("Stream: client connected", "remote", conn.RemoteAddr(), "clients", h.ClientCount())

	go func() {
		defer conn.Close()
		for frame := range c.send {
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
		deadline := time.Now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	}()

	// The stream is one-way; reads only surface disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
	conn.Close()
	slog.Info("Stream: client disconnected", "remote", conn.RemoteAddr(), "clients", h.ClientCount())
}

func (h *StreamHandler) add(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// remove drops a client and closes its queue. Membership is checked
// under the lock: the reader exit and the slow-client eviction can
// both land here, and the channel must close exactly once.
func (h *StreamHandler) remove(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// ClientCount returns the number of connected clients.
func (h *StreamHandler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run pushes frames until the context ends. The interval is re-read
// after every tick so a config change applies without a restart.
func (h *StreamHandler) Run(ctx context.Context) {
	interval := h.provider.StreamInterval(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("Stream: started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			slog.Info("Stream: stopped")
			return
		case <-ticker.C:
			h.tick()
			if next := h.provider.StreamInterval(ctx); next > 0 && next != interval {
				interval = next
				ticker.Reset(interval)
				slog.Info("Stream: interval changed", "interval", interval)
			}
		}
	}
}

// tick marshals one frame and fans it out. Without clients there is
// nothing to encode.
func (h *StreamHandler) tick() {
	if h.ClientCount() == 0 {
		return
	}
	frame, err := json.Marshal(h.tel.Latest())
	if err != nil {
		slog.Error("Stream: encode frame failed", "error", err)
		h.metrics.TrackError(metrics.ComponentStream)
		return
	}
	h.broadcast(frame)
	h.metrics.Track(metrics.ComponentStream, metrics.OutcomeOK, int64(len(frame)))
}

// broadcast fans a frame out without blocking: a client with a full
// queue gets evicted rather than stalling the tick.
func (h *StreamHandler) broadcast(frame []byte) {
	h.mu.Lock()
	var slow []*streamClient
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	for range slow {
		slog.Warn("Stream: dropped slow client")
	}
}

func (h *StreamHandler) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
