// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/zkhbridge/internal/log"
	"github.com/ManuGH/zkhbridge/internal/metrics"
	"github.com/ManuGH/zkhbridge/internal/model"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPongWait     = 60 * time.Second
	streamPingPeriod   = 30 * time.Second
	streamSendBuffer   = 8
	streamReadLimit    = 512
)

// ErrHubClosed is returned when a client connects after Close.
var ErrHubClosed = errors.New("stream hub closed")

// StreamMessage is the JSON frame pushed to websocket clients.
type StreamMessage struct {
	Type string         `json:"type"`
	Data model.Snapshot `json:"data"`
}

// Hub fans snapshots out to websocket clients. It implements jobs.Sink.
type Hub struct {
	upgrader websocket.Upgrader
	current  func() (model.Snapshot, bool)
	logger   zerolog.Logger

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool
	wg      sync.WaitGroup
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. current, if non-nil, supplies the snapshot sent
// to each client right after it connects.
func NewHub(current func() (model.Snapshot, bool)) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		current: current,
		logger:  log.WithComponent("stream"),
		clients: make(map[*streamClient]struct{}),
	}
}

// Name implements jobs.Sink.
func (h *Hub) Name() string { return "stream" }

// Deliver implements jobs.Sink. Slow clients whose buffer is full miss
// the frame.
func (h *Hub) Deliver(_ context.Context, snap model.Snapshot) error {
	msg, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn().Str(log.FieldEvent, "stream.dropped").Msg("client buffer full, dropping snapshot")
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves the client until it
// disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Debug().Err(err).Str(log.FieldEvent, "stream.upgrade_failed").Msg("websocket upgrade failed")
		return
	}

	c := &streamClient{conn: conn, send: make(chan []byte, streamSendBuffer)}
	if err := h.register(c); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	h.logger.Debug().Str(log.FieldEvent, "stream.connected").Str("remote", r.RemoteAddr).Msg("stream client connected")

	if h.current != nil {
		if snap, ok := h.current(); ok {
			if msg, err := encodeSnapshot(snap); err == nil {
				h.enqueue(c, msg)
			}
		}
	}

	go h.writePump(c)
	h.readPump(c)
}

// Close disconnects every client and waits for their pumps to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	metrics.SetStreamClients(0)
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *Hub) register(c *streamClient) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.clients[c] = struct{}{}
	h.wg.Add(2)
	metrics.SetStreamClients(len(h.clients))
	return nil
}

func (h *Hub) unregister(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.SetStreamClients(len(h.clients))
}

func (h *Hub) enqueue(c *streamClient, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// readPump discards client frames; it exists to process control frames
// and detect disconnects.
func (h *Hub) readPump(c *streamClient) {
	defer h.wg.Done()
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(streamReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str(log.FieldEvent, "stream.read_closed").Msg("stream client closed unexpectedly")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *streamClient) {
	defer h.wg.Done()
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				_ = c.conn.Close()
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (c *streamClient) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return c.conn.WriteMessage(messageType, data)
}

func encodeSnapshot(snap model.Snapshot) ([]byte, error) {
	return json.Marshal(StreamMessage{Type: "snapshot", Data: snap})
}
