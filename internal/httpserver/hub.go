package httpserver

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/0xNerd/degen-server/internal/domain"
	"github.com/0xNerd/degen-server/internal/metrics"
)

const (
	maxClients    = 100
	writeDeadline = 5 * time.Second
)

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	conn  *websocket.Conn
	errCh chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	conn *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdBroadcast struct {
	data []byte
}

func (cmdBroadcast) hubCmd() {}

type cmdClientCount struct {
	replyCh chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// clientWriter decouples broadcasting from per-connection write latency:
// each connection drains its own buffered channel.
type clientWriter struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
}

func newClientWriter(conn *websocket.Conn) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		sendCh: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg, ok := <-cw.sendCh:
			if !ok {
				return
			}
			cw.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	cw.conn.Close()
}

// Hub fans one digest feed out to every connected websocket client.
// All state lives in the actor goroutine; slow clients are disconnected
// instead of stalling the broadcast.
type Hub struct {
	cmdCh   chan hubCmd
	done    chan struct{}
	clients map[*websocket.Conn]*clientWriter
}

// NewHub creates a running hub.
func NewHub() *Hub {
	hub := &Hub{
		cmdCh:   make(chan hubCmd, 256),
		done:    make(chan struct{}),
		clients: make(map[*websocket.Conn]*clientWriter),
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	defer close(h.done)
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.conn)
		case cmdBroadcast:
			h.handleBroadcast(c.data)
		case cmdClientCount:
			c.replyCh <- len(h.clients)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if len(h.clients) >= maxClients {
		slog.Warn("rejecting websocket client, hub full", "max_clients", maxClients)
		c.conn.Close()
		c.errCh <- errHubFull
		return
	}

	h.clients[c.conn] = newClientWriter(c.conn)
	metrics.DigestSubscribers.Set(float64(len(h.clients)))
	slog.Info("websocket client connected", "total_clients", len(h.clients))
	c.errCh <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cw, exists := h.clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(h.clients, conn)
	metrics.DigestSubscribers.Set(float64(len(h.clients)))
	slog.Info("websocket client disconnected", "total_clients", len(h.clients))
}

func (h *Hub) handleBroadcast(data []byte) {
	var slow []*websocket.Conn
	for conn, cw := range h.clients {
		select {
		case cw.sendCh <- data:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("disconnecting slow websocket client")
		h.handleUnregister(conn)
	}
}

func (h *Hub) handleStop() {
	for conn, cw := range h.clients {
		cw.stop()
		delete(h.clients, conn)
	}
	metrics.DigestSubscribers.Set(0)
}

// Register adds a connection to the broadcast set. A stopped hub
// closes the connection and reports errHubStopped instead of blocking.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	select {
	case h.cmdCh <- cmdRegister{conn: conn, errCh: errCh}:
	case <-h.done:
		conn.Close()
		return errHubStopped
	}

	select {
	case err := <-errCh:
		return err
	case <-h.done:
		conn.Close()
		return errHubStopped
	}
}

// Unregister removes a connection from the broadcast set.
func (h *Hub) Unregister(conn *websocket.Conn) {
	select {
	case h.cmdCh <- cmdUnregister{conn: conn}:
	case <-h.done:
	}
}

// Broadcast sends one digest envelope to every connected client.
func (h *Hub) Broadcast(digest domain.Digest) {
	data, err := json.Marshal(digest)
	if err != nil {
		slog.Error("failed to encode digest broadcast", "error", err)
		return
	}
	select {
	case h.cmdCh <- cmdBroadcast{data: data}:
	case <-h.done:
	}
}

// Forward pumps a digest feed into the hub until the feed closes.
func (h *Hub) Forward(feed <-chan domain.Digest) {
	go func() {
		for digest := range feed {
			h.Broadcast(digest)
		}
	}()
}

// ClientCount returns the number of connected clients, 0 once stopped.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	select {
	case h.cmdCh <- cmdClientCount{replyCh: replyCh}:
	case <-h.done:
		return 0
	}

	select {
	case n := <-replyCh:
		return n
	case <-h.done:
		return 0
	}
}

// Stop disconnects all clients and ends the hub actor. Idempotent.
func (h *Hub) Stop() {
	select {
	case h.cmdCh <- cmdStop{}:
	case <-h.done:
	}
}
