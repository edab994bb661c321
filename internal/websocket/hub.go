// Package websocket carries the control bridge: it upgrades HTTP
// requests, fans broadcast frames out to every connected client and
// hands inbound text frames to a single handler.
package websocket

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

type HandlerFunc func(data []byte) error

type HubConfig struct {
	OnText HandlerFunc
	Logger *slog.Logger
}

type Hub struct {
	onText HandlerFunc
	logger *slog.Logger

	mu    sync.Mutex
	conns map[*conn]struct{}
}

type conn struct {
	out      chan wsutil.Message
	done     chan struct{}
	doneOnce sync.Once
}

func (c *conn) setDone() {
	c.doneOnce.Do(func() {
		close(c.done)
	})
}

func NewHub(config HubConfig) *Hub {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	onText := config.OnText
	if onText == nil {
		onText = func(data []byte) error {
			return nil
		}
	}
	return &Hub{
		onText: onText,
		logger: logger,
		conns:  map[*conn]struct{}{},
	}
}

// BroadcastText sends one text frame to every connected client. Clients
// whose send queue is full are skipped rather than blocking the engine.
func (h *Hub) BroadcastText(data []byte) {
	h.broadcast(ws.OpText, data)
}

// BroadcastBinary sends one binary frame to every connected client.
func (h *Hub) BroadcastBinary(data []byte) {
	h.broadcast(ws.OpBinary, data)
}

func (h *Hub) broadcast(opcode ws.OpCode, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		select {
		case c.out <- wsutil.Message{OpCode: opcode, Payload: data}:
		default:
			h.logger.Debug("dropping frame for slow client")
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// ServeHTTP upgrades the request and serves the connection until either
// side closes it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	nc, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.logger.Error("ws upgrade failed", slog.Any("err", err))
		return
	}

	c := &conn{
		out:  make(chan wsutil.Message, 256),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("client connected", slog.String("remote", nc.RemoteAddr().String()))

	defer func() {
		c.setDone()
		h.mu.Lock()
		delete(h.conns, c)
		h.mu.Unlock()
		nc.Close()
		h.logger.Info("client disconnected", slog.String("remote", nc.RemoteAddr().String()))
	}()

	// outgoing frames
	go func() {
		for {
			select {
			case <-c.done:
				return
			case msg := <-c.out:
				if err := wsutil.WriteServerMessage(nc, msg.OpCode, msg.Payload); err != nil {
					h.logger.Error("ws write failed", slog.Any("err", err))
					c.setDone()
					return
				}
			}
		}
	}()

	for {
		messages, err := wsutil.ReadClientMessage(nc, nil)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				h.logger.Debug("ws read ended", slog.Any("err", err))
			}
			return
		}
		for _, msg := range messages {
			if ws.OpCode.IsControl(msg.OpCode) {
				if err := wsutil.HandleClientControlMessage(nc, msg); err != nil {
					h.logger.Error("handling of control message failed", slog.Any("err", err))
				}
				if msg.OpCode == ws.OpClose {
					return
				}
				continue
			}

			if msg.OpCode == ws.OpText {
				h.logger.Debug("rcv: text", slog.String("text", string(msg.Payload)))
				if err := h.onText(msg.Payload); err != nil {
					h.logger.Error("text message handler failed", slog.Any("err", err))
				}
			}
		}
	}
}
