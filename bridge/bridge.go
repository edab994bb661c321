// Package bridge publishes the engine's state, progress and error
// notifications as JSON events over a websocket and routes textual
// commands from UI clients back into the engine. Everything here is
// event routing; no audio logic.
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	looper "github.com/codewandler/looper-go"
	"github.com/codewandler/looper-go/events"
	"github.com/codewandler/looper-go/internal/websocket"
)

type Server struct {
	engine *looper.Engine
	logger *slog.Logger
	hub    *websocket.Hub
}

func New(engine *looper.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		engine: engine,
		logger: logger,
	}
	s.hub = websocket.NewHub(websocket.HubConfig{
		Logger: logger,
		OnText: s.handleCommand,
	})

	engine.OnState(func(status looper.Status) {
		s.send(events.NewStateEvent(string(status.State), status.Layers, status.Duration))
	})
	engine.OnProgress(func(phase float64) {
		s.send(events.NewProgressEvent(phase))
	})
	engine.OnError(func(err error) {
		s.send(events.NewErrorEvent(looper.ErrorCode(err), err.Error()))
	})

	return s
}

// Handler is mounted on the HTTP mux the UI connects to.
func (s *Server) Handler() http.Handler {
	return s.hub
}

func (s *Server) send(evt any) {
	data, err := json.Marshal(evt)
	if err != nil {
		s.logger.Error("failed to marshal event", slog.Any("err", err))
		return
	}
	s.hub.BroadcastText(data)
}

func (s *Server) handleCommand(data []byte) error {
	evt, err := events.Parse[events.CommandEvent](data)
	if err != nil {
		return err
	}

	ctx := context.Background()
	switch evt.Type {
	case events.CmdRecordStart:
		return s.engine.BeginCapture(ctx)
	case events.CmdRecordStop:
		// errors are already delivered through the error subscription
		_ = s.engine.EndCapture(ctx)
	case events.CmdPlaybackToggle:
		s.engine.TogglePlay()
	case events.CmdUndo:
		s.engine.Undo()
	case events.CmdClear:
		s.engine.Clear()
	case events.CmdExport:
		wav, err := s.engine.ExportMix()
		if err != nil {
			return nil
		}
		s.send(events.NewExportEvent(len(wav)))
		s.hub.BroadcastBinary(wav)
	default:
		s.logger.Debug("unknown command", slog.String("type", evt.Type))
	}
	return nil
}
