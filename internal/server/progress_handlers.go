package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/factorlab/internal/sweep"
)

// ProgressHub fans sweep progress updates out to websocket subscribers.
// It implements sweeps.ProgressSink.
type ProgressHub struct {
	log  zerolog.Logger
	mu   sync.Mutex
	subs map[chan sweep.Progress]struct{}
}

func NewProgressHub(log zerolog.Logger) *ProgressHub {
	return &ProgressHub{
		log:  log.With().Str("component", "progress_hub").Logger(),
		subs: make(map[chan sweep.Progress]struct{}),
	}
}

// Publish delivers a progress update to all subscribers. Slow subscribers
// drop updates rather than block the sweep collector.
func (h *ProgressHub) Publish(p sweep.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

// subscribe registers a new listener. The returned cancel func must be
// called when the listener goes away.
func (h *ProgressHub) subscribe() (chan sweep.Progress, func()) {
	ch := make(chan sweep.Progress, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// handleProgressStream handles GET /api/sweeps/progress as a websocket.
// Each progress update is sent as a JSON message.
func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin checking handled by CORS middleware
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	ch, cancel := s.progressHub.subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case p := <-ch:
			writeCtx, writeCancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, p)
			writeCancel()
			if err != nil {
				closeStatus := websocket.CloseStatus(err)
				if closeStatus != websocket.StatusNormalClosure && closeStatus != websocket.StatusGoingAway {
					s.log.Debug().Err(err).Msg("Progress write failed, dropping subscriber")
				}
				return
			}
		}
	}
}
