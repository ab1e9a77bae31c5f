package events

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/nefol-pricing/internal/common"
	"github.com/noah-isme/nefol-pricing/internal/tenant"
)

// StreamHandler serves room events as Server-Sent Events.
type StreamHandler struct {
	Bus       *Bus
	Heartbeat time.Duration
	// Done ends every open stream when closed, so server shutdown does not
	// wait on idle subscribers.
	Done <-chan struct{}
}

// Stream handles GET /api/v1/events?room=admin-panel|user-panel.
func (h StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	room := strings.TrimSpace(r.URL.Query().Get("room"))
	if room == "" {
		room = RoomUser
	}
	if !ValidRoom(room) {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ROOM", "room must be admin-panel or user-panel", nil)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "streaming unsupported", nil)
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())

	ctx := r.Context()
	sub := h.Bus.Subscribe(ctx, tenantID, room)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		common.WriteError(w, r, err)
		return
	}

	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.Done:
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg.Payload); err != nil {
				zerolog.Ctx(ctx).Debug().Err(err).Msg("sse client gone")
				return
			}
			flusher.Flush()
		}
	}
}
