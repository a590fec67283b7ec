package handlers

import (
	"net/http"
	"time"

	"image-viewer/internal/logging"
	"image-viewer/internal/metrics"
	"image-viewer/internal/streaming"
	"image-viewer/internal/viewer"
)

const eventBuffer = 128

// Events streams viewer notifications as Server-Sent Events. The first
// event is the current cursor so a client knows which listing version the
// following events apply to.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	events, unsubscribe := h.viewer.Subscribe(eventBuffer)
	defer unsubscribe()

	stream, err := streaming.NewEventStream(r.Context(), w, h.stream)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer stream.Close()

	metrics.SSEConnectionsActive.Inc()
	defer metrics.SSEConnectionsActive.Dec()

	if c, err := h.viewer.Cursor(); err == nil {
		ev := viewer.Event{Kind: viewer.EventCursor, Version: c.Version, Index: c.Index, Path: c.Path}
		if err := stream.Send(string(ev.Kind), ev); err != nil {
			return
		}
	}

	var keepAlive <-chan time.Time
	if h.stream.KeepAlive > 0 {
		ticker := time.NewTicker(h.stream.KeepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := stream.Send(string(ev.Kind), ev); err != nil {
				logging.Debug("Event stream to %s ended: %v", r.RemoteAddr, err)
				return
			}
		case <-keepAlive:
			if err := stream.Comment("keepalive"); err != nil {
				return
			}
		case <-stream.Done():
			n, _, d := stream.Stats()
			logging.Debug("Event stream to %s closed after %d events in %v", r.RemoteAddr, n, d.Round(time.Millisecond))
			return
		}
	}
}
