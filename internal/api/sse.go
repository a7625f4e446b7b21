// ABOUTME: SSE endpoint streaming dashboard events to connected clients
// ABOUTME: Each client gets a buffered subscription; slow clients drop events

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// keepAliveInterval is how often a comment line is written so proxies keep
// the stream open.
const keepAliveInterval = 30 * time.Second

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.broadcaster == nil {
		s.writeError(w, http.StatusServiceUnavailable, "event stream not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sub, subID := s.broadcaster.Subscribe(r.Context())
	defer s.broadcaster.Unsubscribe(subID)

	fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, open := <-sub:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("marshalling event failed", "event", ev.Name, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data)
			flusher.Flush()
		}
	}
}
