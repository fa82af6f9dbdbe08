package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediaflow/internal/events"
	"mediaflow/internal/logging"
)

const sseKeepAlive = 15 * time.Second

// handleEvents streams broadcast events as Server-Sent Events. Each message
// carries one JSON event ({"type": ..., "data": {...}}) with the event type
// as the SSE event name. An optional execution_id restricts the stream.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	var executionID int64
	if value := strings.TrimSpace(r.URL.Query().Get("execution_id")); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid execution_id")
			return
		}
		executionID = parsed
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	subscriber := uuid.NewString()
	logger := s.logger.With(logging.String("subscriber", subscriber), logging.Int64(logging.FieldExecutionID, executionID))
	ch, unsubscribe := s.daemon.engine.Broadcaster().Subscribe(executionID)
	defer unsubscribe()
	logger.Debug("event stream opened")
	defer logger.Debug("event stream closed")

	ctx, cancel := s.streamContext(r)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": subscribed %s\n\n", subscriber)
	flusher.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case evt, ok := <-ch:
			if !ok {
				// Dropped by the broadcaster (slow client) or shutting down.
				_ = writeSSE(w, "close", []byte(`{"reason":"stream closed"}`))
				flusher.Flush()
				return
			}
			if err := writeEvent(w, evt); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, evt events.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return writeSSE(w, string(evt.Type), payload)
}

func writeSSE(w http.ResponseWriter, name string, payload []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	return nil
}
