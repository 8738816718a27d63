package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// sseWriter writes Server-Sent Events. Call init once before the first event.
type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

func (sw *sseWriter) init() {
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	sw.w.WriteHeader(http.StatusOK)
	_ = sw.rc.Flush()
}

// event writes one named event:
//
//	event: <name>
//	data: <json>
func (sw *sseWriter) event(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: marshal %s: %w", name, err)
	}
	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return fmt.Errorf("sse: write %s: %w", name, err)
	}
	// Writers that cannot flush still deliver the event when the handler returns.
	_ = sw.rc.Flush()
	return nil
}
