// sentinel - distributed failed-login telemetry for Windows hosts
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loginwatch/sentinel

package feed

import (
	"bufio"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/loginwatch/sentinel/internal/models"
)

// WriteSSE encodes event as a Server-Sent Events frame and flushes it
// immediately. The caller's handler is responsible for setting SSE
// response headers before the first call.
func WriteSSE(w *bufio.Writer, flusher http.Flusher, event models.FeedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("feed: marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
		return fmt.Errorf("feed: write frame: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("feed: flush frame: %w", err)
	}
	flusher.Flush()
	return nil
}

// WriteSSEComment writes an SSE comment line, used as a keepalive that
// browsers ignore as an event but that keeps idle proxies from closing
// the connection.
func WriteSSEComment(w *bufio.Writer, flusher http.Flusher, comment string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", comment); err != nil {
		return fmt.Errorf("feed: write comment: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("feed: flush comment: %w", err)
	}
	flusher.Flush()
	return nil
}

// SetSSEHeaders sets the response headers an SSE stream requires.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
