// Package sse provides Server-Sent Events framing for the chat stream.
//
// Frames are data-only: every event is one `data: <json>\n\n` unit. Event
// typing lives inside the JSON payload, not in SSE event names, so the
// client needs a single parsing path.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Writer wraps an http.ResponseWriter for SSE streaming. Frames are
// flushed individually; a frame is never split across flushes.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter creates a Writer and sets the streaming response headers.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent frames v as JSON and flushes it.
func (w *Writer) WriteEvent(ctx context.Context, v any) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context canceled: %w", ctx.Err())
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	w.flusher.Flush()
	return nil
}
