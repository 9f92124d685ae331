package sse_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/talvik/intervox/internal/api/sse"
)

func TestNewWriter_SetsHeaders(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	if _, err := sse.NewWriter(rec); err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	headers := rec.Header()
	if got := headers.Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := headers.Get("Cache-Control"); got != "no-cache, no-transform" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := headers.Get("Connection"); got != "keep-alive" {
		t.Errorf("Connection = %q", got)
	}
}

func TestWriteEvent_Framing(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w, err := sse.NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	if err := w.WriteEvent(context.Background(), map[string]string{"type": "text"}); err != nil {
		t.Fatalf("WriteEvent failed: %v", err)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, "data: ") {
		t.Errorf("frame missing data prefix: %q", body)
	}
	if !strings.HasSuffix(body, "\n\n") {
		t.Errorf("frame missing blank-line terminator: %q", body)
	}
	if !rec.Flushed {
		t.Error("frame was not flushed")
	}
}

// noFlushWriter does not implement http.Flusher.
type noFlushWriter struct {
	header http.Header
}

func (w *noFlushWriter) Header() http.Header {
	if w.header == nil {
		w.header = make(http.Header)
	}
	return w.header
}

func (*noFlushWriter) Write([]byte) (int, error) { return 0, nil }
func (*noFlushWriter) WriteHeader(int)           {}

func TestNewWriter_RequiresFlusher(t *testing.T) {
	t.Parallel()

	if _, err := sse.NewWriter(&noFlushWriter{}); err == nil {
		t.Fatal("expected error for non-flushing writer")
	}
}

func TestWriteEvent_CanceledContext(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w, err := sse.NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.WriteEvent(ctx, "late"); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
