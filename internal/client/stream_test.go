package client

import (
	"io"
	"testing"

	"github.com/talvik/intervox/internal/chat"
)

// slowReader yields the stream in fixed-size chunks so frame
// boundaries never line up with read boundaries.
type slowReader struct {
	data []byte
	size int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.size
	if n > len(r.data) {
		n = len(r.data)
	}
	n = copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func TestReader_ReassemblesAcrossChunks(t *testing.T) {
	t.Parallel()

	raw := "data: {\"type\": \"text\", \"data\": {\"text\": \"Hel\"}}\n\n" +
		"data: {\"type\": \"text\", \"data\": {\"text\": \"lo world!\"}}\n\n"

	for _, size := range []int{1, 3, 7, len(raw)} {
		r := NewReader(&slowReader{data: []byte(raw), size: size}, nil)

		var texts []string
		for {
			ev, err := r.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("chunk size %d: Next failed: %v", size, err)
			}
			texts = append(texts, ev.Data.(*chat.TextData).Text)
		}
		if len(texts) != 2 || texts[0] != "Hel" || texts[1] != "lo world!" {
			t.Errorf("chunk size %d: texts = %v", size, texts)
		}
	}
}

func TestReader_DropsUndecodableFrames(t *testing.T) {
	t.Parallel()

	raw := "data: not json\n\n" +
		": comment line\n" +
		"data: {\"type\": \"text\", \"data\": {\"text\": \"ok\"}}\n\n"

	r := NewReader(&slowReader{data: []byte(raw), size: 5}, nil)

	ev, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if ev.Data.(*chat.TextData).Text != "ok" {
		t.Errorf("event = %+v, want the decodable frame", ev)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestReader_DecodesEveryEventType(t *testing.T) {
	t.Parallel()

	raw := "data: {\"type\": \"tool_call\", \"data\": {\"id\": \"t1\", \"name\": \"search_interviews\", \"status\": \"start\"}}\n\n" +
		"data: {\"type\": \"tool_result\", \"data\": {\"id\": \"t1\", \"name\": \"search_interviews\", \"status\": \"completed\", \"result\": {}, \"summary\": {\"query\": \"q\", \"searchType\": \"hybrid\", \"resultsCount\": 0, \"hasError\": false}}}\n\n" +
		"data: {\"type\": \"error\", \"data\": {\"message\": \"boom\"}}\n\n"

	r := NewReader(&slowReader{data: []byte(raw), size: 11}, nil)

	want := []chat.EventType{chat.EventToolCall, chat.EventToolResult, chat.EventError}
	for i, wt := range want {
		ev, err := r.Next()
		if err != nil {
			t.Fatalf("event %d: Next failed: %v", i, err)
		}
		if ev.Type != wt {
			t.Errorf("event %d: type = %q, want %q", i, ev.Type, wt)
		}
	}
}
