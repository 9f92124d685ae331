// Package client consumes the chat event stream and maintains the
// conversation view a front-end renders from.
package client

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/talvik/intervox/internal/chat"
	"github.com/talvik/intervox/internal/log"
)

// Reader decodes server-sent chat events from a byte stream. Network
// chunk boundaries carry no meaning: frames are reassembled from
// whole lines regardless of how the transport split them.
type Reader struct {
	scanner *bufio.Scanner
	logger  log.Logger
}

// NewReader wraps r. Pass a nil logger to discard diagnostics.
func NewReader(r io.Reader, logger log.Logger) *Reader {
	if logger == nil {
		logger = log.NewNop()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: sc, logger: logger}
}

// Next returns the next decoded event, or io.EOF when the stream is
// exhausted. Lines that are not data frames, and data frames that do
// not decode, are dropped with a diagnostic rather than ending the
// stream.
func (r *Reader) Next() (chat.StreamEvent, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			if strings.TrimSpace(line) != "" {
				r.logger.Debug("ignoring non-data stream line", "line", line)
			}
			continue
		}
		var ev chat.StreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			r.logger.Debug("dropping undecodable frame", "error", err, "data", data)
			continue
		}
		return ev, nil
	}
	if err := r.scanner.Err(); err != nil {
		return chat.StreamEvent{}, err
	}
	return chat.StreamEvent{}, io.EOF
}
