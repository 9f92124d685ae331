package chat

import (
	"encoding/json"
	"strings"
)

// Outcome classifies one attempt to interpret the accumulated
// tool-argument buffer as JSON.
type Outcome int

const (
	// OutcomeIncomplete means the buffer is not yet valid JSON. Expected
	// mid-stream; never an error signal.
	OutcomeIncomplete Outcome = iota

	// OutcomeParsed means the buffer currently parses as JSON.
	OutcomeParsed

	// OutcomeInvalid means the finalized buffer is not valid JSON.
	OutcomeInvalid
)

// ArgumentBuffer accumulates the partial-JSON fragments of one tool call's
// arguments. After each append the whole buffer is re-parsed; a parse
// failure mid-stream only means "not yet". The authoritative input is the
// buffer at block stop, parsed once more by Final.
type ArgumentBuffer struct {
	buf strings.Builder
}

// Append concatenates fragment and reports whether the buffer parses.
// On OutcomeParsed the returned value is an independent copy of the
// buffer, suitable for a best-effort progress event.
func (b *ArgumentBuffer) Append(fragment string) (json.RawMessage, Outcome) {
	b.buf.WriteString(fragment)
	raw := []byte(b.buf.String())
	if !json.Valid(raw) {
		return nil, OutcomeIncomplete
	}
	return json.RawMessage(raw), OutcomeParsed
}

// Final parses the complete buffer. An empty buffer finalizes to an empty
// object: the model sends no fragments for a no-argument call.
func (b *ArgumentBuffer) Final() (json.RawMessage, Outcome) {
	s := b.buf.String()
	if strings.TrimSpace(s) == "" {
		return json.RawMessage(`{}`), OutcomeParsed
	}
	raw := []byte(s)
	if !json.Valid(raw) {
		return nil, OutcomeInvalid
	}
	return json.RawMessage(raw), OutcomeParsed
}

// Len returns the number of accumulated bytes.
func (b *ArgumentBuffer) Len() int {
	return b.buf.Len()
}
