package chat

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestArgumentBuffer_ChunkingInvariance(t *testing.T) {
	t.Parallel()

	const full = `{"query": "housing themes", "search_type": "hybrid", "top_k": 10, "alpha": 0.5}`

	// The same document split at arbitrary boundaries must finalize to the
	// same parsed object as a one-shot parse.
	splits := [][]string{
		{full},
		{`{"query": "housing th`, `emes", "search_type": "hy`, `brid", "top_k": 10, "alpha": 0.5}`},
		{`{`, `"query"`, `: "housing themes", `, `"search_type": "hybrid", "top_k": 10, "alpha": 0.5`, `}`},
	}
	// Single characters as a degenerate chunking.
	var chars []string
	for _, r := range full {
		chars = append(chars, string(r))
	}
	splits = append(splits, chars)

	var want map[string]any
	if err := json.Unmarshal([]byte(full), &want); err != nil {
		t.Fatalf("fixture does not parse: %v", err)
	}

	for i, chunks := range splits {
		var buf ArgumentBuffer
		for _, chunk := range chunks {
			buf.Append(chunk)
		}

		raw, outcome := buf.Final()
		if outcome != OutcomeParsed {
			t.Fatalf("split %d: outcome = %v, want OutcomeParsed", i, outcome)
		}

		var got map[string]any
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("split %d: final buffer does not parse: %v", i, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("split %d: parsed %v, want %v", i, got, want)
		}
	}
}

func TestArgumentBuffer_IncompleteMidStream(t *testing.T) {
	t.Parallel()

	var buf ArgumentBuffer

	if _, outcome := buf.Append(`{"query": "the`); outcome != OutcomeIncomplete {
		t.Errorf("mid-stream outcome = %v, want OutcomeIncomplete", outcome)
	}

	raw, outcome := buf.Append(`mes"}`)
	if outcome != OutcomeParsed {
		t.Fatalf("complete outcome = %v, want OutcomeParsed", outcome)
	}
	if string(raw) != `{"query": "themes"}` {
		t.Errorf("parsed buffer = %s", raw)
	}
}

func TestArgumentBuffer_InvalidFinal(t *testing.T) {
	t.Parallel()

	var buf ArgumentBuffer
	buf.Append(`{"query": "themes"`) // never closed

	if _, outcome := buf.Final(); outcome != OutcomeInvalid {
		t.Errorf("outcome = %v, want OutcomeInvalid", outcome)
	}
}

func TestArgumentBuffer_EmptyFinalIsEmptyObject(t *testing.T) {
	t.Parallel()

	var buf ArgumentBuffer
	raw, outcome := buf.Final()
	if outcome != OutcomeParsed {
		t.Fatalf("outcome = %v, want OutcomeParsed", outcome)
	}
	if string(raw) != `{}` {
		t.Errorf("final = %s, want {}", raw)
	}
}
