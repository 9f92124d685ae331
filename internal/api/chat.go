package api

import (
	"encoding/json"
	"net/http"

	"github.com/talvik/intervox/internal/api/sse"
	"github.com/talvik/intervox/internal/chat"
	"github.com/talvik/intervox/internal/log"
)

// ChatRequest is the body of POST /chat. Messages carries the full
// conversation history; the client owns it and mirrors it verbatim on
// every request.
type ChatRequest struct {
	Messages     *[]chat.Message `json:"messages"`
	SystemPrompt string          `json:"systemPrompt"`
}

type chatHandler struct {
	orchestrator *chat.Orchestrator
	logger       log.Logger
}

// handleChat runs one conversation turn over a server-sent event stream.
//
// Validation failures are reported as plain HTTP errors before any frame
// is written. Once streaming has begun, every failure is delivered as an
// in-band error event; the stream ends with a final empty text frame so
// the client can distinguish graceful completion from a dropped
// connection.
func (h *chatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Messages == nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", "messages is required and must be an array")
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "streaming unsupported", err.Error())
		return
	}

	ctx := r.Context()
	h.logger.Info("chat turn started", "request_id", requestIDFromContext(ctx), "messages", len(*req.Messages))

	emit := func(ev chat.StreamEvent) error {
		return writer.WriteEvent(ctx, ev)
	}

	if err := h.orchestrator.RunTurn(ctx, *req.Messages, req.SystemPrompt, emit); err != nil {
		// The client is gone; there is nobody left to report to.
		h.logger.Info("chat turn interrupted",
			"request_id", requestIDFromContext(ctx), "error", err)
		return
	}

	// Graceful completion marker.
	final := chat.StreamEvent{Type: chat.EventText, Data: &chat.TextData{Text: ""}}
	if err := writer.WriteEvent(ctx, final); err != nil {
		h.logger.Debug("failed to write completion frame", "error", err)
	}

	h.logger.Info("chat turn completed", "request_id", requestIDFromContext(ctx))
}
