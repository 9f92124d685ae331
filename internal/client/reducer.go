package client

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/talvik/intervox/internal/chat"
)

// promotionDelay is how long a finished tool call stays in the active
// view before moving to the completed list, so a reader can see its
// final status before it collapses.
const promotionDelay = 2 * time.Second

// Scheduler defers a function call. The returned cancel reports
// whether it prevented the call from running.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (cancel func() bool)
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	t := time.AfterFunc(d, fn)
	return t.Stop
}

// ToolCall is the rendered view of one tool invocation.
type ToolCall struct {
	ID      string
	Name    string
	Status  chat.ToolCallStatus
	Input   json.RawMessage
	Result  json.RawMessage
	Summary chat.Summary
	Failed  bool
}

// Conversation folds stream events into renderable state. Methods are
// safe for concurrent use; deferred promotions fire from the scheduler
// goroutine.
type Conversation struct {
	mu sync.Mutex

	messages  []chat.Message
	streaming string

	active    map[string]*ToolCall
	order     []string
	completed []ToolCall
	promoted  map[string]bool

	scheduler Scheduler
	cancels   map[string]func() bool
}

// NewConversation returns an empty conversation backed by real timers.
func NewConversation() *Conversation {
	return NewConversationWithScheduler(timerScheduler{})
}

// NewConversationWithScheduler injects the promotion scheduler.
func NewConversationWithScheduler(s Scheduler) *Conversation {
	return &Conversation{
		active:    make(map[string]*ToolCall),
		promoted:  make(map[string]bool),
		scheduler: s,
		cancels:   make(map[string]func() bool),
	}
}

// AddUserMessage records an outgoing message.
func (c *Conversation) AddUserMessage(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, chat.Message{Role: "user", Content: text})
}

// Apply folds one stream event into the conversation.
func (c *Conversation) Apply(ev chat.StreamEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch data := ev.Data.(type) {
	case *chat.TextData:
		c.streaming += data.Text
	case *chat.ToolCallData:
		c.applyToolCall(data)
	case *chat.ToolResultData:
		c.applyToolResult(data)
	case *chat.ErrorData:
		c.applyError(data)
	}
}

func (c *Conversation) applyToolCall(data *chat.ToolCallData) {
	call, ok := c.active[data.ID]
	if !ok {
		if c.promoted[data.ID] {
			return
		}
		call = &ToolCall{ID: data.ID, Name: data.Name}
		c.active[data.ID] = call
		c.order = append(c.order, data.ID)
	}
	call.Status = data.Status
	if data.Name != "" {
		call.Name = data.Name
	}
	// Keep the last input that actually arrived. A later event
	// without input never blanks a previously shown one.
	if len(data.Input) > 0 {
		call.Input = data.Input
	}
}

func (c *Conversation) applyToolResult(data *chat.ToolResultData) {
	call, ok := c.active[data.ID]
	if !ok {
		if c.promoted[data.ID] {
			return
		}
		call = &ToolCall{ID: data.ID, Name: data.Name}
		c.active[data.ID] = call
		c.order = append(c.order, data.ID)
	}
	call.Status = data.Status
	call.Result = data.Result
	call.Summary = data.Summary
	c.schedulePromotion(data.ID)
}

func (c *Conversation) applyError(data *chat.ErrorData) {
	if data.ToolCallID == "" {
		c.streaming += fmt.Sprintf(" [error: %s]", data.Message)
		return
	}
	call, ok := c.active[data.ToolCallID]
	if !ok {
		return
	}
	call.Status = chat.StatusError
	call.Failed = true
	c.schedulePromotion(data.ToolCallID)
}

// schedulePromotion arms the delayed move to the completed list.
// Re-arming an already pending promotion restarts the delay, so
// replayed terminal events cannot double-promote.
func (c *Conversation) schedulePromotion(id string) {
	if cancel, ok := c.cancels[id]; ok {
		cancel()
	}
	c.cancels[id] = c.scheduler.AfterFunc(promotionDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.promoteLocked(id)
	})
}

func (c *Conversation) promoteLocked(id string) {
	call, ok := c.active[id]
	if !ok {
		return
	}
	delete(c.active, id)
	delete(c.cancels, id)
	c.promoted[id] = true
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.completed = append(c.completed, *call)
}

// Finish commits the streamed text as an assistant message and cancels
// pending promotions, promoting those calls immediately so the final
// state is stable.
func (c *Conversation) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, cancel := range c.cancels {
		if cancel() {
			c.promoteLocked(id)
		}
	}
	if c.streaming != "" {
		c.messages = append(c.messages, chat.Message{Role: "assistant", Content: c.streaming})
		c.streaming = ""
	}
}

// Streaming returns the in-flight assistant text.
func (c *Conversation) Streaming() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// Messages returns the committed transcript.
func (c *Conversation) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chat.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// ActiveCalls returns in-flight tool calls in arrival order.
func (c *Conversation) ActiveCalls() []ToolCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ToolCall, 0, len(c.order))
	for _, id := range c.order {
		if call, ok := c.active[id]; ok {
			out = append(out, *call)
		}
	}
	return out
}

// CompletedCalls returns promoted tool calls in promotion order.
func (c *Conversation) CompletedCalls() []ToolCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ToolCall, len(c.completed))
	copy(out, c.completed)
	return out
}
