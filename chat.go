package recode

import "context"

// ChatProvider is the LLM transport collaborator. Implementations wrap a
// concrete API client; the runtime only ever consumes the stream.
type ChatProvider interface {
	// ChatStream sends a conversation and returns a channel of streaming
	// events. The channel is closed when the turn completes or an error
	// occurs; callers must check StreamEvent.Err.
	ChatStream(ctx context.Context, messages []Message, opts ...Option) (<-chan StreamEvent, error)
}

// StreamEvent is a single unit of streamed model output. Chunks arrive in
// order by transport contract; the assembler treats reordering as a
// protocol failure.
type StreamEvent struct {
	// Delta contains the incremental text for this event.
	Delta string
	// Done indicates the end-of-turn marker.
	Done bool
	// Response carries the final turn data when Done is true.
	Response *Response
	// Err contains any transport error that occurred during streaming.
	Err error
}

// Response represents a completed model turn.
type Response struct {
	Content      string `json:"content,omitempty"`
	FinishReason string `json:"finishReason,omitempty"`
	Usage        Usage  `json:"usage"`
}

// Usage contains token usage information for a turn.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}
