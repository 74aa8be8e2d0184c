package recode

import (
	"time"

	"github.com/google/uuid"
)

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single entry in a task's conversation history.
// Messages are immutable once appended; the history package assigns Seq.
type Message struct {
	// ID is a unique identifier for the message.
	ID string `json:"id,omitempty"`
	// Seq is the message's position in its task history. Assigned by the
	// history log; strictly increasing and gapless within a task.
	Seq int `json:"seq"`
	// Role identifies the sender.
	Role Role `json:"role"`
	// Content is the message text. For RoleTool messages this is the
	// rendered tool result sent back to the model.
	Content string `json:"content,omitempty"`
	// ToolUseID links a RoleTool message to the tool use it answers.
	ToolUseID string `json:"toolUseId,omitempty"`
	// IsError marks a RoleTool message as a failed tool result.
	IsError bool `json:"isError,omitempty"`
	// Partial marks an assistant message whose stream was cut short.
	// The text up to the cut is preserved; nothing is retracted.
	Partial bool `json:"partial,omitempty"`
	// CreatedAt is when the message was finalized.
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// GenerateMessageID creates a unique message identifier.
func GenerateMessageID() string {
	return "msg-" + uuid.New().String()
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{ID: GenerateMessageID(), Role: RoleSystem, Content: content, CreatedAt: time.Now()}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{ID: GenerateMessageID(), Role: RoleUser, Content: content, CreatedAt: time.Now()}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{ID: GenerateMessageID(), Role: RoleAssistant, Content: content, CreatedAt: time.Now()}
}

// NewToolResultMessage renders a tool result as a conversation message.
// Results travel back to the model as plain text framed with the tool name,
// matching the wire format the system prompt teaches the model.
func NewToolResultMessage(res ToolResult) Message {
	return Message{
		ID:        GenerateMessageID(),
		Role:      RoleTool,
		Content:   res.Render(),
		ToolUseID: res.ToolUseID,
		IsError:   res.IsError,
		CreatedAt: time.Now(),
	}
}
