package agui

import (
	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	"github.com/recodeai/recode"
)

// ToMessages converts AG-UI messages to runtime messages, so a frontend can
// seed a task's conversation.
func ToMessages(msgs []events.Message) []recode.Message {
	result := make([]recode.Message, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, ToMessage(msg))
	}
	return result
}

// ToMessage converts a single AG-UI message.
func ToMessage(msg events.Message) recode.Message {
	m := recode.Message{
		ID:   msg.ID,
		Role: toRole(msg.Role),
	}
	if msg.Content != nil {
		m.Content = *msg.Content
	}
	if msg.ToolCallID != nil {
		m.ToolUseID = *msg.ToolCallID
	}
	return m
}

// FromMessages converts runtime messages to AG-UI messages.
func FromMessages(msgs []recode.Message) []events.Message {
	result := make([]events.Message, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, FromMessage(msg))
	}
	return result
}

// FromMessage converts a single runtime message.
func FromMessage(msg recode.Message) events.Message {
	content := msg.Content
	out := events.Message{
		ID:      msg.ID,
		Role:    fromRole(msg.Role),
		Content: &content,
	}
	if msg.ToolUseID != "" {
		id := msg.ToolUseID
		out.ToolCallID = &id
	}
	return out
}

func toRole(role string) recode.Role {
	switch role {
	case RoleSystem:
		return recode.RoleSystem
	case RoleAssistant:
		return recode.RoleAssistant
	case RoleTool:
		return recode.RoleTool
	default:
		return recode.RoleUser
	}
}

func fromRole(role recode.Role) string {
	switch role {
	case recode.RoleSystem:
		return RoleSystem
	case recode.RoleAssistant:
		return RoleAssistant
	case recode.RoleTool:
		return RoleTool
	default:
		return RoleUser
	}
}
