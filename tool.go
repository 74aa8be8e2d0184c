package recode

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ToolUse is a parsed tool invocation extracted from assistant text.
// It is immutable after creation; approval state and results are tracked
// separately, keyed by ID.
type ToolUse struct {
	// ID is a unique identifier for this invocation.
	ID string `json:"id"`
	// Name is the tool name. Always a member of the parser's registry.
	Name string `json:"name"`
	// Params maps parameter names to their raw string values.
	Params map[string]string `json:"params"`
	// Offset is the byte offset of the opening tag within the assistant
	// message the block was parsed from.
	Offset int `json:"offset"`
}

// Param returns the named parameter value, or "" if absent.
func (t ToolUse) Param(name string) string {
	return t.Params[name]
}

// GenerateToolUseID creates a unique tool-use identifier.
func GenerateToolUseID() string {
	return "toolu-" + uuid.New().String()
}

// ToolResult is the recorded outcome of executing (or refusing) a tool use.
// Created exactly once per tool use and immutable thereafter.
type ToolResult struct {
	// ToolUseID matches the ID of the corresponding ToolUse.
	ToolUseID string `json:"toolUseId"`
	// ToolName is the tool that produced the result.
	ToolName string `json:"toolName"`
	// Content is the output payload: file contents, command output, a
	// diff, or an error description.
	Content string `json:"content"`
	// IsError indicates the result represents a failure.
	IsError bool `json:"isError,omitempty"`
	// CompletedAt is when execution finished.
	CompletedAt time.Time `json:"completedAt,omitempty"`
}

// Render formats the result the way it is presented to the model.
func (r ToolResult) Render() string {
	if r.IsError {
		return fmt.Sprintf("[%s] The tool execution failed with the following error:\n<error>\n%s\n</error>", r.ToolName, r.Content)
	}
	return fmt.Sprintf("[%s] Result:\n%s", r.ToolName, r.Content)
}
