// Package recode provides the shared conversation and transport types for
// the recode coding-agent runtime.
//
// The root package intentionally contains only data types and small
// interfaces. Behavior lives in the subpackages:
//
//   - stream: assembles streamed model output into assistant messages
//   - parse: extracts tool-use blocks from assistant text
//   - approval: gates tool execution behind policy or a human decision
//   - tool: the tool registry, executor, and core tool handlers
//   - history: the conversation log, context window, and persistence
//   - agent: the task loop that composes everything above
//   - provider: ChatProvider implementations (Anthropic, OpenAI, Google)
//   - event: the typed event stream consumed by host UIs
//   - agui: maps runtime events onto the AG-UI protocol
//   - mcp: bridges tools from an MCP server into the registry
package recode
