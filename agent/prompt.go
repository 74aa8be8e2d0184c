package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/recodeai/recode/parse"
)

// toolDocs holds the usage text shown to the model for each built-in tool.
// Bridged tools get a generic rendering from their parameter specs instead.
var toolDocs = map[string]string{
	parse.ToolReadFile:          "Read the contents of a file at the given path. Output is line-numbered.",
	parse.ToolWriteFile:         "Write content to a file at the given path, creating it (and any missing parent directories) if it does not exist and overwriting it if it does.",
	parse.ToolApplyDiff:         "Replace existing code in a file using a single search and replace block. The SEARCH section must exactly match existing content including whitespace and indentation; if you are not confident in the exact content, use read_file first. Optionally give start_line and end_line to pin where the SEARCH section sits. The diff parameter holds exactly one block:\n<<<<<<< SEARCH\n[exact content to find]\n=======\n[new content to replace with]\n>>>>>>> REPLACE",
	parse.ToolExecuteCommand:    "Execute a shell command in the working directory and return its output. Set requires_approval to true for commands that install software, modify configuration, or delete data.",
	parse.ToolListFiles:         "List the files and directories at the given path. Set recursive to true to descend into subdirectories.",
	parse.ToolSearchFiles:       "Search file contents under the given path with a regular expression. Results include the file, line number, and matching line. Optionally restrict to files matching file_pattern.",
	parse.ToolBrowserAction:     "Interact with a browser session: launch a page, click, type, scroll, or close.",
	parse.ToolAskFollowup:       "Ask the user a question when you need additional information to proceed. Use sparingly.",
	parse.ToolAttemptCompletion: "Present the final result of the task to the user. Use this only after confirming previous tool uses succeeded.",
}

const promptHeader = `You are a skilled software engineer working autonomously on the user's task. You read and modify files, run commands, and inspect their output until the task is done.

====

TOOL USE

You have access to a set of tools that are executed upon the user's approval. You can use one tool per message, and will receive the result of that tool use in the user's response. You use tools step-by-step to accomplish a given task, with each tool use informed by the result of the previous tool use.

Tool uses are formatted using XML-style tags. The tool name is enclosed in opening and closing tags, and each parameter is similarly enclosed within its own set of tags. Here's the structure:

<tool_name>
<parameter1_name>value1</parameter1_name>
<parameter2_name>value2</parameter2_name>
</tool_name>

For example:

<read_file>
<path>src/main.go</path>
</read_file>

Always adhere to this format for all tool uses to ensure proper parsing and execution.

# Tools
`

const promptRules = `====

RULES

- Your current working directory is %s. All paths are relative to it; do not use ~ or $HOME.
- Wait for the result of each tool use before continuing. Never assume a tool succeeded.
- If a tool use is denied, do not retry it unchanged. Adjust your approach or explain the limitation.
- Use ask_followup_question only when the task cannot proceed without an answer from the user.
- When the task is complete, use attempt_completion with a result that stands on its own. Do not end it with a question or an offer of further help.
- Your response must contain at most one tool use.`

// SystemPrompt assembles the leading system message: the agent's role, the
// tag syntax the parser recognizes, per-tool documentation, and operating
// rules. extra carries specs for bridged tools beyond the built-in set.
func SystemPrompt(workDir string, extra map[string]parse.ToolSpec) string {
	var b strings.Builder
	b.WriteString(promptHeader)

	specs := parse.Merged(extra)
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		writeToolDoc(&b, specs[name])
	}

	fmt.Fprintf(&b, promptRules, workDir)
	return b.String()
}

func writeToolDoc(b *strings.Builder, spec parse.ToolSpec) {
	fmt.Fprintf(b, "\n## %s\n", spec.Name)
	if doc, ok := toolDocs[spec.Name]; ok {
		fmt.Fprintf(b, "Description: %s\n", doc)
	} else {
		fmt.Fprintf(b, "Description: Tool provided by a connected server.\n")
	}
	if len(spec.Params) == 0 {
		return
	}
	b.WriteString("Parameters:\n")
	for _, p := range spec.Params {
		req := "optional"
		if p.Required {
			req = "required"
		}
		if p.Kind == parse.KindEnum && len(p.Enum) > 0 {
			fmt.Fprintf(b, "- %s: (%s) One of: %s\n", p.Name, req, strings.Join(p.Enum, ", "))
			continue
		}
		fmt.Fprintf(b, "- %s: (%s)\n", p.Name, req)
	}
	b.WriteString("Usage:\n")
	fmt.Fprintf(b, "<%s>\n", spec.Name)
	for _, p := range spec.Params {
		fmt.Fprintf(b, "<%s>%s here</%s>\n", p.Name, p.Name, p.Name)
	}
	fmt.Fprintf(b, "</%s>\n", spec.Name)
}
