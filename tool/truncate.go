package tool

import "fmt"

// Mode selects where truncated output is cut.
type Mode string

const (
	// ModeHeadTail keeps the start and end, cutting the middle.
	ModeHeadTail Mode = "head_tail"
	// ModeTail keeps only the end.
	ModeTail Mode = "tail"
)

// Limits caps tool output size before it enters conversation history, so a
// single runaway command can't blow the context budget.
type Limits struct {
	// MaxChars maps tool name to its character cap.
	MaxChars map[string]int
	// Modes maps tool name to its truncation mode.
	Modes map[string]Mode
	// Fallback applies to tools with no explicit cap.
	Fallback int
}

// DefaultLimits returns the standard per-tool output caps.
func DefaultLimits() Limits {
	return Limits{
		MaxChars: map[string]int{
			"read_file":       50000,
			"execute_command": 30000,
			"search_files":    20000,
			"list_files":      20000,
			"write_file":      1000,
		},
		Modes: map[string]Mode{
			"read_file":       ModeHeadTail,
			"execute_command": ModeHeadTail,
			"search_files":    ModeTail,
			"list_files":      ModeTail,
			"write_file":      ModeTail,
		},
		Fallback: 30000,
	}
}

// Truncate applies the tool's cap to output.
func (l Limits) Truncate(toolName, output string) string {
	maxChars, ok := l.MaxChars[toolName]
	if !ok {
		maxChars = l.Fallback
	}
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}

	mode, ok := l.Modes[toolName]
	if !ok {
		mode = ModeHeadTail
	}
	removed := len(output) - maxChars

	switch mode {
	case ModeTail:
		return fmt.Sprintf("[NOTE: output truncated, first %d characters removed. Re-run the tool with narrower parameters to see specific parts.]\n\n", removed) +
			output[removed:]
	default:
		half := maxChars / 2
		return output[:half] +
			fmt.Sprintf("\n\n[NOTE: output truncated, %d characters removed from the middle. Re-run the tool with narrower parameters to see specific parts.]\n\n", removed) +
			output[len(output)-(maxChars-half):]
	}
}
