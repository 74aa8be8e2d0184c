package history

import (
	"fmt"
	"strings"

	"github.com/recodeai/recode"
)

// messageOverheadTokens approximates the per-message framing cost that the
// provider adds on top of the content itself.
const messageOverheadTokens = 4

// EstimateTokens approximates the token cost of a message. Providers don't
// expose their tokenizers over the wire, so a chars/4 heuristic stands in;
// it overcounts prose slightly and undercounts code slightly, which is
// acceptable for budget enforcement.
func EstimateTokens(msg recode.Message) int {
	return len(msg.Content)/4 + messageOverheadTokens
}

// EstimateTotal sums EstimateTokens over msgs.
func EstimateTotal(msgs []recode.Message) int {
	total := 0
	for _, msg := range msgs {
		total += EstimateTokens(msg)
	}
	return total
}

// Budget bounds the token size of the message window sent to the provider.
type Budget struct {
	// MaxTokens is the window size cap. Zero disables the budget.
	MaxTokens int
	// RecentKeep is the number of most recent messages kept verbatim when
	// the window must be condensed. Default 8.
	RecentKeep int
}

// DefaultBudget returns a budget sized for typical model context windows.
func DefaultBudget() Budget {
	return Budget{MaxTokens: 100000, RecentKeep: 8}
}

// Window returns the messages to send to the provider. If the full log fits
// the budget it is returned verbatim. Otherwise the window is condensed: the
// leading system message survives untouched, the most recent RecentKeep
// messages are kept verbatim, and everything between them collapses into a
// single synthetic summary message. The log itself is never modified.
//
// The condensed flag reports whether condensation happened. A condensed
// window can still exceed the budget when the recent tail alone is too
// large; the caller decides how to handle that.
func (b Budget) Window(msgs []recode.Message) (window []recode.Message, condensed bool) {
	if b.MaxTokens <= 0 || EstimateTotal(msgs) <= b.MaxTokens {
		return msgs, false
	}

	recentKeep := b.RecentKeep
	if recentKeep <= 0 {
		recentKeep = 8
	}

	head := 0
	if len(msgs) > 0 && msgs[0].Role == recode.RoleSystem {
		head = 1
	}

	tailStart := len(msgs) - recentKeep
	if tailStart < head {
		tailStart = head
	}
	dropped := msgs[head:tailStart]
	if len(dropped) == 0 {
		return msgs, false
	}

	window = make([]recode.Message, 0, head+1+len(msgs)-tailStart)
	window = append(window, msgs[:head]...)
	window = append(window, summarize(dropped))
	window = append(window, msgs[tailStart:]...)
	return window, true
}

// summarize builds the synthetic stand-in for a dropped span of messages.
// It is deterministic: message counts, the tools that ran, and the first
// user request, so the model keeps its bearings without the full text.
func summarize(dropped []recode.Message) recode.Message {
	byRole := make(map[recode.Role]int)
	var tools []string
	seenTools := make(map[string]bool)
	var firstUser string

	for _, msg := range dropped {
		byRole[msg.Role]++
		if msg.Role == recode.RoleUser && firstUser == "" {
			firstUser = msg.Content
		}
		if msg.Role == recode.RoleTool {
			// tool results render as "[name] Result:" or "[name] Error:"
			if name := toolNameOf(msg.Content); name != "" && !seenTools[name] {
				seenTools[name] = true
				tools = append(tools, name)
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[Earlier conversation condensed to fit the context window: %d messages removed (%d user, %d assistant, %d tool results).]\n",
		len(dropped), byRole[recode.RoleUser], byRole[recode.RoleAssistant], byRole[recode.RoleTool])
	if firstUser != "" {
		fmt.Fprintf(&b, "Original request: %s\n", firstLine(firstUser, 300))
	}
	if len(tools) > 0 {
		fmt.Fprintf(&b, "Tools used so far: %s\n", strings.Join(tools, ", "))
	}
	b.WriteString("The messages below are the most recent part of the conversation.")

	msg := recode.NewUserMessage(b.String())
	msg.Seq = dropped[0].Seq
	return msg
}

func toolNameOf(content string) string {
	if !strings.HasPrefix(content, "[") {
		return ""
	}
	end := strings.IndexByte(content, ']')
	if end < 0 {
		return ""
	}
	return content[1:end]
}

func firstLine(s string, maxLen int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}
