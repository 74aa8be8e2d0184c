// Command recode runs an autonomous coding agent against a local workspace.
//
// The agent streams model output to the terminal, proposes tool calls parsed
// from the response text, and asks for approval before anything that mutates
// state. History is persisted under the state directory so a run leaves an
// inspectable trail.
//
// Configuration is via environment variables (a .env file is loaded first):
//
//	RECODE_PROVIDER       - anthropic, openai, or google (default: first with a key)
//	RECODE_MODEL          - model override (optional)
//	RECODE_WORKDIR        - workspace root (default: .)
//	RECODE_STATE_DIR      - history directory (default: .recode)
//	RECODE_MAX_ITERATIONS - loop ceiling (default: 25)
//	RECODE_TIMEOUT        - whole-run timeout, e.g. 10m (default: none)
//	RECODE_AUTO_APPROVE   - comma-separated tool names, or "none" (default: read-only tools)
//	RECODE_MCP_SERVER     - command line for a stdio MCP server to bridge (optional)
//	RECODE_MCP_SSE_URL    - base URL of a running SSE MCP server to bridge (optional)
//	ANTHROPIC_API_KEY     - Anthropic API key
//	OPENAI_API_KEY        - OpenAI API key
//	GOOGLE_API_KEY        - Google API key
//
// Usage:
//
//	recode "add a --verbose flag to the CLI"
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/recodeai/recode"
	"github.com/recodeai/recode/agent"
	"github.com/recodeai/recode/approval"
	"github.com/recodeai/recode/event"
	"github.com/recodeai/recode/history"
	"github.com/recodeai/recode/mcp"
	"github.com/recodeai/recode/parse"
	"github.com/recodeai/recode/provider/anthropic"
	"github.com/recodeai/recode/provider/google"
	"github.com/recodeai/recode/provider/openai"
	"github.com/recodeai/recode/tool"
)

func main() {
	godotenv.Load()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stdin := newStdinPrompter()

	goal := strings.TrimSpace(strings.Join(os.Args[1:], " "))
	if goal == "" {
		goal, err = stdin.Ask("Task: ")
		if err != nil || goal == "" {
			log.Fatal("no task given")
		}
	}

	result, err := run(ctx, cfg, stdin, goal)
	if err != nil {
		log.Fatalf("run error: %v", err)
	}

	fmt.Println()
	fmt.Printf("[%s after %d iteration(s), %d in / %d out tokens]\n",
		result.Status, result.Iterations,
		result.Usage.InputTokens, result.Usage.OutputTokens)
	if result.Summary != "" {
		fmt.Println(result.Summary)
	}
	if result.Status != agent.StatusCompleted {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, stdin *stdinPrompter, goal string) (*agent.Result, error) {
	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry := tool.NewRegistry()
	tool.RegisterCore(registry, tool.NewWorkspace(cfg.WorkDir))

	opts := []agent.Option{
		agent.WithMaxIterations(cfg.MaxIterations),
		agent.WithAsker(stdin.Asker()),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, agent.WithTimeout(cfg.Timeout))
	}
	if cfg.Model != "" {
		opts = append(opts, agent.WithModel(cfg.Model))
	}

	// Tools from a bridged MCP server always go through approval.
	var extraSpecs map[string]parse.ToolSpec
	if cfg.MCPCommand != "" || cfg.MCPSSEURL != "" {
		var bridged *mcp.Bridge
		var err error
		if cfg.MCPCommand != "" {
			bridged, err = mcp.NewBridge(ctx, cfg.MCPCommand, os.Environ(), cfg.MCPArgs...)
		} else {
			bridged, err = mcp.NewBridgeSSE(ctx, cfg.MCPSSEURL)
		}
		if err != nil {
			return nil, fmt.Errorf("mcp server: %w", err)
		}
		defer bridged.Close()
		if err := bridged.RegisterAll(registry); err != nil {
			return nil, fmt.Errorf("mcp tools: %w", err)
		}
		extraSpecs = bridged.Specs()
		opts = append(opts, agent.WithToolSpecs(extraSpecs))
		log.Printf("bridged %d MCP tool(s): %s", bridged.Len(), strings.Join(bridged.Names(), ", "))
	}

	adapter, err := history.NewFileAdapter(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("state dir: %w", err)
	}

	convLog := history.NewLog(adapter)
	convLog.Append(
		recode.NewSystemMessage(agent.SystemPrompt(cfg.WorkDir, extraSpecs)),
		recode.NewUserMessage(goal),
	)

	task := agent.NewTask(goal)
	executor := tool.NewExecutor(registry)

	// Prompting from the on-await hook keeps the decision on the same
	// goroutine the loop is suspended on.
	var gate *approval.Gate
	gate = approval.NewGate(approval.NewPolicy(cfg.AutoApprove...),
		approval.WithOnAwait(func(call recode.ToolUse) {
			decide(gate, stdin, call)
		}))

	ctrl := agent.New(task, provider, executor, gate, convLog, opts...)
	log.Printf("task %s (provider %s, workdir %s)", task.ID, cfg.Provider, cfg.WorkDir)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumeEvents(ctrl)
	}()

	result, _ := ctrl.Run(ctx)
	wg.Wait()
	return result, nil
}

func newProvider(ctx context.Context, cfg *Config) (recode.ChatProvider, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(cfg.AnthropicKey), nil
	case "openai":
		return openai.New(cfg.OpenAIKey), nil
	case "google":
		return google.New(ctx, cfg.GoogleKey)
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

// consumeEvents renders the run to the terminal.
func consumeEvents(ctrl *agent.Controller) {
	for e := range ctrl.Events() {
		switch e.Type {
		case event.MessageDelta:
			fmt.Print(e.Delta)
		case event.MessageEnd:
			fmt.Println()
		case event.ToolCallProposed:
			fmt.Printf("\n* %s\n", describeCall(e.ToolUse))
		case event.ToolCallDenied:
			fmt.Printf("  denied: %s\n", e.Message)
		case event.ToolCallResult:
			if e.ToolResult != nil && e.ToolResult.IsError {
				fmt.Printf("  failed: %s\n", firstLine(e.ToolResult.Content))
			}
		case event.ContextCondensed:
			log.Print("conversation condensed to fit the context budget")
		case event.RunError:
			log.Printf("run failed: %v", e.Error)
		}
	}
}

func decide(gate *approval.Gate, stdin *stdinPrompter, call recode.ToolUse) {
	answer, err := stdin.Ask(fmt.Sprintf("  allow %s? [y/N] ", describeCall(&call)))
	if err != nil {
		gate.Deny(call.ID, "input closed")
		return
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		gate.Approve(call.ID)
	default:
		gate.Deny(call.ID, "rejected at the prompt")
	}
}

func describeCall(call *recode.ToolUse) string {
	if call == nil {
		return "?"
	}
	parts := make([]string, 0, len(call.Params))
	for name, value := range call.Params {
		parts = append(parts, fmt.Sprintf("%s=%s", name, firstLine(value)))
	}
	sort.Strings(parts)
	return fmt.Sprintf("%s(%s)", call.Name, strings.Join(parts, ", "))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + "..."
	}
	if len(s) > 80 {
		s = s[:80] + "..."
	}
	return s
}

// stdinPrompter serializes interactive reads from standard input.
type stdinPrompter struct {
	mu     sync.Mutex
	reader *bufio.Reader
}

func newStdinPrompter() *stdinPrompter {
	return &stdinPrompter{reader: bufio.NewReader(os.Stdin)}
}

func (p *stdinPrompter) Ask(prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Print(prompt)
	line, err := p.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Asker adapts the prompter to the agent's followup question hook.
func (p *stdinPrompter) Asker() agent.AskerFunc {
	return func(_ context.Context, question string) (string, error) {
		fmt.Printf("\n? %s\n", question)
		return p.Ask("> ")
	}
}
