package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	aguievents "github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	"github.com/recodeai/recode"
	"github.com/recodeai/recode/agent"
	"github.com/recodeai/recode/agui"
	"github.com/recodeai/recode/approval"
	"github.com/recodeai/recode/history"
	"github.com/recodeai/recode/tool"
)

// unattendedGrace is how long a non-auto-approved call stays pending before
// the gate denies it. Unattended runs have nobody to ask.
const unattendedGrace = 2 * time.Second

// AgentHandler runs one agent task per request and streams AG-UI events
// over SSE.
type AgentHandler struct {
	provider recode.ChatProvider
	config   *Config
}

// NewAgentHandler creates a handler for the given provider.
func NewAgentHandler(provider recode.ChatProvider, cfg *Config) *AgentHandler {
	return &AgentHandler{provider: provider, config: cfg}
}

// ServeHTTP handles POST requests to run the agent and stream events via SSE.
func (h *AgentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		slog.Warn("method not allowed", "method", r.Method, "path", r.URL.Path)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var input agui.RunAgentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		slog.Warn("invalid request body", "error", err)
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	log := slog.With("run_id", input.RunID, "thread_id", input.ThreadID)

	prepared, err := input.Prepare()
	if err != nil {
		log.Warn("invalid input", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	log.Info("request started", "message_count", len(prepared.Messages))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("streaming not supported")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ctrl := h.newController(prepared)
	mapper := agui.NewMapper(prepared.ThreadID, prepared.RunID)

	done := make(chan *agent.Result, 1)
	go func() {
		result, _ := ctrl.Run(r.Context())
		done <- result
	}()

	var eventCount int
	for ev := range mapper.MapStream(ctrl.Events()) {
		eventCount++
		if err := writeSSE(w, flusher, ev); err != nil {
			log.Error("failed to write SSE event", "error", err, "event_type", ev.Type())
			break
		}
	}
	result := <-done

	log.Info("request completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"events_sent", eventCount,
		"status", string(result.Status),
		"iterations", result.Iterations,
	)
}

// newController wires one task run: fresh registry, workspace tools, an
// in-memory conversation seeded from the request, and an unattended gate.
func (h *AgentHandler) newController(prepared *agui.PreparedInput) *agent.Controller {
	registry := tool.NewRegistry()
	tool.RegisterCore(registry, tool.NewWorkspace(h.config.WorkDir))

	var policy *approval.Policy
	if h.config.ApproveAll {
		policy = approval.NewPolicy(registry.Names()...)
	} else {
		policy = approval.NewPolicy(h.config.AutoApprove...)
	}
	gate := approval.NewGate(policy, approval.WithDecisionTimeout(unattendedGrace))

	convLog := history.NewLog(history.NewMemoryAdapter())
	seedConversation(convLog, prepared, h.config.WorkDir)

	opts := []agent.Option{
		agent.WithMaxIterations(h.config.MaxIterations),
		agent.WithTimeout(h.config.Timeout),
	}
	if h.config.Model != "" {
		opts = append(opts, agent.WithModel(h.config.Model))
	}

	task := agent.NewTask(prepared.Goal)
	executor := tool.NewExecutor(registry)
	return agent.New(task, h.provider, executor, gate, convLog, opts...)
}

// seedConversation fills the log from the request, prepending the standard
// system message when the frontend did not send one.
func seedConversation(convLog *history.Log, prepared *agui.PreparedInput, workDir string) {
	hasSystem := len(prepared.Messages) > 0 && prepared.Messages[0].Role == recode.RoleSystem
	if !hasSystem {
		convLog.Append(recode.NewSystemMessage(agent.SystemPrompt(workDir, nil)))
	}
	convLog.Append(prepared.Messages...)
}

// writeSSE writes an AG-UI event in SSE format.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev aguievents.Event) error {
	data, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	// SSE format: event: TYPE\ndata: {json}\n\n
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type(), string(data)); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	flusher.Flush()
	return nil
}

// corsMiddleware adds CORS headers for cross-origin frontend requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// healthHandler returns a simple health check response.
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
