package tool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/recodeai/recode"
)

// Executor dispatches approved tool uses to their handlers and normalizes
// every outcome, success or failure, into a recode.ToolResult. A handler
// error never escapes: the result carries it back to the model instead.
type Executor struct {
	registry       *Registry
	handlerTimeout time.Duration
	limits         Limits

	mu   sync.Mutex
	done map[string]bool
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithHandlerTimeout bounds each handler invocation. Default is 60 seconds;
// zero disables the per-handler timeout.
func WithHandlerTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.handlerTimeout = d
	}
}

// WithLimits overrides the per-tool output truncation limits.
func WithLimits(l Limits) ExecutorOption {
	return func(e *Executor) {
		e.limits = l
	}
}

// NewExecutor creates an Executor over the given registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry:       registry,
		handlerTimeout: 60 * time.Second,
		limits:         DefaultLimits(),
		done:           make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the handler for an approved tool use, exactly once per call
// id. A second invocation for the same id, a missing handler, a handler
// error, or cancellation all produce a failed result rather than an error.
func (e *Executor) Execute(ctx context.Context, call recode.ToolUse) recode.ToolResult {
	e.mu.Lock()
	if e.done[call.ID] {
		e.mu.Unlock()
		return e.failed(call, "tool use was already executed")
	}
	e.done[call.ID] = true
	e.mu.Unlock()

	handler, ok := e.registry.Get(call.Name)
	if !ok {
		return e.failed(call, (&ErrNotFound{Name: call.Name}).Error())
	}

	execCtx := ctx
	if e.handlerTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.handlerTimeout)
		defer cancel()
	}

	output, err := handler(execCtx, call)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled:
			err = &Failure{Kind: FailureCancelled, Detail: "tool execution was interrupted", Err: err}
		case errors.Is(err, context.DeadlineExceeded):
			err = &Failure{Kind: FailureTimeout, Detail: "tool execution timed out", Err: err}
		}
		return e.failed(call, err.Error())
	}

	return recode.ToolResult{
		ToolUseID:   call.ID,
		ToolName:    call.Name,
		Content:     e.limits.Truncate(call.Name, output),
		CompletedAt: time.Now(),
	}
}

// Executed reports whether a result was already produced for the call id.
func (e *Executor) Executed(toolUseID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done[toolUseID]
}

func (e *Executor) failed(call recode.ToolUse, detail string) recode.ToolResult {
	return recode.ToolResult{
		ToolUseID:   call.ID,
		ToolName:    call.Name,
		Content:     detail,
		IsError:     true,
		CompletedAt: time.Now(),
	}
}
