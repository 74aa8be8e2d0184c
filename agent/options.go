package agent

import (
	"context"
	"time"

	"github.com/recodeai/recode"
	"github.com/recodeai/recode/history"
	"github.com/recodeai/recode/internal/retry"
	"github.com/recodeai/recode/parse"
)

// AskerFunc answers an ask_followup_question tool use. It returns the
// user's answer, which flows back to the model as the tool result.
type AskerFunc func(ctx context.Context, question string) (string, error)

// Options contains configuration for a task run.
type Options struct {
	// MaxIterations bounds the number of agent loop iterations. Exceeding
	// it fails the task. Default 25.
	MaxIterations int

	// MaxToolUsesPerTurn bounds how many tool uses from one assistant
	// message are executed; extras are acknowledged but skipped. Default 1.
	MaxToolUsesPerTurn int

	// Timeout sets a deadline for the entire run. Zero means no timeout.
	Timeout time.Duration

	// Retry configures transport retry for each model turn.
	Retry retry.Config

	// Budget bounds the token size of the window sent to the provider.
	Budget history.Budget

	// Asker answers ask_followup_question calls. If nil, the model is told
	// no answer was provided.
	Asker AskerFunc

	// ExtraSpecs announces additional tools (MCP bridges, host tools) to
	// the parser.
	ExtraSpecs map[string]parse.ToolSpec

	// ChatOptions are passed through to the ChatProvider on every turn.
	ChatOptions []recode.Option
}

// Option is a functional option for configuring a task run.
type Option func(*Options)

// WithMaxIterations bounds the number of loop iterations.
func WithMaxIterations(n int) Option {
	return func(o *Options) {
		o.MaxIterations = n
	}
}

// WithMaxToolUsesPerTurn bounds how many tool uses per assistant message
// are executed.
func WithMaxToolUsesPerTurn(n int) Option {
	return func(o *Options) {
		o.MaxToolUsesPerTurn = n
	}
}

// WithTimeout sets a deadline for the entire run.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithRetry overrides the transport retry configuration.
func WithRetry(cfg retry.Config) Option {
	return func(o *Options) {
		o.Retry = cfg
	}
}

// WithBudget overrides the context window budget.
func WithBudget(b history.Budget) Option {
	return func(o *Options) {
		o.Budget = b
	}
}

// WithToolSpecs announces additional tool schemas to the parser.
func WithToolSpecs(extra map[string]parse.ToolSpec) Option {
	return func(o *Options) {
		if o.ExtraSpecs == nil {
			o.ExtraSpecs = make(map[string]parse.ToolSpec, len(extra))
		}
		for name, spec := range extra {
			o.ExtraSpecs[name] = spec
		}
	}
}

// WithAsker sets the collaborator that answers follow-up questions.
func WithAsker(fn AskerFunc) Option {
	return func(o *Options) {
		o.Asker = fn
	}
}

// WithChatOptions passes options through to the ChatProvider.
func WithChatOptions(opts ...recode.Option) Option {
	return func(o *Options) {
		o.ChatOptions = append(o.ChatOptions, opts...)
	}
}

// WithModel is a convenience option to set the model for chat calls.
func WithModel(model string) Option {
	return func(o *Options) {
		o.ChatOptions = append(o.ChatOptions, recode.WithModel(model))
	}
}

// ApplyOptions applies functional options over the defaults.
func ApplyOptions(opts ...Option) *Options {
	o := &Options{
		MaxIterations:      25,
		MaxToolUsesPerTurn: 1,
		Retry: retry.Config{
			MaxAttempts:  2,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			Jitter:       0.1,
		},
		Budget: history.DefaultBudget(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
