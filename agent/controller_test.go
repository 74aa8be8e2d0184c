package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recodeai/recode"
	"github.com/recodeai/recode/approval"
	"github.com/recodeai/recode/history"
	"github.com/recodeai/recode/internal/retry"
	"github.com/recodeai/recode/tool"
)

// scriptedProvider plays back canned turns. A turn with err set fails the
// stream after emitting partial (if non-empty).
type scriptedProvider struct {
	turns     []scriptedTurn
	callCount int
}

type scriptedTurn struct {
	content string
	partial string
	err     error
}

func (p *scriptedProvider) ChatStream(ctx context.Context, messages []recode.Message, opts ...recode.Option) (<-chan recode.StreamEvent, error) {
	ch := make(chan recode.StreamEvent, 16)

	var turn scriptedTurn
	if p.callCount < len(p.turns) {
		turn = p.turns[p.callCount]
	} else {
		turn = scriptedTurn{content: "<attempt_completion>\n<result>ran out of script</result>\n</attempt_completion>"}
	}
	p.callCount++

	go func() {
		defer close(ch)
		if turn.err != nil {
			if turn.partial != "" {
				ch <- recode.StreamEvent{Delta: turn.partial}
			}
			ch <- recode.StreamEvent{Err: turn.err}
			return
		}
		for _, line := range strings.SplitAfter(turn.content, "\n") {
			if line == "" {
				continue
			}
			ch <- recode.StreamEvent{Delta: line}
		}
		ch <- recode.StreamEvent{
			Done:     true,
			Response: &recode.Response{Content: turn.content, FinishReason: "end_turn", Usage: recode.Usage{InputTokens: 10, OutputTokens: 20}},
		}
	}()
	return ch, nil
}

type fixture struct {
	controller *Controller
	registry   *tool.Registry
	executed   *[]string
}

func newFixture(t *testing.T, provider recode.ChatProvider, policy *approval.Policy, opts ...Option) *fixture {
	t.Helper()

	executed := &[]string{}
	registry := tool.NewRegistry()
	registry.MustRegister(tool.Registration{
		Name: "read_file",
		Handler: func(ctx context.Context, call recode.ToolUse) (string, error) {
			*executed = append(*executed, call.Param("path"))
			return "1 | contents of " + call.Param("path"), nil
		},
	})

	log := history.NewLog(nil)
	log.Append(
		recode.NewSystemMessage("You are a coding agent."),
		recode.NewUserMessage("add a LICENSE file"),
	)

	task := NewTask("add a LICENSE file")
	gate := approval.NewGate(policy, approval.WithDecisionTimeout(time.Second))
	controller := New(task, provider, tool.NewExecutor(registry), gate, log, opts...)
	return &fixture{controller: controller, registry: registry, executed: executed}
}

func fastRetry() Option {
	return WithRetry(retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1})
}

func TestController_ToolThenCompletion(t *testing.T) {
	provider := &scriptedProvider{turns: []scriptedTurn{
		{content: "Let me look at the file first.\n<read_file>\n<path>README.md</path>\n</read_file>"},
		{content: "<attempt_completion>\n<result>LICENSE added</result>\n</attempt_completion>"},
	}}
	f := newFixture(t, provider, approval.NewPolicy("read_file"), fastRetry())

	res, err := f.controller.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, "LICENSE added", res.Summary)
	assert.Equal(t, StatusCompleted, f.controller.Task().Status())
	assert.Equal(t, []string{"README.md"}, *f.executed)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 40, res.Usage.OutputTokens)

	// history: system, user, assistant, tool result, assistant
	msgs := f.controller.Log().Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, recode.RoleTool, msgs[3].Role)
	assert.Contains(t, msgs[3].Content, "contents of README.md")
	for i, msg := range msgs {
		assert.Equal(t, i, msg.Seq)
	}
}

func TestController_ApprovalFlow(t *testing.T) {
	provider := &scriptedProvider{turns: []scriptedTurn{
		{content: "<read_file>\n<path>secrets.txt</path>\n</read_file>"},
		{content: "<attempt_completion>\n<result>done</result>\n</attempt_completion>"},
	}}

	t.Run("approved call executes", func(t *testing.T) {
		f := newFixture(t, provider, nil, fastRetry())

		go func() {
			for {
				for _, id := range pendingIDs(f.controller.Gate()) {
					f.controller.Gate().Approve(id)
					return
				}
				time.Sleep(time.Millisecond)
			}
		}()

		res, err := f.controller.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, res.Status)
		assert.Equal(t, []string{"secrets.txt"}, *f.executed)
	})
}

func TestController_DeniedToolIsNotExecuted(t *testing.T) {
	provider := &scriptedProvider{turns: []scriptedTurn{
		{content: "<read_file>\n<path>secrets.txt</path>\n</read_file>"},
		{content: "<attempt_completion>\n<result>ok, skipping it</result>\n</attempt_completion>"},
	}}
	f := newFixture(t, provider, nil, fastRetry())

	go func() {
		for {
			for _, id := range pendingIDs(f.controller.Gate()) {
				f.controller.Gate().Deny(id, "do not read secrets")
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	res, err := f.controller.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Empty(t, *f.executed)

	var denial *recode.Message
	for _, msg := range f.controller.Log().Messages() {
		if msg.Role == recode.RoleTool && msg.IsError {
			m := msg
			denial = &m
		}
	}
	require.NotNil(t, denial)
	assert.Contains(t, denial.Content, "The user denied this operation")
	assert.Contains(t, denial.Content, "do not read secrets")
}

func TestController_TransportRetryThenSuccess(t *testing.T) {
	provider := &scriptedProvider{turns: []scriptedTurn{
		{partial: "I was about to say", err: recode.NewTransientError("overloaded", 529, nil)},
		{content: "<attempt_completion>\n<result>recovered</result>\n</attempt_completion>"},
	}}
	f := newFixture(t, provider, nil, fastRetry())

	res, err := f.controller.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)

	// the partial text from the failed attempt is preserved, not retracted
	var partials []recode.Message
	for _, msg := range f.controller.Log().Messages() {
		if msg.Partial {
			partials = append(partials, msg)
		}
	}
	require.Len(t, partials, 1)
	assert.Equal(t, "I was about to say", partials[0].Content)
}

func TestController_TransportExhaustedFailsTask(t *testing.T) {
	provider := &scriptedProvider{turns: []scriptedTurn{
		{err: recode.NewTransientError("overloaded", 529, nil)},
		{err: recode.NewTransientError("overloaded", 529, nil)},
	}}
	f := newFixture(t, provider, nil, fastRetry())

	res, err := f.controller.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, err.Error(), "transport exhausted")
	assert.Equal(t, 2, provider.callCount)
}

func TestController_RetryDisabledSingleAttempt(t *testing.T) {
	provider := &scriptedProvider{turns: []scriptedTurn{
		{err: recode.NewTransientError("overloaded", 529, nil)},
		{content: "<attempt_completion>\n<result>would have recovered</result>\n</attempt_completion>"},
	}}
	f := newFixture(t, provider, nil, WithRetry(retry.Disabled()))

	res, err := f.controller.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, provider.callCount, "a transient failure is not retried when retry is disabled")
}

func TestController_PermanentTransportErrorFailsFast(t *testing.T) {
	provider := &scriptedProvider{turns: []scriptedTurn{
		{err: recode.NewPermanentError("invalid api key", 401, nil)},
	}}
	f := newFixture(t, provider, nil, fastRetry())

	res, err := f.controller.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, provider.callCount)
}

func TestController_NudgeThenCompletion(t *testing.T) {
	provider := &scriptedProvider{turns: []scriptedTurn{
		{content: "I think the task is basically done."},
		{content: "All done: the LICENSE file exists."},
	}}
	f := newFixture(t, provider, nil, fastRetry())

	res, err := f.controller.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, "All done: the LICENSE file exists.", res.Summary)

	var foundNudge bool
	for _, msg := range f.controller.Log().Messages() {
		if msg.Role == recode.RoleUser && strings.Contains(msg.Content, "did not use a tool") {
			foundNudge = true
		}
	}
	assert.True(t, foundNudge)
}

func TestController_MalformedToolUseGetsFeedback(t *testing.T) {
	provider := &scriptedProvider{turns: []scriptedTurn{
		{content: "<read_file>\n<wrong>README.md</wrong>\n</read_file>"},
		{content: "<attempt_completion>\n<result>fixed</result>\n</attempt_completion>"},
	}}
	f := newFixture(t, provider, approval.NewPolicy("read_file"), fastRetry())

	res, err := f.controller.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Empty(t, *f.executed)

	var feedback bool
	for _, msg := range f.controller.Log().Messages() {
		if msg.Role == recode.RoleUser && strings.Contains(msg.Content, "malformed") {
			feedback = true
		}
	}
	assert.True(t, feedback)
}

func TestController_MaxIterations(t *testing.T) {
	provider := &scriptedProvider{turns: []scriptedTurn{
		{content: "<read_file>\n<path>a.txt</path>\n</read_file>"},
		{content: "<read_file>\n<path>b.txt</path>\n</read_file>"},
		{content: "<read_file>\n<path>c.txt</path>\n</read_file>"},
	}}
	f := newFixture(t, provider, approval.NewPolicy("read_file"), fastRetry(), WithMaxIterations(2))

	res, err := f.controller.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, err.Error(), "maximum iterations")
	assert.Equal(t, []string{"a.txt", "b.txt"}, *f.executed)
}

func TestController_CancelWhileAwaitingApproval(t *testing.T) {
	provider := &scriptedProvider{turns: []scriptedTurn{
		{content: "<read_file>\n<path>secrets.txt</path>\n</read_file>"},
	}}
	f := newFixture(t, provider, nil, fastRetry())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for f.controller.Gate().PendingCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	res, err := f.controller.Run(ctx)
	require.Error(t, err)

	assert.Equal(t, StatusCancelled, res.Status)
	assert.Empty(t, *f.executed)
}

func TestController_FollowupQuestion(t *testing.T) {
	provider := &scriptedProvider{turns: []scriptedTurn{
		{content: "<ask_followup_question>\n<question>Which license?</question>\n</ask_followup_question>"},
		{content: "<attempt_completion>\n<result>MIT it is</result>\n</attempt_completion>"},
	}}

	var asked string
	f := newFixture(t, provider, nil, fastRetry(), WithAsker(func(ctx context.Context, question string) (string, error) {
		asked = question
		return "MIT", nil
	}))

	res, err := f.controller.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, "Which license?", asked)

	var answer bool
	for _, msg := range f.controller.Log().Messages() {
		if msg.Role == recode.RoleTool && strings.Contains(msg.Content, "<answer>\nMIT\n</answer>") {
			answer = true
		}
	}
	assert.True(t, answer)
}

func TestController_OnlyFirstToolUseExecutes(t *testing.T) {
	provider := &scriptedProvider{turns: []scriptedTurn{
		{content: "<read_file>\n<path>a.txt</path>\n</read_file>\n<read_file>\n<path>b.txt</path>\n</read_file>"},
		{content: "<attempt_completion>\n<result>done</result>\n</attempt_completion>"},
	}}
	f := newFixture(t, provider, approval.NewPolicy("read_file"), fastRetry())

	res, err := f.controller.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, []string{"a.txt"}, *f.executed)

	var notice bool
	for _, msg := range f.controller.Log().Messages() {
		if strings.Contains(msg.Content, "Only one tool may be used per message") {
			notice = true
		}
	}
	assert.True(t, notice)
}

func TestController_PersistsHistory(t *testing.T) {
	provider := &scriptedProvider{turns: []scriptedTurn{
		{content: "<attempt_completion>\n<result>done</result>\n</attempt_completion>"},
	}}

	adapter := history.NewMemoryAdapter()
	log := history.NewLog(adapter)
	log.Append(recode.NewSystemMessage("sys"), recode.NewUserMessage("goal"))

	task := NewTask("goal")
	controller := New(task, provider, tool.NewExecutor(tool.NewRegistry()), approval.NewGate(nil), log, fastRetry())

	_, err := controller.Run(context.Background())
	require.NoError(t, err)

	restored := history.NewLog(adapter)
	require.NoError(t, restored.Reload(context.Background(), history.MessagesKey(task.ID)))
	assert.Equal(t, log.Len(), restored.Len())

	state, err := history.LoadState(context.Background(), adapter, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, state.ID)
	assert.Equal(t, "goal", state.Goal)
	assert.Equal(t, string(StatusCompleted), state.Status)
}

// pendingIDs lists tool use ids currently parked at the gate.
func pendingIDs(g *approval.Gate) []string {
	if g.PendingCount() == 0 {
		return nil
	}
	return g.Pending()
}
