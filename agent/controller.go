// Package agent implements the task loop: stream a model turn, parse tool
// uses out of the text, gate them on approval, execute, record the result,
// and go around again until the task reaches a terminal status.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/recodeai/recode"
	"github.com/recodeai/recode/approval"
	"github.com/recodeai/recode/event"
	"github.com/recodeai/recode/history"
	"github.com/recodeai/recode/internal/retry"
	"github.com/recodeai/recode/parse"
	"github.com/recodeai/recode/stream"
	"github.com/recodeai/recode/tool"
)

// nudge is injected when the model narrates without using a tool, once,
// before a second toolless turn is accepted as completion.
const nudge = "[ERROR] You did not use a tool in your previous response. " +
	"Every reply must contain exactly one tool use. " +
	"If the task is finished, use attempt_completion; if you need input, use ask_followup_question."

const onlyFirstToolNotice = "Only one tool may be used per message. " +
	"Only the first tool use was executed; re-issue the others one per message."

// Result is the final outcome of a task run.
type Result struct {
	// Status is the terminal task status.
	Status Status

	// Summary is the attempt_completion result text, or the final
	// narration for tasks completed without one.
	Summary string

	// Iterations is the number of loop iterations consumed.
	Iterations int

	// Usage is the summed token usage across all model turns.
	Usage recode.Usage

	// Err is set for StatusFailed and StatusCancelled.
	Err error
}

// Controller drives one task through the agent loop. It owns the
// conversation log and the wiring between the stream assembler, the parser,
// the approval gate, and the tool executor.
type Controller struct {
	task     *Task
	provider recode.ChatProvider
	executor *tool.Executor
	gate     *approval.Gate
	log      *history.Log
	parser   *parse.Parser
	events   chan event.Event
	opts     *Options
}

// New creates a Controller for a task. The log must already hold the system
// prompt and the user's goal; Resume-style callers pass a reloaded log.
func New(task *Task, provider recode.ChatProvider, executor *tool.Executor, gate *approval.Gate, log *history.Log, opts ...Option) *Controller {
	options := ApplyOptions(opts...)
	parser := parse.New()
	if len(options.ExtraSpecs) > 0 {
		parser = parse.NewWithSpecs(parse.Merged(options.ExtraSpecs))
	}
	return &Controller{
		task:     task,
		provider: provider,
		executor: executor,
		gate:     gate,
		log:      log,
		parser:   parser,
		events:   event.NewChannel(),
		opts:     options,
	}
}

// Task returns the controller's task.
func (c *Controller) Task() *Task {
	return c.task
}

// Gate returns the approval gate, so hosts can route decisions to it while
// Run blocks.
func (c *Controller) Gate() *approval.Gate {
	return c.gate
}

// Events returns the controller's event channel. Events are emitted
// non-blocking; an undrained channel drops them.
func (c *Controller) Events() <-chan event.Event {
	return c.events
}

// Log returns the conversation log.
func (c *Controller) Log() *history.Log {
	return c.log
}

// Run executes the agent loop until the task reaches a terminal status.
// It is a blocking call; approval decisions arrive from other goroutines
// via the Gate. The event channel is closed on return.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	defer close(c.events)

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	c.setStatus(StatusRunning)
	c.emit(event.Event{Type: event.RunStart})

	res := c.runLoop(ctx)

	c.task.setStatus(res.Status)
	c.emitStatus(res.Status)

	if res.Status == StatusFailed {
		c.emit(event.Event{Type: event.RunError, Error: res.Err})
	}
	c.emit(event.Event{Type: event.RunEnd, Message: res.Summary, Iteration: res.Iterations})

	c.sync(ctx)
	if res.Err != nil {
		return res, res.Err
	}
	return res, nil
}

func (c *Controller) runLoop(ctx context.Context) *Result {
	res := &Result{}
	nudged := false

	for iteration := 1; ; iteration++ {
		res.Iterations = iteration
		if c.opts.MaxIterations > 0 && iteration > c.opts.MaxIterations {
			res.Status = StatusFailed
			res.Err = fmt.Errorf("agent: maximum iterations (%d) reached without completion", c.opts.MaxIterations)
			return res
		}
		if ctx.Err() != nil {
			return c.cancelled(res, ctx.Err())
		}

		window, ok := c.window(res)
		if !ok {
			return res
		}

		turn, err := c.runTurn(ctx, window, iteration)
		if err == nil {
			appended := c.log.Append(turn.Message)
			c.sync(ctx)
			c.emit(event.Event{
				Type:      event.MessageEnd,
				MessageID: appended[0].ID,
				Response:  turn.Response,
				Iteration: iteration,
			})
		}
		if turn.Response != nil {
			res.Usage.InputTokens += turn.Response.Usage.InputTokens
			res.Usage.OutputTokens += turn.Response.Usage.OutputTokens
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return c.cancelled(res, err)
			}
			res.Status = StatusFailed
			res.Err = fmt.Errorf("agent: transport exhausted: %w", err)
			return res
		}

		segs := c.parser.Parse(turn.Message.Content)
		call := parse.FirstToolUse(segs)

		if call == nil {
			if reason, bad := firstMalformed(segs); bad {
				c.log.Append(recode.NewUserMessage(malformedFeedback(reason)))
				c.sync(ctx)
				continue
			}
			// Narration only: nudge once, then accept it as the answer.
			if !nudged {
				nudged = true
				c.log.Append(recode.NewUserMessage(nudge))
				c.sync(ctx)
				continue
			}
			res.Status = StatusCompleted
			res.Summary = turn.Message.Content
			return res
		}
		nudged = false

		if extra := countToolUses(segs) - c.opts.MaxToolUsesPerTurn; extra > 0 {
			c.log.Append(recode.NewUserMessage(onlyFirstToolNotice))
		}

		done := c.handleToolUse(ctx, res, *call, iteration)
		c.sync(ctx)
		if done {
			return res
		}
	}
}

// window builds the provider window for the next turn, condensing if the
// budget demands it. Returns ok=false with res filled when even the
// condensed window cannot fit.
func (c *Controller) window(res *Result) ([]recode.Message, bool) {
	window, condensed := c.opts.Budget.Window(c.log.Messages())
	if condensed {
		c.emit(event.Event{Type: event.ContextCondensed, Message: fmt.Sprintf("window condensed to %d messages", len(window))})
	}
	if c.opts.Budget.MaxTokens > 0 && history.EstimateTotal(window) > c.opts.Budget.MaxTokens {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("agent: context budget (%d tokens) exceeded even after condensation", c.opts.Budget.MaxTokens)
		return nil, false
	}
	return window, true
}

// runTurn streams one model turn, retrying transient transport failures
// within the configured attempt budget. Partial text from a failed attempt
// is preserved in the log before the retry; delivered text is never
// retracted.
func (c *Controller) runTurn(ctx context.Context, window []recode.Message, iteration int) (stream.Turn, error) {
	return retry.Do(ctx, c.opts.Retry, func() (stream.Turn, error) {
		// Each attempt is its own message; a preserved partial from a
		// failed attempt keeps its own identity in the log.
		messageID := recode.GenerateMessageID()
		started := false

		ch, err := c.provider.ChatStream(ctx, window, c.opts.ChatOptions...)
		if err != nil {
			return stream.Turn{}, err
		}
		turn, err := stream.Assemble(ctx, ch, func(delta, full string) {
			if !started {
				started = true
				c.emit(event.Event{Type: event.MessageStart, MessageID: messageID, Iteration: iteration})
			}
			c.emit(event.Event{Type: event.MessageDelta, MessageID: messageID, Delta: delta, Iteration: iteration})
		})
		turn.Message.ID = messageID
		if err != nil && turn.Message.Content != "" {
			// Text already delivered is never retracted, whether the
			// attempt is retried or the run fails here.
			c.log.Append(turn.Message)
			c.sync(ctx)
		}
		return turn, err
	})
}

// handleToolUse runs one parsed tool use through approval and execution.
// It returns true when the task reached a terminal status.
func (c *Controller) handleToolUse(ctx context.Context, res *Result, call recode.ToolUse, iteration int) bool {
	if call.ID == "" {
		call.ID = recode.GenerateToolUseID()
	}
	c.emit(event.Event{Type: event.ToolCallProposed, ToolUse: &call, Iteration: iteration})

	switch call.Name {
	case parse.ToolAttemptCompletion:
		res.Status = StatusCompleted
		res.Summary = call.Param("result")
		return true

	case parse.ToolAskFollowup:
		c.answerFollowup(ctx, call)
		return false
	}

	state := c.gate.Evaluate(call)
	if state == approval.StateAwaitingApproval {
		c.setStatus(StatusAwaitingApproval)
		c.emit(event.Event{Type: event.ToolCallAwaiting, ToolUse: &call, Iteration: iteration})

		var reason string
		state, reason = c.gate.Wait(ctx, call)
		c.setStatus(StatusRunning)

		if ctx.Err() != nil {
			c.cancelled(res, ctx.Err())
			return true
		}
		if !state.Granted() {
			c.emit(event.Event{Type: event.ToolCallDenied, ToolUse: &call, Message: reason, Iteration: iteration})
			c.log.Append(recode.NewToolResultMessage(recode.ToolResult{
				ToolUseID: call.ID,
				ToolName:  call.Name,
				Content:   approval.DenialReason(reason),
				IsError:   true,
			}))
			return false
		}
	}
	c.emit(event.Event{Type: event.ToolCallApproved, ToolUse: &call, Iteration: iteration})

	c.emit(event.Event{Type: event.ToolCallExecuting, ToolUse: &call, Iteration: iteration})
	result := c.executor.Execute(ctx, call)
	c.emit(event.Event{Type: event.ToolCallResult, ToolUse: &call, ToolResult: &result, Iteration: iteration})
	c.log.Append(recode.NewToolResultMessage(result))

	if ctx.Err() != nil {
		c.cancelled(res, ctx.Err())
		return true
	}
	return false
}

// answerFollowup resolves ask_followup_question through the host's Asker.
func (c *Controller) answerFollowup(ctx context.Context, call recode.ToolUse) {
	question := call.Param("question")
	result := recode.ToolResult{ToolUseID: call.ID, ToolName: call.Name}

	if c.opts.Asker == nil {
		result.Content = "The user did not provide an answer. Proceed with your best judgment or use attempt_completion."
		result.IsError = true
	} else if answer, err := c.opts.Asker(ctx, question); err != nil {
		result.Content = fmt.Sprintf("The question could not be delivered: %v", err)
		result.IsError = true
	} else {
		result.Content = fmt.Sprintf("<answer>\n%s\n</answer>", answer)
	}
	c.log.Append(recode.NewToolResultMessage(result))
}

func (c *Controller) cancelled(res *Result, err error) *Result {
	res.Status = StatusCancelled
	res.Err = fmt.Errorf("agent: task cancelled: %w", err)
	return res
}

func (c *Controller) setStatus(s Status) {
	if c.task.setStatus(s) {
		c.emitStatus(s)
	}
}

func (c *Controller) emitStatus(s Status) {
	c.emit(event.Event{Type: event.StatusChanged, Status: string(s)})
}

func (c *Controller) emit(e event.Event) {
	e.TaskID = c.task.ID
	event.Emit(c.events, e)
}

// sync persists the log and the task's lifecycle record after every
// mutation, so a crashed or killed process can resume the task from disk.
func (c *Controller) sync(ctx context.Context) {
	// Persistence failures are not fatal to the run.
	_ = c.log.Sync(ctx, history.MessagesKey(c.task.ID))
	_ = history.SaveState(ctx, c.log.Adapter(), history.TaskState{
		ID:     c.task.ID,
		Goal:   c.task.Goal,
		Status: string(c.task.Status()),
	})
}

func firstMalformed(segs []parse.Segment) (string, bool) {
	for _, s := range segs {
		if s.Kind == parse.SegmentMalformed {
			return s.Reason, true
		}
	}
	return "", false
}

func malformedFeedback(reason string) string {
	return fmt.Sprintf("[ERROR] Your tool use was malformed: %s. Retry the tool use with valid parameters.", reason)
}

func countToolUses(segs []parse.Segment) int {
	n := 0
	for _, s := range segs {
		if s.Kind == parse.SegmentToolUse {
			n++
		}
	}
	return n
}
