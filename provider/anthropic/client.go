// Package anthropic wraps the Anthropic SDK as a recode.ChatProvider.
// Tool use travels as plain text in the conversation, so the wrapper only
// deals in text blocks; native SDK tool calling is not used.
package anthropic

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/recodeai/recode"
)

// DefaultModel is used when no model is set via options.
const DefaultModel = "claude-sonnet-4-20250514"

// Client wraps the Anthropic SDK to implement recode.ChatProvider.
type Client struct {
	client *anthropic.Client
	model  string
}

// ClientOption configures the Anthropic client.
type ClientOption func(*Client)

// WithModel sets the default model for requests.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// New creates a new Anthropic client with the given API key.
func New(apiKey string, opts ...ClientOption) *Client {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	c := &Client{
		client: &client,
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChatStream sends a conversation and returns a channel of streaming events.
func (c *Client) ChatStream(ctx context.Context, messages []recode.Message, opts ...recode.Option) (<-chan recode.StreamEvent, error) {
	options := recode.ApplyOptions(opts...)
	model := c.model
	if options.Model != "" {
		model = options.Model
	}

	maxTokens := int64(8192)
	if options.MaxTokens > 0 {
		maxTokens = int64(options.MaxTokens)
	}

	msgs, system := convertMessages(messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = system
	}
	if options.Temperature != nil {
		params.Temperature = anthropic.Float(*options.Temperature)
	}
	if len(options.StopSequences) > 0 {
		params.StopSequences = options.StopSequences
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	ch := make(chan recode.StreamEvent)

	go func() {
		defer close(ch)
		var acc anthropic.Message

		for stream.Next() {
			event := stream.Current()
			acc.Accumulate(event)

			if event.Type == "content_block_delta" {
				delta := event.AsContentBlockDelta()
				if textDelta := delta.Delta.AsTextDelta(); textDelta.Type == "text_delta" {
					if !send(ctx, ch, recode.StreamEvent{Delta: textDelta.Text}) {
						return
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			send(ctx, ch, recode.StreamEvent{Err: wrapError(err)})
			return
		}

		content := ""
		for _, block := range acc.Content {
			if block.Type == "text" {
				content += block.Text
			}
		}

		send(ctx, ch, recode.StreamEvent{
			Done: true,
			Response: &recode.Response{
				Content:      content,
				FinishReason: string(acc.StopReason),
				Usage: recode.Usage{
					InputTokens:  int(acc.Usage.InputTokens),
					OutputTokens: int(acc.Usage.OutputTokens),
				},
			},
		})
	}()

	return ch, nil
}

// send delivers ev unless the context ends first, so a cancelled consumer
// never strands this goroutine on an unbuffered channel.
func send(ctx context.Context, ch chan<- recode.StreamEvent, ev recode.StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// convertMessages maps conversation roles onto the Anthropic wire shape.
// System prompts become system blocks; tool results are already rendered as
// text and travel as user messages.
func convertMessages(messages []recode.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var result []anthropic.MessageParam
	var system []anthropic.TextBlockParam

	for _, msg := range messages {
		// The API rejects empty text blocks.
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case recode.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case recode.RoleAssistant:
			result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return result, system
}

var _ recode.ChatProvider = (*Client)(nil)
