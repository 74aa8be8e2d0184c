// Package openai wraps the OpenAI SDK as a recode.ChatProvider.
package openai

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/recodeai/recode"
)

// DefaultModel is used when no model is set via options.
const DefaultModel = "gpt-4o"

// Client wraps the OpenAI SDK to implement recode.ChatProvider.
type Client struct {
	client *openai.Client
	model  string
}

// ClientOption configures the OpenAI client.
type ClientOption func(*Client)

// WithModel sets the default model for requests.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// New creates a new OpenAI client with the given API key.
func New(apiKey string, opts ...ClientOption) *Client {
	client := openai.NewClient(option.WithAPIKey(apiKey))
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

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: convertMessages(messages),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if options.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(options.MaxTokens))
	}
	if options.Temperature != nil {
		params.Temperature = openai.Float(*options.Temperature)
	}
	if len(options.StopSequences) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: options.StopSequences}
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	ch := make(chan recode.StreamEvent)

	go func() {
		defer close(ch)
		var acc openai.ChatCompletionAccumulator

		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				if !send(ctx, ch, recode.StreamEvent{Delta: chunk.Choices[0].Delta.Content}) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			send(ctx, ch, recode.StreamEvent{Err: wrapError(err)})
			return
		}
		if len(acc.Choices) == 0 {
			send(ctx, ch, recode.StreamEvent{Err: recode.NewTransientError("stream returned no choices", 0, nil)})
			return
		}

		completion := acc.Choices[0]
		send(ctx, ch, recode.StreamEvent{
			Done: true,
			Response: &recode.Response{
				Content:      completion.Message.Content,
				FinishReason: string(completion.FinishReason),
				Usage: recode.Usage{
					InputTokens:  int(acc.Usage.PromptTokens),
					OutputTokens: int(acc.Usage.CompletionTokens),
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

// convertMessages maps conversation roles onto the chat completion shape.
// Tool results are rendered text and travel as user messages.
func convertMessages(messages []recode.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case recode.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case recode.RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}

var _ recode.ChatProvider = (*Client)(nil)
