// Package google wraps the Google GenAI SDK as a recode.ChatProvider.
package google

import (
	"context"

	"github.com/recodeai/recode"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is set via options.
const DefaultModel = "gemini-2.5-pro"

// Client wraps the Google GenAI SDK to implement recode.ChatProvider.
type Client struct {
	client *genai.Client
	model  string
}

// ClientOption configures the Google client.
type ClientOption func(*Client)

// WithModel sets the default model for requests.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// New creates a new Google GenAI client with the given API key.
func New(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	c := &Client{
		client: client,
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ChatStream sends a conversation and returns a channel of streaming events.
func (c *Client) ChatStream(ctx context.Context, messages []recode.Message, opts ...recode.Option) (<-chan recode.StreamEvent, error) {
	options := recode.ApplyOptions(opts...)
	model := c.model
	if options.Model != "" {
		model = options.Model
	}

	contents, system := convertMessages(messages)
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if options.MaxTokens > 0 {
		config.MaxOutputTokens = int32(options.MaxTokens)
	}
	if options.Temperature != nil {
		temp := float32(*options.Temperature)
		config.Temperature = &temp
	}
	if len(options.StopSequences) > 0 {
		config.StopSequences = options.StopSequences
	}

	ch := make(chan recode.StreamEvent)

	go func() {
		defer close(ch)

		var fullContent string
		var finishReason string
		var usage recode.Usage
		var iterCount int

		for resp, err := range c.client.Models.GenerateContentStream(ctx, model, contents, config) {
			iterCount++
			if err != nil {
				send(ctx, ch, recode.StreamEvent{Err: wrapError(err)})
				return
			}
			if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
				send(ctx, ch, recode.StreamEvent{Err: &BlockedError{Reason: string(resp.PromptFeedback.BlockReason)}})
				return
			}

			if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
				for _, part := range resp.Candidates[0].Content.Parts {
					if part.Text != "" {
						if !send(ctx, ch, recode.StreamEvent{Delta: part.Text}) {
							return
						}
						fullContent += part.Text
					}
				}
				finishReason = string(resp.Candidates[0].FinishReason)
			}
			if resp.UsageMetadata != nil {
				usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
				usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
			}
		}

		if iterCount == 0 {
			send(ctx, ch, recode.StreamEvent{Err: recode.NewTransientError("stream returned no data", 0, nil)})
			return
		}

		send(ctx, ch, recode.StreamEvent{
			Done: true,
			Response: &recode.Response{
				Content:      fullContent,
				FinishReason: finishReason,
				Usage:        usage,
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

// convertMessages maps conversation roles onto the GenAI content shape.
// System messages collapse into a single system instruction; everything
// else becomes user or model text.
func convertMessages(messages []recode.Message) ([]*genai.Content, string) {
	var contents []*genai.Content
	var system string

	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case recode.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case recode.RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}
	return contents, system
}

var _ recode.ChatProvider = (*Client)(nil)
