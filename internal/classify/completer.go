package classify

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/reputexa/reputexa/pkg/anthropic"
)

// Completion is one system+user exchange with the oracle.
type Completion struct {
	// Op labels the call ("classify" or "pitch") in usage logs.
	Op        string
	System    string
	User      string
	JSON      bool // ask for a single JSON object
	MaxTokens int64
}

// Completer sends a completion to a language model backend and returns the
// raw text. Failures talking to the backend are ClassificationErrors.
type Completer interface {
	Complete(ctx context.Context, c Completion) (string, error)
	Name() string
}

// OpenAICompleter uses the chat completions API.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter creates a completer for model. baseURL may be empty.
func NewOpenAICompleter(apiKey, model, baseURL string) *OpenAICompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return &OpenAICompleter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Name implements Completer.
func (c *OpenAICompleter) Name() string { return "openai" }

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, comp Completion) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: comp.System},
			{Role: openai.ChatMessageRoleUser, Content: comp.User},
		},
		MaxTokens: int(comp.MaxTokens),
	}
	if comp.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &ClassificationError{Op: "openai chat completion", StatusCode: openAIStatus(err), Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &MalformedResponseError{Err: eris.New("no choices in response")}
	}

	zap.L().Debug("classify: openai usage",
		zap.String("model", c.model),
		zap.String("op", comp.Op),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

const jsonOnlyDirective = "\n\nRespond with a single JSON object and nothing else."

// AnthropicCompleter uses the Anthropic Messages API.
type AnthropicCompleter struct {
	client anthropic.Client
	model  string
}

// NewAnthropicCompleter wraps an Anthropic client.
func NewAnthropicCompleter(client anthropic.Client, model string) *AnthropicCompleter {
	return &AnthropicCompleter{client: client, model: model}
}

// Name implements Completer.
func (c *AnthropicCompleter) Name() string { return "anthropic" }

// Complete implements Completer. The Messages API has no JSON mode, so the
// directive is appended to the system prompt instead.
func (c *AnthropicCompleter) Complete(ctx context.Context, comp Completion) (string, error) {
	system := comp.System
	if comp.JSON {
		system += jsonOnlyDirective
	}

	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: comp.MaxTokens,
		System:    []anthropic.SystemBlock{{Text: system}},
		Messages:  []anthropic.Message{{Role: "user", Content: comp.User}},
	})
	if err != nil {
		return "", &ClassificationError{Op: "anthropic create message", StatusCode: anthropic.StatusCode(err), Err: err}
	}

	op := comp.Op
	if op == "" {
		op = "complete"
	}
	resp.Usage.LogCost(c.model, op)
	return resp.Text(), nil
}
