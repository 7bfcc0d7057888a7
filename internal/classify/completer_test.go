package classify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/reputexa/reputexa/pkg/anthropic"
)

func TestOpenAICompleter_JSONMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body["model"])
		rf, ok := body["response_format"].(map[string]any)
		require.True(t, ok, "response_format must be set in JSON mode")
		assert.Equal(t, "json_object", rf["type"])

		msgs, ok := body["messages"].([]any)
		require.True(t, ok)
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
		assert.Equal(t, "user", msgs[1].(map[string]any)["role"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"action\":\"FLAG\",\"reason\":\"negative\",\"detectedLanguage\":\"fr\"}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 9, "total_tokens": 21}
		}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter("sk-test", "gpt-4o", srv.URL+"/")
	assert.Equal(t, "openai", c.Name())

	raw, err := c.Complete(context.Background(), Completion{System: "sys", User: "usr", JSON: true, MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, `{"action":"FLAG","reason":"negative","detectedLanguage":"fr"}`, raw)
}

func TestOpenAICompleter_PlainTextHasNoResponseFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, has := body["response_format"]
		assert.False(t, has)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"index": 0, "message": {"role": "assistant", "content": "Bonjour !"}}]}`))
	}))
	defer srv.Close()

	raw, err := NewOpenAICompleter("sk-test", "gpt-4o", srv.URL).Complete(context.Background(), Completion{System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour !", raw)
}

func TestOpenAICompleter_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "Rate limit reached", "type": "requests", "code": "rate_limit_exceeded"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAICompleter("sk-test", "gpt-4o", srv.URL).Complete(context.Background(), Completion{User: "u", JSON: true})

	var ce *ClassificationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, http.StatusTooManyRequests, ce.StatusCode)
	assert.True(t, ce.Retryable())
}

func TestOpenAICompleter_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAICompleter("bad", "gpt-4o", srv.URL).Complete(context.Background(), Completion{User: "u"})

	var ce *ClassificationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, http.StatusUnauthorized, ce.StatusCode)
	assert.False(t, ce.Retryable())
}

func TestOpenAICompleter_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	_, err := NewOpenAICompleter("sk-test", "gpt-4o", srv.URL).Complete(context.Background(), Completion{User: "u"})

	var me *MalformedResponseError
	require.True(t, errors.As(err, &me))
}

type stubAnthropic struct {
	req  anthropic.MessageRequest
	resp *anthropic.MessageResponse
	err  error
}

func (s *stubAnthropic) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.req = req
	return s.resp, s.err
}

func TestAnthropicCompleter_AppendsJSONDirective(t *testing.T) {
	stub := &stubAnthropic{resp: &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: `{"action":"REPLY","content":"Danke","detectedLanguage":"de"}`}},
		Usage:   anthropic.TokenUsage{InputTokens: 40, OutputTokens: 12},
	}}
	c := NewAnthropicCompleter(stub, "claude-sonnet-4-5-20250929")
	assert.Equal(t, "anthropic", c.Name())

	raw, err := c.Complete(context.Background(), Completion{System: "sys", User: "usr", JSON: true, MaxTokens: 512})
	require.NoError(t, err)
	assert.Contains(t, raw, "Danke")

	assert.Equal(t, "claude-sonnet-4-5-20250929", stub.req.Model)
	assert.Equal(t, int64(512), stub.req.MaxTokens)
	require.Len(t, stub.req.System, 1)
	assert.Equal(t, "sys"+jsonOnlyDirective, stub.req.System[0].Text)
	require.Len(t, stub.req.Messages, 1)
	assert.Equal(t, "user", stub.req.Messages[0].Role)
	assert.Equal(t, "usr", stub.req.Messages[0].Content)
}

func TestAnthropicCompleter_PlainText(t *testing.T) {
	stub := &stubAnthropic{resp: &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "Hello!"}},
	}}
	raw, err := NewAnthropicCompleter(stub, "m").Complete(context.Background(), Completion{System: "sys", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", raw)
	assert.Equal(t, "sys", stub.req.System[0].Text)
}

func TestAnthropicCompleter_CostTaggedWithOp(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	stub := &stubAnthropic{resp: &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "Bonjour"}},
		Usage:   anthropic.TokenUsage{InputTokens: 10, OutputTokens: 3},
	}}
	c := NewAnthropicCompleter(stub, "claude-haiku-4-5-20251001")

	_, err := c.Complete(context.Background(), Completion{Op: "pitch", User: "u"})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), Completion{User: "u"})
	require.NoError(t, err)

	entries := logs.FilterMessage("cost attribution").AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "pitch", entries[0].ContextMap()["op"])
	assert.Equal(t, "complete", entries[1].ContextMap()["op"])
}

func TestAnthropicCompleter_StatusFromSDK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "overloaded_error", "message": "Overloaded"}}`))
	}))
	defer srv.Close()

	client := anthropic.NewClient("test-key", option.WithBaseURL(srv.URL))
	_, err := NewAnthropicCompleter(client, "claude-sonnet-4-5-20250929").Complete(context.Background(), Completion{User: "u"})

	var ce *ClassificationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, http.StatusServiceUnavailable, ce.StatusCode)
	assert.True(t, ce.Retryable())
}
