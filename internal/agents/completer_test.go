package agents

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/StockQA/config"
)

type fakeChatModel struct {
	reply string
	err   error
	got   []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.got = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestChatModelCompleter(t *testing.T) {
	m := &fakeChatModel{reply: "Final Answer: 42"}
	c := NewChatModelCompleter(m)

	out, err := c.Complete(context.Background(), "Question: ?")
	require.NoError(t, err)
	assert.Equal(t, "Final Answer: 42", out)
	require.Len(t, m.got, 1)
	assert.Equal(t, schema.User, m.got[0].Role)
	assert.Equal(t, "Question: ?", m.got[0].Content)
}

func TestChatModelCompleterError(t *testing.T) {
	boom := errors.New("rate limited")
	c := NewChatModelCompleter(&fakeChatModel{err: boom})

	_, err := c.Complete(context.Background(), "p")
	assert.ErrorIs(t, err, boom)
}

func TestAnthropicCompleter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body["model"])
		assert.Equal(t, []any{"\nObservation:"}, body["stop_sequences"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "Action: get_realtime_stock_price\nAction Input: AAPL"}],
			"stop_reason": "stop_sequence",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	c := NewAnthropicCompleter("test-key", "claude-test", 256, 0.1,
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	out, err := c.Complete(context.Background(), "Question: price of AAPL?")
	require.NoError(t, err)
	assert.Equal(t, "Action: get_realtime_stock_price\nAction Input: AAPL", out)
}

func TestNewCompleterRequiresAPIKey(t *testing.T) {
	_, err := NewCompleter(context.Background(), &config.Config{LLMProvider: config.ProviderOpenAI})
	assert.Error(t, err)
}

func TestNewCompleterSelectsProvider(t *testing.T) {
	c, err := NewCompleter(context.Background(), &config.Config{
		LLMProvider:     config.ProviderAnthropic,
		AnthropicAPIKey: "k",
		LLMMaxTokens:    1024,
	})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicCompleter{}, c)

	c, err = NewCompleter(context.Background(), &config.Config{
		LLMProvider:    config.ProviderDeepSeek,
		DeepSeekAPIKey: "k",
		BackendURL:     "http://localhost:9999/v1",
		LLMMaxTokens:   1024,
	})
	require.NoError(t, err)
	assert.IsType(t, &ChatModelCompleter{}, c)
}
