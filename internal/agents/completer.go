package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/StockQA/config"
)

// stopSequences keep the model from writing its own observations.
var stopSequences = []string{"\nObservation:"}

// Completer is the text-completion oracle driving the reasoning loop.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ChatModelCompleter sends the prompt as a single user message to an eino chat model.
type ChatModelCompleter struct {
	model model.BaseChatModel
}

func NewChatModelCompleter(m model.BaseChatModel) *ChatModelCompleter {
	return &ChatModelCompleter{model: m}
}

func (c *ChatModelCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := c.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("chat model generate: %w", err)
	}
	if msg == nil {
		return "", fmt.Errorf("chat model returned no message")
	}
	return msg.Content, nil
}

// AnthropicCompleter calls the Anthropic Messages API.
type AnthropicCompleter struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

func NewAnthropicCompleter(apiKey, modelName string, maxTokens int, temperature float32, opts ...option.RequestOption) *AnthropicCompleter {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicCompleter{
		client:      anthropic.NewClient(opts...),
		model:       modelName,
		maxTokens:   int64(maxTokens),
		temperature: float64(temperature),
	}
}

func (c *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:         anthropic.Model(c.model),
		MaxTokens:     c.maxTokens,
		Temperature:   anthropic.Float(c.temperature),
		StopSequences: stopSequences,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var out strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("no text in anthropic response")
	}
	return out.String(), nil
}

// NewCompleter builds the oracle selected by cfg.LLMProvider.
// A deepseek provider with a BackendURL goes through the OpenAI-compatible client.
func NewCompleter(ctx context.Context, cfg *config.Config) (Completer, error) {
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %s", cfg.LLMProvider)
	}
	modelName := cfg.ModelName()

	switch cfg.LLMProvider {
	case config.ProviderAnthropic:
		var opts []option.RequestOption
		if cfg.BackendURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BackendURL))
		}
		return NewAnthropicCompleter(apiKey, modelName, cfg.LLMMaxTokens, cfg.LLMTemperature, opts...), nil

	case config.ProviderDeepSeek:
		if cfg.BackendURL == "" {
			chatModel, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
				APIKey:      apiKey,
				Model:       modelName,
				MaxTokens:   cfg.LLMMaxTokens,
				Temperature: cfg.LLMTemperature,
				Stop:        stopSequences,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create DeepSeek model: %w", err)
			}
			return NewChatModelCompleter(chatModel), nil
		}
		fallthrough

	case config.ProviderOpenAI:
		maxTokens := cfg.LLMMaxTokens
		temperature := cfg.LLMTemperature
		chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     cfg.BackendURL,
			APIKey:      apiKey,
			Model:       modelName,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
			Stop:        stopSequences,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI model: %w", err)
		}
		return NewChatModelCompleter(chatModel), nil

	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}
