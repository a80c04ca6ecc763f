package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/inkwell-notes/inkwell/internal/config"
	"github.com/inkwell-notes/inkwell/internal/domain"
)

// Provider is the transport channel of the assistant engine: it opens one
// model request per send and forwards incremental chunks to the engine.
// It implements assistant.StreamProvider.
type Provider struct {
	model        llms.Model
	modelName    string
	systemPrompt string
	log          *zap.Logger
}

// NewProvider creates a streaming LLM provider based on configuration.
func NewProvider(cfg config.LLMConfig, log *zap.Logger) (*Provider, error) {
	var model llms.Model
	var err error

	switch cfg.Provider {
	case "ollama":
		model, err = ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.BaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai api key required")
		}
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic api key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Provider{
		model:        model,
		modelName:    cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		log:          log,
	}, nil
}

// Stream sends the conversation history plus the new user message and
// forwards every streamed chunk in arrival order. It blocks until the
// stream finishes; cancelling ctx aborts it.
func (p *Provider) Stream(ctx context.Context, history []domain.Message, onChunk func(chunk string)) error {
	messages := toModelMessages(p.systemPrompt, history)

	p.log.Debug("opening model stream",
		zap.String("model", p.modelName), zap.Int("history", len(history)))

	_, err := p.model.GenerateContent(ctx, messages,
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			onChunk(string(chunk))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("generate content: %w", err)
	}
	return nil
}

// Model returns the configured model name.
func (p *Provider) Model() string {
	return p.modelName
}

func toModelMessages(systemPrompt string, history []domain.Message) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	for _, msg := range history {
		messageType := llms.ChatMessageTypeHuman
		if msg.Role == domain.RoleAssistant {
			messageType = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(messageType, msg.Content))
	}
	return messages
}
