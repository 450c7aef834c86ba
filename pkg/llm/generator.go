package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

// GeneratorConfig configures the Ollama-backed chat generator.
type GeneratorConfig struct {
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
}

// Generator issues one chat completion per call. Collaborator failures
// propagate with their original message; only rate limits are retried.
type Generator struct {
	config GeneratorConfig
	llm    llms.Model
}

func NewGeneratorWithConfig(config GeneratorConfig) (*Generator, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Temperature <= 0 || config.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}

	llm, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat model: %w", err)
	}

	return &Generator{config: config, llm: llm}, nil
}

// Generate sends the system and user prompts and returns the first choice.
func (g *Generator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, userPrompt),
	}

	var text string
	err := withRetry(ctx, g.config.MaxRetries, func() error {
		response, err := g.llm.GenerateContent(ctx, content,
			llms.WithTemperature(g.config.Temperature),
			llms.WithMaxTokens(g.config.MaxTokens),
		)
		if err != nil {
			return classify("generation", err)
		}
		if len(response.Choices) == 0 {
			return classify("generation", fmt.Errorf("model returned no choices"))
		}
		text = response.Choices[0].Content
		return nil
	})
	if err != nil {
		return "", err
	}

	return text, nil
}
