package llmservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"textbook-rag/internal/config"
)

var ErrEmptyResponse = errors.New("model returned no choices")

// Request is a single system plus user prompt completion.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Generator produces the answer text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// New returns the generator for the configured provider.
func New(cfg config.LLMConfig) (Generator, error) {
	log.Debug().Interface("llmConfig", map[string]any{
		"provider": cfg.Provider,
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
	}).Msg("Creating generator")

	switch cfg.Provider {
	case "langchain", "":
		return NewLangChain(cfg)
	case "openai":
		return NewOpenAI(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// LangChain generates through a langchaingo model.
type LangChain struct {
	model llms.Model
}

func NewLangChain(cfg config.LLMConfig) (*LangChain, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm: %w", err)
	}
	return NewLangChainWithModel(llm), nil
}

func NewLangChainWithModel(model llms.Model) *LangChain {
	return &LangChain{model: model}
}

func (l *LangChain) Generate(ctx context.Context, req Request) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, req.System),
		llms.TextParts(schema.ChatMessageTypeHuman, req.User),
	}

	res, err := l.model.GenerateContent(ctx, messages,
		llms.WithMaxTokens(req.MaxTokens),
		llms.WithTemperature(req.Temperature),
	)
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return res.Choices[0].Content, nil
}
