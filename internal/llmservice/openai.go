package llmservice

import (
	"context"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"textbook-rag/internal/config"
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint directly.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(cfg config.LLMConfig) *OpenAI {
	c := openai.DefaultConfig(strings.TrimPrefix(cfg.Key, "Bearer "))
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	c.HTTPClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second}
	return &OpenAI{client: openai.NewClientWithConfig(c), model: cfg.Model}
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
