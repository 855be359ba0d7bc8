package llmservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"textbook-rag/internal/config"
)

type fakeModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.opts)
	}
	return f.resp, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestLangChainGenerate(t *testing.T) {
	fake := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ZMP is the zero moment point."}}}}
	g := NewLangChainWithModel(fake)

	out, err := g.Generate(context.Background(), Request{
		System: "system prompt", User: "user prompt", MaxTokens: 500, Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "ZMP is the zero moment point.", out)

	require.Len(t, fake.messages, 2)
	assert.Equal(t, schema.ChatMessageTypeSystem, fake.messages[0].Role)
	assert.Equal(t, llms.TextContent{Text: "system prompt"}, fake.messages[0].Parts[0])
	assert.Equal(t, schema.ChatMessageTypeHuman, fake.messages[1].Role)
	assert.Equal(t, 500, fake.opts.MaxTokens)
	assert.Equal(t, 0.7, fake.opts.Temperature)
}

func TestLangChainGenerate_Errors(t *testing.T) {
	boom := errors.New("rate limited")
	_, err := NewLangChainWithModel(&fakeModel{err: boom}).Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, boom)

	_, err = NewLangChainWithModel(&fakeModel{resp: &llms.ContentResponse{}}).Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIGenerate(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Actuators move joints."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	g, err := New(config.LLMConfig{
		Provider: "openai", BaseURL: srv.URL + "/v1/", Key: "Bearer sk-test", Model: "gpt-4o-mini", TimeoutSecs: 5,
	})
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), Request{System: "sys", User: "What moves joints?", MaxTokens: 500, Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "Actuators move joints.", out)

	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 500, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-6)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "What moves joints?", got.Messages[1].Content)
}

func TestOpenAIGenerate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	g := NewOpenAI(config.LLMConfig{BaseURL: srv.URL, Key: "k", Model: "m", TimeoutSecs: 5})
	_, err := g.Generate(context.Background(), Request{User: "q"})
	assert.Error(t, err)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "anthropic"})
	assert.Error(t, err)
}
