package agent

import (
	"context"
	"net/http"
	"time"

	"github.com/GoPolymarket/polychat/internal/config"
	"github.com/sashabaranov/go-openai"
)

// ChunkStream yields streamed completion chunks until io.EOF.
type ChunkStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// Model opens one streamed completion round.
type Model interface {
	Stream(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (ChunkStream, error)
}

type OpenAIModel struct {
	client      *openai.Client
	model       string
	temperature float32
}

func NewOpenAIModel(cfg config.LLMConfig) *OpenAIModel {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	// no client timeout; the request context bounds the stream
	oc.HTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIModel{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		temperature: cfg.Temperature,
	}
}

func (m *OpenAIModel) Stream(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (ChunkStream, error) {
	req := openai.ChatCompletionRequest{
		Model:         m.model,
		Messages:      messages,
		Temperature:   m.temperature,
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
	if len(tools) > 0 {
		req.Tools = tools
	}
	stream, err := m.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
