package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultAnswerTimeout bounds one answer-LLM request end to end.
const DefaultAnswerTimeout = 120 * time.Second

// LLMAnswerer generates answers with the chat completions API.
type LLMAnswerer struct {
	client openai.Client
	model  string
}

// LLMConfig configures the answer model client.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewLLMAnswerer creates the answer model client.
func NewLLMAnswerer(cfg LLMConfig) *LLMAnswerer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultAnswerTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &LLMAnswerer{client: openai.NewClient(opts...), model: cfg.Model}
}

func (a *LLMAnswerer) params(p Prompt) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.System),
			openai.UserMessage(p.User),
		},
	}
	if p.Temperature != nil {
		params.Temperature = openai.Float(*p.Temperature)
	}
	if p.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(*p.MaxTokens)
	}
	return params
}

// Answer runs one blocking completion.
func (a *LLMAnswerer) Answer(ctx context.Context, p Prompt) (string, error) {
	resp, err := a.client.Chat.Completions.New(ctx, a.params(p))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// AnswerStream streams completion deltas to onDelta as they arrive.
func (a *LLMAnswerer) AnswerStream(ctx context.Context, p Prompt, onDelta func(delta string) error) error {
	stream := a.client.Chat.Completions.NewStreaming(ctx, a.params(p))
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := onDelta(delta); err != nil {
				return err
			}
		}
	}
	return stream.Err()
}
