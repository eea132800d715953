package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Attamusc/issue-summarizer/internal/logging"
)

// OpenAIClient implements Completer with the official OpenAI SDK. Retries on
// transient failures are delegated to the SDK.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates a client for the OpenAI API or any compatible server at baseURL
func NewOpenAIClient(apiKey, baseURL, model string, retries int, timeout time.Duration) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(retries),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: timeout}))
	}
	if model == "" {
		model = openai.ChatModelGPT3_5Turbo
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Complete sends one chat completion request
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	logger := logging.FromContext(ctx)

	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    convertMessages(req.messages()),
		Temperature: openai.Float(temperature),
	}
	if req.SessionID != "" {
		params.User = openai.String(req.SessionID)
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion returned no choices")
	}

	logger.Debug("AI chat completed",
		"model", c.model,
		"session", req.SessionID,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return resp.Choices[0].Message.Content, nil
}

func convertMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case "system":
			result = append(result, openai.SystemMessage(msg.Content))
		case "assistant":
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}
