package inference

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/persona-forge/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	RequestsPerSecond float64
}

// OpenAIClient talks to any OpenAI-compatible chat endpoint. Ollama serves
// one under /v1, which is how the local runtime is reached.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewOpenAIClient(cfg Config, logger *zap.Logger) *OpenAIClient {
	key := cfg.APIKey
	if key == "" {
		key = "ollama"
	}
	oc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		limiter: newLimiter(cfg.RequestsPerSecond),
		logger:  logger,
	}
}

func (c *OpenAIClient) Infer(ctx context.Context, spec models.PromptSpec, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			// Wait refuses up front when the next token lands past the deadline.
			if _, ok := ctx.Deadline(); ok && ctx.Err() == nil {
				return "", fmt.Errorf("%w: %v", ErrTimeout, err)
			}
			return "", classify(ctx, err)
		}
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if spec.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: spec.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: spec.Prompt,
	})

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   spec.MaxTokens,
		Temperature: float32(spec.Temperature),
	})
	if err != nil {
		err = classify(ctx, err)
		c.logger.Warn("Inference call failed",
			zap.Error(err),
			zap.String("post_type", string(spec.PostType)),
			zap.Duration("elapsed", time.Since(start)))
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedOutput)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty content", ErrMalformedOutput)
	}

	c.logger.Debug("Inference call completed",
		zap.String("post_type", string(spec.PostType)),
		zap.String("model", c.model),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))
	return text, nil
}

// classify maps transport and API failures onto the boundary's error codes.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", statusError(apiErr.HTTPStatusCode), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w: %v", statusError(reqErr.HTTPStatusCode), err)
	}

	// Refused connections and DNS failures: the runtime is not running.
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func statusError(code int) error {
	switch {
	case code >= http.StatusInternalServerError,
		code == http.StatusTooManyRequests,
		code == http.StatusNotFound,
		code == http.StatusRequestTimeout:
		return ErrUnavailable
	default:
		return ErrMalformedOutput
	}
}
