package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o-mini"
)

// OpenAIConfig holds configuration for the OpenAI-compatible chat client.
type OpenAIConfig struct {
	APIKey      string
	Model       string        // "gpt-4o-mini" (default)
	BaseURL     string        // Optional, any OpenAI-compatible endpoint
	Temperature float64       // 0 uses the model default
	MaxRetries  int           // Attempts after the first failure
	RetryDelay  time.Duration // Base delay for exponential backoff
	Timeout     time.Duration // HTTP timeout
	HTTPClient  *http.Client  // Optional (tests)
	Logger      *slog.Logger
}

// OpenAIClient implements Invoker on the chat completions API.
type OpenAIClient struct {
	model       string
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
	client      openai.Client
	logger      *slog.Logger
}

// NewOpenAIClient creates a new chat client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	// Retries are handled here so rate limits and server errors share one policy.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		client:      openai.NewClient(opts...),
		logger:      cfg.Logger,
	}
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// Model returns the configured model.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Invoke sends each prompt as a single user message, sequentially.
func (c *OpenAIClient) Invoke(ctx context.Context, prompts []string) ([]string, error) {
	responses := make([]string, 0, len(prompts))
	for i, prompt := range prompts {
		resp, err := c.complete(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("prompt %d: %w", i, err)
		}
		responses = append(responses, resp)
	}
	if err := CheckOutputs(prompts, responses); err != nil {
		return nil, err
	}
	return responses, nil
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}

	requestID := uuid.New().String()
	start := time.Now()
	var content string
	err := retry.Do(
		func() error {
			resp, err := c.client.Chat.Completions.New(ctx, params, option.WithHeader("X-Request-Id", requestID))
			if err != nil {
				return mapOpenAIError(err)
			}
			if len(resp.Choices) == 0 {
				return retry.Unrecoverable(ErrEmptyResponse)
			}
			// A blank reply is passed on; the task parser treats it as unannotated.
			content = resp.Choices[0].Message.Content
			if strings.TrimSpace(content) == "" {
				c.logger.Warn("model returned blank content", "request_id", requestID, "model", c.model)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries+1)),
		retry.Delay(c.retryDelay),
		retry.DelayType(c.delay),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retrying model request", "request_id", requestID, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return "", err
	}
	c.logger.Debug("model request complete",
		"request_id", requestID,
		"model", c.model,
		"duration", time.Since(start))
	return content, nil
}

// delay honors Retry-After on rate limits and backs off exponentially otherwise.
func (c *OpenAIClient) delay(n uint, err error, config *retry.Config) time.Duration {
	if rle, ok := IsRateLimitError(err); ok && rle.RetryAfter > 0 {
		return rle.RetryAfter
	}
	return retry.BackOffDelay(n, err, config)
}

func isRetryable(err error) bool {
	if _, ok := IsRateLimitError(err); ok {
		return true
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	// Transport errors.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if apiErr.Response != nil {
			retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return &RateLimitError{
			Message:    fmt.Sprintf("OpenAI rate limited: %s", apiErr.Message),
			RetryAfter: retryAfter,
			StatusCode: apiErr.StatusCode,
		}
	}
	return err
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

var _ Invoker = (*OpenAIClient)(nil)
