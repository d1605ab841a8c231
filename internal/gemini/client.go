// Package gemini adapts the Gemini API to the pipeline's Model capability.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flipsave/flipsave/internal/logger"
	"github.com/flipsave/flipsave/internal/pipeline"
	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("gemini: API key is not set")

// Config configures a Client.
type Config struct {
	APIKey string
	Model  string

	// Timeout bounds a single model call. Zero disables the per-call deadline.
	Timeout time.Duration

	// BreakerFailures is the number of consecutive failed calls that opens the breaker.
	BreakerFailures uint32
	// BreakerOpenTimeout is how long the breaker stays open before probing again.
	BreakerOpenTimeout time.Duration
}

func (c Config) normalize() Config {
	if c.Model == "" {
		c.Model = pipeline.DefaultModelName
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = 30 * time.Second
	}
	return c
}

// contentGenerator is the part of *genai.Models used by the client.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client sends prompts to a Gemini model behind a circuit breaker.
type Client struct {
	cfg     Config
	models  contentGenerator
	breaker *gobreaker.CircuitBreaker[string]
}

// New creates a Client for the Gemini Developer API.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1beta"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newClient(client.Models, cfg), nil
}

func newClient(models contentGenerator, cfg Config) *Client {
	cfg = cfg.normalize()
	c := &Client{cfg: cfg, models: models}
	c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "gemini:" + cfg.Model,
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log := logger.New()
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return c
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete sends prompt as a single user turn and returns the text of the answer.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	text, err := c.breaker.Execute(func() (string, error) {
		return c.generate(ctx, prompt)
	})
	if err == nil {
		return text, nil
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "", fmt.Errorf("%w: %v", pipeline.ErrRemoteUnavailable, err)
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		return "", ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return "", fmt.Errorf("%w: %v", pipeline.ErrTimeout, err)
	default:
		return "", fmt.Errorf("%w: %v", pipeline.ErrRemoteUnavailable, err)
	}
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}
	// responseMimeType is only accepted by v1beta.
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	}

	resp, err := c.models.GenerateContent(ctx, c.cfg.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}
