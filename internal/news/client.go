// Package news fetches offer blurbs from NewsAPI.
package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/flipsave/flipsave/internal/domain"
	"github.com/flipsave/flipsave/internal/logger"
)

const (
	// DefaultBaseURL is the NewsAPI "everything" endpoint.
	DefaultBaseURL = "https://newsapi.org/v2/everything"

	// SearchKeywords is the fixed query used to find shopping offers.
	SearchKeywords = "amazon discount OR flipkart offer OR myntra sale"

	defaultPageSize = 50
)

// ErrMissingAPIKey is returned by Fetch when no API key is configured.
var ErrMissingAPIKey = errors.New("news: NEWS_API_KEY is not set")

// APIError is an error reported by NewsAPI in its response body.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("newsapi error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("newsapi error %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
}

// Article is one NewsAPI article.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
}

// RawText joins title and description. ok is false when either is missing.
func (a Article) RawText() (string, bool) {
	title := strings.TrimSpace(a.Title)
	desc := strings.TrimSpace(a.Description)
	if title == "" || desc == "" {
		return "", false
	}
	return domain.NormalizeNewlines(title + ". " + desc), true
}

type everythingResponse struct {
	Status       string    `json:"status"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
}

// Client queries NewsAPI with a fixed offer search.
type Client struct {
	apiKey     string
	baseURL    string
	query      string
	pageSize   int
	attempts   uint
	retryDelay time.Duration
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithRetry sets the number of transport attempts and the delay between them.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.retryDelay = delay
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		query:      SearchKeywords,
		pageSize:   defaultPageSize,
		attempts:   3,
		retryDelay: time.Second,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string {
	return "NewsAPI"
}

// Fetch returns one raw item per article that has both a title and a description.
func (c *Client) Fetch(ctx context.Context) ([]domain.RawItem, error) {
	articles, err := c.FetchArticles(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]domain.RawItem, 0, len(articles))
	for _, a := range articles {
		text, ok := a.RawText()
		if !ok {
			continue
		}
		items = append(items, domain.RawItem{Index: len(items), RawText: text})
	}
	return items, nil
}

// FetchArticles runs the search, retrying transport failures and 5xx responses.
func (c *Client) FetchArticles(ctx context.Context) ([]Article, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	log := logger.FromContext(ctx)
	log.Info().Str("query", c.query).Msg("fetching news articles")

	var resp *everythingResponse
	err := retry.Do(
		func() error {
			r, err := c.get(ctx)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Msg("newsapi request failed, retrying")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("newsapi fetch: %w", err)
	}

	log.Info().Int("articles", len(resp.Articles)).Int("total_results", resp.TotalResults).Msg("fetched news articles")
	return resp.Articles, nil
}

func (c *Client) get(ctx context.Context) (*everythingResponse, error) {
	params := url.Values{}
	params.Set("q", c.query)
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("build request: %w", err))
	}
	// Never in the URL: *url.Error messages include it.
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var out everythingResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("newsapi returned HTTP %d", resp.StatusCode)
		}
		return nil, retry.Unrecoverable(fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err))
	}

	if out.Status != "ok" || resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: out.Code, Message: out.Message}
		if resp.StatusCode >= 500 {
			return nil, apiErr
		}
		return nil, retry.Unrecoverable(apiErr)
	}
	return &out, nil
}
