package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/the-bill-must-split/internal/common"
)

// Defaults for the Gemini API.
const (
	DefaultEndpoint  = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultModel     = "gemini-2.0-flash"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 15
)

// Config holds settings for the Gemini client and the callers built on it.
type Config struct {
	Endpoint   string
	Model      string
	Timeout    time.Duration
	RetryDelay time.Duration
	CacheTTL   time.Duration
	RateLimit  int
	MaxRetries int
}

// WithDefaults fills zero fields.
func (c Config) WithDefaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 15 * time.Minute
	}
	return c
}

// RetryOptions derives retry settings for batch calls.
func (c Config) RetryOptions() common.RetryOptions {
	return common.RetryOptions{
		MaxAttempts:  c.MaxRetries,
		InitialDelay: c.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// GeminiClient calls the generateContent REST endpoint.
type GeminiClient struct {
	httpClient  *http.Client
	rateLimiter *rateLimiter
	logger      *slog.Logger
	baseURL     *url.URL
	model       string
}

// NewGeminiClient validates the endpoint and creates a client.
func NewGeminiClient(cfg Config, logger *slog.Logger) (*GeminiClient, error) {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	base, err := parseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	return &GeminiClient{
		baseURL:     base,
		model:       cfg.Model,
		logger:      logger,
		rateLimiter: newRateLimiter(cfg.RateLimit),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

func parseEndpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidURL, raw)
	}
	return u, nil
}

type generateContentRequest struct {
	Contents         []geminiContent  `json:"contents"`
	SafetySettings   []safetySetting  `json:"safetySettings"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"topP"`
	TopK             int     `json:"topK"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generateContentResponse struct {
	Candidates []struct {
		FinishReason string        `json:"finishReason"`
		Content      geminiContent `json:"content"`
	} `json:"candidates"`
}

var defaultSafetySettings = []safetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_ONLY_HIGH"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_ONLY_HIGH"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_ONLY_HIGH"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_ONLY_HIGH"},
}

// GenerateContent sends the prompt with deterministic sampling settings and
// returns the text of the first candidate.
func (c *GeminiClient) GenerateContent(ctx context.Context, req GenerateRequest) (string, error) {
	if req.APIKey == "" {
		return "", common.ErrMissingKey
	}

	if err := c.rateLimiter.wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %w", common.ErrTimeout, err)
		}
		return "", err
	}

	mimeType := req.ResponseMIMEType
	if mimeType == "" {
		mimeType = "application/json"
	}

	body := generateContentRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      0,
			TopK:             1,
			TopP:             1,
			MaxOutputTokens:  req.MaxOutputTokens,
			ResponseMIMEType: mimeType,
		},
		SafetySettings: defaultSafetySettings,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	requestID := uuid.NewString()
	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL(req.APIKey), bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrInvalidURL, withoutURL(err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("%w: %w", common.ErrTimeout, withoutURL(err))
		}
		return "", fmt.Errorf("request failed: %w", withoutURL(err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("%w: %w", common.ErrTimeout, withoutURL(err))
		}
		return "", fmt.Errorf("failed to read response: %w", withoutURL(err))
	}

	c.logger.Debug("gemini response",
		"request_id", requestID,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"rate_tokens", c.rateLimiter.available())

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: status %d", common.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: %s", common.ErrRateLimit, truncate(string(respBody), 200))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", &common.HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 500)}
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrInvalidResponse, err)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no candidates returned", common.ErrInvalidResponse)
	}

	text := parsed.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty candidate text", common.ErrInvalidResponse)
	}

	return text, nil
}

func (c *GeminiClient) requestURL(apiKey string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + c.model + ":generateContent"
	q := u.Query()
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()
	return u.String()
}

// withoutURL strips the request URL from transport errors. The URL carries
// the API key as a query parameter and must not reach logs or stored issues.
func withoutURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
