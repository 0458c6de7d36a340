package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spherical/pdf-ocr/internal/domain"
	"github.com/spherical/pdf-ocr/internal/observability"
)

const (
	defaultOpenAIEndpoint = "https://api.openai.com/v1"
	chatCompletionsPath   = "/chat/completions"
	maxErrorBody          = 512
)

// Options tune every Client built by a Factory.
type Options struct {
	// Stream asks providers for SSE responses; deltas are joined per page.
	Stream bool
	// RateLimitRetries bounds re-attempts after HTTP 429.
	RateLimitRetries int
	HTTPClient       *http.Client
	Logger           *observability.Logger
}

// Client extracts page content from one OpenAI-compatible provider.
type Client struct {
	name       string
	kind       domain.ProviderKind
	apiKey     string
	model      string
	url        string
	stream     bool
	retry      *RetryConfig
	httpClient *http.Client
	logger     *observability.Logger
}

// Response represents the API response structure
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

// Choice represents a single completion choice
type Choice struct {
	Delta        Delta  `json:"delta"`
	Message      Delta  `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Delta represents a message delta in streaming response
type Delta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// NewClient validates cfg and builds a client. Every error is a ConfigError.
func NewClient(cfg domain.ProviderConfig, opts Options) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, domain.ConfigError("API key not provided", nil)
	}

	kind, err := domain.ParseProviderKind(string(cfg.Kind))
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Model) == "" {
		return nil, domain.ConfigError("model not provided", nil)
	}

	endpoint, err := completionsURL(cfg.Endpoint, kind)
	if err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.Nop()
	}

	retry := DefaultRetryConfig()
	if opts.RateLimitRetries >= 0 {
		retry.MaxRetries = opts.RateLimitRetries
	}

	return &Client{
		name:       cfg.DisplayName(),
		kind:       kind,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		url:        endpoint,
		stream:     opts.Stream,
		retry:      retry,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Factory adapts NewClient to domain.ExtractorFactory.
func Factory(opts Options) domain.ExtractorFactory {
	return func(cfg domain.ProviderConfig) (domain.PageExtractor, error) {
		return NewClient(cfg, opts)
	}
}

// completionsURL resolves the chat completions URL from a base endpoint.
func completionsURL(endpoint string, kind domain.ProviderKind) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		if kind != domain.ProviderOpenAI {
			return "", domain.ConfigError("endpoint not provided", nil)
		}
		endpoint = defaultOpenAIEndpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", domain.ConfigError("invalid endpoint", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", domain.ConfigError(fmt.Sprintf("endpoint must be an absolute http(s) URL, got %q", endpoint), nil)
	}

	u.Path = strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(u.Path, chatCompletionsPath) {
		u.Path += chatCompletionsPath
	}
	return u.String(), nil
}

// ExtractPage sends one page to the provider and returns its Markdown.
func (c *Client) ExtractPage(ctx context.Context, page domain.PageTask) (string, error) {
	req, err := BuildRequest(c.kind, c.model, page, extractionPrompt, c.stream)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", domain.PageError("Failed to marshal request", err)
	}

	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		if c.stream {
			httpReq.Header.Set("Accept", "text/event-stream")
		}

		return c.httpClient.Do(httpReq)
	})
	if err != nil {
		return "", domain.PageError("Failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", domain.PageError(
			fmt.Sprintf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes))), nil)
	}

	var content string
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		content, err = NewStreamParser(resp.Body).Collect(ctx)
		if err != nil {
			return "", domain.PageError("Failed to parse stream", err)
		}
	} else {
		content, err = parseResponse(resp.Body)
		if err != nil {
			return "", err
		}
	}

	if strings.TrimSpace(content) == "" {
		return "", domain.PageError("empty response", nil)
	}
	return content, nil
}

func parseResponse(body io.Reader) (string, error) {
	var resp Response
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return "", domain.PageError("Failed to decode response", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.PageError("malformed response: no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}
