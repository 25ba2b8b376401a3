// Package citegate provides a Go client for the citegate chat API.
package citegate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultTimeout = 2 * time.Minute

// Client is the citegate API client. It keeps the session cookie issued
// by the server so consecutive questions share one conversation.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	mu      sync.Mutex
	session *http.Cookie
}

// New creates a client for the citegate API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	cfg := &clientConfig{
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(cfg)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.apiKey,
		httpClient: cfg.httpClient,
	}
}

// ChatResult is one answer with its reconciled citations.
type ChatResult struct {
	Response          string             `json:"response"`
	AnnotatedText     string             `json:"annotated_text"`
	ResponseMarkdown  string             `json:"response_markdown"`
	Sources           []Source           `json:"sources"`
	RetrievedContexts []RetrievedContext `json:"retrieved_contexts"`
}

// Source is a numbered catalog entry cited by the answer.
type Source struct {
	Number     int      `json:"number"`
	URI        string   `json:"uri,omitempty"`
	Title      string   `json:"title,omitempty"`
	Text       string   `json:"text,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	PageNumber int      `json:"page_number,omitempty"`
	PageRange  string   `json:"page_range,omitempty"`
}

// RetrievedContext is one snippet the retrieval backend returned for the query.
type RetrievedContext struct {
	SourceURI  string   `json:"source_uri,omitempty"`
	Title      string   `json:"title,omitempty"`
	Text       string   `json:"text,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	PageNumber int      `json:"page_number,omitempty"`
	PageRange  string   `json:"page_range,omitempty"`
}

// UsageReport is token consumption for one period.
type UsageReport struct {
	Period     string `json:"period"`
	TokensUsed int64  `json:"tokens_used"`
	Budget     struct {
		TokensLimit     int64 `json:"tokens_limit"`
		TokensRemaining int64 `json:"tokens_remaining"`
		IsExhausted     bool  `json:"is_exhausted"`
	} `json:"budget"`
}

// APIError is a structured error response from the server.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("citegate: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Chat asks one question. topK 0 uses the server default.
func (c *Client) Chat(ctx context.Context, message string, topK int) (ChatResult, error) {
	body := map[string]any{"message": message}
	if topK > 0 {
		body["top_k"] = topK
	}

	var result ChatResult
	if err := c.do(ctx, http.MethodPost, "/chat", body, &result); err != nil {
		return ChatResult{}, err
	}
	return result, nil
}

// Clear resets the current conversation.
func (c *Client) Clear(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/clear", nil, nil)
}

// Usage reports token consumption. period is "day", "month", or "total";
// empty means month.
func (c *Client) Usage(ctx context.Context, period string) (UsageReport, error) {
	path := "/usage"
	if period != "" {
		path += "?period=" + period
	}

	var report UsageReport
	if err := c.do(ctx, http.MethodGet, path, nil, &report); err != nil {
		return UsageReport{}, err
	}
	return report, nil
}

// Health checks server readiness.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("citegate: encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("citegate: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	c.mu.Lock()
	if c.session != nil {
		req.AddCookie(c.session)
	}
	c.mu.Unlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("citegate: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.rememberSession(resp)

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr := json.NewDecoder(resp.Body).Decode(apiErr); decodeErr != nil {
			apiErr.Code = "unknown"
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("citegate: decode response: %w", err)
		}
	}
	return nil
}

// rememberSession captures the session cookie so later requests continue
// the same conversation.
func (c *Client) rememberSession(resp *http.Response) {
	for _, cookie := range resp.Cookies() {
		if strings.Contains(cookie.Name, "session") {
			c.mu.Lock()
			c.session = cookie
			c.mu.Unlock()
			return
		}
	}
}
