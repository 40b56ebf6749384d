package host

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xiaot623/integritas/internal/domain"
)

// Client calls the chat endpoints of the integritas server on behalf of a
// chat session.
type Client struct {
	baseURL    string
	token      string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL (including any base
// path). token is sent as a bearer credential; apiKey, when set, as x-api-key.
func NewClient(baseURL, token, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts a chat request and returns the raw host envelope.
func (c *Client) Send(ctx context.Context, req domain.ChatRequest) ([]byte, error) {
	resp, err := c.post(ctx, "/api/chat", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewError(domain.ErrorUpstream, "failed to read host response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewStatusError(resp.StatusCode, body)
	}
	return body, nil
}

// EventCallback is called for each event of a streamed response.
type EventCallback func(ev domain.StreamEvent) error

// Stream posts a chat request to the streaming endpoint and calls fn for each
// newline-delimited event until the body ends.
func (c *Client) Stream(ctx context.Context, req domain.ChatRequest, fn EventCallback) error {
	resp, err := c.post(ctx, "/api/chat/stream", req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return NewStatusError(resp.StatusCode, body)
	}
	return ReadEvents(resp.Body, fn)
}

// ReadEvents decodes newline-delimited stream events from r. A final line
// without a trailing newline is accepted.
func ReadEvents(r io.Reader, fn EventCallback) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev domain.StreamEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return domain.NewError(domain.ErrorMalformedResponse, "malformed stream event", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return domain.NewError(domain.ErrorUpstream, "stream interrupted", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.SetHeaders(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.ErrorUpstream, "failed to reach server", err)
	}
	return resp, nil
}

// SetHeaders adds the session credentials to h.
func (c *Client) SetHeaders(h http.Header) {
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	if c.apiKey != "" {
		h.Set("X-Api-Key", c.apiKey)
	}
}

// BaseURL returns the server URL the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}
