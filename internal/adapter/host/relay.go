// Package host talks to the upstream MCP host: a raw relay used by the server
// and a typed client used by the chat front end.
package host

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Headers copied from the caller to the upstream request.
var forwardedHeaders = []string{"Authorization", "X-Api-Key"}

// Relay forwards chat payloads to the host verbatim.
type Relay struct {
	url        string
	httpClient *http.Client
}

// NewRelay creates a relay for the host chat URL. A zero timeout leaves the
// call bounded only by the connection and the caller's context.
func NewRelay(url string, timeout time.Duration) *Relay {
	return &Relay{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// RelayResponse is the upstream answer. The caller must close Body.
type RelayResponse struct {
	Status      int
	ContentType string
	Body        io.ReadCloser
}

// Forward POSTs body to the host, copying the authorization and x-api-key
// headers from in. The upstream status and body are returned untouched;
// only transport failures produce an error.
func (r *Relay) Forward(ctx context.Context, body io.Reader, in http.Header) (*RelayResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, name := range forwardedHeaders {
		if v := in.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach host: %w", err)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "text/plain"
	}
	return &RelayResponse{
		Status:      resp.StatusCode,
		ContentType: ct,
		Body:        resp.Body,
	}, nil
}
