package service

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xiaot623/integritas/internal/adapter/host"
	"github.com/xiaot623/integritas/internal/domain"
)

// RelayChat forwards a chat payload to the host unchanged. Non-2xx host
// answers are returned as responses, not errors.
func (s *Service) RelayChat(ctx context.Context, body io.Reader, header http.Header) (*host.RelayResponse, error) {
	start := time.Now()
	resp, err := s.relay.Forward(ctx, body, header)
	s.metrics.ObserveUpstream(start)
	if err != nil {
		return nil, domain.NewError(domain.ErrorUpstream, "Proxy failure", err)
	}
	return resp, nil
}

// Admit checks the bearer token of a streaming request against the rate
// limit before any work is done.
func (s *Service) Admit(ctx context.Context, token string) error {
	if token == "" {
		return domain.NewError(domain.ErrorUnauthorized, "Unauthorized", nil)
	}
	ok, err := s.limiter.Allow(ctx, token)
	if err != nil {
		return domain.NewError(domain.ErrorInternal, "Rate limiter unavailable", err)
	}
	if !ok {
		s.metrics.RateLimited.Inc()
		return domain.NewError(domain.ErrorRateLimited, "Rate limit exceeded", nil)
	}
	return nil
}

// BearerToken returns the token of an "Authorization: Bearer <token>"
// header value, or "".
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
