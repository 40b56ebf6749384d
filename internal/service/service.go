// Package service implements the server-side operations: chat relay,
// streaming tool relay and upload.
package service

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/xiaot623/integritas/internal/adapter/host"
	"github.com/xiaot623/integritas/internal/adapter/storage"
	"github.com/xiaot623/integritas/internal/adapter/tools"
	"github.com/xiaot623/integritas/internal/metrics"
	"github.com/xiaot623/integritas/internal/policy"
)

// Relay forwards raw chat payloads to the host.
type Relay interface {
	Forward(ctx context.Context, body io.Reader, header http.Header) (*host.RelayResponse, error)
}

// Limiter admits streaming requests per token.
type Limiter interface {
	Allow(ctx context.Context, token string) (bool, error)
}

// ToolPolicy decides whether a tool may run.
type ToolPolicy interface {
	Evaluate(ctx context.Context, in policy.Input) (string, error)
}

// ObjectStore stores uploaded files.
type ObjectStore interface {
	Put(ctx context.Context, in storage.PutInput) (storage.Object, error)
}

// Options wires the service dependencies. Store may be nil when no object
// storage is configured; Policy may be nil to allow every tool.
type Options struct {
	Relay   Relay
	Limiter Limiter
	Runner  tools.Runner
	Policy  ToolPolicy
	Store   ObjectStore
	Bucket  string
	Metrics *metrics.Metrics
}

type Service struct {
	relay   Relay
	limiter Limiter
	runner  tools.Runner
	policy  ToolPolicy
	store   ObjectStore
	bucket  string
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(opts Options) *Service {
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	bucket := opts.Bucket
	if bucket == "" {
		bucket = "aiuploads"
	}
	return &Service{
		relay:   opts.Relay,
		limiter: opts.Limiter,
		runner:  opts.Runner,
		policy:  opts.Policy,
		store:   opts.Store,
		bucket:  bucket,
		metrics: m,
		now:     time.Now,
	}
}

// Metrics returns the collectors the service records into.
func (s *Service) Metrics() *metrics.Metrics {
	return s.metrics
}
