package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/xiaot623/integritas/internal/adapter/host"
	"github.com/xiaot623/integritas/internal/adapter/paramstore"
	"github.com/xiaot623/integritas/internal/adapter/storage"
	"github.com/xiaot623/integritas/internal/adapter/tools"
	"github.com/xiaot623/integritas/internal/config"
	"github.com/xiaot623/integritas/internal/policy"
	"github.com/xiaot623/integritas/internal/ratelimit"
	"github.com/xiaot623/integritas/internal/service"
	handler "github.com/xiaot623/integritas/internal/transport/http"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting integritas chat server...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Base path: %q", cfg.BasePath)
	log.Printf("MCP host: %s", cfg.HostURL)
	log.Printf("Rate limit store: %s", cfg.RateLimitStore)
	log.Printf("Tool runner: %s", cfg.ToolRunner)

	ctx := context.Background()
	loader := &awsLoader{region: cfg.StorageRegion}

	// Initialize object storage
	objects, err := newObjectStore(ctx, cfg, loader)
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}

	// Initialize rate limiter
	limiterStore, closeLimiter, err := newLimiterStore(ctx, cfg, loader)
	if err != nil {
		log.Fatalf("Failed to initialize rate limit store: %v", err)
	}
	defer closeLimiter()

	// Initialize tool runner
	runner, err := tools.NewRunner(ctx, cfg.ToolRunner, cfg.MCPServerURL, cfg.MockToolDelay)
	if err != nil {
		log.Fatalf("Failed to initialize tool runner: %v", err)
	}
	defer runner.Close()

	// Initialize policy engine
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize service
	opts := service.Options{
		Relay:   host.NewRelay(cfg.HostURL, cfg.HostTimeout),
		Limiter: ratelimit.New(limiterStore),
		Runner:  runner,
		Policy:  policyEngine,
		Bucket:  cfg.UploadBucket,
	}
	if objects != nil {
		opts.Store = objects
	}
	svc := service.New(opts)

	e := handler.NewServer(cfg, svc)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}
	if objects != nil && objects.Pending() > 0 {
		log.Printf("WARN: %d scheduled upload deletions will not run", objects.Pending())
	}

	log.Println("Server stopped")
}

// awsLoader loads the shared AWS configuration once, on first use.
type awsLoader struct {
	region string
	cfg    *aws.Config
}

func (l *awsLoader) load(ctx context.Context) (aws.Config, error) {
	if l.cfg != nil {
		return *l.cfg, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(l.region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	l.cfg = &cfg
	return cfg, nil
}

// newObjectStore returns nil when no storage endpoint is configured.
func newObjectStore(ctx context.Context, cfg *config.Config, loader *awsLoader) (*storage.Store, error) {
	if cfg.StorageURL == "" {
		log.Printf("WARN: MINIO_URL is not set, uploads are disabled")
		return nil, nil
	}

	user, pass := cfg.StorageUser, cfg.StoragePass
	if cfg.StorageParamPath != "" {
		awsCfg, err := loader.load(ctx)
		if err != nil {
			return nil, err
		}
		params, err := paramstore.New(ssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, err
		}
		user, pass, err = params.StorageCredentials(ctx, cfg.StorageParamPath)
		if err != nil {
			return nil, err
		}
		log.Printf("Loaded storage credentials from %s", cfg.StorageParamPath)
	}

	return storage.New(storage.Config{
		Endpoint:         cfg.StorageURL,
		PublicEndpoint:   cfg.StoragePublicURL,
		AccessKey:        user,
		SecretKey:        pass,
		Region:           cfg.StorageRegion,
		PublicPathPrefix: cfg.PublicPathPrefix,
		TTL:              cfg.UploadTTL,
	})
}

func newLimiterStore(ctx context.Context, cfg *config.Config, loader *awsLoader) (ratelimit.Store, func(), error) {
	noop := func() {}
	switch cfg.RateLimitStore {
	case "dynamodb":
		awsCfg, err := loader.load(ctx)
		if err != nil {
			return nil, noop, err
		}
		s, err := ratelimit.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.RateLimitTable)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case "postgres":
		s, err := ratelimit.NewPGStore(ctx, cfg.RateLimitPGDSN)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case "memory", "":
		return ratelimit.NewMemoryStore(), noop, nil
	default:
		log.Printf("WARN: unknown rate limit store %q, using memory", cfg.RateLimitStore)
		return ratelimit.NewMemoryStore(), noop, nil
	}
}
