// Package storage uploads files to an S3-compatible object store and hands
// out time-limited download links.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config describes the object store endpoints and credentials.
type Config struct {
	Endpoint         string
	PublicEndpoint   string
	AccessKey        string
	SecretKey        string
	Region           string
	PublicPathPrefix string
	TTL              time.Duration
}

// Store writes objects through the internal endpoint and signs download
// links with either the internal or the public endpoint.
type Store struct {
	api            objectAPI
	signer         presignAPI
	publicSigner   presignAPI
	publicEndpoint string
	pathPrefix     string
	ttl            time.Duration

	afterFunc func(d time.Duration, f func()) *time.Timer

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a Store with path-style S3 clients for both endpoints.
func New(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("storage: endpoint is required")
	}
	publicEndpoint := cfg.PublicEndpoint
	if publicEndpoint == "" {
		publicEndpoint = cfg.Endpoint
	}

	internal := newClient(cfg, cfg.Endpoint)
	public := newClient(cfg, publicEndpoint)
	return newStore(internal, s3.NewPresignClient(internal), s3.NewPresignClient(public), cfg, publicEndpoint), nil
}

func newClient(cfg Config, endpoint string) *s3.Client {
	awsCfg := aws.Config{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
}

func newStore(api objectAPI, signer, publicSigner presignAPI, cfg Config, publicEndpoint string) *Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{
		api:            api,
		signer:         signer,
		publicSigner:   publicSigner,
		publicEndpoint: strings.TrimSuffix(publicEndpoint, "/"),
		pathPrefix:     cfg.PublicPathPrefix,
		ttl:            ttl,
		afterFunc:      time.AfterFunc,
		pending:        make(map[string]*time.Timer),
	}
}

// PutInput is one object to upload.
type PutInput struct {
	Bucket      string
	Key         string
	ContentType string
	Body        io.Reader
	Size        int64
	Public      bool
}

// Object is an uploaded object and its download link.
type Object struct {
	Key       string
	SignedURL string
}

// Put uploads an object, signs a download link valid for the store TTL and
// schedules the object's deletion after the same TTL. The deletion timer is
// not tied to the link being used.
func (s *Store) Put(ctx context.Context, in PutInput) (Object, error) {
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	put := &s3.PutObjectInput{
		Bucket:      aws.String(in.Bucket),
		Key:         aws.String(in.Key),
		Body:        in.Body,
		ContentType: aws.String(contentType),
	}
	if in.Size > 0 {
		put.ContentLength = aws.Int64(in.Size)
	}
	if _, err := s.api.PutObject(ctx, put); err != nil {
		return Object{}, fmt.Errorf("failed to put object %s: %w", in.Key, err)
	}

	signer := s.signer
	if in.Public {
		signer = s.publicSigner
	}
	req, err := signer.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(in.Bucket),
		Key:                        aws.String(in.Key),
		ResponseContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", in.Key)),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return Object{}, fmt.Errorf("failed to presign object %s: %w", in.Key, err)
	}

	url := req.URL
	if in.Public {
		url = s.rewritePublic(url)
	}

	s.scheduleDeletion(in.Bucket, in.Key)
	return Object{Key: in.Key, SignedURL: url}, nil
}

// rewritePublic inserts the public path prefix after the public endpoint so
// the reverse proxy can route the link to the store.
func (s *Store) rewritePublic(url string) string {
	if s.pathPrefix == "" || !strings.HasPrefix(url, s.publicEndpoint) {
		return url
	}
	return s.publicEndpoint + s.pathPrefix + strings.TrimPrefix(url, s.publicEndpoint)
}

// Delete removes an object.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *Store) scheduleDeletion(bucket, key string) {
	id := bucket + "/" + key
	log.Printf("Scheduled deletion of %s in %s", id, s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[id] = s.afterFunc(s.ttl, func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()

		if err := s.Delete(context.Background(), bucket, key); err != nil {
			log.Printf("WARN: %v", err)
			return
		}
		log.Printf("Deleted %s", id)
	})
}

// Pending returns the number of objects awaiting scheduled deletion.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
