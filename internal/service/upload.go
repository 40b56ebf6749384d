package service

import (
	"context"
	"fmt"
	"io"
	"regexp"

	"github.com/google/uuid"

	"github.com/xiaot623/integritas/internal/adapter/storage"
	"github.com/xiaot623/integritas/internal/domain"
	"github.com/xiaot623/integritas/internal/metrics"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)

// UploadInput is a file received from a client.
type UploadInput struct {
	Filename    string
	ContentType string
	Body        io.Reader
	Size        int64
	Public      bool
}

// UploadResult is returned to the client.
type UploadResult struct {
	Key         string `json:"key"`
	SignedURL   string `json:"signedUrl"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// SanitizeFilename replaces every character outside [A-Za-z0-9_.-] with "_".
func SanitizeFilename(name string) string {
	if name == "" {
		return "file"
	}
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// Upload stores the file under a unique key and returns a signed download
// link. The object is deleted when the link expires.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if s.store == nil {
		s.metrics.Uploads.WithLabelValues(metrics.UploadFailed).Inc()
		return nil, domain.NewError(domain.ErrorInternal, "Object storage is not configured", nil)
	}
	if in.Body == nil {
		s.metrics.Uploads.WithLabelValues(metrics.UploadRejected).Inc()
		return nil, domain.NewError(domain.ErrorInvalidInput, "No file provided", nil)
	}

	safe := SanitizeFilename(in.Filename)
	key := fmt.Sprintf("%d-%s-%s", s.now().UnixMilli(), uuid.NewString(), safe)
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	obj, err := s.store.Put(ctx, storage.PutInput{
		Bucket:      s.bucket,
		Key:         key,
		ContentType: contentType,
		Body:        in.Body,
		Size:        in.Size,
		Public:      in.Public,
	})
	if err != nil {
		s.metrics.Uploads.WithLabelValues(metrics.UploadFailed).Inc()
		return nil, domain.NewError(domain.ErrorUpstream, "Upload failed", err)
	}

	s.metrics.Uploads.WithLabelValues(metrics.UploadOK).Inc()
	return &UploadResult{
		Key:         obj.Key,
		SignedURL:   obj.SignedURL,
		Filename:    safe,
		ContentType: contentType,
	}, nil
}
