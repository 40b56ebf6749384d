package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/xiaot623/integritas/internal/adapter/host"
	"github.com/xiaot623/integritas/internal/domain"
)

// UploadedFile is a stored file as seen by the client.
type UploadedFile struct {
	URL      string
	Filename string
}

// Uploader posts files to the server's upload endpoint.
type Uploader struct {
	url        string
	setHeaders func(http.Header)
	httpClient *http.Client
	public     bool
}

// NewUploader creates an uploader for the server hc talks to, sending the same
// credentials. public requests an externally shareable link.
func NewUploader(hc *host.Client, timeout time.Duration, public bool) *Uploader {
	return &Uploader{
		url:        hc.BaseURL() + "/api/upload",
		setHeaders: hc.SetHeaders,
		httpClient: &http.Client{Timeout: timeout},
		public:     public,
	}
}

type uploadResponse struct {
	SignedURL string `json:"signedUrl"`
	Filename  string `json:"filename"`
}

// Upload streams body as the multipart "file" field. A non-2xx answer is
// returned as a *host.StatusError.
func (u *Uploader) Upload(ctx context.Context, filename string, body io.Reader) (*UploadedFile, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, body)
		}
		if err == nil && u.public {
			err = mw.WriteField("public", "true")
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	u.setHeaders(req.Header)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.ErrorUpstream, "Upload failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewError(domain.ErrorUpstream, "Upload failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &host.StatusError{
			Status: resp.StatusCode,
			Label:  "Upload failed",
			Detail: host.Summarize(string(data)),
		}
	}

	var out uploadResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, domain.NewError(domain.ErrorMalformedResponse, "malformed upload response", err)
	}
	if out.SignedURL == "" {
		return nil, domain.NewError(domain.ErrorMalformedResponse, "upload response has no signedUrl", nil)
	}
	return &UploadedFile{URL: out.SignedURL, Filename: out.Filename}, nil
}
