package host

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

const detailLimit = 200

var (
	htmlTag    = regexp.MustCompile(`<[^>]*>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// StatusError is a non-2xx answer from the host or the upload endpoint.
type StatusError struct {
	Status int
	Label  string
	Detail string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s (HTTP %d).", e.Label, e.Status)
	if e.Detail != "" {
		msg += " Details: " + e.Detail
	}
	return msg
}

// NewStatusError builds a StatusError from a response status and body.
func NewStatusError(status int, body []byte) *StatusError {
	return &StatusError{
		Status: status,
		Label:  StatusLabel(status),
		Detail: Summarize(string(body)),
	}
}

// StatusLabel maps well-known gateway statuses to short labels.
func StatusLabel(status int) string {
	switch status {
	case http.StatusGatewayTimeout:
		return "Request timed out"
	case http.StatusBadGateway:
		return "Bad gateway"
	case http.StatusServiceUnavailable:
		return "Service unavailable"
	default:
		return "API error"
	}
}

// Summarize strips HTML tags, collapses whitespace and keeps the first 200
// characters of an error body.
func Summarize(body string) string {
	s := htmlTag.ReplaceAllString(body, "")
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if r := []rune(s); len(r) > detailLimit {
		s = string(r[:detailLimit])
	}
	return s
}
