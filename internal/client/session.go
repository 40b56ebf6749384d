// Package client implements the chat session flows of the terminal client:
// ask, stamp and verify, over a plain or streamed host connection.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xiaot623/integritas/internal/adapter/host"
	"github.com/xiaot623/integritas/internal/conversation"
	"github.com/xiaot623/integritas/internal/digest"
	"github.com/xiaot623/integritas/internal/domain"
	"github.com/xiaot623/integritas/internal/normalize"
)

// DefaultQuestion is sent when Ask is called with empty text.
const DefaultQuestion = "What can you do?"

var (
	errNoFile      = errors.New("Select a file first.")
	errInvalidHash = errors.New("Enter a 64-char hex hash to verify.")
)

// Host sends a chat request and returns the raw envelope.
type Host interface {
	Send(ctx context.Context, req domain.ChatRequest) ([]byte, error)
}

// Streamer sends a chat request and reports its events as they arrive.
type Streamer interface {
	Stream(ctx context.Context, req domain.ChatRequest, fn host.EventCallback) error
}

// FileUploader stores a file and returns its download link.
type FileUploader interface {
	Upload(ctx context.Context, filename string, body io.Reader) (*UploadedFile, error)
}

// Options configures a Session. When Streamer is set it is used instead of
// Host.
type Options struct {
	Host       Host
	Streamer   Streamer
	Uploader   FileUploader
	Normalizer *normalize.Normalizer
	APIKey     string
	LLM        *domain.LLMSelection

	// TypewriterDelay paces the progressive reveal of streamed text.
	TypewriterDelay time.Duration
	// OnUpdate is called whenever an open assistant message changes.
	OnUpdate func(domain.Message)
}

// Session drives one conversation. Calls must not overlap.
type Session struct {
	conv       *conversation.Conversation
	host       Host
	streamer   Streamer
	uploader   FileUploader
	normalizer *normalize.Normalizer
	apiKey     string
	llm        *domain.LLMSelection
	delay      time.Duration
	onUpdate   func(domain.Message)
}

func NewSession(conv *conversation.Conversation, opts Options) *Session {
	if conv == nil {
		conv = conversation.New()
	}
	n := opts.Normalizer
	if n == nil {
		n = normalize.New(normalize.ParseSilent)
	}
	return &Session{
		conv:       conv,
		host:       opts.Host,
		streamer:   opts.Streamer,
		uploader:   opts.Uploader,
		normalizer: n,
		apiKey:     opts.APIKey,
		llm:        opts.LLM,
		delay:      opts.TypewriterDelay,
		onUpdate:   opts.OnUpdate,
	}
}

func (s *Session) Conversation() *conversation.Conversation {
	return s.conv
}

// Ask sends a free-text question.
func (s *Session) Ask(ctx context.Context, text string) domain.Message {
	text = strings.TrimSpace(text)
	if text == "" {
		text = DefaultQuestion
	}
	return s.exchange(ctx, text, nil)
}

// StampHash digests the file locally and asks the host to stamp the hash.
func (s *Session) StampHash(ctx context.Context, src digest.Source, note string) domain.Message {
	if src == nil {
		return s.conv.AppendError(errNoFile)
	}
	hash, err := digest.Sum(src)
	if err != nil {
		return s.conv.AppendError(fmt.Errorf("Could not hash %s: %w", src.Name(), err))
	}
	args := domain.NewToolArgs(domain.ToolStampData, domain.ToolRequest{FileHash: hash, APIKey: s.apiKey})
	return s.exchange(ctx, shownText(note, "Stamp this hash: "+hash), args)
}

// StampUpload uploads the file and asks the host to stamp it by URL.
func (s *Session) StampUpload(ctx context.Context, src digest.Source, note string) domain.Message {
	file, err := s.upload(ctx, src)
	if err != nil {
		return s.conv.AppendError(err)
	}
	args := domain.NewToolArgs(domain.ToolStampData, domain.ToolRequest{FileURL: file.URL, APIKey: s.apiKey})
	return s.exchange(ctx, shownText(note, "Stamp this file: "+file.Filename), args)
}

// VerifyHash asks the host to verify a 64-character hex hash.
func (s *Session) VerifyHash(ctx context.Context, hash, note string) domain.Message {
	hash = strings.TrimSpace(hash)
	if !digest.ValidHash(hash) {
		return s.conv.AppendError(errInvalidHash)
	}
	hash = strings.ToLower(hash)
	args := domain.NewToolArgs(domain.ToolVerifyData, domain.ToolRequest{Hash: hash})
	return s.exchange(ctx, shownText(note, "Verify this hash: "+hash), args)
}

// VerifyFile uploads the file and asks the host to verify it by URL.
func (s *Session) VerifyFile(ctx context.Context, src digest.Source, note string) domain.Message {
	file, err := s.upload(ctx, src)
	if err != nil {
		return s.conv.AppendError(err)
	}
	args := domain.NewToolArgs(domain.ToolVerifyData, domain.ToolRequest{FileURL: file.URL, APIKey: s.apiKey})
	return s.exchange(ctx, shownText(note, "Verify this file: "+file.Filename), args)
}

func shownText(note, action string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return action
	}
	return note + " — " + action
}

func (s *Session) upload(ctx context.Context, src digest.Source) (*UploadedFile, error) {
	if src == nil {
		return nil, errNoFile
	}
	if s.uploader == nil {
		return nil, errors.New("File upload is not configured.")
	}
	var body io.Reader
	if ss, ok := src.(digest.StreamSource); ok {
		rc, err := ss.Open()
		if err != nil {
			return nil, fmt.Errorf("Could not read %s: %w", src.Name(), err)
		}
		defer rc.Close()
		body = rc
	} else {
		data, err := src.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("Could not read %s: %w", src.Name(), err)
		}
		body = bytes.NewReader(data)
	}

	file, err := s.uploader.Upload(ctx, src.Name(), body)
	if err != nil {
		return nil, err
	}
	if file.Filename == "" {
		file.Filename = src.Name()
	}
	return file, nil
}

// exchange appends the user turn, sends the last ContextWindow messages and
// appends the assistant answer. Every failure becomes an error turn.
func (s *Session) exchange(ctx context.Context, text string, args domain.ToolArgs) domain.Message {
	s.conv.AppendUser(text)
	req := domain.ChatRequest{
		Messages: s.conv.Window(),
		ToolArgs: args,
		LLM:      s.llm,
	}
	if s.streamer != nil {
		return s.streamExchange(ctx, req)
	}
	if s.host == nil {
		return s.conv.AppendError(errors.New("No host configured."))
	}

	body, err := s.host.Send(ctx, req)
	if err != nil {
		return s.conv.AppendError(err)
	}
	res, err := s.normalizer.Normalize(body)
	if err != nil {
		return s.conv.AppendError(err)
	}
	return s.conv.Append(domain.Message{
		Role:   domain.RoleAssistant,
		Text:   res.FinalText,
		Blocks: assistantBlocks(res, nil),
		Links:  res.Links,
	})
}

// assistantBlocks appends the final text and any notes to the tool blocks.
func assistantBlocks(res normalize.Result, notes []string) []domain.Block {
	blocks := res.Blocks
	if res.FinalText != "" {
		blocks = append(blocks, domain.TextBlock(res.FinalText, true))
	}
	for _, w := range res.Warnings {
		blocks = append(blocks, domain.TextBlock(w, false))
	}
	for _, n := range notes {
		blocks = append(blocks, domain.TextBlock(n, false))
	}
	return blocks
}
