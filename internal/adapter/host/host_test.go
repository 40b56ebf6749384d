package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/integritas/internal/domain"
)

func TestRelayForwardsHeadersAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "k1", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"messages":[]}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"finalText":"ok"}`)
	}))
	defer server.Close()

	in := http.Header{}
	in.Set("Authorization", "Bearer tok")
	in.Set("X-Api-Key", "k1")
	in.Set("Cookie", "secret")

	resp, err := NewRelay(server.URL, 0).Forward(context.Background(), strings.NewReader(`{"messages":[]}`), in)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.Status)
	assert.Equal(t, "application/json", resp.ContentType)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, `{"finalText":"ok"}`, string(body))
}

func TestRelayOmitsAbsentHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("X-Api-Key"))
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	resp, err := NewRelay(server.URL, time.Second).Forward(context.Background(), strings.NewReader(`{}`), http.Header{})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.Status)
}

func TestRelayDefaultsContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write([]byte("x"))
	}))
	defer server.Close()

	resp, err := NewRelay(server.URL, 0).Forward(context.Background(), strings.NewReader(`{}`), http.Header{})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/plain", resp.ContentType)
}

func TestRelayTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewRelay(url, 0).Forward(context.Background(), strings.NewReader(`{}`), http.Header{})
	assert.ErrorContains(t, err, "failed to reach host")
}

func TestStatusLabels(t *testing.T) {
	assert.Contains(t, NewStatusError(504, nil).Error(), "timed out")
	assert.Contains(t, NewStatusError(503, nil).Error(), "Service unavailable")
	assert.Contains(t, NewStatusError(502, nil).Error(), "Bad gateway")
	assert.Contains(t, NewStatusError(500, nil).Error(), "API error")
	assert.Contains(t, NewStatusError(404, nil).Error(), "API error")
}

func TestStatusErrorMessage(t *testing.T) {
	err := NewStatusError(502, []byte("<html><body>\n  <h1>502   Bad Gateway</h1>\n</body></html>"))
	assert.Equal(t, "Bad gateway (HTTP 502). Details: 502 Bad Gateway", err.Error())

	assert.Equal(t, "API error (HTTP 500).", NewStatusError(500, []byte("  \n ")).Error())
}

func TestSummarizeTruncates(t *testing.T) {
	long := strings.Repeat("ab ", 150)
	got := Summarize(long)
	assert.Len(t, got, 200)
	assert.True(t, strings.HasPrefix(got, "ab ab"))
}

func TestClientSend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mcp/api/chat", r.URL.Path)
		assert.Equal(t, "Bearer session", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("X-Api-Key"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"messages":[{"role":"user","content":"hi"}]}`, string(body))
		fmt.Fprint(w, `{"finalText":"hello"}`)
	}))
	defer server.Close()

	c := NewClient(server.URL+"/mcp/", "session", "", time.Second)
	body, err := c.Send(context.Background(), domain.ChatRequest{
		Messages: []domain.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"finalText":"hello"}`, string(body))
}

func TestClientSendStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
		fmt.Fprint(w, "<p>upstream timed out</p>")
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "t", "k", time.Second).Send(context.Background(), domain.ChatRequest{})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 504, statusErr.Status)
	assert.Equal(t, "Request timed out (HTTP 504). Details: upstream timed out", err.Error())
}

func TestClientStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/stream", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprint(w, `{"type":"step","name":"stamp_data","args":{"req":{}}}`+"\n")
		fmt.Fprint(w, "\n")
		fmt.Fprint(w, `{"type":"final_response","finalText":"done","tool_steps":[{"name":"stamp_data"}]}`)
	}))
	defer server.Close()

	var events []domain.StreamEvent
	err := NewClient(server.URL, "t", "k", time.Second).Stream(context.Background(), domain.ChatRequest{}, func(ev domain.StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.StreamEventStep, events[0].Type)
	assert.Equal(t, domain.StreamEventFinalResponse, events[1].Type)
	assert.Equal(t, "done", events[1].Envelope().FinalText)
}

func TestClientStreamRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"Rate limit exceeded"}`)
	}))
	defer server.Close()

	err := NewClient(server.URL, "t", "", time.Second).Stream(context.Background(), domain.ChatRequest{}, func(domain.StreamEvent) error {
		t.Fatal("no events expected")
		return nil
	})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Status)
}

func TestReadEventsMalformed(t *testing.T) {
	err := ReadEvents(strings.NewReader("{not json}\n"), func(domain.StreamEvent) error { return nil })
	assert.Equal(t, domain.ErrorMalformedResponse, domain.CodeOf(err))

	stop := errors.New("stop")
	err = ReadEvents(strings.NewReader(`{"type":"step"}`+"\n"+`{"type":"step"}`), func(domain.StreamEvent) error { return stop })
	assert.ErrorIs(t, err, stop)
}
