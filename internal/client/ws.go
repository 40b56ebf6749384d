package client

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/integritas/internal/adapter/host"
	"github.com/xiaot623/integritas/internal/domain"
)

// WSStreamer streams chat events over the server's WebSocket route. Each
// request uses its own connection.
type WSStreamer struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
}

// NewWSStreamer creates a streamer for the server hc talks to.
func NewWSStreamer(hc *host.Client) *WSStreamer {
	url := hc.BaseURL() + "/api/chat/ws"
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	header := http.Header{}
	hc.SetHeaders(header)
	return &WSStreamer{url: url, header: header, dialer: websocket.DefaultDialer}
}

// Stream sends req as one frame and calls fn for each event until the
// final_response. An error event carrying a status ends the stream with a
// *host.StatusError.
func (w *WSStreamer) Stream(ctx context.Context, req domain.ChatRequest, fn host.EventCallback) error {
	conn, resp, err := w.dialer.DialContext(ctx, w.url, w.header)
	if err != nil {
		if resp != nil {
			return host.NewStatusError(resp.StatusCode, nil)
		}
		return domain.NewError(domain.ErrorUpstream, "failed to reach server", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(req); err != nil {
		return domain.NewError(domain.ErrorUpstream, "failed to send request", err)
	}

	for {
		var ev domain.StreamEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return domain.NewError(domain.ErrorUpstream, "stream interrupted", err)
		}
		if ev.Type == domain.StreamEventError && ev.Status != 0 {
			return &host.StatusError{Status: ev.Status, Label: host.StatusLabel(ev.Status), Detail: ev.Message}
		}
		if err := fn(ev); err != nil {
			return err
		}
		if ev.Type == domain.StreamEventFinalResponse {
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		}
	}
}
