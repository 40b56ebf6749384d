// Package ws provides the WebSocket variant of the streaming chat relay.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/integritas/internal/domain"
	"github.com/xiaot623/integritas/internal/service"
)

const (
	maxMessageSize = 1 << 20
	readTimeout    = 60 * time.Second
	writeTimeout   = 10 * time.Second
	pingInterval   = 30 * time.Second
)

// Server upgrades chat connections and relays stream events as frames.
type Server struct {
	service  *service.Service
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(svc *service.Service) *Server {
	return &Server{
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the WebSocket route under g.
func (s *Server) RegisterRoutes(g *echo.Group) {
	g.GET("/api/chat/ws", s.HandleWebSocket)
}

// conn serializes writes; gorilla connections allow one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

func (c *conn) send(ev domain.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

// HandleWebSocket handles the upgrade and serves the connection until the
// client goes away. The token comes from the Authorization header or the
// token query parameter.
func (s *Server) HandleWebSocket(c echo.Context) error {
	token := service.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if token == "" {
		token = c.QueryParam("token")
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}

	cn := &conn{ws: ws}
	done := make(chan struct{})
	go s.pingLoop(cn, done)

	s.readLoop(c, cn, token)
	close(done)
	ws.Close()
	return nil
}

func (s *Server) readLoop(c echo.Context, cn *conn, token string) {
	ctx := c.Request().Context()

	cn.ws.SetReadLimit(maxMessageSize)
	cn.ws.SetReadDeadline(time.Now().Add(readTimeout))
	cn.ws.SetPongHandler(func(string) error {
		cn.ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		messageType, message, err := cn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := s.handleMessage(c, cn, token, message); err != nil {
			log.Printf("WARN: websocket stream aborted: %v", err)
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// handleMessage runs one chat request. Only write failures are returned.
func (s *Server) handleMessage(c echo.Context, cn *conn, token string, data []byte) error {
	ctx := c.Request().Context()

	if err := s.service.Admit(ctx, token); err != nil {
		return cn.send(domain.StreamEvent{
			Type:    domain.StreamEventError,
			Message: domain.ReasonOf(err),
			Status:  domain.CodeOf(err).HTTPStatus(),
		})
	}

	var req domain.ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return cn.send(domain.StreamEvent{
			Type:    domain.StreamEventError,
			Message: "invalid chat request",
			Status:  http.StatusBadRequest,
		})
	}

	return s.service.StreamChat(ctx, req, cn.send)
}

func (s *Server) pingLoop(cn *conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := cn.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
