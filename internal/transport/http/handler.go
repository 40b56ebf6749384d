package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/integritas/internal/domain"
	"github.com/xiaot623/integritas/internal/service"
)

const version = "0.1.0"

const relayChunkSize = 32 * 1024

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// Handler handles HTTP requests.
type Handler struct {
	service     *service.Service
	uploadLimit string
}

// NewHandler creates a new handler. uploadLimit is an echo BodyLimit size
// such as "50M".
func NewHandler(svc *service.Service, uploadLimit string) *Handler {
	if uploadLimit == "" {
		uploadLimit = "50M"
	}
	return &Handler{
		service:     svc,
		uploadLimit: uploadLimit,
	}
}

// RegisterRoutes registers the API routes under api and the operational
// routes on e.
func (h *Handler) RegisterRoutes(e *echo.Echo, api *echo.Group) {
	api.POST("/api/chat", h.Chat)
	api.POST("/api/chat/stream", h.ChatStream)
	api.POST("/api/upload", h.Upload, middleware.BodyLimit(h.uploadLimit))

	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(h.service.Metrics().Handler()))
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

// Chat relays the body to the host and streams the answer back with the
// host's status and content type.
// POST /api/chat
func (h *Handler) Chat(c echo.Context) error {
	resp, err := h.service.RelayChat(c.Request().Context(), c.Request().Body, c.Request().Header)
	if err != nil {
		log.Printf("ERROR: chat relay failed: %v", err)
		detail := err.Error()
		if inner := errors.Unwrap(err); inner != nil {
			detail = inner.Error()
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:  "Proxy failure",
			Detail: detail,
		})
	}
	defer resp.Body.Close()

	c.Response().Header().Set(echo.HeaderContentType, resp.ContentType)
	c.Response().WriteHeader(resp.Status)
	c.Response().Flush()

	buf := make([]byte, relayChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := c.Response().Write(buf[:n]); err != nil {
				return nil
			}
			c.Response().Flush()
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			// Can't change status code after writing response
			log.Printf("ERROR: chat relay interrupted: %v", readErr)
			return nil
		}
	}
}

// ChatStream runs the requested tools and writes one JSON event per line.
// POST /api/chat/stream
func (h *Handler) ChatStream(c echo.Context) error {
	ctx := c.Request().Context()

	token := service.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if err := h.service.Admit(ctx, token); err != nil {
		return c.JSON(domain.CodeOf(err).HTTPStatus(), ErrorResponse{Error: domain.ReasonOf(err)})
	}

	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid chat request"})
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/x-ndjson")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().WriteHeader(http.StatusOK)

	first := true
	err := h.service.StreamChat(ctx, req, func(ev domain.StreamEvent) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		// Events are newline separated; the last one has no trailing newline.
		if !first {
			data = append([]byte{'\n'}, data...)
		}
		first = false
		if _, err := c.Response().Write(data); err != nil {
			return err
		}
		c.Response().Flush()
		return nil
	})
	if err != nil {
		// Can't change status code after writing response
		log.Printf("ERROR: chat stream failed: %v", err)
	}
	return nil
}

// Upload stores the multipart "file" field and returns its signed link.
// POST /api/upload
func (h *Handler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No file provided"})
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	defer f.Close()

	res, err := h.service.Upload(c.Request().Context(), service.UploadInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Body:        f,
		Size:        fh.Size,
		Public:      c.FormValue("public") == "true",
	})
	if err != nil {
		log.Printf("ERROR: upload failed: %v", err)
		return c.JSON(domain.CodeOf(err).HTTPStatus(), ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, res)
}
