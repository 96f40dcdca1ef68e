package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
)

const readHeaderTimeout = 5 * time.Second

// StatusSource is the part of the controller the status endpoint reads from.
type StatusSource interface {
	Session(ctx context.Context) (core.SessionView, error)
	Stats(ctx context.Context) (core.StatsSnapshot, error)
	Rooms(ctx context.Context) ([]core.Room, error)
	Notifications(ctx context.Context) ([]core.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id uint64) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NotificationsResponse is the body of GET /notifications.
type NotificationsResponse struct {
	Unread        int                 `json:"unread"`
	Notifications []core.Notification `json:"notifications"`
}

// StatusHandlers exposes session state over HTTP for local tooling.
type StatusHandlers struct {
	src StatusSource
	log *zerolog.Logger
}

// NewStatusHandlers creates the handlers.
func NewStatusHandlers(src StatusSource, logger *zerolog.Logger) *StatusHandlers {
	return &StatusHandlers{src: src, log: logger}
}

// Option customizes the router.
type Option func(*gin.Engine)

// WithMiddleware installs extra middleware, e.g. request metrics.
func WithMiddleware(mw ...gin.HandlerFunc) Option {
	return func(r *gin.Engine) { r.Use(mw...) }
}

// NewRouter builds the gin engine. gatherer backs /metrics and may be nil.
func NewRouter(src StatusSource, gatherer prometheus.Gatherer, logger *zerolog.Logger, opts ...Option) *gin.Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(logger))
	for _, opt := range opts {
		opt(r)
	}

	h := NewStatusHandlers(src, logger)
	r.GET("/health", h.Health)
	r.GET("/session", h.Session)
	r.GET("/stats", h.Stats)
	r.GET("/rooms", h.Rooms)
	r.GET("/notifications", h.Notifications)
	r.POST("/notifications/read", h.MarkRead)

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

// NewServer builds an HTTP server for the status endpoint.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// Health handles liveness checks.
// GET /health
func (h *StatusHandlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Session returns the current session.
// GET /session
func (h *StatusHandlers) Session(c *gin.Context) {
	view, err := h.src.Session(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Stats returns the session counters.
// GET /stats
func (h *StatusHandlers) Stats(c *gin.Context) {
	stats, err := h.src.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Rooms returns the room catalog.
// GET /rooms
func (h *StatusHandlers) Rooms(c *gin.Context) {
	rooms, err := h.src.Rooms(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// Notifications returns the notification list, newest first.
// GET /notifications
func (h *StatusHandlers) Notifications(c *gin.Context) {
	ctx := c.Request.Context()
	list, err := h.src.Notifications(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	unread, err := h.src.UnreadCount(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []core.Notification{}
	}
	c.JSON(http.StatusOK, NotificationsResponse{Unread: unread, Notifications: list})
}

// MarkReadRequest selects the notification to mark. A missing id marks them all.
type MarkReadRequest struct {
	ID *uint64 `json:"id"`
}

// MarkRead marks one or all notifications as read.
// POST /notifications/read
func (h *StatusHandlers) MarkRead(c *gin.Context) {
	var req MarkReadRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.log.Debug().Err(err).Msg("invalid mark read request")
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
	}

	var err error
	if req.ID != nil {
		err = h.src.MarkNotificationRead(c.Request.Context(), *req.ID)
	} else {
		err = h.src.MarkAllNotificationsRead(c.Request.Context())
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StatusHandlers) fail(c *gin.Context, err error) {
	if errors.Is(err, core.ErrStopped) {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "client is shutting down"})
		return
	}
	h.log.Error().Err(err).Str("path", c.FullPath()).Msg("status request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
