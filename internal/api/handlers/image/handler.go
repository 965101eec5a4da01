package image

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-proxy/internal/api/respond"
	"github.com/aliskhannn/image-proxy/internal/cache"
	"github.com/aliskhannn/image-proxy/internal/engine"
	"github.com/aliskhannn/image-proxy/internal/middleware"
	"github.com/aliskhannn/image-proxy/internal/model"
	"github.com/aliskhannn/image-proxy/internal/pipeline"
	"github.com/aliskhannn/image-proxy/internal/proxy"
)

// ErrQueueDisabled is returned by Warm when no warm-up queue is configured.
var ErrQueueDisabled = errors.New("warm-up queue is disabled")

// service renders images.
type service interface {
	Process(ctx context.Context, token, sourceURL string, format engine.Format) (proxy.Result, error)
}

// statsSource reports cache statistics.
type statsSource interface {
	Stats() cache.Stats
}

// queue enqueues warm-up requests.
type queue interface {
	Produce(ctx context.Context, req model.WarmRequest) error
}

// Handler provides HTTP handlers for image and pipeline endpoints.
type Handler struct {
	service       service
	stats         statsSource
	queue         queue
	defaultFormat engine.Format
	maxAge        time.Duration
}

// NewHandler creates a new Handler. q may be nil, in which case warm-up
// requests are rejected with 503.
func NewHandler(s service, st statsSource, q queue, defaultFormat engine.Format, maxAge time.Duration) *Handler {
	return &Handler{
		service:       s,
		stats:         st,
		queue:         q,
		defaultFormat: defaultFormat,
		maxAge:        maxAge,
	}
}

// Get serves a transformed image. The source URL is taken from the :url
// path segment (percent-encoded) or from the url query parameter.
func (h *Handler) Get(c *ginext.Context) {
	token := c.Param("spec")
	sourceURL := c.Param("url")
	if sourceURL == "" {
		sourceURL = c.Query("url")
	}

	format, err := h.format(c.Query("format"))
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("invalid format")
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	res, err := h.service.Process(c.Request.Context(), token, sourceURL, format)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			zlog.Logger.Info().
				Str("request_id", middleware.GetRequestID(c)).
				Msg("client went away")
			c.Abort()
			return
		}

		status := statusOf(err)
		zlog.Logger.Err(err).
			Str("request_id", middleware.GetRequestID(c)).
			Str("url", sourceURL).
			Int("status", status).
			Msg("failed to process image")
		respond.Fail(c, status, err)
		return
	}

	etag := strconv.Quote(res.Key.String())
	c.Header("ETag", etag)
	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int(h.maxAge.Seconds())))
	c.Header("X-Cache-Key", res.Key.String())
	if res.Cached {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}

	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	respond.Image(c, http.StatusOK, res.ContentType, res.Body)
}

// BuildPipeline encodes a JSON pipeline into a token.
func (h *Handler) BuildPipeline(c *ginext.Context) {
	var doc pipeline.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to bind pipeline")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid pipeline: %w", err))
		return
	}

	p, err := pipeline.FromRecords(doc.Specs)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	token, err := pipeline.Encode(p)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	respond.OK(c, map[string]interface{}{
		"token": token,
		"specs": len(p),
	})
}

// DescribePipeline decodes a token into its JSON records.
func (h *Handler) DescribePipeline(c *ginext.Context) {
	p, err := pipeline.Decode(c.Param("spec"))
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	records, err := pipeline.ToRecords(p)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to convert pipeline")
		respond.Fail(c, http.StatusInternalServerError, err)
		return
	}

	respond.OK(c, pipeline.Document{Specs: records})
}

// CacheStats returns the cache counters.
func (h *Handler) CacheStats(c *ginext.Context) {
	respond.OK(c, h.stats.Stats())
}

// WarmRequest is the body of a warm-up request.
type WarmRequest struct {
	Token  string `json:"token"`
	URL    string `json:"url" binding:"required"`
	Format string `json:"format"`
}

// Warm enqueues a render so that later requests hit the cache.
func (h *Handler) Warm(c *ginext.Context) {
	if h.queue == nil {
		respond.Fail(c, http.StatusServiceUnavailable, ErrQueueDisabled)
		return
	}

	var req WarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to bind warm request")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}

	if _, err := pipeline.Decode(req.Token); err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	format, err := h.format(req.Format)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	msg := model.WarmRequest{
		ID:        uuid.New(),
		Token:     req.Token,
		URL:       req.URL,
		Format:    format.String(),
		CreatedAt: time.Now().UTC(),
	}

	if err := h.queue.Produce(c.Request.Context(), msg); err != nil {
		zlog.Logger.Err(err).Str("id", msg.ID.String()).Msg("failed to enqueue warm request")
		respond.Fail(c, http.StatusServiceUnavailable, fmt.Errorf("failed to enqueue: %w", err))
		return
	}

	respond.Accepted(c, map[string]interface{}{"id": msg.ID})
}

func (h *Handler) format(name string) (engine.Format, error) {
	if name == "" {
		return h.defaultFormat, nil
	}
	return engine.ParseFormat(name)
}

// statusOf maps a processing error to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, proxy.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, proxy.ErrTransform):
		return http.StatusUnprocessableEntity
	case errors.Is(err, proxy.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, proxy.ErrEncode):
		if errors.Is(err, engine.ErrUnsupportedFormat) {
			return http.StatusUnsupportedMediaType
		}
		return http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
