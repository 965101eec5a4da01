package warm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-proxy/internal/engine"
	"github.com/aliskhannn/image-proxy/internal/model"
	"github.com/aliskhannn/image-proxy/internal/proxy"
)

// service renders images into the cache.
type service interface {
	Process(ctx context.Context, token, sourceURL string, format engine.Format) (proxy.Result, error)
}

// Handler renders warm-up requests read from Kafka.
type Handler struct {
	service       service
	defaultFormat engine.Format
}

// NewHandler creates a new handler with the given service.
func NewHandler(s service, defaultFormat engine.Format) *Handler {
	return &Handler{service: s, defaultFormat: defaultFormat}
}

// Handle decodes a WarmRequest and renders it. Requests that can never
// succeed (bad token, bad format, pipeline not applicable to the source) are
// logged and acknowledged; upstream and other transient failures are
// returned so the message is not committed.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	var req model.WarmRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		zlog.Logger.Err(err).Int64("offset", msg.Offset).Msg("dropping undecodable warm request")
		return nil
	}

	format := h.defaultFormat
	if req.Format != "" {
		f, err := engine.ParseFormat(req.Format)
		if err != nil {
			zlog.Logger.Err(err).Str("id", req.ID.String()).Msg("dropping warm request")
			return nil
		}
		format = f
	}

	res, err := h.service.Process(ctx, req.Token, req.URL, format)
	if err != nil {
		if permanent(err) {
			zlog.Logger.Err(err).Str("id", req.ID.String()).Msg("dropping warm request")
			return nil
		}
		return fmt.Errorf("warm %s: %w", req.ID, err)
	}

	zlog.Logger.Info().
		Str("id", req.ID.String()).
		Str("key", res.Key.String()).
		Bool("cached", res.Cached).
		Msg("image warmed")

	return nil
}

func permanent(err error) bool {
	return errors.Is(err, proxy.ErrBadRequest) ||
		errors.Is(err, proxy.ErrTransform) ||
		errors.Is(err, proxy.ErrEncode)
}
