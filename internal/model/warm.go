package model

import (
	"time"

	"github.com/google/uuid"
)

// WarmRequest asks the proxy to render a (pipeline, source) pair ahead of
// time so that later requests are served from the cache.
type WarmRequest struct {
	ID        uuid.UUID `json:"id"`
	Token     string    `json:"token"`            // pipeline token
	URL       string    `json:"url"`              // source image URL
	Format    string    `json:"format,omitempty"` // output format, default when empty
	CreatedAt time.Time `json:"created_at"`
}
