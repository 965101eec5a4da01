package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Fetcher downloads the raw bytes of a source image.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Router dispatches a source URL to the fetcher registered for its scheme.
type Router struct {
	schemes map[string]Fetcher
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{schemes: make(map[string]Fetcher)}
}

// Handle registers f for the given schemes, replacing earlier registrations.
func (r *Router) Handle(f Fetcher, schemes ...string) *Router {
	for _, s := range schemes {
		r.schemes[strings.ToLower(s)] = f
	}
	return r
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	f, ok := r.schemes[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	return f.Fetch(ctx, rawURL)
}
