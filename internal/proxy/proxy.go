// Package proxy coordinates a single image request: decode the pipeline,
// look the result up in the cache and, on a miss, fetch, transform, store.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/singleflight"

	"github.com/aliskhannn/image-proxy/internal/cache"
	"github.com/aliskhannn/image-proxy/internal/engine"
	"github.com/aliskhannn/image-proxy/internal/model"
	"github.com/aliskhannn/image-proxy/internal/pipeline"
)

// maxJoinAttempts bounds how often a waiter joins a new in-flight render after
// the previous leader gave up.
const maxJoinAttempts = 3

// fetcher downloads source images.
type fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Options tunes the coordinator.
type Options struct {
	// SingleFlight makes concurrent requests for the same key share one
	// fetch and render.
	SingleFlight bool
}

// Result is a rendered image.
type Result struct {
	Body        []byte
	ContentType string
	Key         cache.Key
	Cached      bool
}

// Coordinator serves image requests from the cache or by rendering them.
type Coordinator struct {
	cache     *cache.Cache
	fetcher   fetcher
	newEngine engine.Factory
	group     *singleflight.Group
}

// New creates a Coordinator. The cache is the only state shared between
// requests.
func New(c *cache.Cache, f fetcher, factory engine.Factory, opts Options) *Coordinator {
	co := &Coordinator{
		cache:     c,
		fetcher:   f,
		newEngine: factory,
	}
	if opts.SingleFlight {
		co.group = &singleflight.Group{}
	}
	return co
}

// Process returns the source image at sourceURL transformed by the pipeline
// encoded in token and encoded as format.
//
// Errors wrap one of ErrBadRequest, ErrUpstream, ErrTransform or ErrEncode,
// or the context error when ctx is done first. Failed and cancelled requests
// never populate the cache.
func (c *Coordinator) Process(ctx context.Context, token, sourceURL string, format engine.Format) (Result, error) {
	p, err := pipeline.Decode(token)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	if err := validateSourceURL(sourceURL); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	// Tokens that decode to the same pipeline share a cache entry.
	canonical, err := pipeline.Encode(p)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	key := cache.NewKey(canonical, sourceURL, format.String())
	res := Result{ContentType: format.ContentType(), Key: key}

	if body, ok := c.cache.Get(key); ok {
		zlog.Logger.Debug().
			Str("key", key.String()).
			Str("url", sourceURL).
			Msg("cache hit")

		res.Body = body
		res.Cached = true
		return res, nil
	}

	if c.group == nil {
		res.Body, err = c.render(ctx, key, p, sourceURL, format)
	} else {
		res.Body, err = c.renderShared(ctx, key, p, sourceURL, format)
	}
	if err != nil {
		return Result{}, err
	}

	return res, nil
}

// renderShared renders through the single-flight group. A waiter whose
// leader was cancelled joins or starts a new render while its own context
// is still alive.
func (c *Coordinator) renderShared(ctx context.Context, key cache.Key, p model.Pipeline, sourceURL string, format engine.Format) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		ch := c.group.DoChan(key.String(), func() (interface{}, error) {
			return c.render(ctx, key, p, sourceURL, format)
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-ch:
			if r.Err != nil {
				if errors.Is(r.Err, errAbandoned) && ctx.Err() == nil && attempt < maxJoinAttempts {
					zlog.Logger.Debug().
						Str("key", key.String()).
						Int("attempt", attempt).
						Msg("in-flight render abandoned, retrying")
					continue
				}
				return nil, r.Err
			}

			body := r.Val.([]byte)
			if r.Shared {
				body = bytes.Clone(body)
			}
			return body, nil
		}
	}
}

// render fetches the source, applies the pipeline and stores the result.
func (c *Coordinator) render(ctx context.Context, key cache.Key, p model.Pipeline, sourceURL string, format engine.Format) ([]byte, error) {
	start := time.Now()

	src, err := c.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, abandoned(ctx)
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if ctx.Err() != nil {
		return nil, abandoned(ctx)
	}

	eng, err := c.newEngine(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	if err := eng.Apply(p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransform, err)
	}

	body, err := eng.Generate(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	if ctx.Err() != nil {
		return nil, abandoned(ctx)
	}

	c.cache.Put(key, body)

	zlog.Logger.Info().
		Str("key", key.String()).
		Str("url", sourceURL).
		Int("specs", len(p)).
		Str("format", format.String()).
		Int("bytes", len(body)).
		Dur("took", time.Since(start)).
		Msg("image rendered")

	return body, nil
}

func validateSourceURL(raw string) error {
	if raw == "" {
		return errors.New("missing source url")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid source url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid source url %q: scheme and host are required", raw)
	}

	return nil
}
