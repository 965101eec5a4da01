package proxy

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrBadRequest means the pipeline token or source URL is invalid.
	ErrBadRequest = errors.New("bad request")
	// ErrUpstream means the source image could not be fetched or read.
	ErrUpstream = errors.New("upstream error")
	// ErrTransform means the pipeline does not apply to the source image.
	ErrTransform = errors.New("transform failed")
	// ErrEncode means the result could not be encoded in the requested format.
	ErrEncode = errors.New("encode failed")
)

// errAbandoned marks work stopped because the context that started it was
// done. It always wraps the context error.
var errAbandoned = errors.New("render abandoned")

func abandoned(ctx context.Context) error {
	return fmt.Errorf("%w: %w", errAbandoned, context.Cause(ctx))
}
