// Package pipeline encodes transform pipelines into compact URL-safe tokens
// and decodes them back.
//
// A token is the unpadded URL-safe base64 form of a CBOR document (RFC 8949)
// with integer keys. Encoding is deterministic, so a pipeline always maps to
// the same token and the token can take part in cache keys.
package pipeline

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/aliskhannn/image-proxy/internal/model"
)

const (
	// MaxSpecs bounds the number of transforms in one pipeline.
	MaxSpecs = 64
	// MaxTokenLength bounds the token length accepted by Decode.
	MaxTokenLength = 4096
)

// ErrMalformed is returned for any token that does not decode to a valid pipeline.
var ErrMalformed = errors.New("malformed pipeline token")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
	token   = base64.RawURLEncoding.Strict()
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("pipeline: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		MaxArrayElements:  MaxSpecs,
		MaxNestedLevels:   8,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("pipeline: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode returns the token for p. It fails only for pipelines that could not
// be decoded again (invalid enum values, too many transforms).
func Encode(p model.Pipeline) (string, error) {
	if len(p) > MaxSpecs {
		return "", fmt.Errorf("encode pipeline: %d transforms, limit is %d", len(p), MaxSpecs)
	}
	if err := p.Validate(); err != nil {
		return "", fmt.Errorf("encode pipeline: %w", err)
	}

	records, err := ToRecords(p)
	if err != nil {
		return "", fmt.Errorf("encode pipeline: %w", err)
	}

	data, err := encMode.Marshal(Document{Specs: records})
	if err != nil {
		return "", fmt.Errorf("encode pipeline: %w", err)
	}

	return token.EncodeToString(data), nil
}

// MustEncode is like Encode but panics on error.
func MustEncode(p model.Pipeline) string {
	s, err := Encode(p)
	if err != nil {
		panic(err)
	}
	return s
}

// Decode parses a token produced by Encode. The empty string decodes to the
// empty pipeline. Every failure wraps ErrMalformed.
func Decode(s string) (model.Pipeline, error) {
	if s == "" {
		return model.Pipeline{}, nil
	}
	if len(s) > MaxTokenLength {
		return nil, fmt.Errorf("%w: token is %d bytes, limit is %d", ErrMalformed, len(s), MaxTokenLength)
	}

	data, err := token.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	var doc *Document
	if err := decMode.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: null document", ErrMalformed)
	}

	p, err := FromRecords(doc.Specs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return p, nil
}
