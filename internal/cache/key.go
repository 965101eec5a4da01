package cache

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Key is the fingerprint of a rendered image.
type Key uint64

// NewKey derives the fingerprint of (token, sourceURL, format). The parts are
// separated by a zero byte, which cannot appear in a token or a format name,
// so different triples never share the hash input.
func NewKey(token, sourceURL, format string) Key {
	d := xxhash.New()
	_, _ = d.WriteString(token)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(sourceURL)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(format)
	return Key(d.Sum64())
}

// String returns the key as 16 hex digits.
func (k Key) String() string {
	s := strconv.FormatUint(uint64(k), 16)
	for len(s) < 16 {
		s = "0" + s
	}
	return s
}
