package accounts

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/goliatone/go-errors"
)

// tokenEntropyBytes gives 256 bits of entropy per token, which keeps values
// unguessable even while they sit unexpired in the store.
const tokenEntropyBytes = 32

// TokenSource produces opaque lifecycle token values.
type TokenSource interface {
	NewToken() (string, error)
}

// RandomTokenSource draws token values from crypto/rand and encodes them
// with URL-safe base64 so they survive query strings unescaped.
type RandomTokenSource struct {
	size int
}

// NewRandomTokenSource returns the default token source.
func NewRandomTokenSource() *RandomTokenSource {
	return &RandomTokenSource{size: tokenEntropyBytes}
}

func (s *RandomTokenSource) NewToken() (string, error) {
	size := s.size
	if size <= 0 {
		size = tokenEntropyBytes
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to read token entropy")
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
