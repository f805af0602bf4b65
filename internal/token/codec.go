// Package token generates the opaque token strings handed out by the
// refresh and verification managers.
//
// Tokens are 32 bytes read from crypto/rand and encoded with unpadded
// base64url, so every token carries 256 bits of entropy and is safe to embed
// in URLs. Generation never falls back to a weaker randomness source: if the
// system entropy pool cannot be read the caller gets [ErrEntropyUnavailable]
// and the process is expected to stop serving.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrEntropyUnavailable is returned when the system randomness source
// cannot be read. It is fatal at startup.
var ErrEntropyUnavailable = errors.New("entropy source unavailable")

const rawTokenSize = 32

// Codec produces opaque, non-enumerable token strings.
type Codec struct{}

// NewCodec returns a Codec backed by crypto/rand.
func NewCodec() *Codec {
	return &Codec{}
}

// Generate returns a fresh URL-safe token with 256 bits of entropy.
func (c *Codec) Generate() (string, error) {
	var raw [rawTokenSize]byte
	if _, err := io.ReadFull(rand.Reader, raw[:]); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// SelfCheck reads from the entropy source once so startup can fail fast when
// crypto/rand is broken instead of discovering it on the first request.
func (c *Codec) SelfCheck() error {
	_, err := c.Generate()
	return err
}
