package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random 96-bit identifier as 24 hex characters. It backs
// request ids and queue job ids.
func NewID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
