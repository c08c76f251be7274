package adaptive

import (
	"crypto/sha256"
	"errors"
)

// NewFromPassphrase creates an adaptive cipher from an arbitrary-length
// passphrase. The passphrase is stretched to a 32-byte key with SHA-256.
//
// Intended for operator-supplied encryption keys from configuration,
// where requiring an exact 32-byte value would be hostile.
func NewFromPassphrase(passphrase string) (Cipher, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}
	key := DeriveKey(passphrase)
	return New(key)
}

// DeriveKey derives a 32-byte encryption key from a passphrase.
func DeriveKey(passphrase string) []byte {
	sum := sha256.Sum256([]byte(passphrase))
	return sum[:]
}
