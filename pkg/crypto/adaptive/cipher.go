package adaptive

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"runtime"
)

// CipherType identifies an AEAD algorithm.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

// Cipher is an authenticated cipher with a self-describing algorithm.
type Cipher interface {
	// Type returns the algorithm behind this cipher.
	Type() CipherType

	// Encrypt seals plaintext, binding additionalData into the
	// authentication tag.
	Encrypt(plaintext, additionalData []byte) ([]byte, error)

	// Decrypt opens a sealed message. It fails when the ciphertext or
	// additionalData was altered.
	Decrypt(ciphertext, additionalData []byte) ([]byte, error)

	// NonceSize returns the nonce size in bytes.
	NonceSize() int

	// Overhead returns the authentication tag size in bytes.
	Overhead() int
}

// New picks the algorithm for this machine: AES-GCM where the
// architecture carries hardware AES, ChaCha20-Poly1305 everywhere
// else.
func New(key []byte) (Cipher, error) {
	if preferAES() {
		return NewAESGCM(key)
	}
	return NewChaCha20(key)
}

// NewWithType creates a cipher of an explicit type, for reading data
// written on a machine that selected differently.
func NewWithType(key []byte, cipherType CipherType) (Cipher, error) {
	switch cipherType {
	case CipherAESGCM:
		return NewAESGCM(key)
	case CipherChaCha20:
		return NewChaCha20(key)
	default:
		return nil, fmt.Errorf("unknown cipher type %q", cipherType)
	}
}

// preferAES reports whether crypto/aes runs on dedicated instructions
// here. Go uses AES-NI on amd64 and the crypto extensions on arm64; on
// everything else ChaCha20 is the faster software cipher.
func preferAES() bool {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return true
	default:
		return false
	}
}

// sealedBox implements Cipher over any AEAD. Each message carries its
// random nonce as a prefix, so a single key covers many messages.
type sealedBox struct {
	kind CipherType
	aead cipher.AEAD
}

func (s *sealedBox) Type() CipherType {
	return s.kind
}

func (s *sealedBox) NonceSize() int {
	return s.aead.NonceSize()
}

func (s *sealedBox) Overhead() int {
	return s.aead.Overhead()
}

func (s *sealedBox) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

func (s *sealedBox) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	if len(ciphertext) < s.aead.NonceSize() {
		return nil, errors.New("ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:s.aead.NonceSize()], ciphertext[s.aead.NonceSize():]
	return s.aead.Open(nil, nonce, sealed, additionalData)
}
