package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mathrand "math/rand/v2"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NodeIDPrefix is the prefix for generated node identifiers.
const NodeIDPrefix = "node-"

// GenerateNodeID generates a cluster-unique node ID.
// Format: node-{ulid_lowercase}, 31 characters total.
func GenerateNodeID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return NodeIDPrefix + strings.ToLower(id.String()), nil
}

// GenerateSocketID generates a Pusher-format socket ID.
// Format: {number}.{number}, both parts below 10^9.
func GenerateSocketID() string {
	return fmt.Sprintf("%d.%d", mathrand.Uint64N(1_000_000_000), mathrand.Uint64N(1_000_000_000))
}

// GenerateAppKey generates a random app key (32 hex characters).
func GenerateAppKey() (string, error) {
	return randomHex(16)
}

// GenerateAppSecret generates a random app secret (64 hex characters).
func GenerateAppSecret() (string, error) {
	return randomHex(32)
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return hex.EncodeToString(b), nil
}
