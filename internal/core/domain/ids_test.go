package domain

import (
	"regexp"
	"strings"
	"testing"
)

func TestGenerateNodeID(t *testing.T) {
	id, err := GenerateNodeID()
	if err != nil {
		t.Fatalf("GenerateNodeID() error = %v", err)
	}

	if !strings.HasPrefix(id, NodeIDPrefix) {
		t.Errorf("node ID %q should have prefix %q", id, NodeIDPrefix)
	}

	// node- (5) + ulid (26)
	if len(id) != 31 {
		t.Errorf("node ID length = %d, want 31", len(id))
	}

	if id != strings.ToLower(id) {
		t.Errorf("node ID %q should be lowercase", id)
	}
}

func TestGenerateNodeID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := GenerateNodeID()
		if err != nil {
			t.Fatalf("GenerateNodeID() error = %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate node ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestGenerateSocketID(t *testing.T) {
	format := regexp.MustCompile(`^\d{1,9}\.\d{1,9}$`)

	for i := 0; i < 100; i++ {
		id := GenerateSocketID()
		if !format.MatchString(id) {
			t.Fatalf("socket ID %q does not match {number}.{number}", id)
		}
	}
}

func TestGenerateAppCredentials(t *testing.T) {
	key, err := GenerateAppKey()
	if err != nil {
		t.Fatalf("GenerateAppKey() error = %v", err)
	}
	if len(key) != 32 {
		t.Errorf("app key length = %d, want 32", len(key))
	}

	secret, err := GenerateAppSecret()
	if err != nil {
		t.Fatalf("GenerateAppSecret() error = %v", err)
	}
	if len(secret) != 64 {
		t.Errorf("app secret length = %d, want 64", len(secret))
	}

	if key == secret[:32] {
		t.Error("key and secret should be independent")
	}
}
