package identity

import (
	"strings"
	"testing"
)

func TestHashEmailDeterministic(t *testing.T) {
	a := HashEmail("read@example.com")
	b := HashEmail("read@example.com")
	if a != b {
		t.Errorf("same input hashed differently: %q vs %q", a, b)
	}
}

func TestHashEmailNormalizes(t *testing.T) {
	a := HashEmail("Read@Example.com")
	b := HashEmail("  read@example.com ")
	if a != b {
		t.Errorf("normalized forms hashed differently: %q vs %q", a, b)
	}
}

func TestHashEmailDistinct(t *testing.T) {
	if HashEmail("a@example.com") == HashEmail("b@example.com") {
		t.Error("different addresses produced the same hash")
	}
}

func TestHashEmailSafeAsKeyPrefix(t *testing.T) {
	h := HashEmail("read@example.com")
	if len(h) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h))
	}
	if strings.ContainsAny(h, ":_") {
		t.Errorf("hash contains key separator characters: %q", h)
	}
}
