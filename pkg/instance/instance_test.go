package instance

import (
	"strings"
	"testing"
)

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv(envInstanceID, "cart-a")
	if got := GetID(); got != "cart-a" {
		t.Fatalf("expected env id, got %q", got)
	}
}

func TestGetIDIsStableWithoutEnv(t *testing.T) {
	t.Setenv(envInstanceID, "")
	first := GetID()
	if !strings.HasPrefix(first, "cart-") {
		t.Fatalf("unexpected generated id %q", first)
	}
	if second := GetID(); second != first {
		t.Fatalf("expected stable id, got %q then %q", first, second)
	}
}
