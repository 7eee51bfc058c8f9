package uuid

import (
	"testing"

	googleuuid "github.com/google/uuid"
)

func TestNew(t *testing.T) {
	id := New()
	parsed, err := googleuuid.Parse(id)
	if err != nil {
		t.Fatalf("expected valid uuid, got %q: %v", id, err)
	}
	if parsed.Version() != 7 {
		t.Errorf("expected version 7, got %d", parsed.Version())
	}
}

func TestNew_TimeOrdered(t *testing.T) {
	first := New()
	second := New()
	if first >= second {
		t.Errorf("expected %s < %s", first, second)
	}
}

func TestIsValid(t *testing.T) {
	tests := map[string]bool{
		New():                                  true,
		"6c1f7d8e-4a0b-4f55-9a55-3d3c2b1a0f01": true,
		"":                                     false,
		"not-a-uuid":                           false,
		"42":                                   false,
	}
	for in, want := range tests {
		if got := IsValid(in); got != want {
			t.Errorf("IsValid(%q) = %v, want %v", in, got, want)
		}
	}
}
