package uuid

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	a := New()
	b := New()

	if !IsValid(a) || !IsValid(b) {
		t.Fatalf("expected valid UUIDs, got %q and %q", a, b)
	}
	if a == b {
		t.Fatal("expected distinct UUIDs")
	}
	if a[14] != '7' {
		t.Errorf("expected version 7, got %q", a)
	}
	if strings.Compare(a, b) > 0 {
		t.Errorf("expected time-ordered UUIDs, got %q then %q", a, b)
	}
}

func TestParse(t *testing.T) {
	t.Run("canonicalizes", func(t *testing.T) {
		got, err := Parse("0190B4E2-7C3A-7D2E-8F00-0123456789AB")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "0190b4e2-7c3a-7d2e-8f00-0123456789ab" {
			t.Errorf("unexpected canonical form %q", got)
		}
	})

	t.Run("rejects_garbage", func(t *testing.T) {
		if _, err := Parse("rollover-123"); err == nil {
			t.Error("expected error for non-UUID input")
		}
		if IsValid("") {
			t.Error("empty string must not be valid")
		}
	})
}
