package envutil

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	t.Setenv("X_DELAY", "250ms")
	if got := Duration("X_DELAY", time.Second); got != 250*time.Millisecond {
		t.Fatalf("got %v", got)
	}
	t.Setenv("X_DELAY", "1500")
	if got := Duration("X_DELAY", time.Second); got != 1500*time.Millisecond {
		t.Fatalf("got %v", got)
	}
	t.Setenv("X_DELAY", "soon")
	if got := Duration("X_DELAY", time.Second); got != time.Second {
		t.Fatalf("bad value should fall back, got %v", got)
	}
}

func TestListAndBool(t *testing.T) {
	t.Setenv("X_LANGS", " ja, ,en ")
	got := List("X_LANGS", nil)
	if len(got) != 2 || got[0] != "ja" || got[1] != "en" {
		t.Fatalf("got %v", got)
	}
	t.Setenv("X_FLAG", "off")
	if Bool("X_FLAG", true) {
		t.Fatalf("off should parse false")
	}
	if !Bool("X_MISSING_FLAG", true) {
		t.Fatalf("missing should use default")
	}
}
