package artifact

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

func TestKey(t *testing.T) {
	if got := Key("advice", "advice-20260101T000000.000000Z"); got != "advice/advice-20260101T000000.000000Z.json" {
		t.Fatalf("key=%s", got)
	}
}

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if _, err := st.Get(ctx, "advice/v1.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := st.Put(ctx, "advice/v1.json", []byte(`{"version":"v1"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	b, err := st.Get(ctx, "advice/v1.json")
	if err != nil || string(b) != `{"version":"v1"}` {
		t.Fatalf("Get: %q err=%v", b, err)
	}
	if err := st.Delete(ctx, "advice/v1.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := st.Delete(ctx, "advice/v1.json"); err != nil {
		t.Fatalf("second Delete should be a no-op: %v", err)
	}
	if _, err := st.Get(ctx, "advice/v1.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	st, _ := NewLocal(t.TempDir())
	if err := st.Put(context.Background(), "../outside.json", []byte("x")); err == nil {
		t.Fatalf("expected error for key escaping the root")
	}
}

func TestNewPrefixedLocal(t *testing.T) {
	dir := t.TempDir()
	st, err := New(context.Background(), Config{Backend: "local", LocalDir: dir, Prefix: "exports"}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := st.Put(context.Background(), "advice/v1.json", []byte("{}")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	raw, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if _, err := raw.Get(context.Background(), filepath.ToSlash(filepath.Join("exports", "advice", "v1.json"))); err != nil {
		t.Fatalf("prefixed object missing: %v", err)
	}
}

func TestNoneAndUnknown(t *testing.T) {
	st, err := New(context.Background(), Config{Backend: "none"}, logger.Nop())
	if err != nil || st.Name() != "none" {
		t.Fatalf("none: %v %v", st, err)
	}
	if _, err := st.Get(context.Background(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("none Get should be ErrNotFound")
	}
	if _, err := New(context.Background(), Config{Backend: "ftp"}, logger.Nop()); err == nil {
		t.Fatalf("unknown backend should error")
	}
}
