package inject

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/tjanssens/voxoscribe/internal/domain"
)

func TestTyperSkipsEmptyText(t *testing.T) {
	t.Parallel()

	if err := NewTyper().TypeText(context.Background(), ""); err != nil {
		t.Fatalf("empty text must be a no-op, got %v", err)
	}
}

func TestTyperHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewTyper().TypeText(ctx, "tekst"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestTyperRequiresDisplaySession(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("display session check is linux only")
	}
	t.Setenv("DISPLAY", "")
	t.Setenv("WAYLAND_DISPLAY", "")

	err := NewTyper().TypeText(context.Background(), "tekst")
	if !errors.Is(err, domain.ErrNoInjectionTarget) {
		t.Fatalf("expected no injection target, got %v", err)
	}
}

func TestPasterRequiresDisplaySession(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("display session check is linux only")
	}
	t.Setenv("DISPLAY", "")
	t.Setenv("WAYLAND_DISPLAY", "")

	err := NewPaster().TypeText(context.Background(), "tekst")
	if !errors.Is(err, domain.ErrNoInjectionTarget) {
		t.Fatalf("expected no injection target, got %v", err)
	}
}
