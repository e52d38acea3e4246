package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/tjanssens/voxoscribe/internal/domain"
)

func TestDispatcherPrefersInjection(t *testing.T) {
	t.Parallel()

	injector := &fakeInjector{}
	clipboard := &fakeClipboard{}
	dispatcher := newOutputDispatcher(injector, clipboard)

	delivery, reason, err := dispatcher.Deliver(context.Background(), "hallo")
	if err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if delivery.Route != domain.DeliveryRouteTyped {
		t.Fatalf("unexpected route: %s", delivery.Route)
	}
	if reason != domain.SessionReasonTranscriptTyped {
		t.Fatalf("unexpected reason: %s", reason)
	}
	if got := injector.lastText(); got != "hallo" {
		t.Fatalf("injector got %q", got)
	}
	if clipboard.lastText() != "" {
		t.Fatalf("clipboard written despite successful injection")
	}
}

func TestDispatcherFallsBackToClipboard(t *testing.T) {
	t.Parallel()

	injector := &fakeInjector{err: domain.ErrNoInjectionTarget}
	clipboard := &fakeClipboard{}
	dispatcher := newOutputDispatcher(injector, clipboard)

	delivery, reason, err := dispatcher.Deliver(context.Background(), "hallo wereld")
	if err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if delivery.Route != domain.DeliveryRouteClipboard {
		t.Fatalf("unexpected route: %s", delivery.Route)
	}
	if reason != domain.SessionReasonTranscriptCopied {
		t.Fatalf("unexpected reason: %s", reason)
	}
	if got := clipboard.lastText(); got != "hallo wereld" {
		t.Fatalf("clipboard got %q, want the exact transcript", got)
	}
}

func TestDispatcherRetainsTextWhenAllRoutesFail(t *testing.T) {
	t.Parallel()

	injector := &fakeInjector{err: errors.New("inject down")}
	clipboard := &fakeClipboard{err: errors.New("clipboard down")}
	dispatcher := newOutputDispatcher(injector, clipboard)

	delivery, reason, err := dispatcher.Deliver(context.Background(), "do not lose me")
	if err == nil {
		t.Fatalf("expected delivery failure")
	}
	if reason != domain.SessionReasonDeliveryFailed {
		t.Fatalf("unexpected reason: %s", reason)
	}
	if delivery.Text != "do not lose me" {
		t.Fatalf("failed delivery dropped the text: %q", delivery.Text)
	}
}
