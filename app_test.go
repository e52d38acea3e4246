package main

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/tjanssens/voxoscribe/internal/domain"
)

func TestSessionReasonMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.SessionStateReason]string{
		domain.SessionReasonListening:      "Listening...",
		domain.SessionReasonSilenceTimeout: "Transcribing...",
		domain.SessionReasonManualStop:     "Transcribing...",
		domain.SessionReasonNoSpeech:       "No speech detected",
		domain.SessionReasonAborted:        "Recording discarded",
	}
	for reason, want := range cases {
		reason := reason
		want := want
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			if got := sessionReasonMessage(reason); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	// Routine transitions stay silent.
	for _, reason := range []domain.SessionStateReason{
		domain.SessionReasonReady,
		domain.SessionReasonSpeechDetected,
		domain.SessionReasonDelivering,
	} {
		if got := sessionReasonMessage(reason); got != "" {
			t.Fatalf("expected no message for %q, got %q", reason, got)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:              "Startup failed",
		domain.ErrorCodeDeviceUnavailable:    "Microphone unavailable",
		domain.ErrorCodeCaptureFatal:         "Audio capture failed",
		domain.ErrorCodeModelNotReady:        "Transcription model not ready",
		domain.ErrorCodeDecodeFailed:         "Transcription failed",
		domain.ErrorCodeTranscriptionTimeout: "Transcription timed out",
		domain.ErrorCodeDeliveryFailed:       "Delivery failed; transcript kept in the log",
		domain.ErrorCodeRules:                "Rules processing failed",
	}
	for code, want := range cases {
		code := code
		want := want
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestSessionErrorNotifiesFatalCodesOnly(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	app := &App{log: discardLogger(), notifier: notifier}

	app.SessionError(domain.ErrorCodeDecodeFailed, "one chunk failed")
	app.SessionError(domain.ErrorCodeRules, "bad rule")
	if got := notifier.titles(); len(got) != 0 {
		t.Fatalf("expected no notifications for recoverable codes, got %v", got)
	}

	app.SessionError(domain.ErrorCodeCaptureFatal, "stream died")
	app.SessionError(domain.ErrorCodeDeliveryFailed, "no target; text retained")
	got := notifier.titles()
	if len(got) != 2 || got[0] != "Audio capture failed" || got[1] != "Delivery failed; transcript kept in the log" {
		t.Fatalf("unexpected notifications: %v", got)
	}
}

func TestTranscriptDeliveredNotifiesOnClipboardFallback(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	app := &App{log: discardLogger(), notifier: notifier}

	app.TranscriptDelivered("hallo wereld", domain.DeliveryRouteTyped)
	if got := notifier.titles(); len(got) != 0 {
		t.Fatalf("expected no notification for typed delivery, got %v", got)
	}

	app.TranscriptDelivered("hallo wereld", domain.DeliveryRouteClipboard)
	got := notifier.titles()
	if len(got) != 1 || got[0] != "Copied to clipboard" {
		t.Fatalf("unexpected notifications: %v", got)
	}
}

func TestEventSinkSafeBeforeBuild(t *testing.T) {
	t.Parallel()

	app := &App{log: discardLogger()}
	// No notifier yet; events must not panic.
	app.SessionError(domain.ErrorCodeStartup, "boot")
	app.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
	app.DeviceFallback("a", "b")
	app.FramesDropped(3)
}

func TestDeviceListed(t *testing.T) {
	t.Parallel()

	devices := []string{"HDA Intel PCH: ALC287 Analog", "USB Audio Device"}
	if !deviceListed(devices, "usb audio") {
		t.Fatalf("expected case-insensitive substring match")
	}
	if deviceListed(devices, "Blue Yeti") {
		t.Fatalf("expected no match for absent device")
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *recordingNotifier) Notify(title, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, title)
	return nil
}

func (n *recordingNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.sent))
	copy(out, n.sent)
	return out
}
