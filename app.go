package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tjanssens/voxoscribe/internal/bootstrap"
	"github.com/tjanssens/voxoscribe/internal/config"
	"github.com/tjanssens/voxoscribe/internal/domain"
	"github.com/tjanssens/voxoscribe/internal/ports"
)

// App is the headless application root. It supervises the long-running loops
// and translates backend events into log lines and desktop notifications.
type App struct {
	log *slog.Logger
	cfg config.Config

	notifier ports.Notifier
}

func NewApp(log *slog.Logger, cfg config.Config) *App {
	return &App{log: log, cfg: cfg}
}

// Run wires the services and drives them until the context ends.
func (a *App) Run(ctx context.Context) error {
	services, err := bootstrap.Build(a.cfg, a)
	if err != nil {
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return fmt.Errorf("startup: %w", err)
	}
	a.notifier = services.Notifier
	defer func() { _ = services.Engine.Close() }()

	a.checkMicrophones(services.Audio)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return services.Controller.Run(ctx) })
	g.Go(func() error { return services.Worker.Run(ctx) })
	g.Go(func() error { return services.Hotkey.Run(ctx) })
	g.Go(func() error {
		a.forwardToggles(ctx, services)
		return nil
	})
	g.Go(func() error {
		a.prepareEngine(ctx, services.Engine)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// checkMicrophones verifies at startup that capture has somewhere to read
// from, before the first hotkey press would find out the hard way.
func (a *App) checkMicrophones(source ports.AudioSource) {
	devices, err := source.Devices()
	if err != nil {
		a.log.Warn("could not list input devices", "err", err)
		a.notify("Microphone check failed", "Input devices could not be listed; capture may fail.")
		return
	}
	if len(devices) == 0 {
		a.log.Warn("no input devices found")
		a.notify("No microphone found", "Connect a microphone before dictating.")
		return
	}
	a.log.Info("input devices found", "count", len(devices))

	if want := a.cfg.Audio.InputDevice; want != "" && !deviceListed(devices, want) {
		a.log.Warn("configured microphone not present, the default input will be used", "microphone", want)
		a.notify("Microphone not found", fmt.Sprintf("%q is not connected; the default input will be used.", want))
	}
}

// prepareEngine readies the transcription engine in the background. Dictation
// attempted before it finishes surfaces model_not_ready through the session.
func (a *App) prepareEngine(ctx context.Context, engine ports.TranscriptionEngine) {
	a.log.Info("preparing transcription engine", "engine", engine.Name())
	start := time.Now()

	downloading := false
	err := engine.Prepare(ctx, func(percent int) {
		if percent < 100 && !downloading {
			downloading = true
			a.notify("Downloading voice model", "First run: fetching the transcription model.")
		}
		a.log.Debug("engine preparation", "percent", percent)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		a.log.Error("transcription engine not ready", "engine", engine.Name(), "err", err)
		a.notify("Transcription engine not ready", err.Error())
		return
	}

	a.log.Info("transcription engine ready", "engine", engine.Name(), "took", time.Since(start))
	a.notify("VoxoScribe ready", fmt.Sprintf("Press %s to dictate.", a.cfg.Hotkey))
}

func (a *App) forwardToggles(ctx context.Context, services bootstrap.Services) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-services.Hotkey.Toggles():
			services.Controller.Toggle()
		}
	}
}

// SessionStateChanged logs every transition and raises a notification for the
// ones the user needs to see to trust the microphone state.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	a.log.Info("session state", "state", string(state), "reason", string(reason))
	if msg := sessionReasonMessage(reason); msg != "" {
		a.notify("VoxoScribe", msg)
	}
}

// TranscriptDelivered reports a completed delivery. Transcript text stays out
// of the info log; the character count is enough to correlate.
func (a *App) TranscriptDelivered(text string, route domain.DeliveryRoute) {
	a.log.Info("transcript delivered", "route", string(route), "chars", len(text))
	a.log.Debug("transcript text", "text", text)
	if route == domain.DeliveryRouteClipboard {
		a.notify("Copied to clipboard", "Typing was unavailable; paste the transcript manually.")
	}
}

func (a *App) DeviceFallback(oldDevice, newDevice string) {
	a.log.Warn("input device fell back", "from", oldDevice, "to", newDevice)
	a.notify("Microphone changed", fmt.Sprintf("Capture moved to %s.", newDevice))
}

func (a *App) FramesDropped(count int) {
	a.log.Warn("capture frames dropped", "count", count)
}

// SessionError logs every backend error; fatal ones the user must act on also
// raise a notification. The detail for failed deliveries includes the
// transcript text so nothing is silently lost.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.log.Error("session error", "code", string(code), "detail", detail)
	if errorNotifies(code) {
		a.notify(errorMessage(code, detail), detail)
	}
}

func (a *App) notify(title, message string) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.Notify(title, message); err != nil {
		a.log.Debug("notification failed", "err", err)
	}
}

func deviceListed(devices []string, name string) bool {
	for _, device := range devices {
		if strings.Contains(strings.ToLower(device), strings.ToLower(name)) {
			return true
		}
	}
	return false
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonListening:
		return "Listening..."
	case domain.SessionReasonSilenceTimeout, domain.SessionReasonManualStop:
		return "Transcribing..."
	case domain.SessionReasonNoSpeech:
		return "No speech detected"
	case domain.SessionReasonAborted:
		return "Recording discarded"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeDeviceUnavailable:
		return "Microphone unavailable"
	case domain.ErrorCodeCaptureFatal:
		return "Audio capture failed"
	case domain.ErrorCodeModelNotReady:
		return "Transcription model not ready"
	case domain.ErrorCodeDecodeFailed:
		return "Transcription failed"
	case domain.ErrorCodeTranscriptionTimeout:
		return "Transcription timed out"
	case domain.ErrorCodeDeliveryFailed:
		return "Delivery failed; transcript kept in the log"
	case domain.ErrorCodeRules:
		return "Rules processing failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

// errorNotifies says whether a code warrants a desktop notification. Per-chunk
// decode and rules failures stay in the log; the session recovers on its own.
func errorNotifies(code domain.ErrorCode) bool {
	switch code {
	case domain.ErrorCodeDecodeFailed, domain.ErrorCodeRules:
		return false
	default:
		return true
	}
}
