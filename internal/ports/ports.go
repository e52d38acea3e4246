package ports

import (
	"context"

	"github.com/tjanssens/voxoscribe/internal/domain"
)

// CaptureSession is a live microphone capture session. Frames carries fixed
// duration audio frames and never blocks the producer; when the consumer
// falls behind, the oldest frames are dropped and reported on Events. Both
// channels close after Close or a fatal capture event.
type CaptureSession interface {
	Frames() <-chan domain.AudioFrame
	Events() <-chan domain.CaptureEvent
	SampleRate() int
	Device() string
	Close() error
}

// AudioSource opens microphone capture sessions. An empty device name selects
// the system default input.
type AudioSource interface {
	Open(ctx context.Context, device string) (CaptureSession, error)
	Devices() ([]string, error)
}

// TranscriptionEngine turns one audio chunk into text. Decode is synchronous;
// concurrency and timeouts are the caller's concern. Prepare performs one-time
// setup such as model downloads and may be slow.
type TranscriptionEngine interface {
	Prepare(ctx context.Context, progress func(percent int)) error
	Decode(ctx context.Context, samples []float32, sampleRate int, language string) (domain.DecodeResult, error)
	Name() string
	Close() error
}

// InjectionSink places text into the currently focused application. It returns
// domain.ErrNoInjectionTarget when no target can accept text.
type InjectionSink interface {
	TypeText(ctx context.Context, text string) error
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// Notifier raises a desktop notification. Failures are logged, never fatal.
type Notifier interface {
	Notify(title, message string) error
}

// ToggleSource delivers start/stop toggle intents, one per activation.
type ToggleSource interface {
	Toggles() <-chan struct{}
	Run(ctx context.Context) error
}

// RulesEngine transforms transcripts using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// EventSink receives backend state and diagnostics for user-facing surfaces.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	TranscriptDelivered(text string, route domain.DeliveryRoute)
	DeviceFallback(oldDevice, newDevice string)
	FramesDropped(count int)
	SessionError(code domain.ErrorCode, detail string)
}
