package domain

import (
	"errors"
	"time"
)

// SessionState models the dictation session lifecycle.
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateArmed      SessionState = "armed"
	SessionStateRecording  SessionState = "recording"
	SessionStateFinalizing SessionState = "finalizing"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady            SessionStateReason = "ready"
	SessionReasonListening        SessionStateReason = "listening"
	SessionReasonSpeechDetected   SessionStateReason = "speech_detected"
	SessionReasonSilenceTimeout   SessionStateReason = "silence_timeout"
	SessionReasonManualStop       SessionStateReason = "manual_stop"
	SessionReasonDelivering       SessionStateReason = "delivering"
	SessionReasonTranscriptTyped  SessionStateReason = "transcript_typed"
	SessionReasonTranscriptCopied SessionStateReason = "transcript_copied"
	SessionReasonNoSpeech         SessionStateReason = "no_speech"
	SessionReasonAborted          SessionStateReason = "aborted"
	SessionReasonCaptureFailed    SessionStateReason = "capture_failed"
	SessionReasonDecodeFailed     SessionStateReason = "transcription_failed"
	SessionReasonDeliveryFailed   SessionStateReason = "delivery_failed"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup              ErrorCode = "startup"
	ErrorCodeDeviceUnavailable    ErrorCode = "device_unavailable"
	ErrorCodeCaptureFatal         ErrorCode = "capture_fatal"
	ErrorCodeModelNotReady        ErrorCode = "model_not_ready"
	ErrorCodeDecodeFailed         ErrorCode = "decode_failed"
	ErrorCodeTranscriptionTimeout ErrorCode = "transcription_timeout"
	ErrorCodeDeliveryFailed       ErrorCode = "delivery_failed"
	ErrorCodeRules                ErrorCode = "rules"
)

// Sentinel errors adapters normalize into so the core can branch with errors.Is.
var (
	ErrDeviceUnavailable = errors.New("audio input device unavailable")
	ErrModelNotReady     = errors.New("transcription model not ready")
	ErrDecodeFailed      = errors.New("transcription produced no usable result")
	ErrDecodeTimeout     = errors.New("transcription timed out")
	ErrNoInjectionTarget = errors.New("no focused input target")
)

// AudioFrame is one fixed-duration slice of captured audio. Seq increases by
// one per frame within a capture session; a gap means frames were lost.
type AudioFrame struct {
	Seq     uint64
	Samples []float32
	Time    time.Time
}

// TranscriptionChunk is a bounded span of utterance audio handed to the
// transcription worker. Ordinals are contiguous from zero within an utterance.
// Samples ownership moves to the worker on submit.
type TranscriptionChunk struct {
	Utterance  string
	Ordinal    int
	Samples    []float32
	SampleRate int
	Language   string
}

// Duration reports the chunk's audio length derived from its sample count.
func (c TranscriptionChunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// DecodeResult is the raw output of a transcription engine for one chunk.
type DecodeResult struct {
	Text     string
	Language string
}

// ChunkResult reports the terminal outcome of one submitted chunk.
type ChunkResult struct {
	Utterance string
	Ordinal   int
	Text      string
	Language  string
	Err       error
}

// DeliveryRoute identifies how transcript text reached the user.
type DeliveryRoute string

const (
	DeliveryRouteTyped     DeliveryRoute = "typed"
	DeliveryRouteClipboard DeliveryRoute = "clipboard"
)

// Delivery is the outcome of dispatching one utterance's text. Text is always
// populated so a failed delivery can still be recovered from the log.
type Delivery struct {
	Route DeliveryRoute
	Text  string
}

// CaptureEventKind classifies out-of-band capture session events.
type CaptureEventKind string

const (
	CaptureEventDeviceFallback CaptureEventKind = "device_fallback"
	CaptureEventFatal          CaptureEventKind = "capture_fatal"
	CaptureEventFramesDropped  CaptureEventKind = "frames_dropped"
)

// CaptureEvent is an out-of-band notification from an active capture session.
type CaptureEvent struct {
	Kind      CaptureEventKind
	OldDevice string
	NewDevice string
	Dropped   int
	Err       error
}

// Status summarizes the current runtime status.
type Status struct {
	State         SessionState       `json:"state"`
	Reason        SessionStateReason `json:"reason,omitempty"`
	Utterance     string             `json:"utterance,omitempty"`
	FramesDropped int                `json:"framesDropped"`
}
