package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjanssens/voxoscribe/internal/domain"
	"github.com/tjanssens/voxoscribe/internal/ports"
)

// Config controls one dictation session's capture and chunking behavior.
type Config struct {
	Device   string
	Language string
	// MaxChunk caps one chunk's audio length; longer speech rolls over into
	// the next ordinal without interrupting capture.
	MaxChunk time.Duration
	// PreRollFrames is how many recent frames are kept while armed so the
	// start of speech survives the debounce window.
	PreRollFrames   int
	Endpoint        EndpointConfig
	DispatchBacklog int
}

func (c Config) withDefaults() Config {
	if c.MaxChunk <= 0 {
		c.MaxChunk = 30 * time.Second
	}
	if c.PreRollFrames <= 0 {
		c.PreRollFrames = 5
	}
	if c.DispatchBacklog <= 0 {
		c.DispatchBacklog = 4
	}
	return c
}

type deliveryOutcome struct {
	delivery domain.Delivery
	reason   domain.SessionStateReason
	err      error
}

// SessionController owns the dictation state machine. All session state lives
// inside the Run loop; Toggle and Status are the only cross-goroutine entry
// points. The loop never blocks on transcription or delivery.
type SessionController struct {
	audio      ports.AudioSource
	worker     Transcriber
	dispatcher outputDispatcher
	rules      ports.RulesEngine
	events     ports.EventSink
	cfg        Config

	toggles      chan struct{}
	dispatchText chan string
	dispatched   chan deliveryOutcome

	// loop-owned session state
	state        domain.SessionState
	capture      ports.CaptureSession
	sampleRate   int
	detector     *EndpointDetector
	preRoll      []domain.AudioFrame
	lastSeq      uint64
	haveSeq      bool
	current      *utterance
	queuedToggle bool

	statusMu sync.Mutex
	status   domain.Status
}

func NewSessionController(
	audio ports.AudioSource,
	worker Transcriber,
	inject ports.InjectionSink,
	clipboard ports.Clipboard,
	rules ports.RulesEngine,
	events ports.EventSink,
	cfg Config,
) *SessionController {
	cfg = cfg.withDefaults()
	return &SessionController{
		audio:        audio,
		worker:       worker,
		dispatcher:   newOutputDispatcher(inject, clipboard),
		rules:        rules,
		events:       events,
		cfg:          cfg,
		toggles:      make(chan struct{}, 4),
		dispatchText: make(chan string, cfg.DispatchBacklog),
		dispatched:   make(chan deliveryOutcome, cfg.DispatchBacklog),
		state:        domain.SessionStateIdle,
		detector:     NewEndpointDetector(cfg.Endpoint),
		status:       domain.Status{State: domain.SessionStateIdle, Reason: domain.SessionReasonReady},
	}
}

// Toggle requests a start/stop flip. Never blocks; a press during Finalizing
// is queued inside the loop and replayed once the session returns to Idle.
func (c *SessionController) Toggle() {
	select {
	case c.toggles <- struct{}{}:
	default:
	}
}

// Status returns a snapshot of the current session.
func (c *SessionController) Status() domain.Status {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}

// Run drives the state machine until the context ends.
func (c *SessionController) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.dispatchLoop(ctx)
	}()

	for {
		var frames <-chan domain.AudioFrame
		var captureEvents <-chan domain.CaptureEvent
		if c.capture != nil {
			frames = c.capture.Frames()
			captureEvents = c.capture.Events()
		}

		select {
		case <-ctx.Done():
			c.closeCapture()
			wg.Wait()
			return ctx.Err()
		case <-c.toggles:
			c.onToggle(ctx)
		case frame, ok := <-frames:
			if !ok {
				c.onCaptureLost(errors.New("capture stream ended"))
				continue
			}
			c.onFrame(frame)
		case event, ok := <-captureEvents:
			if !ok {
				c.onCaptureLost(errors.New("capture stream ended"))
				continue
			}
			c.onCaptureEvent(event)
		case result := <-c.worker.Results():
			c.onResult(result)
		case outcome := <-c.dispatched:
			c.onDelivered(outcome)
		}
	}
}

// dispatchLoop serializes deliveries so two utterances never interleave their
// typing, and keeps the state machine free of blocking injection calls.
func (c *SessionController) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-c.dispatchText:
			delivery, reason, err := c.dispatcher.Deliver(ctx, text)
			select {
			case c.dispatched <- deliveryOutcome{delivery: delivery, reason: reason, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *SessionController) onToggle(ctx context.Context) {
	switch c.state {
	case domain.SessionStateIdle:
		c.arm(ctx)
	case domain.SessionStateArmed:
		c.closeCapture()
		c.preRoll = c.preRoll[:0]
		c.setState(domain.SessionStateIdle, domain.SessionReasonAborted)
	case domain.SessionStateRecording:
		c.beginFinalize(domain.SessionReasonManualStop)
	case domain.SessionStateFinalizing:
		c.queuedToggle = true
	}
}

func (c *SessionController) arm(ctx context.Context) {
	capture, err := c.audio.Open(ctx, c.cfg.Device)
	if err != nil {
		c.events.SessionError(domain.ErrorCodeDeviceUnavailable, err.Error())
		return
	}
	c.capture = capture
	c.sampleRate = capture.SampleRate()
	c.detector.Reset()
	c.preRoll = c.preRoll[:0]
	c.haveSeq = false
	c.setState(domain.SessionStateArmed, domain.SessionReasonListening)
}

func (c *SessionController) onFrame(frame domain.AudioFrame) {
	switch c.state {
	case domain.SessionStateArmed:
		c.onArmedFrame(frame)
	case domain.SessionStateRecording:
		c.onRecordingFrame(frame)
	default:
		// Late frames after finalize or abort carry nothing we need.
	}
}

func (c *SessionController) onArmedFrame(frame domain.AudioFrame) {
	if c.haveSeq && frame.Seq != c.lastSeq+1 {
		// Losing pre-speech frames is harmless, but the debounce run and the
		// pre-roll are no longer contiguous.
		c.preRoll = c.preRoll[:0]
		c.detector.Reset()
	}
	c.lastSeq = frame.Seq
	c.haveSeq = true

	c.preRoll = append(c.preRoll, frame)
	if len(c.preRoll) > c.cfg.PreRollFrames {
		c.preRoll = c.preRoll[1:]
	}

	decision := c.detector.Process(frame.Samples, c.frameDuration(frame))
	if !decision.SpeechStarted {
		return
	}

	started := c.preRoll[0].Time
	c.current = newUtterance(uuid.NewString(), c.cfg.Language, c.sampleRate, c.cfg.MaxChunk, started)
	for _, buffered := range c.preRoll {
		c.current.appendSamples(buffered.Samples)
	}
	c.preRoll = c.preRoll[:0]
	c.setState(domain.SessionStateRecording, domain.SessionReasonSpeechDetected)
}

func (c *SessionController) onRecordingFrame(frame domain.AudioFrame) {
	if c.haveSeq && frame.Seq != c.lastSeq+1 {
		c.abortSession(domain.ErrorCodeCaptureFatal,
			fmt.Sprintf("lost frames %d..%d mid-utterance", c.lastSeq+1, frame.Seq-1))
		return
	}
	c.lastSeq = frame.Seq

	full := c.current.appendSamples(frame.Samples)
	decision := c.detector.Process(frame.Samples, c.frameDuration(frame))
	// Silence wins over the duration cap when both land on the same frame.
	if decision.SilenceElapsed {
		c.beginFinalize(domain.SessionReasonSilenceTimeout)
		return
	}
	if full {
		c.submitChunk(c.current.takeChunk())
	}
}

func (c *SessionController) beginFinalize(reason domain.SessionStateReason) {
	if c.current.hasOpenSamples() {
		c.submitChunk(c.current.takeChunk())
	}
	c.current.assembler.Seal(c.current.chunkCount())
	c.setState(domain.SessionStateFinalizing, reason)
	if c.current.assembler.Complete() {
		c.finishUtterance()
	}
}

func (c *SessionController) submitChunk(chunk domain.TranscriptionChunk) {
	if err := c.worker.Submit(chunk); err != nil {
		// The utterance survives with a gap rather than losing everything.
		c.events.SessionError(domain.ErrorCodeDecodeFailed, err.Error())
		c.current.assembler.Put(chunk.Ordinal, "")
	}
}

func (c *SessionController) onResult(result domain.ChunkResult) {
	if c.current == nil || result.Utterance != c.current.id {
		// A decode that outlived its session; the text is not wanted anymore.
		return
	}

	if result.Err != nil {
		switch {
		case errors.Is(result.Err, domain.ErrModelNotReady):
			c.abortSession(domain.ErrorCodeModelNotReady, result.Err.Error())
			return
		case errors.Is(result.Err, domain.ErrDecodeTimeout):
			c.abortSession(domain.ErrorCodeTranscriptionTimeout, result.Err.Error())
			return
		default:
			c.events.SessionError(domain.ErrorCodeDecodeFailed, result.Err.Error())
			c.current.assembler.Put(result.Ordinal, "")
		}
	} else {
		c.current.assembler.Put(result.Ordinal, result.Text)
	}

	if c.state == domain.SessionStateFinalizing && c.current.assembler.Complete() {
		c.finishUtterance()
	}
}

func (c *SessionController) finishUtterance() {
	text := c.current.assembler.Text()
	c.current = nil
	c.closeCapture()

	if text == "" {
		c.setState(domain.SessionStateIdle, domain.SessionReasonNoSpeech)
		c.replayQueuedToggle()
		return
	}

	if c.rules != nil {
		transformed, err := c.rules.Apply(text)
		if err != nil {
			c.events.SessionError(domain.ErrorCodeRules, err.Error())
		} else {
			text = transformed
		}
	}

	select {
	case c.dispatchText <- text:
		c.setState(domain.SessionStateIdle, domain.SessionReasonDelivering)
	default:
		c.events.SessionError(domain.ErrorCodeDeliveryFailed,
			fmt.Sprintf("dispatch backlog full; text retained: %q", text))
		c.setState(domain.SessionStateIdle, domain.SessionReasonDeliveryFailed)
	}
	c.replayQueuedToggle()
}

func (c *SessionController) onDelivered(outcome deliveryOutcome) {
	if outcome.err != nil {
		c.events.SessionError(domain.ErrorCodeDeliveryFailed,
			fmt.Sprintf("%v; text retained: %q", outcome.err, outcome.delivery.Text))
		c.setIdleReason(domain.SessionReasonDeliveryFailed)
		return
	}
	c.events.TranscriptDelivered(outcome.delivery.Text, outcome.delivery.Route)
	c.setIdleReason(outcome.reason)
}

func (c *SessionController) onCaptureEvent(event domain.CaptureEvent) {
	switch event.Kind {
	case domain.CaptureEventDeviceFallback:
		c.events.DeviceFallback(event.OldDevice, event.NewDevice)
	case domain.CaptureEventFramesDropped:
		c.statusMu.Lock()
		c.status.FramesDropped += event.Dropped
		c.statusMu.Unlock()
		c.events.FramesDropped(event.Dropped)
	case domain.CaptureEventFatal:
		detail := "capture failed"
		if event.Err != nil {
			detail = event.Err.Error()
		}
		c.onCaptureLost(errors.New(detail))
	}
}

// onCaptureLost handles the microphone dying under an open session. Audio
// already submitted still finalizes; anything being recorded is lost.
func (c *SessionController) onCaptureLost(err error) {
	switch c.state {
	case domain.SessionStateArmed, domain.SessionStateRecording:
		c.abortSession(domain.ErrorCodeCaptureFatal, err.Error())
	case domain.SessionStateFinalizing:
		// Every frame of the utterance is already with the worker; report
		// the fault but let the pending results deliver.
		c.events.SessionError(domain.ErrorCodeCaptureFatal, err.Error())
		c.closeCapture()
	default:
		c.closeCapture()
	}
}

func (c *SessionController) abortSession(code domain.ErrorCode, detail string) {
	c.events.SessionError(code, detail)
	c.current = nil
	c.closeCapture()
	c.preRoll = c.preRoll[:0]

	reason := domain.SessionReasonCaptureFailed
	if code == domain.ErrorCodeModelNotReady || code == domain.ErrorCodeTranscriptionTimeout {
		reason = domain.SessionReasonDecodeFailed
	}
	c.setState(domain.SessionStateIdle, reason)
	c.replayQueuedToggle()
}

// replayQueuedToggle applies at most one toggle held back during Finalizing.
func (c *SessionController) replayQueuedToggle() {
	if !c.queuedToggle {
		return
	}
	c.queuedToggle = false
	select {
	case c.toggles <- struct{}{}:
	default:
	}
}

func (c *SessionController) closeCapture() {
	if c.capture == nil {
		return
	}
	_ = c.capture.Close()
	c.capture = nil
	c.haveSeq = false
}

func (c *SessionController) frameDuration(frame domain.AudioFrame) time.Duration {
	if c.sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(frame.Samples)) * time.Second / time.Duration(c.sampleRate)
}

func (c *SessionController) setState(state domain.SessionState, reason domain.SessionStateReason) {
	c.state = state

	c.statusMu.Lock()
	c.status.State = state
	c.status.Reason = reason
	if c.current != nil {
		c.status.Utterance = c.current.id
	} else {
		c.status.Utterance = ""
	}
	c.statusMu.Unlock()

	c.events.SessionStateChanged(state, reason)
}

// setIdleReason refreshes the idle reason after an asynchronous delivery
// without emitting a state change; the session may already be armed again.
func (c *SessionController) setIdleReason(reason domain.SessionStateReason) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	if c.status.State == domain.SessionStateIdle {
		c.status.Reason = reason
	}
}
