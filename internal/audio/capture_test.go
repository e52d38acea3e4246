package audio

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/tjanssens/voxoscribe/internal/domain"
)

func TestCaptureSessionStreamsFrames(t *testing.T) {
	t.Parallel()

	in := make([]int16, 4)
	stream := &scriptedStream{in: in, steps: []streamStep{
		{fill: 16384},
		{fill: 8192},
		{fill: 4096},
	}}
	session := newCaptureSession(stream, in, 16000, "USB Mic", 32, nil)
	go session.pump()

	frames := collectFrames(t, session.Frames())
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	for i, frame := range frames {
		if frame.Seq != uint64(i) {
			t.Fatalf("frame %d has seq %d", i, frame.Seq)
		}
		if len(frame.Samples) != len(in) {
			t.Fatalf("frame %d has %d samples", i, len(frame.Samples))
		}
	}
	if frames[0].Samples[0] != 0.5 {
		t.Fatalf("expected normalized sample 0.5, got %v", frames[0].Samples[0])
	}
	if frames[1].Samples[0] != 0.25 || frames[2].Samples[0] != 0.125 {
		t.Fatalf("frames alias the read buffer: %v %v", frames[1].Samples[0], frames[2].Samples[0])
	}

	events := collectEvents(t, session.Events())
	if len(events) != 1 || events[0].Kind != domain.CaptureEventFatal {
		t.Fatalf("expected a single fatal event, got %+v", events)
	}
	if !errors.Is(events[0].Err, errScriptDone) {
		t.Fatalf("unexpected fatal error: %v", events[0].Err)
	}
}

func TestCaptureSessionDropsOldestWhenQueueFull(t *testing.T) {
	t.Parallel()

	in := make([]int16, 4)
	stream := &scriptedStream{in: in, steps: []streamStep{
		{fill: 1000},
		{fill: 2000},
		{fill: 3000},
		{fill: 4000},
		{fill: 5000},
	}}
	session := newCaptureSession(stream, in, 16000, "USB Mic", 2, nil)
	go session.pump()

	// Wait for the pump to finish before draining, so the queue actually fills.
	events := collectEvents(t, session.Events())

	frames := collectFrames(t, session.Frames())
	if len(frames) != 2 {
		t.Fatalf("expected the 2 newest frames, got %d", len(frames))
	}
	if frames[0].Seq != 3 || frames[1].Seq != 4 {
		t.Fatalf("expected seqs 3 and 4, got %d and %d", frames[0].Seq, frames[1].Seq)
	}

	dropped := 0
	for _, ev := range events {
		if ev.Kind == domain.CaptureEventFramesDropped {
			dropped += ev.Dropped
		}
	}
	if dropped != 3 {
		t.Fatalf("expected 3 dropped frames reported, got %d", dropped)
	}
}

func TestCaptureSessionRecoversOnDefaultDevice(t *testing.T) {
	t.Parallel()

	in := make([]int16, 4)
	readErr := errors.New("input stream died")
	first := &scriptedStream{in: in, steps: []streamStep{
		{fill: 100},
		{fill: 200},
		{err: readErr},
	}}
	second := &scriptedStream{in: in, steps: []streamStep{
		{fill: 300},
		{fill: 400},
	}}
	session := newCaptureSession(first, in, 16000, "USB Mic", 32, func() (pcmStream, string, error) {
		return second, "Built-in Microphone", nil
	})
	go session.pump()

	frames := collectFrames(t, session.Frames())
	if len(frames) != 4 {
		t.Fatalf("expected 4 frames across the swap, got %d", len(frames))
	}
	for i, frame := range frames {
		if frame.Seq != uint64(i) {
			t.Fatalf("seq must stay continuous across the swap, frame %d has seq %d", i, frame.Seq)
		}
	}
	if frames[2].Samples[0] != float32(300)/32768 {
		t.Fatalf("expected audio from the fallback stream, got %v", frames[2].Samples[0])
	}

	events := collectEvents(t, session.Events())
	if len(events) != 2 {
		t.Fatalf("expected fallback then fatal, got %+v", events)
	}
	if events[0].Kind != domain.CaptureEventDeviceFallback || events[0].OldDevice != "USB Mic" || events[0].NewDevice != "Built-in Microphone" {
		t.Fatalf("unexpected fallback event: %+v", events[0])
	}
	if events[1].Kind != domain.CaptureEventFatal {
		t.Fatalf("expected fatal after the second failure, got %+v", events[1])
	}
	if !first.wasClosed() {
		t.Fatalf("failed stream was not closed")
	}
	if session.Device() != "Built-in Microphone" {
		t.Fatalf("device not updated after fallback: %q", session.Device())
	}
}

func TestCaptureSessionFatalWhenReopenFails(t *testing.T) {
	t.Parallel()

	in := make([]int16, 4)
	readErr := errors.New("device unplugged")
	stream := &scriptedStream{in: in, steps: []streamStep{
		{fill: 100},
		{err: readErr},
	}}
	session := newCaptureSession(stream, in, 16000, "USB Mic", 32, func() (pcmStream, string, error) {
		return nil, "", errors.New("no default input device")
	})
	go session.pump()

	frames := collectFrames(t, session.Frames())
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame before the failure, got %d", len(frames))
	}

	events := collectEvents(t, session.Events())
	if len(events) != 1 || events[0].Kind != domain.CaptureEventFatal {
		t.Fatalf("expected a single fatal event, got %+v", events)
	}
	if !errors.Is(events[0].Err, readErr) {
		t.Fatalf("fatal event should carry the read error, got %v", events[0].Err)
	}
}

func TestCaptureSessionSkipsOverflowedReads(t *testing.T) {
	t.Parallel()

	in := make([]int16, 4)
	stream := &scriptedStream{in: in, steps: []streamStep{
		{fill: 700},
		{err: portaudio.InputOverflowed},
		{fill: 900},
	}}
	session := newCaptureSession(stream, in, 16000, "USB Mic", 32, nil)
	go session.pump()

	frames := collectFrames(t, session.Frames())
	if len(frames) != 2 {
		t.Fatalf("expected overflow to be skipped, got %d frames", len(frames))
	}
	if frames[0].Seq != 0 || frames[1].Seq != 1 {
		t.Fatalf("overflow must not consume a seq, got %d and %d", frames[0].Seq, frames[1].Seq)
	}
	if frames[1].Samples[0] != float32(900)/32768 {
		t.Fatalf("unexpected samples after overflow: %v", frames[1].Samples[0])
	}

	events := collectEvents(t, session.Events())
	dropped := 0
	for _, ev := range events {
		if ev.Kind == domain.CaptureEventFramesDropped {
			dropped += ev.Dropped
		}
	}
	if dropped != 1 {
		t.Fatalf("expected the overflowed frame to be reported dropped, got %d", dropped)
	}
}

func TestCaptureSessionCloseStopsPump(t *testing.T) {
	t.Parallel()

	in := make([]int16, 4)
	stream := &scriptedStream{in: in, steps: []streamStep{{fill: 1200}}, loop: true, delay: time.Millisecond}
	session := newCaptureSession(stream, in, 16000, "USB Mic", 8, nil)
	go session.pump()

	select {
	case <-session.Frames():
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the first frame")
	}

	if err := session.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}

	collectFrames(t, session.Frames())
	if !stream.wasClosed() {
		t.Fatalf("stream was not closed")
	}
}

type streamStep struct {
	fill int16
	err  error
}

var errScriptDone = errors.New("script exhausted")

// scriptedStream plays back a fixed sequence of reads into the shared
// capture buffer.
type scriptedStream struct {
	in    []int16
	steps []streamStep
	loop  bool
	delay time.Duration

	mu      sync.Mutex
	call    int
	aborted bool
	closed  bool
}

func (s *scriptedStream) Read() error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.call >= len(s.steps) {
		if !s.loop {
			return errScriptDone
		}
		s.call = len(s.steps) - 1
	}
	step := s.steps[s.call]
	s.call++
	if step.err != nil {
		return step.err
	}
	for i := range s.in {
		s.in[i] = step.fill
	}
	return nil
}

func (s *scriptedStream) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
	return nil
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *scriptedStream) wasClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func collectFrames(t *testing.T, ch <-chan domain.AudioFrame) []domain.AudioFrame {
	t.Helper()
	var frames []domain.AudioFrame
	deadline := time.After(2 * time.Second)
	for {
		select {
		case frame, ok := <-ch:
			if !ok {
				return frames
			}
			frames = append(frames, frame)
		case <-deadline:
			t.Fatalf("timed out collecting frames, have %d", len(frames))
		}
	}
}

func collectEvents(t *testing.T, ch <-chan domain.CaptureEvent) []domain.CaptureEvent {
	t.Helper()
	var events []domain.CaptureEvent
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, event)
		case <-deadline:
			t.Fatalf("timed out collecting events, have %d", len(events))
		}
	}
}
