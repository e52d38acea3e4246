package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/tjanssens/voxoscribe/internal/domain"
	"github.com/tjanssens/voxoscribe/internal/ports"
)

// Config controls how microphone sessions are opened.
type Config struct {
	SampleRate  int
	FrameLength time.Duration
	QueueDepth  int
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.FrameLength <= 0 {
		c.FrameLength = 100 * time.Millisecond
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 32
	}
	return c
}

// Source captures microphone PCM audio through portaudio.
type Source struct {
	cfg Config
}

func NewSource(cfg Config) *Source {
	return &Source{cfg: cfg.withDefaults()}
}

// Devices lists the names of all available input devices.
func (s *Source) Devices() ([]string, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	var names []string
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			names = append(names, d.Name)
		}
	}
	return names, nil
}

// Open starts capturing from the named input device, or the system default
// when device is empty. A configured device that is missing or refuses to
// open falls back to the default input; the session reports the switch
// through its event channel.
func (s *Source) Open(ctx context.Context, device string) (ports.CaptureSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio (%v): %w", err, domain.ErrDeviceUnavailable)
	}

	resolved, fellBack, err := resolveInput(device)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}

	frameSamples := int(float64(s.cfg.SampleRate) * s.cfg.FrameLength.Seconds())
	in := make([]int16, frameSamples)

	stream, err := openInputStream(resolved, s.cfg.SampleRate, in)
	if err != nil && device != "" && !fellBack {
		// The configured device exists but will not open; retry on the default.
		if def, derr := portaudio.DefaultInputDevice(); derr == nil && def.Name != resolved.Name {
			if fallback, ferr := openInputStream(def, s.cfg.SampleRate, in); ferr == nil {
				stream = fallback
				resolved = def
				fellBack = true
				err = nil
			}
		}
	}
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open input stream %q (%v): %w", resolved.Name, err, domain.ErrDeviceUnavailable)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start input stream %q (%v): %w", resolved.Name, err, domain.ErrDeviceUnavailable)
	}

	session := newCaptureSession(stream, in, s.cfg.SampleRate, resolved.Name, s.cfg.QueueDepth, func() (pcmStream, string, error) {
		return reopenDefaultInput(s.cfg.SampleRate, in)
	})
	session.cleanup = func() { _ = portaudio.Terminate() }
	if fellBack {
		session.pushEvent(domain.CaptureEvent{
			Kind:      domain.CaptureEventDeviceFallback,
			OldDevice: device,
			NewDevice: resolved.Name,
		})
	}
	go session.pump()
	return session, nil
}

func resolveInput(name string) (*portaudio.DeviceInfo, bool, error) {
	def, defErr := portaudio.DefaultInputDevice()
	if name == "" {
		if defErr != nil {
			return nil, false, fmt.Errorf("no default input device (%v): %w", defErr, domain.ErrDeviceUnavailable)
		}
		return def, false, nil
	}

	devices, err := portaudio.Devices()
	if err == nil {
		want := strings.ToLower(name)
		for _, d := range devices {
			if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), want) {
				return d, false, nil
			}
		}
	}
	if defErr != nil {
		return nil, false, fmt.Errorf("input device %q not found and no default available: %w", name, domain.ErrDeviceUnavailable)
	}
	return def, true, nil
}

func openInputStream(dev *portaudio.DeviceInfo, sampleRate int, in []int16) (*portaudio.Stream, error) {
	params := portaudio.HighLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = len(in)
	return portaudio.OpenStream(params, in)
}

func reopenDefaultInput(sampleRate int, in []int16) (pcmStream, string, error) {
	def, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, "", fmt.Errorf("no default input device: %w", err)
	}
	stream, err := openInputStream(def, sampleRate, in)
	if err != nil {
		return nil, "", fmt.Errorf("reopen input stream %q: %w", def.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, "", fmt.Errorf("restart input stream %q: %w", def.Name, err)
	}
	return stream, def.Name, nil
}

// pcmStream is the subset of *portaudio.Stream the pump relies on.
type pcmStream interface {
	Read() error
	Abort() error
	Close() error
}

type captureSession struct {
	stream  pcmStream
	in      []int16
	rate    int
	reopen  func() (pcmStream, string, error)
	cleanup func()

	frames chan domain.AudioFrame
	events chan domain.CaptureEvent

	mu       sync.Mutex
	device   string
	reopened bool

	closeOnce sync.Once
	closed    chan struct{}
	seq       uint64
}

func newCaptureSession(stream pcmStream, in []int16, rate int, device string, queueDepth int, reopen func() (pcmStream, string, error)) *captureSession {
	return &captureSession{
		stream: stream,
		in:     in,
		rate:   rate,
		reopen: reopen,
		frames: make(chan domain.AudioFrame, queueDepth),
		events: make(chan domain.CaptureEvent, 8),
		device: device,
		closed: make(chan struct{}),
	}
}

func (s *captureSession) Frames() <-chan domain.AudioFrame {
	return s.frames
}

func (s *captureSession) Events() <-chan domain.CaptureEvent {
	return s.events
}

func (s *captureSession) SampleRate() int {
	return s.rate
}

func (s *captureSession) Device() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

func (s *captureSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	return nil
}

// pump reads fixed-size PCM frames from the stream until the session is
// closed or the device fails beyond recovery. It owns the stream and both
// channels; nothing else writes to them.
func (s *captureSession) pump() {
	defer func() {
		_ = s.stream.Abort()
		_ = s.stream.Close()
		if s.cleanup != nil {
			s.cleanup()
		}
		close(s.frames)
		close(s.events)
	}()

	for {
		select {
		case <-s.closed:
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				// The device discarded audio before this read, so the frame
				// no longer joins onto the previous one. Drop it and say so.
				s.pushEvent(domain.CaptureEvent{Kind: domain.CaptureEventFramesDropped, Dropped: 1})
				continue
			}
			if !s.recover(err) {
				return
			}
			continue
		}

		s.offer(domain.AudioFrame{
			Seq:     s.seq,
			Samples: Int16ToFloat32(s.in),
			Time:    time.Now(),
		})
		s.seq++
	}
}

// recover swaps the failed stream for the default input device. One swap per
// session; a second failure is fatal.
func (s *captureSession) recover(readErr error) bool {
	if s.reopened || s.reopen == nil {
		s.pushEvent(domain.CaptureEvent{Kind: domain.CaptureEventFatal, Err: readErr})
		return false
	}
	s.reopened = true

	_ = s.stream.Abort()
	_ = s.stream.Close()

	stream, name, err := s.reopen()
	if err != nil {
		s.pushEvent(domain.CaptureEvent{Kind: domain.CaptureEventFatal, Err: fmt.Errorf("%w; %v", readErr, err)})
		return false
	}

	s.mu.Lock()
	old := s.device
	s.device = name
	s.mu.Unlock()
	s.stream = stream

	s.pushEvent(domain.CaptureEvent{
		Kind:      domain.CaptureEventDeviceFallback,
		OldDevice: old,
		NewDevice: name,
	})
	return true
}

// offer enqueues a frame without ever blocking the read loop. When the queue
// is full the oldest frame is discarded so the consumer always sees the most
// recent audio; the loss is reported as a frames_dropped event.
func (s *captureSession) offer(frame domain.AudioFrame) {
	select {
	case s.frames <- frame:
		return
	default:
	}

	dropped := 0
	select {
	case <-s.frames:
		dropped++
	default:
	}
	select {
	case s.frames <- frame:
	default:
		dropped++
	}
	if dropped > 0 {
		s.pushEvent(domain.CaptureEvent{Kind: domain.CaptureEventFramesDropped, Dropped: dropped})
	}
}

func (s *captureSession) pushEvent(event domain.CaptureEvent) {
	select {
	case s.events <- event:
	default:
	}
}
