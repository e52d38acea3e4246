package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tjanssens/voxoscribe/internal/domain"
	"github.com/tjanssens/voxoscribe/internal/ports"
)

// ErrWorkerBusy is returned when the submit queue is full.
var ErrWorkerBusy = errors.New("transcription queue full")

// Transcriber accepts chunks and reports one terminal result per chunk.
type Transcriber interface {
	Submit(chunk domain.TranscriptionChunk) error
	Results() <-chan domain.ChunkResult
}

// WorkerConfig controls the transcription worker.
type WorkerConfig struct {
	// DecodeTimeout bounds one chunk decode. A timed-out decode is reported
	// and its eventual return discarded; the worker stays usable.
	DecodeTimeout time.Duration
	QueueDepth    int
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.DecodeTimeout <= 0 {
		c.DecodeTimeout = 30 * time.Second
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 8
	}
	return c
}

// TranscriptionWorker decodes submitted chunks one at a time through a single
// engine. Results surface on Results in completion order, which may differ
// from ordinal order when decodes fail or time out.
type TranscriptionWorker struct {
	engine  ports.TranscriptionEngine
	cfg     WorkerConfig
	queue   chan domain.TranscriptionChunk
	results chan domain.ChunkResult
}

func NewTranscriptionWorker(engine ports.TranscriptionEngine, cfg WorkerConfig) *TranscriptionWorker {
	cfg = cfg.withDefaults()
	return &TranscriptionWorker{
		engine:  engine,
		cfg:     cfg,
		queue:   make(chan domain.TranscriptionChunk, cfg.QueueDepth),
		results: make(chan domain.ChunkResult, cfg.QueueDepth),
	}
}

// Submit queues one chunk without blocking. Chunk samples move to the worker.
func (w *TranscriptionWorker) Submit(chunk domain.TranscriptionChunk) error {
	select {
	case w.queue <- chunk:
		return nil
	default:
		return fmt.Errorf("chunk %d: %w", chunk.Ordinal, ErrWorkerBusy)
	}
}

// Results delivers one terminal result per submitted chunk.
func (w *TranscriptionWorker) Results() <-chan domain.ChunkResult {
	return w.results
}

// Run processes the queue until the context ends.
func (w *TranscriptionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk := <-w.queue:
			result := w.decode(ctx, chunk)
			select {
			case w.results <- result:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (w *TranscriptionWorker) decode(ctx context.Context, chunk domain.TranscriptionChunk) domain.ChunkResult {
	result := domain.ChunkResult{Utterance: chunk.Utterance, Ordinal: chunk.Ordinal}

	decodeCtx, cancel := context.WithTimeout(ctx, w.cfg.DecodeTimeout)
	defer cancel()

	type decoded struct {
		out domain.DecodeResult
		err error
	}
	// Buffered so a stale decode can finish after the watchdog gives up.
	done := make(chan decoded, 1)
	go func() {
		out, err := w.engine.Decode(decodeCtx, chunk.Samples, chunk.SampleRate, chunk.Language)
		done <- decoded{out: out, err: err}
	}()

	select {
	case d := <-done:
		if d.err != nil {
			result.Err = d.err
			return result
		}
		result.Text = strings.TrimSpace(d.out.Text)
		result.Language = d.out.Language
		return result
	case <-decodeCtx.Done():
		if ctx.Err() != nil {
			result.Err = ctx.Err()
			return result
		}
		result.Err = fmt.Errorf("chunk %d after %s: %w", chunk.Ordinal, w.cfg.DecodeTimeout, domain.ErrDecodeTimeout)
		return result
	}
}
