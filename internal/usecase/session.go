package usecase

import (
	"time"

	"github.com/tjanssens/voxoscribe/internal/domain"
)

// utterance tracks one spoken utterance while it is being chunked: the open
// chunk's samples, the next ordinal, and the reassembly of decoded text.
// Owned by the session loop.
type utterance struct {
	id         string
	language   string
	sampleRate int
	maxSamples int

	nextOrdinal int
	open        []float32
	assembler   *chunkAssembler
	startedAt   time.Time
}

func newUtterance(id, language string, sampleRate int, maxChunk time.Duration, startedAt time.Time) *utterance {
	maxSamples := int(maxChunk.Seconds() * float64(sampleRate))
	if maxSamples <= 0 {
		maxSamples = sampleRate * 30
	}
	return &utterance{
		id:         id,
		language:   language,
		sampleRate: sampleRate,
		maxSamples: maxSamples,
		assembler:  newChunkAssembler(),
		startedAt:  startedAt,
	}
}

// appendSamples adds one frame's samples to the open chunk and reports whether
// the chunk reached the duration cap.
func (u *utterance) appendSamples(samples []float32) bool {
	u.open = append(u.open, samples...)
	return len(u.open) >= u.maxSamples
}

func (u *utterance) hasOpenSamples() bool {
	return len(u.open) > 0
}

// takeChunk moves the open samples into a chunk and advances the ordinal.
// The open buffer is handed off, never reused, so the worker owns the slice.
func (u *utterance) takeChunk() domain.TranscriptionChunk {
	chunk := domain.TranscriptionChunk{
		Utterance:  u.id,
		Ordinal:    u.nextOrdinal,
		Samples:    u.open,
		SampleRate: u.sampleRate,
		Language:   u.language,
	}
	u.nextOrdinal++
	u.open = nil
	return chunk
}

// chunkCount is the number of chunks taken so far; after sealing it is the
// utterance's total.
func (u *utterance) chunkCount() int {
	return u.nextOrdinal
}
