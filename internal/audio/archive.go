package audio

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tjanssens/voxoscribe/internal/domain"
	"github.com/tjanssens/voxoscribe/internal/ports"
)

// Archiver wraps a transcription engine and retains a WAV copy of every chunk
// sent for decoding. Archiving is best-effort: a failed write is logged and
// the decode proceeds.
type Archiver struct {
	ports.TranscriptionEngine
	dir string
}

func NewArchiver(engine ports.TranscriptionEngine, dir string) *Archiver {
	return &Archiver{TranscriptionEngine: engine, dir: dir}
}

func (a *Archiver) Decode(ctx context.Context, samples []float32, sampleRate int, language string) (domain.DecodeResult, error) {
	if err := a.save(samples, sampleRate); err != nil {
		slog.Warn("could not archive recording", "dir", a.dir, "err", err)
	}
	return a.TranscriptionEngine.Decode(ctx, samples, sampleRate, language)
}

func (a *Archiver) save(samples []float32, sampleRate int) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return err
	}
	name := time.Now().Format("20060102-150405.000") + ".wav"
	return WriteWAV(filepath.Join(a.dir, name), samples, sampleRate)
}
