package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV writes normalized mono samples to path as a 16-bit PCM WAV file.
func WriteWAV(path string, samples []float32, sampleRate int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}

	pcm := Float32ToInt16(samples)
	data := make([]int, len(pcm))
	for i, v := range pcm {
		data[i] = int(v)
	}

	enc := wav.NewEncoder(file, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		_ = file.Close()
		return fmt.Errorf("write wav data: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = file.Close()
		return fmt.Errorf("finalize wav file: %w", err)
	}
	return file.Close()
}
