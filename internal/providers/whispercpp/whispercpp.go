// Package whispercpp transcribes audio with a local whisper.cpp CLI.
package whispercpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tjanssens/voxoscribe/internal/audio"
	"github.com/tjanssens/voxoscribe/internal/domain"
)

// Config holds whisper.cpp engine settings.
type Config struct {
	// BinPath points at the whisper.cpp CLI. Empty means search PATH and
	// the usual install locations.
	BinPath string
	// ModelDir is where ggml model files are stored.
	ModelDir string
	// Model is one of tiny, base, small, medium, large.
	Model string
	// ModelBaseURL overrides where models are downloaded from.
	ModelBaseURL string
}

const defaultModelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// models maps a model name to its ggml file and approximate download size,
// used for progress when the server does not report a length.
var models = map[string]struct {
	File string
	Size int64
}{
	"tiny":   {"ggml-tiny.bin", 75 * 1024 * 1024},
	"base":   {"ggml-base.bin", 150 * 1024 * 1024},
	"small":  {"ggml-small.bin", 500 * 1024 * 1024},
	"medium": {"ggml-medium.bin", 1500 * 1024 * 1024},
	"large":  {"ggml-large-v3.bin", 3000 * 1024 * 1024},
}

// Engine shells out to whisper.cpp for each decode.
type Engine struct {
	bin       string
	model     string
	modelPath string
	modelURL  string
	modelSize int64

	mu    sync.Mutex
	ready bool
}

func New(cfg Config) (*Engine, error) {
	if cfg.Model == "" {
		cfg.Model = "small"
	}
	info, ok := models[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("unknown whisper model %q", cfg.Model)
	}
	if cfg.ModelDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.ModelDir = filepath.Join(home, ".voxoscribe", "models")
	}
	base := cfg.ModelBaseURL
	if base == "" {
		base = defaultModelBaseURL
	}

	return &Engine{
		bin:       cfg.BinPath,
		model:     cfg.Model,
		modelPath: filepath.Join(cfg.ModelDir, info.File),
		modelURL:  strings.TrimSuffix(base, "/") + "/" + info.File,
		modelSize: info.Size,
	}, nil
}

func (e *Engine) Name() string { return "whispercpp" }

func (e *Engine) Close() error { return nil }

// Prepare locates the CLI and downloads the model file if it is missing.
func (e *Engine) Prepare(ctx context.Context, progress func(percent int)) error {
	if e.bin == "" {
		e.bin = findBinary()
		if e.bin == "" {
			return fmt.Errorf("whisper.cpp binary not found on PATH: %w", domain.ErrModelNotReady)
		}
	} else if info, err := os.Stat(e.bin); err != nil || info.IsDir() {
		return fmt.Errorf("whisper.cpp binary %q not usable: %w", e.bin, domain.ErrModelNotReady)
	}

	if _, err := os.Stat(e.modelPath); err != nil {
		if err := e.downloadModel(ctx, progress); err != nil {
			return fmt.Errorf("download model %s: %w", e.model, err)
		}
	}
	if progress != nil {
		progress(100)
	}

	e.mu.Lock()
	e.ready = true
	e.mu.Unlock()
	return nil
}

func (e *Engine) isReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// Decode writes the chunk to a temp WAV file and runs the CLI over it. The
// transcription JSON lands next to the WAV and is removed with it.
func (e *Engine) Decode(ctx context.Context, samples []float32, sampleRate int, language string) (domain.DecodeResult, error) {
	if !e.isReady() {
		return domain.DecodeResult{}, fmt.Errorf("whisper model %s: %w", e.model, domain.ErrModelNotReady)
	}

	prefix := filepath.Join(os.TempDir(), fmt.Sprintf("voxoscribe_%d", time.Now().UnixNano()))
	wavPath := prefix + ".wav"
	jsonPath := prefix + ".json"
	if err := audio.WriteWAV(wavPath, samples, sampleRate); err != nil {
		return domain.DecodeResult{}, fmt.Errorf("stage audio: %w", err)
	}
	defer func() {
		_ = os.Remove(wavPath)
		_ = os.Remove(jsonPath)
	}()

	if language == "" {
		language = "auto"
	}
	args := []string{
		"-m", e.modelPath,
		"-f", wavPath,
		"-oj",
		"-of", prefix,
		"--no-prints",
		"-l", language,
	}

	cmd := exec.CommandContext(ctx, e.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return domain.DecodeResult{}, ctx.Err()
		}
		return domain.DecodeResult{}, fmt.Errorf("whisper.cpp (%v): %s: %w", err, trimmedStderr(&stderr), domain.ErrDecodeFailed)
	}

	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return domain.DecodeResult{}, fmt.Errorf("read transcription output: %v: %w", err, domain.ErrDecodeFailed)
	}
	var out cliOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.DecodeResult{}, fmt.Errorf("parse transcription output: %v: %w", err, domain.ErrDecodeFailed)
	}

	var text strings.Builder
	for _, seg := range out.Transcription {
		text.WriteString(seg.Text)
	}
	return domain.DecodeResult{
		Text:     strings.TrimSpace(text.String()),
		Language: out.Result.Language,
	}, nil
}

func (e *Engine) downloadModel(ctx context.Context, progress func(percent int)) error {
	if err := os.MkdirAll(filepath.Dir(e.modelPath), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.modelURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, e.modelURL)
	}

	expected := resp.ContentLength
	if expected <= 0 {
		expected = e.modelSize
	}

	tmpPath := e.modelPath + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	defer func() {
		_ = file.Close()
		_ = os.Remove(tmpPath)
	}()

	var downloaded int64
	last := -1
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("write model file: %w", writeErr)
			}
			downloaded += int64(n)
			if progress != nil && expected > 0 {
				if pct := int(downloaded * 100 / expected); pct > last && pct < 100 {
					last = pct
					progress(pct)
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read model body: %w", readErr)
		}
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("close model file: %w", err)
	}
	return os.Rename(tmpPath, e.modelPath)
}

// findBinary looks for the whisper.cpp CLI under its common names, first on
// PATH and then in the usual install locations.
func findBinary() string {
	names := []string{"whisper-cli", "whisper-cpp", "whisper", "main"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
		filepath.Join(home, ".local", "bin"),
		filepath.Join(home, "whisper.cpp"),
	}
	for _, loc := range locations {
		for _, name := range names {
			path := filepath.Join(loc, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}
	}
	return ""
}

func trimmedStderr(buf *bytes.Buffer) string {
	return string(bytes.TrimSpace(buf.Bytes()))
}

// cliOutput is the JSON whisper.cpp writes with -oj.
type cliOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Text    string `json:"text"`
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
	} `json:"transcription"`
}
