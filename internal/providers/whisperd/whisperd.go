// Package whisperd talks to a local whisper daemon over its OpenAI style
// HTTP API.
package whisperd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tjanssens/voxoscribe/internal/audio"
	"github.com/tjanssens/voxoscribe/internal/domain"
)

const defaultBaseURL = "http://127.0.0.1:8089/v1"

// Config holds daemon connection settings.
type Config struct {
	// BaseURL is the daemon's API root, including the version prefix.
	BaseURL string
	// Model names the loaded model to decode with.
	Model string
	// APIKey is sent as a bearer token when the daemon requires one.
	APIKey string
}

// Engine uploads one WAV per chunk and reads back verbose JSON.
type Engine struct {
	baseURL string
	model   string
	apiKey  string
	http    *http.Client
}

func New(cfg Config) *Engine {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}
	return &Engine{
		baseURL: strings.TrimSuffix(base, "/"),
		model:   model,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string { return "whisperd" }

func (e *Engine) Close() error { return nil }

// Prepare probes the daemon. A daemon that is down or still loading its
// model reports as not ready; there is nothing to download on our side.
func (e *Engine) Prepare(ctx context.Context, progress func(percent int)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("whisper daemon unreachable at %s (%v): %w", e.baseURL, err, domain.ErrModelNotReady)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusServiceUnavailable {
		return fmt.Errorf("whisper daemon still loading: %w", domain.ErrModelNotReady)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whisper daemon probe returned %d: %w", resp.StatusCode, domain.ErrModelNotReady)
	}
	if progress != nil {
		progress(100)
	}
	return nil
}

// Decode stages the chunk as a temp WAV file and posts it as multipart form
// data to the transcriptions endpoint.
func (e *Engine) Decode(ctx context.Context, samples []float32, sampleRate int, language string) (domain.DecodeResult, error) {
	wavPath := filepath.Join(os.TempDir(), fmt.Sprintf("voxoscribe_%d.wav", time.Now().UnixNano()))
	if err := audio.WriteWAV(wavPath, samples, sampleRate); err != nil {
		return domain.DecodeResult{}, fmt.Errorf("stage audio: %w", err)
	}
	defer func() { _ = os.Remove(wavPath) }()

	body, contentType, err := e.buildForm(wavPath, language)
	if err != nil {
		return domain.DecodeResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return domain.DecodeResult{}, err
	}
	req.Header.Set("Content-Type", contentType)
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.DecodeResult{}, ctx.Err()
		}
		return domain.DecodeResult{}, fmt.Errorf("whisper daemon request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.DecodeResult{}, fmt.Errorf("read daemon response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return domain.DecodeResult{}, fmt.Errorf("whisper daemon still loading: %w", domain.ErrModelNotReady)
	case resp.StatusCode != http.StatusOK:
		return domain.DecodeResult{}, fmt.Errorf("whisper daemon returned %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(respBody)), domain.ErrDecodeFailed)
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return domain.DecodeResult{}, fmt.Errorf("parse daemon response: %v: %w", err, domain.ErrDecodeFailed)
	}
	return domain.DecodeResult{
		Text:     strings.TrimSpace(parsed.Text),
		Language: parsed.Language,
	}, nil
}

func (e *Engine) buildForm(wavPath, language string) (*bytes.Buffer, string, error) {
	file, err := os.Open(wavPath)
	if err != nil {
		return nil, "", fmt.Errorf("open staged audio: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("copy audio into form: %w", err)
	}

	if err := writer.WriteField("model", e.model); err != nil {
		return nil, "", err
	}
	if language != "" && language != "auto" {
		if err := writer.WriteField("language", language); err != nil {
			return nil, "", err
		}
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

type transcriptionResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}
