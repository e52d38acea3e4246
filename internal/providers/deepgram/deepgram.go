// Package deepgram decodes audio chunks through Deepgram's websocket API.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/tjanssens/voxoscribe/internal/audio"
	"github.com/tjanssens/voxoscribe/internal/domain"
)

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	SmartFormat bool
}

// Engine streams one chunk per decode and collects the final transcripts.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) Name() string { return "deepgram" }

func (e *Engine) Close() error { return nil }

// Prepare validates the credentials. There is no model to download.
func (e *Engine) Prepare(ctx context.Context, progress func(percent int)) error {
	if strings.TrimSpace(e.cfg.APIKey) == "" {
		return fmt.Errorf("DEEPGRAM_API_KEY is not configured: %w", domain.ErrModelNotReady)
	}
	if progress != nil {
		progress(100)
	}
	return nil
}

// Decode opens a websocket, pushes the chunk as linear16 PCM, closes the
// stream and joins every final transcript the server flushes back.
func (e *Engine) Decode(ctx context.Context, samples []float32, sampleRate int, language string) (domain.DecodeResult, error) {
	if strings.TrimSpace(e.cfg.APIKey) == "" {
		return domain.DecodeResult{}, fmt.Errorf("DEEPGRAM_API_KEY is not configured: %w", domain.ErrModelNotReady)
	}

	wsURL, err := listenURL(e.cfg, sampleRate, language)
	if err != nil {
		return domain.DecodeResult{}, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+e.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if ctx.Err() != nil {
			return domain.DecodeResult{}, ctx.Err()
		}
		return domain.DecodeResult{}, fmt.Errorf("connect to deepgram (%v): %w", err, domain.ErrDecodeFailed)
	}
	defer conn.Close()

	// A cancelled context must unblock the websocket reads and writes.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	type listenOutcome struct {
		parts []string
		err   error
	}
	outcome := make(chan listenOutcome, 1)
	go func() {
		parts, err := readTranscripts(conn)
		outcome <- listenOutcome{parts: parts, err: err}
	}()

	writeErr := streamAudio(conn, audio.Float32ToS16LE(samples))

	res := <-outcome
	if res.err != nil {
		if ctx.Err() != nil {
			return domain.DecodeResult{}, ctx.Err()
		}
		return domain.DecodeResult{}, res.err
	}
	if writeErr != nil {
		if ctx.Err() != nil {
			return domain.DecodeResult{}, ctx.Err()
		}
		return domain.DecodeResult{}, fmt.Errorf("send audio (%v): %w", writeErr, domain.ErrDecodeFailed)
	}

	result := domain.DecodeResult{Text: strings.TrimSpace(strings.Join(res.parts, " "))}
	if language != "" && language != "auto" {
		result.Language = language
	}
	return result, nil
}

// streamAudio writes the PCM in bounded frames, then asks the server to
// flush and close.
func streamAudio(conn *websocket.Conn, pcm []byte) error {
	const frameBytes = 8192
	for off := 0; off < len(pcm); off += frameBytes {
		end := min(off+frameBytes, len(pcm))
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[off:end]); err != nil {
			return err
		}
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
}

// readTranscripts collects final transcripts until the server closes the
// socket.
func readTranscripts(conn *websocket.Conn) ([]string, error) {
	var parts []string
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if isCleanClose(err) {
				return parts, nil
			}
			return parts, fmt.Errorf("read deepgram event (%v): %w", err, domain.ErrDecodeFailed)
		}

		var response listenResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			return parts, fmt.Errorf("deepgram: %s: %w", message, domain.ErrDecodeFailed)
		}

		if !response.IsFinal && !response.SpeechFinal {
			continue
		}
		if transcript := extractTranscript(response); transcript != "" {
			parts = append(parts, transcript)
		}
	}
}

func isCleanClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func extractTranscript(response listenResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func listenURL(cfg Config, sampleRate int, language string) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	parsed, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	query := parsed.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", fmt.Sprintf("%d", sampleRate))
	query.Set("channels", "1")
	query.Set("interim_results", "false")
	query.Set("smart_format", fmt.Sprintf("%t", cfg.SmartFormat))
	if language != "" && language != "auto" {
		query.Set("language", language)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
