package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Engine names accepted in configuration.
const (
	EngineWhisperCPP = "whispercpp"
	EngineWhisperd   = "whisperd"
	EngineDeepgram   = "deepgram"
)

// Injection modes accepted in configuration.
const (
	InjectionType  = "type"
	InjectionPaste = "paste"
)

// Config stores the resolved runtime configuration for the dictation
// pipeline. Values come from defaults, then the JSON config file, then
// VOXOSCRIBE_* environment variables.
type Config struct {
	Hotkey   string
	Language string
	// AutoDetectLanguage makes engines detect the spoken language instead of
	// forcing Language.
	AutoDetectLanguage bool
	Engine             string
	Injection          string
	KeepRecordings     bool
	RecordingsDir      string

	Audio    AudioConfig
	Session  SessionConfig
	Whisper  WhisperConfig
	Whisperd WhisperdConfig
	Deepgram DeepgramConfig
	Rules    RulesConfig
}

type AudioConfig struct {
	InputDevice string
	SampleRate  int
}

type SessionConfig struct {
	SilenceTimeout   time.Duration
	MaxChunkDuration time.Duration
}

type WhisperConfig struct {
	BinPath  string
	Model    string
	ModelDir string
}

type WhisperdConfig struct {
	BaseURL string
	Model   string
	APIKey  string
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	SmartFormat bool
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

// fileConfig is the JSON shape of the config file. Durations are plain
// millisecond counts there.
type fileConfig struct {
	Hotkey             string `json:"hotkey"`
	Language           string `json:"language"`
	AutoDetectLanguage bool   `json:"auto_detect_language"`
	Engine             string `json:"engine"`
	Injection          string `json:"injection"`
	KeepRecordings     bool   `json:"keep_recordings"`
	RecordingsDir      string `json:"recordings_dir"`
	Microphone         string `json:"microphone"`
	SampleRate         int    `json:"sample_rate"`
	SilenceTimeoutMS   int    `json:"silence_timeout_ms"`
	MaxChunkDurationMS int    `json:"max_chunk_duration_ms"`

	Whisper struct {
		BinPath  string `json:"bin_path"`
		Model    string `json:"model"`
		ModelDir string `json:"model_dir"`
	} `json:"whisper"`

	Whisperd struct {
		BaseURL string `json:"base_url"`
		Model   string `json:"model"`
		APIKey  string `json:"api_key"`
	} `json:"whisperd"`

	Deepgram struct {
		APIKey      string `json:"api_key"`
		APIBaseURL  string `json:"api_base_url"`
		Model       string `json:"model"`
		SmartFormat *bool  `json:"smart_format"`
	} `json:"deepgram"`

	Rules struct {
		Path           string `json:"path"`
		IterationLimit int    `json:"iteration_limit"`
	} `json:"rules"`
}

// Load resolves configuration from the config file, environment variables
// and defaults. The file lives at VOXOSCRIBE_CONFIG, or config.json in the
// user config directory; a missing file is not an error.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(home, ".config")
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = filepath.Join(home, ".cache")
	}
	appDir := filepath.Join(configDir, "voxoscribe")

	file := fileConfig{
		Hotkey:             "ctrl+shift+space",
		Language:           "nl",
		Engine:             EngineWhisperCPP,
		Injection:          InjectionType,
		RecordingsDir:      filepath.Join(cacheDir, "voxoscribe", "recordings"),
		SampleRate:         16000,
		SilenceTimeoutMS:   1500,
		MaxChunkDurationMS: 30000,
	}
	file.Whisper.Model = "small"
	file.Whisperd.BaseURL = "http://127.0.0.1:8089/v1"
	file.Whisperd.Model = "whisper-1"
	file.Deepgram.APIBaseURL = "https://api.deepgram.com/v1"
	file.Deepgram.Model = "nova-2"
	file.Rules.Path = firstExisting(
		filepath.Join(appDir, "substitutions.rules"),
		filepath.Join(configDir, "hypr", "whisper-substitutions.rules"),
	)
	file.Rules.IterationLimit = 30

	path := envOrDefault("VOXOSCRIBE_CONFIG", filepath.Join(appDir, "config.json"))
	if raw, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(raw, &file); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}

	smartFormat := true
	if file.Deepgram.SmartFormat != nil {
		smartFormat = *file.Deepgram.SmartFormat
	}

	cfg := Config{
		Hotkey:             envOrDefault("VOXOSCRIBE_HOTKEY", file.Hotkey),
		Language:           envOrDefault("VOXOSCRIBE_LANGUAGE", file.Language),
		AutoDetectLanguage: envOrDefaultBool("VOXOSCRIBE_AUTO_DETECT_LANGUAGE", file.AutoDetectLanguage),
		Engine:             strings.ToLower(envOrDefault("VOXOSCRIBE_ENGINE", file.Engine)),
		Injection:          strings.ToLower(envOrDefault("VOXOSCRIBE_INJECTION", file.Injection)),
		KeepRecordings:     envOrDefaultBool("VOXOSCRIBE_KEEP_RECORDINGS", file.KeepRecordings),
		RecordingsDir:      envOrDefault("VOXOSCRIBE_RECORDINGS_DIR", file.RecordingsDir),
		Audio: AudioConfig{
			InputDevice: firstNonEmpty(
				os.Getenv("VOXOSCRIBE_MICROPHONE"),
				file.Microphone,
			),
			SampleRate: envOrDefaultInt("VOXOSCRIBE_SAMPLE_RATE", file.SampleRate),
		},
		Session: SessionConfig{
			SilenceTimeout:   time.Duration(envOrDefaultInt("VOXOSCRIBE_SILENCE_TIMEOUT_MS", file.SilenceTimeoutMS)) * time.Millisecond,
			MaxChunkDuration: time.Duration(envOrDefaultInt("VOXOSCRIBE_MAX_CHUNK_MS", file.MaxChunkDurationMS)) * time.Millisecond,
		},
		Whisper: WhisperConfig{
			BinPath:  envOrDefault("VOXOSCRIBE_WHISPER_BIN", file.Whisper.BinPath),
			Model:    envOrDefault("VOXOSCRIBE_WHISPER_MODEL", file.Whisper.Model),
			ModelDir: envOrDefault("VOXOSCRIBE_WHISPER_MODEL_DIR", file.Whisper.ModelDir),
		},
		Whisperd: WhisperdConfig{
			BaseURL: envOrDefault("VOXOSCRIBE_WHISPERD_BASE_URL", file.Whisperd.BaseURL),
			Model:   envOrDefault("VOXOSCRIBE_WHISPERD_MODEL", file.Whisperd.Model),
			APIKey:  envOrDefault("VOXOSCRIBE_WHISPERD_API_KEY", file.Whisperd.APIKey),
		},
		Deepgram: DeepgramConfig{
			APIKey:      firstNonEmpty(os.Getenv("DEEPGRAM_API_KEY"), file.Deepgram.APIKey),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", file.Deepgram.APIBaseURL),
			Model:       envOrDefault("DEEPGRAM_MODEL", file.Deepgram.Model),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", smartFormat),
		},
		Rules: RulesConfig{
			Path:           envOrDefault("VOXOSCRIBE_RULES_FILE", file.Rules.Path),
			IterationLimit: envOrDefaultInt("VOXOSCRIBE_RULE_ITERATION_LIMIT", file.Rules.IterationLimit),
		},
	}

	switch cfg.Engine {
	case EngineWhisperCPP, EngineWhisperd, EngineDeepgram:
	default:
		return Config{}, fmt.Errorf("unknown engine %q, want %s, %s or %s", cfg.Engine, EngineWhisperCPP, EngineWhisperd, EngineDeepgram)
	}
	switch cfg.Injection {
	case InjectionType, InjectionPaste:
	default:
		return Config{}, fmt.Errorf("unknown injection mode %q, want %s or %s", cfg.Injection, InjectionType, InjectionPaste)
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Session.SilenceTimeout <= 0 {
		cfg.Session.SilenceTimeout = 1500 * time.Millisecond
	}
	if cfg.Session.MaxChunkDuration < time.Second {
		cfg.Session.MaxChunkDuration = 30 * time.Second
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}

	return cfg, nil
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
