package bootstrap

import (
	"fmt"

	"github.com/tjanssens/voxoscribe/internal/audio"
	"github.com/tjanssens/voxoscribe/internal/clipboard"
	"github.com/tjanssens/voxoscribe/internal/config"
	"github.com/tjanssens/voxoscribe/internal/hotkey"
	"github.com/tjanssens/voxoscribe/internal/inject"
	"github.com/tjanssens/voxoscribe/internal/notify"
	"github.com/tjanssens/voxoscribe/internal/ports"
	"github.com/tjanssens/voxoscribe/internal/providers/deepgram"
	"github.com/tjanssens/voxoscribe/internal/providers/whispercpp"
	"github.com/tjanssens/voxoscribe/internal/providers/whisperd"
	"github.com/tjanssens/voxoscribe/internal/rules"
	"github.com/tjanssens/voxoscribe/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Worker     *usecase.TranscriptionWorker
	Engine     ports.TranscriptionEngine
	Audio      ports.AudioSource
	Hotkey     *hotkey.Listener
	Notifier   ports.Notifier
	Config     config.Config
}

// Build wires all backend dependencies for the current runtime.
func Build(cfg config.Config, events ports.EventSink) (Services, error) {
	engine, err := buildEngine(cfg)
	if err != nil {
		return Services{}, err
	}
	if cfg.KeepRecordings {
		engine = audio.NewArchiver(engine, cfg.RecordingsDir)
	}

	rulesEngine, err := rules.Load(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, err
	}

	combo, err := hotkey.ParseCombo(cfg.Hotkey)
	if err != nil {
		return Services{}, err
	}

	var sink ports.InjectionSink
	switch cfg.Injection {
	case config.InjectionPaste:
		sink = inject.NewPaster()
	default:
		sink = inject.NewTyper()
	}

	language := cfg.Language
	if cfg.AutoDetectLanguage {
		language = ""
	}

	source := audio.NewSource(audio.Config{SampleRate: cfg.Audio.SampleRate})
	worker := usecase.NewTranscriptionWorker(engine, usecase.WorkerConfig{})

	controller := usecase.NewSessionController(
		source,
		worker,
		sink,
		clipboard.NewWriter(),
		rulesEngine,
		events,
		usecase.Config{
			Device:   cfg.Audio.InputDevice,
			Language: language,
			MaxChunk: cfg.Session.MaxChunkDuration,
			Endpoint: usecase.EndpointConfig{SilenceTimeout: cfg.Session.SilenceTimeout},
		},
	)

	return Services{
		Controller: controller,
		Worker:     worker,
		Engine:     engine,
		Audio:      source,
		Hotkey:     hotkey.NewListener(combo),
		Notifier:   notify.NewDesktop(),
		Config:     cfg,
	}, nil
}

func buildEngine(cfg config.Config) (ports.TranscriptionEngine, error) {
	switch cfg.Engine {
	case config.EngineWhisperCPP:
		return whispercpp.New(whispercpp.Config{
			BinPath:  cfg.Whisper.BinPath,
			ModelDir: cfg.Whisper.ModelDir,
			Model:    cfg.Whisper.Model,
		})
	case config.EngineWhisperd:
		return whisperd.New(whisperd.Config{
			BaseURL: cfg.Whisperd.BaseURL,
			Model:   cfg.Whisperd.Model,
			APIKey:  cfg.Whisperd.APIKey,
		}), nil
	case config.EngineDeepgram:
		return deepgram.New(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			SmartFormat: cfg.Deepgram.SmartFormat,
		}), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}
