package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"turn-annotator/internal/application/port/output"
	"turn-annotator/internal/application/service"
	"turn-annotator/internal/domain/entity"
	"turn-annotator/internal/infrastructure/config"
	"turn-annotator/internal/infrastructure/display"
	"turn-annotator/internal/infrastructure/llm"
	"turn-annotator/internal/infrastructure/logger"
	"turn-annotator/internal/infrastructure/storage/sqlite"
	"turn-annotator/internal/infrastructure/transcript"
	"turn-annotator/internal/usecase/orchestrator"
	"turn-annotator/internal/usecase/runner"
)

const DefaultChatID = "default"

type Container struct {
	Logger       output.LoggerPort
	Settings     *service.SettingsRegistry
	Loader       *config.Loader
	Transcript   *transcript.Transcript
	Results      *service.ResultStore
	Store        *sqlite.ResultStore
	LLM          output.GenerationPort
	Display      *display.ConsoleDisplay
	Orchestrator *orchestrator.UseCase
	Events       *orchestrator.EventHandler

	cfg Config
}

type Config struct {
	TasksFile      string
	DBPath         string
	TranscriptPath string

	// Values below, when set, take precedence over the tasks file.
	APIKey   string
	Model    string
	Provider entity.Provider
	Enabled  *bool
	BaseURL  string

	LogDir    string
	LogStderr bool
	Verbose   bool
	Output    io.Writer
}

func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	log, err := logger.NewLoggerAdapter(logger.Options{
		Name:    "annotator",
		Dir:     cfg.LogDir,
		Stderr:  cfg.LogStderr,
		Verbose: cfg.Verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	c := &Container{Logger: log, cfg: cfg}
	if err := c.build(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) build(ctx context.Context) error {
	cfg := c.cfg

	c.Settings = service.NewSettingsRegistry(entity.DefaultSettings())
	c.Loader = config.NewLoader(cfg.TasksFile, c.Settings, cfg.overrides, c.Logger.Named("config"))
	if err := c.Loader.Load(); err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	tr, err := openTranscript(cfg.TranscriptPath)
	if err != nil {
		return err
	}
	c.Transcript = tr

	c.Results = service.NewResultStore()
	if cfg.DBPath != "" {
		store, err := sqlite.NewResultStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open result store: %w", err)
		}
		c.Store = store

		persisted, err := store.Load(ctx, c.Transcript.ID())
		if err != nil {
			c.Logger.Warn("Failed to load saved results", "chat", c.Transcript.ID(), "error", err)
		} else if err := c.Results.Load(persisted); err != nil {
			c.Logger.Warn("Some saved results were skipped", "chat", c.Transcript.ID(), "error", err)
		}
	}

	router, err := llm.NewDefaultRouter(c.Settings, cfg.routerConfig(c.Settings.Settings().Provider, c.Logger.Named("llm")))
	if err != nil {
		return fmt.Errorf("failed to create generation client: %w", err)
	}
	c.LLM = router

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	c.Display = display.NewConsoleDisplay(out, c.Results, c.Settings, c.Transcript)

	run := runner.New(c.LLM, c.Transcript, c.Settings, c.Results, c.Logger.Named("runner"))

	var persister output.ResultPersister
	if c.Store != nil {
		persister = c.Store
	}
	c.Orchestrator = orchestrator.New(run, c.Settings, c.Results, c.Display, persister, c.Transcript.ID(), c.Logger.Named("orchestrator"))
	c.Events = orchestrator.NewEventHandler(c.Orchestrator, c.Transcript, c.Settings, c.Display, &orchestrator.Session{}, c.Logger.Named("events"))
	return nil
}

// SaveTranscript writes the transcript back to its file, if it came from one.
func (c *Container) SaveTranscript() error {
	if c.cfg.TranscriptPath == "" {
		return nil
	}
	return c.Transcript.Save(c.cfg.TranscriptPath)
}

// Close waits for pending saves and releases resources.
func (c *Container) Close() {
	if c.Orchestrator != nil {
		c.Orchestrator.Wait()
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			c.Logger.Warn("Failed to close result store", "error", err)
		}
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}

func openTranscript(path string) (*transcript.Transcript, error) {
	if path == "" {
		return transcript.New(DefaultChatID), nil
	}

	tr, err := transcript.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return transcript.New(DefaultChatID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	if tr.ID() == "" {
		return transcript.New(DefaultChatID, tr.Turns()...), nil
	}
	return tr, nil
}

func (cfg Config) overrides(s entity.Settings) entity.Settings {
	if cfg.APIKey != "" {
		s.APIKey = cfg.APIKey
	}
	if cfg.Model != "" {
		s.Model = cfg.Model
	}
	if cfg.Provider != "" {
		s.Provider = cfg.Provider
	}
	if cfg.Enabled != nil {
		s.Enabled = *cfg.Enabled
	}
	return s
}

// routerConfig points BaseURL at the provider active at startup.
func (cfg Config) routerConfig(provider entity.Provider, log output.LoggerPort) llm.Config {
	rc := llm.Config{Logger: log}
	switch provider {
	case entity.ProviderOpenRouter:
		rc.OpenRouterBaseURL = cfg.BaseURL
	case entity.ProviderOllama:
		rc.OllamaBaseURL = cfg.BaseURL
	default:
		rc.GeminiBaseURL = cfg.BaseURL
	}
	return rc
}
