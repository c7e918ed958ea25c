package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"turn-annotator/internal/application/port/output"
	"turn-annotator/internal/application/service"
	"turn-annotator/internal/domain/entity"
)

const reloadDebounce = 100 * time.Millisecond

// fileSettings mirrors entity.Settings with optional scalars so a missing key can be told apart
// from an explicit zero value.
type fileSettings struct {
	Enabled  *bool            `yaml:"enabled"`
	APIKey   *string          `yaml:"apiKey"`
	Model    *string          `yaml:"modelName"`
	Provider *entity.Provider `yaml:"provider"`
	Tasks    []entity.Task    `yaml:"tasks"`
}

// Parse decodes a settings document. Missing keys take their default values.
func Parse(data []byte) (entity.Settings, error) {
	var raw fileSettings
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return entity.Settings{}, fmt.Errorf("parse settings: %w", err)
	}

	s := entity.DefaultSettings()
	if raw.Enabled != nil {
		s.Enabled = *raw.Enabled
	}
	if raw.APIKey != nil {
		s.APIKey = *raw.APIKey
	}
	if raw.Model != nil {
		s.Model = *raw.Model
	}
	if raw.Provider != nil {
		s.Provider = *raw.Provider
	}
	if raw.Tasks != nil {
		s.Tasks = raw.Tasks
	}
	for i := range s.Tasks {
		fillTaskDefaults(&s.Tasks[i])
	}
	return s, nil
}

func fillTaskDefaults(t *entity.Task) {
	if t.Name == "" {
		t.Name = entity.DefaultTaskName
	}
	if t.RenderPosition == "" {
		t.RenderPosition = entity.RenderBelow
	}
	if t.InputRegexList == nil {
		t.InputRegexList = []entity.PatternRule{}
	}
	if t.OutputRegexList == nil {
		t.OutputRegexList = []entity.PatternRule{}
	}
	if t.FinalRegexList == nil {
		t.FinalRegexList = []entity.PatternRule{}
	}
}

// Loader keeps a SettingsRegistry in sync with a YAML file.
type Loader struct {
	path     string
	registry *service.SettingsRegistry
	override func(entity.Settings) entity.Settings
	logger   output.LoggerPort
}

// NewLoader creates a loader. override, when not nil, is applied to every loaded document before
// it reaches the registry and is never written back.
func NewLoader(path string, registry *service.SettingsRegistry, override func(entity.Settings) entity.Settings, logger output.LoggerPort) *Loader {
	return &Loader{
		path:     path,
		registry: registry,
		override: override,
		logger:   logger,
	}
}

func (l *Loader) Path() string {
	return l.path
}

// Read returns the file contents with defaults filled in. A missing file yields the defaults.
func (l *Loader) Read() (entity.Settings, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return entity.DefaultSettings(), nil
	}
	if err != nil {
		return entity.Settings{}, fmt.Errorf("read settings: %w", err)
	}
	return Parse(data)
}

// Load reads the file and publishes it to the registry.
func (l *Loader) Load() error {
	s, err := l.Read()
	if err != nil {
		return err
	}
	if l.override != nil {
		s = l.override(s)
	}
	l.registry.Replace(s)
	l.logger.Info("Settings loaded", "path", l.path, "tasks", len(s.Tasks), "enabled", s.Enabled)
	return nil
}

// Save writes settings to the file through a temporary file and rename.
func (l *Loader) Save(s entity.Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// AddTask appends a task to the file and registers it with the live settings. The file is
// rewritten from its raw contents so overrides never reach the disk.
func (l *Loader) AddTask(task entity.Task) error {
	current, err := l.Read()
	if err != nil {
		return err
	}
	fillTaskDefaults(&task)
	current.Tasks = append(current.Tasks, task)
	if err := l.Save(current); err != nil {
		return err
	}
	l.registry.Register(task)
	return nil
}

// RemoveTask drops a task from the file and from the live settings.
func (l *Loader) RemoveTask(id string) error {
	current, err := l.Read()
	if err != nil {
		return err
	}
	kept := make([]entity.Task, 0, len(current.Tasks))
	for _, t := range current.Tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(current.Tasks) {
		return fmt.Errorf("%w: %s", entity.ErrTaskNotFound, id)
	}
	current.Tasks = kept
	if err := l.Save(current); err != nil {
		return err
	}
	l.registry.Remove(id)
	return nil
}

// Watch reloads the settings whenever the file changes, until ctx is done. Bursts of writes are
// coalesced into one reload. A document that fails to parse keeps the previous settings.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	l.logger.Debug("Watching settings", "path", l.path)

	name := filepath.Base(l.path)
	debounce := time.NewTimer(reloadDebounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce.Reset(reloadDebounce)
			}
		case <-debounce.C:
			if err := l.Load(); err != nil {
				l.logger.Warn("Settings reload failed", "path", l.path, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("Settings watcher error", "error", err)
		}
	}
}
