package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turn-annotator/internal/application/service"
	"turn-annotator/internal/domain/entity"
	"turn-annotator/internal/infrastructure/logger"
)

func TestParse_FillsMissingKeys(t *testing.T) {
	s, err := Parse([]byte(`
apiKey: secret
tasks:
  - id: t1
    userPrompt: "{{char1}}"
    enabled: true
`))

	require.NoError(t, err)
	assert.True(t, s.Enabled)
	assert.Equal(t, "secret", s.APIKey)
	assert.Equal(t, entity.DefaultModel, s.Model)
	assert.Equal(t, entity.ProviderGemini, s.Provider)
	require.Len(t, s.Tasks, 1)
	assert.Equal(t, entity.DefaultTaskName, s.Tasks[0].Name)
	assert.Equal(t, entity.RenderBelow, s.Tasks[0].RenderPosition)
	assert.NotNil(t, s.Tasks[0].OutputRegexList)
}

func TestParse_ExplicitFalseIsKept(t *testing.T) {
	s, err := Parse([]byte("enabled: false\nmodelName: \"\"\n"))

	require.NoError(t, err)
	assert.False(t, s.Enabled)
	assert.Empty(t, s.Model)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("tasks: [unterminated"))
	assert.Error(t, err)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	registry := service.NewSettingsRegistry(entity.Settings{})
	l := NewLoader(filepath.Join(t.TempDir(), "tasks.yaml"), registry, nil, logger.NewNop())

	require.NoError(t, l.Load())
	assert.Equal(t, entity.DefaultSettings(), registry.Settings())
}

func TestLoader_SaveReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tasks.yaml")
	registry := service.NewSettingsRegistry(entity.Settings{})
	l := NewLoader(path, registry, nil, logger.NewNop())

	want := entity.DefaultSettings()
	want.APIKey = "k"
	want.Tasks = []entity.Task{entity.NewTask("sys", "user {{char1}}")}
	want.Tasks[0].OutputRegexList = []entity.PatternRule{{Find: "L+", Replace: "L", Flags: "g"}}

	require.NoError(t, l.Save(want))
	got, err := l.Read()

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoader_OverrideIsAppliedButNotSaved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	registry := service.NewSettingsRegistry(entity.Settings{})
	override := func(s entity.Settings) entity.Settings {
		if s.APIKey == "" {
			s.APIKey = "from-env"
		}
		return s
	}
	l := NewLoader(path, registry, override, logger.NewNop())

	require.NoError(t, l.Save(entity.DefaultSettings()))
	require.NoError(t, l.Load())

	assert.Equal(t, "from-env", registry.Settings().APIKey)
	onDisk, err := l.Read()
	require.NoError(t, err)
	assert.Empty(t, onDisk.APIKey)
}

func TestLoader_AddAndRemoveTask(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	registry := service.NewSettingsRegistry(entity.Settings{})
	override := func(s entity.Settings) entity.Settings {
		s.APIKey = "from-env"
		return s
	}
	l := NewLoader(path, registry, override, logger.NewNop())
	require.NoError(t, l.Load())

	task := entity.NewTask("sys", "user {{char1}}")
	require.NoError(t, l.AddTask(task))

	_, live := registry.Settings().FindTask(task.ID)
	assert.True(t, live)
	onDisk, err := l.Read()
	require.NoError(t, err)
	require.Len(t, onDisk.Tasks, 1)
	assert.Empty(t, onDisk.APIKey)

	require.NoError(t, l.RemoveTask(task.ID))
	assert.Empty(t, registry.Settings().Tasks)
	onDisk, err = l.Read()
	require.NoError(t, err)
	assert.Empty(t, onDisk.Tasks)

	assert.ErrorIs(t, l.RemoveTask(task.ID), entity.ErrTaskNotFound)
}

func TestLoader_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enabled: true\n"), 0o644))

	registry := service.NewSettingsRegistry(entity.Settings{})
	l := NewLoader(path, registry, nil, logger.NewNop())
	require.NoError(t, l.Load())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, l.Watch(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	// Let the watcher register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("enabled: false\napiKey: new\n"), 0o644))

	assert.Eventually(t, func() bool {
		return registry.Settings().APIKey == "new"
	}, 3*time.Second, 20*time.Millisecond)
	assert.False(t, registry.Settings().Enabled)
}
