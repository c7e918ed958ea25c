package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"turn-annotator/internal/application/service"
	"turn-annotator/internal/domain/entity"
	"turn-annotator/internal/infrastructure/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func readySettings(tasks ...entity.Task) entity.Settings {
	return entity.Settings{Enabled: true, APIKey: "k", Model: "m", Tasks: tasks}
}

func task(id string, writeToContext bool) entity.Task {
	return entity.Task{ID: id, Name: id, Enabled: true, WriteToContext: writeToContext}
}

type orchestratorFixture struct {
	runner    *fakeRunner
	display   *fakeDisplay
	persister *fakePersister
	results   *service.ResultStore
	uc        *UseCase
}

func newOrchestrator(settings entity.Settings) *orchestratorFixture {
	f := &orchestratorFixture{
		runner:    &fakeRunner{},
		display:   &fakeDisplay{},
		persister: &fakePersister{},
		results:   service.NewResultStore(),
	}
	f.uc = New(f.runner, service.NewSettingsRegistry(settings), f.results, f.display, f.persister, "chat", logger.NewNop())
	return f
}

func TestProcessTurn_IsolatesFailures(t *testing.T) {
	f := newOrchestrator(readySettings(task("A", false), task("B", false)))
	f.runner.fn = func(task entity.Task, turnIndex int) (entity.TaskResult, bool) {
		var r entity.TaskResult
		if task.ID == "A" {
			r = entity.FailureResult("A", errors.New("boom"), time.Unix(0, 0))
		} else {
			r = entity.SuccessResult("B", "fine", time.Unix(0, 0))
		}
		f.results.Put(turnIndex, r)
		return r, true
	}

	batch := f.uc.ProcessTurn(context.Background(), 1)
	f.uc.Wait()

	require.Len(t, batch.Results, 2)
	assert.False(t, batch.Skipped)

	a, _ := f.results.Get(1, "A")
	b, _ := f.results.Get(1, "B")
	assert.Equal(t, "boom", a.ErrorMessage)
	assert.Equal(t, "fine", b.Text)
}

func TestProcessTurn_RunsTasksConcurrently(t *testing.T) {
	f := newOrchestrator(readySettings(task("A", false), task("B", false), task("C", false)))

	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	f.runner.fn = func(task entity.Task, turnIndex int) (entity.TaskResult, bool) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		if n == 3 {
			close(release)
		}
		<-release
		inFlight.Add(-1)
		return entity.SuccessResult(task.ID, "x", time.Unix(0, 0)), true
	}

	batch := f.uc.ProcessTurn(context.Background(), 0)
	f.uc.Wait()

	assert.Len(t, batch.Results, 3)
	assert.Equal(t, int32(3), peak.Load())
}

func TestProcessTurn_SkipsWhenNotReady(t *testing.T) {
	tests := []struct {
		name     string
		settings entity.Settings
	}{
		{name: "disabled", settings: entity.Settings{Enabled: false, APIKey: "k", Model: "m", Tasks: []entity.Task{task("A", false)}}},
		{name: "missing key", settings: entity.Settings{Enabled: true, Model: "m", Tasks: []entity.Task{task("A", false)}}},
		{name: "missing model", settings: entity.Settings{Enabled: true, APIKey: "k", Tasks: []entity.Task{task("A", false)}}},
		{name: "no enabled tasks", settings: readySettings(entity.Task{ID: "A", Enabled: false})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrchestrator(tt.settings)

			batch := f.uc.ProcessTurn(context.Background(), 0)
			f.uc.Wait()

			assert.True(t, batch.Skipped)
			assert.Zero(t, f.runner.callCount())
			assert.Empty(t, f.display.kinds())
			assert.Zero(t, f.persister.saveCount())
		})
	}
}

func TestProcessTurn_DisplaySignals(t *testing.T) {
	f := newOrchestrator(readySettings(task("shown", false), task("inline", true)))

	f.uc.ProcessTurn(context.Background(), 2)
	f.uc.Wait()

	assert.Equal(t, []string{"pending", "text", "annotations"}, f.display.kinds())
	assert.Equal(t, []string{"shown"}, f.display.events[0].tasks)
	assert.Equal(t, 2, f.display.events[1].turn)
}

func TestProcessTurn_NoTextRefreshWithoutWriteBack(t *testing.T) {
	f := newOrchestrator(readySettings(task("A", false)))

	f.uc.ProcessTurn(context.Background(), 0)
	f.uc.Wait()

	assert.Equal(t, []string{"pending", "annotations"}, f.display.kinds())
}

func TestProcessTurn_SavesOncePerBatch(t *testing.T) {
	f := newOrchestrator(readySettings(task("A", false), task("B", false)))
	f.runner.fn = func(task entity.Task, turnIndex int) (entity.TaskResult, bool) {
		r := entity.SuccessResult(task.ID, "x", time.UnixMilli(5))
		f.results.Put(turnIndex, r)
		return r, true
	}

	f.uc.ProcessTurn(context.Background(), 1)
	f.uc.Wait()

	require.Equal(t, 1, f.persister.saveCount())
	assert.Len(t, f.persister.saves[0]["1"], 2)
}

func TestProcessTurn_ConcurrentBatchesPersistLatestResults(t *testing.T) {
	f := newOrchestrator(readySettings(task("A", false)))
	f.runner.fn = func(task entity.Task, turnIndex int) (entity.TaskResult, bool) {
		r := entity.SuccessResult(task.ID, "x", time.UnixMilli(5))
		f.results.Put(turnIndex, r)
		return r, true
	}

	const batches = 20
	var wg sync.WaitGroup
	for i := 0; i < batches; i++ {
		wg.Add(1)
		go func(turn int) {
			defer wg.Done()
			f.uc.ProcessTurn(context.Background(), turn)
		}(i)
	}
	wg.Wait()
	f.uc.Wait()

	f.persister.mu.Lock()
	defer f.persister.mu.Unlock()
	require.NotEmpty(t, f.persister.saves)
	assert.Len(t, f.persister.saves[len(f.persister.saves)-1], batches)
}

func TestProcessTurn_PersistFailureIsNotFatal(t *testing.T) {
	f := newOrchestrator(readySettings(task("A", false)))
	f.persister.err = errors.New("disk full")

	batch := f.uc.ProcessTurn(context.Background(), 0)
	f.uc.Wait()

	assert.Len(t, batch.Results, 1)
}

func TestProcessTurn_RunnerPanicDoesNotEscape(t *testing.T) {
	f := newOrchestrator(readySettings(task("A", false), task("B", false)))
	f.runner.fn = func(task entity.Task, turnIndex int) (entity.TaskResult, bool) {
		if task.ID == "A" {
			panic("runner bug")
		}
		return entity.SuccessResult(task.ID, "x", time.Unix(0, 0)), true
	}

	batch := f.uc.ProcessTurn(context.Background(), 0)
	f.uc.Wait()

	require.Len(t, batch.Results, 1)
	assert.Equal(t, "B", batch.Results[0].TaskID)
}

func TestProcessTurn_OutOfRangeTurnHasNoResults(t *testing.T) {
	f := newOrchestrator(readySettings(task("A", false)))
	f.runner.fn = func(task entity.Task, turnIndex int) (entity.TaskResult, bool) {
		return entity.TaskResult{}, false
	}

	batch := f.uc.ProcessTurn(context.Background(), 9)
	f.uc.Wait()

	assert.Empty(t, batch.Results)
}

func TestProcessOne(t *testing.T) {
	f := newOrchestrator(readySettings(task("A", false), entity.Task{ID: "off", Enabled: false}))

	batch, err := f.uc.ProcessOne(context.Background(), "off", 0)
	f.uc.Wait()

	require.NoError(t, err)
	require.Len(t, batch.Results, 1)
	assert.Equal(t, "off", batch.Results[0].TaskID)
}

func TestProcessOne_UnknownTask(t *testing.T) {
	f := newOrchestrator(readySettings(task("A", false)))

	batch, err := f.uc.ProcessOne(context.Background(), "missing", 0)

	assert.ErrorIs(t, err, entity.ErrTaskNotFound)
	assert.True(t, batch.Skipped)
	assert.Zero(t, f.runner.callCount())
}
