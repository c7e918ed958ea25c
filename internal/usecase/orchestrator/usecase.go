package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"turn-annotator/internal/application/port/input"
	"turn-annotator/internal/application/port/output"
	"turn-annotator/internal/application/service"
	"turn-annotator/internal/domain/entity"
)

const saveTimeout = 30 * time.Second

var _ input.TurnProcessor = (*UseCase)(nil)

// UseCase fans a turn out to the enabled tasks. Tasks run concurrently and independently; a
// failing task never stops or alters its siblings.
type UseCase struct {
	runner    input.TaskRunner
	settings  output.SettingsSource
	results   *service.ResultStore
	display   output.AnnotationDisplay
	persister output.ResultPersister
	chatID    string
	logger    output.LoggerPort

	saves    sync.WaitGroup
	saveMu   sync.Mutex
	seqMu    sync.Mutex
	saveSeq  uint64
	savedSeq uint64
}

func New(
	runner input.TaskRunner,
	settings output.SettingsSource,
	results *service.ResultStore,
	display output.AnnotationDisplay,
	persister output.ResultPersister,
	chatID string,
	logger output.LoggerPort,
) *UseCase {
	return &UseCase{
		runner:    runner,
		settings:  settings,
		results:   results,
		display:   display,
		persister: persister,
		chatID:    chatID,
		logger:    logger,
	}
}

// ProcessTurn runs every enabled task for the turn and waits for all of them to settle.
func (uc *UseCase) ProcessTurn(ctx context.Context, turnIndex int) input.BatchResult {
	settings := uc.settings.Settings()
	if !uc.ready(settings) {
		return input.BatchResult{TurnIndex: turnIndex, Skipped: true}
	}

	tasks := settings.EnabledTasks()
	if len(tasks) == 0 {
		uc.logger.Debug("No enabled tasks", "turn", turnIndex)
		return input.BatchResult{TurnIndex: turnIndex, Skipped: true}
	}

	return uc.runBatch(ctx, turnIndex, tasks)
}

// ProcessOne reruns a single task for the turn, whether or not the task is enabled.
func (uc *UseCase) ProcessOne(ctx context.Context, taskID string, turnIndex int) (input.BatchResult, error) {
	settings := uc.settings.Settings()
	if !uc.ready(settings) {
		return input.BatchResult{TurnIndex: turnIndex, Skipped: true}, nil
	}

	task, ok := settings.FindTask(taskID)
	if !ok {
		return input.BatchResult{TurnIndex: turnIndex, Skipped: true}, fmt.Errorf("%w: %s", entity.ErrTaskNotFound, taskID)
	}

	return uc.runBatch(ctx, turnIndex, []entity.Task{task}), nil
}

// Wait blocks until every scheduled save has finished.
func (uc *UseCase) Wait() {
	uc.saves.Wait()
}

// ready treats a disabled feature or a missing credential as nothing to do.
func (uc *UseCase) ready(settings entity.Settings) bool {
	if !settings.Enabled {
		uc.logger.Debug("Processing skipped", "reason", "disabled")
		return false
	}
	if !settings.Configured() {
		uc.logger.Debug("Processing skipped", "reason", "missing credential or model")
		return false
	}
	return true
}

func (uc *UseCase) runBatch(ctx context.Context, turnIndex int, tasks []entity.Task) input.BatchResult {
	displayed := make([]entity.Task, 0, len(tasks))
	writesContext := false
	for _, task := range tasks {
		if task.WriteToContext {
			writesContext = true
		} else {
			displayed = append(displayed, task)
		}
	}
	if len(displayed) > 0 {
		uc.display.ShowPending(ctx, turnIndex, displayed)
	}

	uc.logger.Info("Batch started", "turn", turnIndex, "tasks", len(tasks))

	results := make([]entity.TaskResult, len(tasks))
	ran := make([]bool, len(tasks))

	var g errgroup.Group
	for i, task := range tasks {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					uc.logger.Error("Task runner panicked", "task", task.ID, "turn", turnIndex, "panic", r)
				}
			}()
			results[i], ran[i] = uc.runner.Run(ctx, task, turnIndex)
			return nil
		})
	}
	_ = g.Wait()

	batch := input.BatchResult{TurnIndex: turnIndex}
	failed := 0
	for i := range tasks {
		if !ran[i] {
			continue
		}
		batch.Results = append(batch.Results, results[i])
		if !results[i].Succeeded() {
			failed++
		}
	}

	if writesContext {
		uc.display.RefreshTurnText(ctx, turnIndex)
	}
	uc.display.RefreshAnnotations(ctx)
	uc.persist()

	uc.logger.Info("Batch completed", "turn", turnIndex, "results", len(batch.Results), "failed", failed)
	return batch
}

// persist schedules one save of the current results without waiting for it. A save that finishes
// after a newer one has already been written is dropped.
func (uc *UseCase) persist() {
	if uc.persister == nil {
		return
	}

	// The snapshot and its seq are taken together so a later seq never carries older results.
	uc.seqMu.Lock()
	snapshot := uc.results.Snapshot()
	uc.saveSeq++
	seq := uc.saveSeq
	uc.seqMu.Unlock()

	uc.saves.Add(1)
	go func() {
		defer uc.saves.Done()

		uc.saveMu.Lock()
		defer uc.saveMu.Unlock()
		if seq < uc.savedSeq {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()

		if err := uc.persister.Save(ctx, uc.chatID, snapshot); err != nil {
			uc.logger.Warn("Failed to persist results", "chat", uc.chatID, "error", err)
			return
		}
		uc.savedSeq = seq
	}()
}
