package runner

import (
	"context"
	"fmt"
	"time"

	"turn-annotator/internal/application/port/input"
	"turn-annotator/internal/application/port/output"
	"turn-annotator/internal/application/service"
	"turn-annotator/internal/domain/entity"
)

var _ input.TaskRunner = (*UseCase)(nil)

// UseCase runs a single task against a turn: context, templates, input patterns, generation,
// output and final patterns, then storage and optional write-back into the turn text.
type UseCase struct {
	llm        output.GenerationPort
	transcript output.TranscriptSink
	settings   output.SettingsSource
	results    *service.ResultStore
	patterns   *service.PatternChain
	logger     output.LoggerPort
	now        func() time.Time
}

func New(
	llm output.GenerationPort,
	transcript output.TranscriptSink,
	settings output.SettingsSource,
	results *service.ResultStore,
	logger output.LoggerPort,
) *UseCase {
	return &UseCase{
		llm:        llm,
		transcript: transcript,
		settings:   settings,
		results:    results,
		patterns:   service.NewPatternChain(logger),
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock replaces the timestamp source.
func (uc *UseCase) WithClock(now func() time.Time) *UseCase {
	uc.now = now
	return uc
}

// Run never fails: every error ends up in the returned failure result. ok is false only when
// turnIndex does not name a turn, in which case nothing is stored.
func (uc *UseCase) Run(ctx context.Context, task entity.Task, turnIndex int) (entity.TaskResult, bool) {
	turns := uc.transcript.Turns()
	if turnIndex < 0 || turnIndex >= len(turns) {
		uc.logger.Warn("Turn not found, task skipped", "task", task.ID, "turn", turnIndex, "turns", len(turns))
		return entity.TaskResult{}, false
	}

	log := uc.logger.WithFields(map[string]any{"task": task.ID, "turn": turnIndex})
	started := uc.now()
	log.Debug("Task started", "name", task.Name)

	var result entity.TaskResult
	text, err := uc.execute(ctx, task, turns)
	if err != nil {
		log.Error("Task failed", "name", task.Name, "error", err)
		result = entity.FailureResult(task.ID, err, uc.now())
	} else {
		result = entity.SuccessResult(task.ID, text, uc.now())
	}

	uc.results.Put(turnIndex, result)

	if result.Succeeded() && task.WriteToContext {
		err := uc.transcript.UpdateText(turnIndex, func(current string) string {
			return service.Inject(current, task.ID, result.Text)
		})
		if err != nil {
			log.Error("Failed to write result into turn", "error", err)
		}
	}

	log.Info("Task completed",
		"success", result.Succeeded(),
		"resultLen", len(result.Text),
		"duration_ms", result.Timestamp.Sub(started).Milliseconds())
	return result, true
}

func (uc *UseCase) execute(ctx context.Context, task entity.Task, turns []entity.Turn) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	contextMap := service.ExtractContext(turns)

	systemPrompt := service.Substitute(task.SystemPrompt, contextMap)
	userPrompt := service.Substitute(task.UserPrompt, contextMap)

	systemPrompt = uc.patterns.Apply(systemPrompt, task.InputRegexList)
	userPrompt = uc.patterns.Apply(userPrompt, task.InputRegexList)

	settings := uc.settings.Settings()
	generated, err := uc.llm.Generate(ctx, output.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Model:        settings.Model,
		APIKey:       settings.APIKey,
	})
	if err != nil {
		return "", err
	}

	generated = uc.patterns.Apply(generated, task.OutputRegexList)
	return uc.patterns.Apply(generated, task.FinalRegexList), nil
}
