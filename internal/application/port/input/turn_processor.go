package input

import (
	"context"

	"turn-annotator/internal/domain/entity"
)

// TurnProcessor runs annotation tasks for a turn.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, turnIndex int) BatchResult
	ProcessOne(ctx context.Context, taskID string, turnIndex int) (BatchResult, error)
}

// BatchResult describes one orchestrated batch. Skipped is set when the batch was a no-op.
type BatchResult struct {
	TurnIndex int
	Results   []entity.TaskResult
	Skipped   bool
}

// TaskRunner executes one task end to end. ok is false when the turn does not exist.
type TaskRunner interface {
	Run(ctx context.Context, task entity.Task, turnIndex int) (result entity.TaskResult, ok bool)
}

// EventHandler receives host transcript events.
type EventHandler interface {
	TurnAdded(ctx context.Context, turnIndex int) (BatchResult, bool)
	TurnReplaced(ctx context.Context, turnIndex int)
	ChatChanged(ctx context.Context)
}
