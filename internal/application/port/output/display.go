package output

import (
	"context"

	"turn-annotator/internal/domain/entity"
)

// AnnotationDisplay renders results out of band. It owns all markup concerns.
type AnnotationDisplay interface {
	ShowPending(ctx context.Context, turnIndex int, tasks []entity.Task)
	RefreshAnnotations(ctx context.Context)
	RefreshTurnText(ctx context.Context, turnIndex int)
}
