package output

import (
	"context"

	"turn-annotator/internal/domain/entity"
)

type ResultPersister interface {
	Save(ctx context.Context, chatID string, results entity.PersistedResults) error
	Load(ctx context.Context, chatID string) (entity.PersistedResults, error)
}
