package prompts

import (
	_ "embed"

	"turn-annotator/internal/domain/entity"
)

//go:embed system.txt
var DefaultSystemPrompt string

//go:embed user.txt
var DefaultUserPrompt string

// NewTask returns a task preloaded with the default prompt templates.
func NewTask() entity.Task {
	return entity.NewTask(DefaultSystemPrompt, DefaultUserPrompt)
}
