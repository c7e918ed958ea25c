package entity

import (
	"time"

	"github.com/google/uuid"
)

type RenderPosition string

const (
	RenderAbove RenderPosition = "above"
	RenderBelow RenderPosition = "below"
)

// PatternRule is one find/replace step. Flags follow the JavaScript convention (g, i, m, s) and
// Replace accepts $1, $& and $<name> references.
type PatternRule struct {
	Find    string `json:"find" yaml:"find"`
	Replace string `json:"replace" yaml:"replace"`
	Flags   string `json:"flags" yaml:"flags"`
}

type Task struct {
	ID              string         `json:"id" yaml:"id"`
	Name            string         `json:"name" yaml:"name"`
	Enabled         bool           `json:"enabled" yaml:"enabled"`
	SystemPrompt    string         `json:"systemPrompt" yaml:"systemPrompt"`
	UserPrompt      string         `json:"userPrompt" yaml:"userPrompt"`
	InputRegexList  []PatternRule  `json:"inputRegexList" yaml:"inputRegexList"`
	OutputRegexList []PatternRule  `json:"outputRegexList" yaml:"outputRegexList"`
	FinalRegexList  []PatternRule  `json:"finalRegexList" yaml:"finalRegexList"`
	RenderPosition  RenderPosition `json:"renderPosition" yaml:"renderPosition"`
	WriteToContext  bool           `json:"writeToContext" yaml:"writeToContext"`
}

const DefaultTaskName = "New task"

// NewTask returns an enabled task with a fresh id and the given prompt templates.
func NewTask(systemPrompt, userPrompt string) Task {
	return Task{
		ID:              "task_" + uuid.NewString(),
		Name:            DefaultTaskName,
		Enabled:         true,
		SystemPrompt:    systemPrompt,
		UserPrompt:      userPrompt,
		InputRegexList:  []PatternRule{},
		OutputRegexList: []PatternRule{},
		FinalRegexList:  []PatternRule{},
		RenderPosition:  RenderBelow,
	}
}

type TaskStatus string

const (
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusFailure TaskStatus = "failure"
)

// TaskResult is the outcome of one task for one turn.
type TaskResult struct {
	TaskID       string
	Status       TaskStatus
	Text         string
	ErrorMessage string
	Timestamp    time.Time
}

func SuccessResult(taskID, text string, at time.Time) TaskResult {
	return TaskResult{
		TaskID:    taskID,
		Status:    TaskStatusSuccess,
		Text:      text,
		Timestamp: at,
	}
}

func FailureResult(taskID string, err error, at time.Time) TaskResult {
	return TaskResult{
		TaskID:       taskID,
		Status:       TaskStatusFailure,
		ErrorMessage: err.Error(),
		Timestamp:    at,
	}
}

func (r TaskResult) Succeeded() bool {
	return r.Status == TaskStatusSuccess
}
