package entity

import (
	"strconv"
	"time"
)

// PersistedResult is the stored form of a TaskResult: exactly one of Result or Error is set.
type PersistedResult struct {
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// PersistedResults maps turn index -> task id -> result, keyed by strings as in chat metadata.
type PersistedResults map[string]map[string]PersistedResult

func (r TaskResult) Persisted() PersistedResult {
	if r.Succeeded() {
		return PersistedResult{Result: r.Text, Timestamp: r.Timestamp.UnixMilli()}
	}
	return PersistedResult{Error: r.ErrorMessage, Timestamp: r.Timestamp.UnixMilli()}
}

func (p PersistedResult) TaskResult(taskID string) TaskResult {
	at := time.UnixMilli(p.Timestamp)
	if p.Error != "" {
		return TaskResult{TaskID: taskID, Status: TaskStatusFailure, ErrorMessage: p.Error, Timestamp: at}
	}
	return TaskResult{TaskID: taskID, Status: TaskStatusSuccess, Text: p.Result, Timestamp: at}
}

func TurnKey(index int) string {
	return strconv.Itoa(index)
}
