package service

import (
	"regexp"
	"strings"
)

const markerNamespace = "sub-api"

// anyMarkerBlock also accepts the spaced "<!-- sub-api:id:start -->" variant written by older hosts.
var anyMarkerBlock = regexp.MustCompile(`\n?<!-- ?sub-api:[^\n]+?:start ?-->[\s\S]*?<!-- ?sub-api:[^\n]+?:end ?-->`)

func MarkerStart(taskID string) string {
	return "\n<!--" + markerNamespace + ":" + taskID + ":start-->"
}

func MarkerEnd(taskID string) string {
	return "<!--" + markerNamespace + ":" + taskID + ":end-->"
}

// EscapeTaskID quotes every character of a task id that is meaningful to the pattern engine.
func EscapeTaskID(taskID string) string {
	return regexp.QuoteMeta(taskID)
}

func taskMarkerBlock(taskID string) *regexp.Regexp {
	id := EscapeTaskID(taskID)
	return regexp.MustCompile(`\n?<!-- ?` + markerNamespace + `:` + id + `:start ?-->[\s\S]*?<!-- ?` +
		markerNamespace + `:` + id + `:end ?-->`)
}

// Inject replaces the block for taskID with a new one holding content, appended at the end of text.
func Inject(text, taskID, content string) string {
	var b strings.Builder
	b.WriteString(Strip(text, taskID))
	b.WriteString(MarkerStart(taskID))
	b.WriteString("\n")
	b.WriteString(content)
	b.WriteString("\n")
	b.WriteString(MarkerEnd(taskID))
	return b.String()
}

// Strip removes every block written for taskID.
func Strip(text, taskID string) string {
	if !strings.Contains(text, markerNamespace+":") {
		return text
	}
	return taskMarkerBlock(taskID).ReplaceAllLiteralString(text, "")
}

// StripAll removes the blocks of all tasks.
func StripAll(text string) string {
	if !strings.Contains(text, markerNamespace+":") {
		return text
	}
	return anyMarkerBlock.ReplaceAllLiteralString(text, "")
}
