package display

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fatih/color"

	"turn-annotator/internal/application/port/output"
	"turn-annotator/internal/application/service"
	"turn-annotator/internal/domain/entity"
)

// RenderLimit is how many of the most recent annotated turns are shown.
const RenderLimit = 7

const (
	maxTurnPreview = 300
	maxResultLen   = 2000
)

var _ output.AnnotationDisplay = (*ConsoleDisplay)(nil)

// ConsoleDisplay prints task results next to the turns they belong to. Tasks that write into the
// turn itself are not rendered separately.
type ConsoleDisplay struct {
	out        io.Writer
	results    *service.ResultStore
	settings   output.SettingsSource
	transcript output.TranscriptSink

	mu      sync.Mutex
	header  *color.Color
	pending *color.Color
	success *color.Color
	failure *color.Color
	dim     *color.Color
}

func NewConsoleDisplay(out io.Writer, results *service.ResultStore, settings output.SettingsSource, transcript output.TranscriptSink) *ConsoleDisplay {
	return &ConsoleDisplay{
		out:        out,
		results:    results,
		settings:   settings,
		transcript: transcript,
		header:     color.New(color.FgCyan, color.Bold),
		pending:    color.New(color.FgYellow),
		success:    color.New(color.FgGreen),
		failure:    color.New(color.FgRed),
		dim:        color.New(color.Faint),
	}
}

func (d *ConsoleDisplay) ShowPending(ctx context.Context, turnIndex int, tasks []entity.Task) {
	names := make([]string, 0, len(tasks))
	for _, t := range tasks {
		names = append(names, t.Name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending.Fprintf(d.out, "\n⏳ Turn %d: running %s\n", turnIndex, strings.Join(names, ", "))
}

// RefreshAnnotations renders the results of the most recent assistant turns. Results on turns
// that no longer exist or belong to other roles are kept in the store but never shown.
func (d *ConsoleDisplay) RefreshAnnotations(ctx context.Context) {
	settings := d.settings.Settings()
	if !settings.Enabled {
		return
	}
	tasks := displayedTasks(settings.Tasks)
	if len(tasks) == 0 {
		return
	}

	turns := d.transcript.Turns()
	indices := renderableTurns(d.results.TurnIndices(), turns)
	if len(indices) > RenderLimit {
		indices = indices[len(indices)-RenderLimit:]
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, idx := range indices {
		results := d.results.ForTurn(idx)

		d.header.Fprintf(d.out, "\n━━━ Turn %d ━━━\n", idx)
		d.renderResults(tasks, results, entity.RenderAbove)
		d.dim.Fprintln(d.out, truncate(service.StripAll(turns[idx].Text), maxTurnPreview))
		d.renderResults(tasks, results, entity.RenderBelow)
	}
}

func (d *ConsoleDisplay) RefreshTurnText(ctx context.Context, turnIndex int) {
	turns := d.transcript.Turns()
	if turnIndex < 0 || turnIndex >= len(turns) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.header.Fprintf(d.out, "\n━━━ Turn %d (updated) ━━━\n", turnIndex)
	fmt.Fprintln(d.out, turns[turnIndex].Text)
}

func (d *ConsoleDisplay) renderResults(tasks []entity.Task, results map[string]entity.TaskResult, position entity.RenderPosition) {
	for _, task := range tasks {
		if renderPosition(task) != position {
			continue
		}
		r, ok := results[task.ID]
		if !ok {
			continue
		}
		if r.Succeeded() {
			d.success.Fprintf(d.out, "✓ %s\n", task.Name)
			fmt.Fprintln(d.out, truncate(r.Text, maxResultLen))
		} else {
			d.failure.Fprintf(d.out, "❌ %s: %s\n", task.Name, r.ErrorMessage)
		}
	}
}

func renderableTurns(indices []int, turns []entity.Turn) []int {
	kept := make([]int, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(turns) && turns[idx].IsAssistant() {
			kept = append(kept, idx)
		}
	}
	return kept
}

func displayedTasks(tasks []entity.Task) []entity.Task {
	result := make([]entity.Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.WriteToContext {
			result = append(result, t)
		}
	}
	return result
}

func renderPosition(t entity.Task) entity.RenderPosition {
	if t.RenderPosition == entity.RenderAbove {
		return entity.RenderAbove
	}
	return entity.RenderBelow
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
