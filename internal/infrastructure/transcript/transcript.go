package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"turn-annotator/internal/application/port/output"
	"turn-annotator/internal/domain/entity"
)

var _ output.TranscriptSink = (*Transcript)(nil)

// Transcript is an in-memory conversation. All text mutations go through one lock so concurrent
// writers never interleave their read-modify-write.
type Transcript struct {
	mu    sync.RWMutex
	id    string
	turns []entity.Turn
}

type fileFormat struct {
	ID    string        `json:"id"`
	Turns []entity.Turn `json:"turns"`
}

func New(id string, turns ...entity.Turn) *Transcript {
	t := &Transcript{id: id}
	for _, turn := range turns {
		t.Append(turn.Role, turn.Text)
	}
	return t
}

// Load reads a transcript JSON file. Turn indices are reassigned from file order.
func Load(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse transcript %s: %w", path, err)
	}
	return New(f.ID, f.Turns...), nil
}

func (t *Transcript) Save(path string) error {
	t.mu.RLock()
	data, err := json.MarshalIndent(fileFormat{ID: t.id, Turns: t.turns}, "", "  ")
	t.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

func (t *Transcript) ID() string {
	return t.id
}

func (t *Transcript) Turns() []entity.Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]entity.Turn, len(t.turns))
	copy(result, t.turns)
	return result
}

func (t *Transcript) Turn(index int) (entity.Turn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if index < 0 || index >= len(t.turns) {
		return entity.Turn{}, false
	}
	return t.turns[index], true
}

func (t *Transcript) UpdateText(index int, fn func(text string) string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.turns) {
		return fmt.Errorf("%w: %d", entity.ErrTurnOutOfRange, index)
	}
	t.turns[index].Text = fn(t.turns[index].Text)
	return nil
}

func (t *Transcript) Append(role entity.MessageRole, text string) entity.Turn {
	t.mu.Lock()
	defer t.mu.Unlock()

	turn := entity.Turn{Index: len(t.turns), Role: role, Text: text}
	t.turns = append(t.turns, turn)
	return turn
}

// Replace overwrites a turn's text, as when the host swaps in a regenerated reply.
func (t *Transcript) Replace(index int, text string) error {
	return t.UpdateText(index, func(string) string { return text })
}
