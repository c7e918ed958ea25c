package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"turn-annotator/internal/application/port/input"
	"turn-annotator/internal/application/port/output"
	"turn-annotator/internal/application/service"
	"turn-annotator/internal/domain/entity"
)

// Session is per-conversation state. A replaced (swiped or regenerated) turn arrives as a
// "turn added" event right after the "turn replaced" one; that event must not start a batch.
type Session struct {
	mu             sync.Mutex
	replacePending bool
}

func (s *Session) MarkReplaced() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replacePending = true
}

// ConsumeReplaced clears the flag and reports whether it was set.
func (s *Session) ConsumeReplaced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.replacePending
	s.replacePending = false
	return pending
}

func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replacePending = false
}

var _ input.EventHandler = (*EventHandler)(nil)

type EventHandler struct {
	processor  input.TurnProcessor
	transcript output.TranscriptSink
	settings   output.SettingsSource
	display    output.AnnotationDisplay
	session    *Session
	logger     output.LoggerPort
}

func NewEventHandler(
	processor input.TurnProcessor,
	transcript output.TranscriptSink,
	settings output.SettingsSource,
	display output.AnnotationDisplay,
	session *Session,
	logger output.LoggerPort,
) *EventHandler {
	return &EventHandler{
		processor:  processor,
		transcript: transcript,
		settings:   settings,
		display:    display,
		session:    session,
		logger:     logger,
	}
}

// TurnAdded processes a new assistant turn. A negative index means the last turn. The second
// return value is false when no batch was started.
func (h *EventHandler) TurnAdded(ctx context.Context, turnIndex int) (input.BatchResult, bool) {
	if h.session.ConsumeReplaced() {
		h.logger.Debug("Turn added after replace, skipped", "turn", turnIndex)
		return input.BatchResult{}, false
	}
	if !h.settings.Settings().Enabled {
		return input.BatchResult{}, false
	}

	turns := h.transcript.Turns()
	if turnIndex < 0 {
		turnIndex = len(turns) - 1
	}
	if turnIndex < 0 || turnIndex >= len(turns) || !turns[turnIndex].IsAssistant() {
		return input.BatchResult{}, false
	}

	return h.processor.ProcessTurn(ctx, turnIndex), true
}

func (h *EventHandler) TurnReplaced(ctx context.Context, turnIndex int) {
	h.logger.Debug("Turn replaced", "turn", turnIndex)
	h.session.MarkReplaced()
}

func (h *EventHandler) ChatChanged(ctx context.Context) {
	h.session.Reset()
	h.display.RefreshAnnotations(ctx)
}

// ProcessLatest runs every enabled task on the most recent assistant turn.
func (h *EventHandler) ProcessLatest(ctx context.Context) (input.BatchResult, bool) {
	idx, ok := service.LatestAssistantTurn(h.transcript.Turns())
	if !ok {
		return input.BatchResult{}, false
	}
	return h.processor.ProcessTurn(ctx, idx), true
}

// ProcessLatestOne reruns one task on the most recent assistant turn.
func (h *EventHandler) ProcessLatestOne(ctx context.Context, taskID string) (input.BatchResult, bool, error) {
	idx, ok := service.LatestAssistantTurn(h.transcript.Turns())
	if !ok {
		return input.BatchResult{}, false, nil
	}
	batch, err := h.processor.ProcessOne(ctx, taskID, idx)
	return batch, true, err
}

// ProcessAt runs every enabled task on an explicit turn, which may have any role.
func (h *EventHandler) ProcessAt(ctx context.Context, turnIndex int) (input.BatchResult, error) {
	if err := h.checkTurn(turnIndex); err != nil {
		return input.BatchResult{TurnIndex: turnIndex, Skipped: true}, err
	}
	return h.processor.ProcessTurn(ctx, turnIndex), nil
}

// ProcessOneAt reruns one task on an explicit turn.
func (h *EventHandler) ProcessOneAt(ctx context.Context, taskID string, turnIndex int) (input.BatchResult, error) {
	if err := h.checkTurn(turnIndex); err != nil {
		return input.BatchResult{TurnIndex: turnIndex, Skipped: true}, err
	}
	return h.processor.ProcessOne(ctx, taskID, turnIndex)
}

func (h *EventHandler) checkTurn(turnIndex int) error {
	if turnIndex < 0 || turnIndex >= len(h.transcript.Turns()) {
		return fmt.Errorf("%w: %d", entity.ErrTurnOutOfRange, turnIndex)
	}
	return nil
}
