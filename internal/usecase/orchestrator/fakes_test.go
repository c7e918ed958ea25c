package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"turn-annotator/internal/application/port/input"
	"turn-annotator/internal/domain/entity"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	fn    func(task entity.Task, turnIndex int) (entity.TaskResult, bool)
}

func (r *fakeRunner) Run(ctx context.Context, task entity.Task, turnIndex int) (entity.TaskResult, bool) {
	r.mu.Lock()
	r.calls = append(r.calls, task.ID)
	r.mu.Unlock()

	if r.fn != nil {
		return r.fn(task, turnIndex)
	}
	return entity.SuccessResult(task.ID, "ok:"+task.ID, time.Unix(0, 0)), true
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type displayEvent struct {
	kind  string
	turn  int
	tasks []string
}

type fakeDisplay struct {
	mu     sync.Mutex
	events []displayEvent
}

func (d *fakeDisplay) ShowPending(ctx context.Context, turnIndex int, tasks []entity.Task) {
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	d.record(displayEvent{kind: "pending", turn: turnIndex, tasks: ids})
}

func (d *fakeDisplay) RefreshAnnotations(ctx context.Context) {
	d.record(displayEvent{kind: "annotations", turn: -1})
}

func (d *fakeDisplay) RefreshTurnText(ctx context.Context, turnIndex int) {
	d.record(displayEvent{kind: "text", turn: turnIndex})
}

func (d *fakeDisplay) record(e displayEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
}

func (d *fakeDisplay) kinds() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	kinds := make([]string, 0, len(d.events))
	for _, e := range d.events {
		kinds = append(kinds, e.kind)
	}
	return kinds
}

type fakePersister struct {
	mu    sync.Mutex
	saves []entity.PersistedResults
	err   error
}

func (p *fakePersister) Save(ctx context.Context, chatID string, results entity.PersistedResults) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.saves = append(p.saves, results)
	return nil
}

func (p *fakePersister) Load(ctx context.Context, chatID string) (entity.PersistedResults, error) {
	return nil, errors.New("not implemented")
}

func (p *fakePersister) saveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.saves)
}

type fakeProcessor struct {
	mu    sync.Mutex
	turns []int
}

func (p *fakeProcessor) ProcessTurn(ctx context.Context, turnIndex int) input.BatchResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns = append(p.turns, turnIndex)
	return input.BatchResult{TurnIndex: turnIndex}
}

func (p *fakeProcessor) ProcessOne(ctx context.Context, taskID string, turnIndex int) (input.BatchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns = append(p.turns, turnIndex)
	return input.BatchResult{TurnIndex: turnIndex}, nil
}
