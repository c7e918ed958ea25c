package service

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"turn-annotator/internal/domain/entity"
)

// ResultStore holds at most one TaskResult per (turn, task). Entries are never pruned on their own.
type ResultStore struct {
	mu      sync.RWMutex
	results map[int]map[string]entity.TaskResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{
		results: make(map[int]map[string]entity.TaskResult),
	}
}

// Put stores r for the turn, replacing any earlier result of the same task.
func (s *ResultStore) Put(turnIndex int, r entity.TaskResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTask, ok := s.results[turnIndex]
	if !ok {
		byTask = make(map[string]entity.TaskResult)
		s.results[turnIndex] = byTask
	}
	byTask[r.TaskID] = r
}

func (s *ResultStore) Get(turnIndex int, taskID string) (entity.TaskResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[turnIndex][taskID]
	return r, ok
}

// ForTurn returns a copy of the results recorded for a turn.
func (s *ResultStore) ForTurn(turnIndex int) map[string]entity.TaskResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTask := s.results[turnIndex]
	result := make(map[string]entity.TaskResult, len(byTask))
	for id, r := range byTask {
		result[id] = r
	}
	return result
}

// TurnIndices returns the turns holding at least one result, ascending.
func (s *ResultStore) TurnIndices() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	indices := make([]int, 0, len(s.results))
	for idx, byTask := range s.results {
		if len(byTask) > 0 {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)
	return indices
}

func (s *ResultStore) DeleteTask(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, byTask := range s.results {
		delete(byTask, taskID)
	}
}

func (s *ResultStore) Snapshot() entity.PersistedResults {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(entity.PersistedResults, len(s.results))
	for idx, byTask := range s.results {
		if len(byTask) == 0 {
			continue
		}
		entries := make(map[string]entity.PersistedResult, len(byTask))
		for id, r := range byTask {
			entries[id] = r.Persisted()
		}
		snapshot[entity.TurnKey(idx)] = entries
	}
	return snapshot
}

// Load replaces the store content with persisted results. Entries under a non-numeric turn key
// are skipped and reported in the returned error.
func (s *ResultStore) Load(persisted entity.PersistedResults) error {
	loaded := make(map[int]map[string]entity.TaskResult, len(persisted))
	var errs []error

	for key, entries := range persisted {
		idx, err := strconv.Atoi(key)
		if err != nil {
			errs = append(errs, fmt.Errorf("turn key %q: %w", key, err))
			continue
		}
		byTask := make(map[string]entity.TaskResult, len(entries))
		for id, p := range entries {
			byTask[id] = p.TaskResult(id)
		}
		loaded[idx] = byTask
	}

	s.mu.Lock()
	s.results = loaded
	s.mu.Unlock()

	return errors.Join(errs...)
}
