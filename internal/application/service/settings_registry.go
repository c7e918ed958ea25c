package service

import (
	"sync"

	"turn-annotator/internal/application/port/output"
	"turn-annotator/internal/domain/entity"
)

var _ output.SettingsSource = (*SettingsRegistry)(nil)

// SettingsRegistry is the in-memory copy of the user settings shared by the pipeline and
// whatever edits them (settings file loader, CLI).
type SettingsRegistry struct {
	mu       sync.RWMutex
	settings entity.Settings
}

func NewSettingsRegistry(initial entity.Settings) *SettingsRegistry {
	return &SettingsRegistry{settings: cloneSettings(initial)}
}

func (r *SettingsRegistry) Settings() entity.Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSettings(r.settings)
}

func (r *SettingsRegistry) Replace(settings entity.Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = cloneSettings(settings)
}

// Register adds a task or replaces the one with the same id.
func (r *SettingsRegistry) Register(task entity.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, t := range r.settings.Tasks {
		if t.ID == task.ID {
			r.settings.Tasks[i] = task
			return
		}
	}
	r.settings.Tasks = append(r.settings.Tasks, task)
}

// Remove deletes a task. Its stored results are left to the caller.
func (r *SettingsRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, t := range r.settings.Tasks {
		if t.ID == id {
			r.settings.Tasks = append(r.settings.Tasks[:i], r.settings.Tasks[i+1:]...)
			return true
		}
	}
	return false
}

func cloneSettings(s entity.Settings) entity.Settings {
	tasks := make([]entity.Task, len(s.Tasks))
	for i, t := range s.Tasks {
		t.InputRegexList = cloneRules(t.InputRegexList)
		t.OutputRegexList = cloneRules(t.OutputRegexList)
		t.FinalRegexList = cloneRules(t.FinalRegexList)
		tasks[i] = t
	}
	s.Tasks = tasks
	return s
}

func cloneRules(rules []entity.PatternRule) []entity.PatternRule {
	if rules == nil {
		return nil
	}
	result := make([]entity.PatternRule, len(rules))
	copy(result, rules)
	return result
}
