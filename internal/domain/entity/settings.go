package entity

type Provider string

const (
	ProviderGemini     Provider = "gemini"
	ProviderOpenRouter Provider = "openrouter"
	ProviderOllama     Provider = "ollama"
)

const DefaultModel = "gemini-2.0-flash"

// Settings is the user-owned configuration consumed read-only by the pipeline.
type Settings struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	APIKey   string   `json:"apiKey" yaml:"apiKey"`
	Model    string   `json:"modelName" yaml:"modelName"`
	Provider Provider `json:"provider" yaml:"provider"`
	Tasks    []Task   `json:"tasks" yaml:"tasks"`
}

func DefaultSettings() Settings {
	return Settings{
		Enabled:  true,
		Model:    DefaultModel,
		Provider: ProviderGemini,
		Tasks:    []Task{},
	}
}

// Configured reports whether a generation request can be issued at all.
// Local providers run without a credential.
func (s Settings) Configured() bool {
	if s.Model == "" {
		return false
	}
	return s.APIKey != "" || s.Provider == ProviderOllama
}

func (s Settings) EnabledTasks() []Task {
	result := make([]Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		if t.Enabled {
			result = append(result, t)
		}
	}
	return result
}

func (s Settings) FindTask(id string) (Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}
