package output

import "turn-annotator/internal/domain/entity"

type ConfigPort interface {
	Get(key string) string
	MustGet(key string) string
	GetWithDefault(key string, defaultValue string) string
	GetBool(key string, defaultValue bool) bool
	GetInt(key string, defaultValue int) int
}

// SettingsSource yields the current user settings. Implementations may reload them at any time.
type SettingsSource interface {
	Settings() entity.Settings
}
