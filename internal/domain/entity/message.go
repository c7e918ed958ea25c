package entity

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Turn is one message of the transcript. Index is its stable position in the conversation.
type Turn struct {
	Index int         `json:"index"`
	Role  MessageRole `json:"role"`
	Text  string      `json:"text"`
}

func (t Turn) IsSystem() bool {
	return t.Role == RoleSystem
}

func (t Turn) IsUser() bool {
	return t.Role == RoleUser
}

// IsAssistant reports whether annotation tasks should run for this turn.
func (t Turn) IsAssistant() bool {
	return t.Role == RoleAssistant
}
