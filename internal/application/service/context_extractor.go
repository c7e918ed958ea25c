package service

import (
	"strconv"

	"turn-annotator/internal/domain/entity"
)

const (
	userKeyPrefix      = "user"
	assistantKeyPrefix = "char"
)

// ContextMap maps recency keys (user1, char1, ...) to cleaned turn text.
type ContextMap map[string]string

// ExtractContext numbers user and assistant turns independently, most recent = 1.
// System turns are skipped and every marker block is removed from the text.
func ExtractContext(turns []entity.Turn) ContextMap {
	ctx := make(ContextMap, len(turns))
	userN, assistantN := 0, 0

	for i := len(turns) - 1; i >= 0; i-- {
		turn := turns[i]
		if turn.IsSystem() {
			continue
		}

		clean := StripAll(turn.Text)
		if turn.IsUser() {
			userN++
			ctx[userKeyPrefix+strconv.Itoa(userN)] = clean
		} else {
			assistantN++
			ctx[assistantKeyPrefix+strconv.Itoa(assistantN)] = clean
		}
	}
	return ctx
}

// LatestAssistantTurn returns the index of the most recent assistant turn.
func LatestAssistantTurn(turns []entity.Turn) (int, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].IsAssistant() {
			return i, true
		}
	}
	return 0, false
}
