package output

import "turn-annotator/internal/domain/entity"

// TranscriptSink is the conversation owned by the host.
type TranscriptSink interface {
	Turns() []entity.Turn
	// UpdateText applies fn to the text of turn index as one atomic read-modify-write.
	UpdateText(index int, fn func(text string) string) error
}
