package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInject_AppendsBlock(t *testing.T) {
	result := Inject("hello", "T", "HELLO")

	assert.Equal(t, "hello\n<!--sub-api:T:start-->\nHELLO\n<!--sub-api:T:end-->", result)
}

func TestInject_ReplacesExistingBlock(t *testing.T) {
	first := Inject("hello", "T", "HELLO")
	second := Inject(first, "T", "HELLO2")

	assert.Equal(t, "hello\n<!--sub-api:T:start-->\nHELLO2\n<!--sub-api:T:end-->", second)
	assert.Equal(t, 1, strings.Count(second, MarkerEnd("T")))
}

func TestInject_KeepsOtherTasks(t *testing.T) {
	text := Inject("hello", "A", "one")
	text = Inject(text, "B", "two")
	text = Inject(text, "A", "three")

	assert.Equal(t, "hello"+
		"\n<!--sub-api:B:start-->\ntwo\n<!--sub-api:B:end-->"+
		"\n<!--sub-api:A:start-->\nthree\n<!--sub-api:A:end-->", text)
}

func TestStrip_Idempotence(t *testing.T) {
	ids := []string{"T", "task_1.2", "a+b*c", "(x)|[y]", `back\slash`, "$^{}?"}
	bases := []string{"", "hello", "line\nline2\n", "pre <!--sub-api:other:start-->\nkeep\n<!--sub-api:other:end-->"}

	for _, id := range ids {
		for _, base := range bases {
			twice := Inject(Inject(base, id, "A"), id, "B")
			assert.Equal(t, Strip(base, id), Strip(twice, id), "id=%q base=%q", id, base)
			assert.Equal(t, 1, strings.Count(twice, MarkerStart(id)), "id=%q", id)
		}
	}
}

func TestStrip_EscapesTaskID(t *testing.T) {
	text := Inject("hello", "aXb", "x")

	// "a.b" would match "aXb" if the dot were not escaped.
	assert.Equal(t, text, Strip(text, "a.b"))
	assert.Equal(t, "hello", Strip(text, "aXb"))
}

func TestStrip_SpacedLegacyMarkers(t *testing.T) {
	text := "hi\n<!-- sub-api:T:start -->\nold\n<!-- sub-api:T:end -->"

	assert.Equal(t, "hi", Strip(text, "T"))
	assert.Equal(t, "hi", StripAll(text))
}

func TestStripAll_RemovesEveryTask(t *testing.T) {
	text := Inject(Inject("body", "A", "1"), "B", "2")

	assert.Equal(t, "body", StripAll(text))
	assert.Equal(t, "no markers", StripAll("no markers"))
}

func TestEscapeTaskID(t *testing.T) {
	assert.Equal(t, `task\.1\+\(x\)`, EscapeTaskID("task.1+(x)"))
	assert.Equal(t, "plain_id", EscapeTaskID("plain_id"))
}
