package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"turn-annotator/internal/domain/entity"
)

func TestPatternChain_Apply(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		rules []entity.PatternRule
		want  string
	}{
		{
			name:  "no rules",
			text:  "HELLO",
			rules: nil,
			want:  "HELLO",
		},
		{
			name:  "global collapse",
			text:  "HELLO",
			rules: []entity.PatternRule{{Find: "L+", Replace: "L", Flags: "g"}},
			want:  "HELO",
		},
		{
			name:  "empty flags default to global",
			text:  "a-a-a",
			rules: []entity.PatternRule{{Find: "a", Replace: "b"}},
			want:  "b-b-b",
		},
		{
			name:  "non global replaces first only",
			text:  "a-a-a",
			rules: []entity.PatternRule{{Find: "a", Replace: "b", Flags: "i"}},
			want:  "b-a-a",
		},
		{
			name:  "case insensitive",
			text:  "Hello hello",
			rules: []entity.PatternRule{{Find: "hello", Replace: "hi", Flags: "gi"}},
			want:  "hi hi",
		},
		{
			name:  "back references",
			text:  "John Smith",
			rules: []entity.PatternRule{{Find: `(\w+) (\w+)`, Replace: "$2, $1", Flags: "g"}},
			want:  "Smith, John",
		},
		{
			name:  "whole match reference",
			text:  "cat",
			rules: []entity.PatternRule{{Find: "cat", Replace: "[$&]", Flags: "g"}},
			want:  "[cat]",
		},
		{
			name:  "dot all",
			text:  "<a>\nb</a>",
			rules: []entity.PatternRule{{Find: "<a>.*</a>", Replace: "", Flags: "gs"}},
			want:  "",
		},
		{
			name:  "dot all keeps dots in classes literal",
			text:  "a.b\na\nb",
			rules: []entity.PatternRule{{Find: `a[.]b|a.b`, Replace: "X", Flags: "gs"}},
			want:  "X\nX",
		},
		{
			name:  "dot all keeps escaped dots literal",
			text:  "1.5 1\n5",
			rules: []entity.PatternRule{{Find: `1\.5`, Replace: "X", Flags: "gs"}},
			want:  "X 1\n5",
		},
		{
			name:  "dot without s stops at newline",
			text:  "<a>\nb</a>",
			rules: []entity.PatternRule{{Find: "<a>.*</a>", Replace: "", Flags: "g"}},
			want:  "<a>\nb</a>",
		},
		{
			name:  "named group references",
			text:  "John Smith",
			rules: []entity.PatternRule{{Find: `(?<first>\w+) (?<last>\w+)`, Replace: "$<last> $<first>", Flags: "g"}},
			want:  "Smith John",
		},
		{
			name:  "escaped dollar before angle bracket",
			text:  "cost",
			rules: []entity.PatternRule{{Find: "cost", Replace: "$$<n>", Flags: "g"}},
			want:  "$<n>",
		},
		{
			name:  "multiline anchors",
			text:  "x\ny",
			rules: []entity.PatternRule{{Find: "^", Replace: "> ", Flags: "gm"}},
			want:  "> x\n> y",
		},
		{
			name: "rules compose in order",
			text: "abc",
			rules: []entity.PatternRule{
				{Find: "a", Replace: "b", Flags: "g"},
				{Find: "b", Replace: "c", Flags: "g"},
			},
			want: "ccc",
		},
		{
			name:  "empty find skipped",
			text:  "abc",
			rules: []entity.PatternRule{{Find: "", Replace: "x", Flags: "g"}},
			want:  "abc",
		},
		{
			name:  "lookahead",
			text:  "price: 10USD 20EUR",
			rules: []entity.PatternRule{{Find: `\d+(?=USD)`, Replace: "N", Flags: "g"}},
			want:  "price: NUSD 20EUR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := NewPatternChain(&recordingLogger{})
			assert.Equal(t, tt.want, chain.Apply(tt.text, tt.rules))
		})
	}
}

func TestPatternChain_Composition(t *testing.T) {
	chain := NewPatternChain(&recordingLogger{})
	r1 := entity.PatternRule{Find: `\s+`, Replace: " ", Flags: "g"}
	r2 := entity.PatternRule{Find: `(\w+)`, Replace: "<$1>", Flags: "g"}
	text := "one  two\n\tthree"

	assert.Equal(t,
		chain.Apply(chain.Apply(text, []entity.PatternRule{r1}), []entity.PatternRule{r2}),
		chain.Apply(text, []entity.PatternRule{r1, r2}),
	)
}

func TestPatternChain_InvalidRuleSkipped(t *testing.T) {
	valid := []entity.PatternRule{
		{Find: "a", Replace: "b", Flags: "g"},
		{Find: "c", Replace: "d", Flags: "g"},
	}
	invalidPatterns := []entity.PatternRule{
		{Find: "(unclosed", Replace: "x", Flags: "g"},
		{Find: "[z-a]", Replace: "x", Flags: "g"},
		{Find: "a", Replace: "x", Flags: "gq"},
	}

	for _, invalid := range invalidPatterns {
		log := &recordingLogger{}
		chain := NewPatternChain(log)
		withInvalid := []entity.PatternRule{valid[0], invalid, valid[1]}

		assert.Equal(t, chain.Apply("abcabc", valid), chain.Apply("abcabc", withInvalid), "rule %+v", invalid)
		assert.Equal(t, 1, log.warnCount())
	}
}

func TestParseFlags(t *testing.T) {
	_, global, dotAll, err := parseFlags("")
	assert.NoError(t, err)
	assert.True(t, global)
	assert.False(t, dotAll)

	_, global, dotAll, err = parseFlags("ims")
	assert.NoError(t, err)
	assert.False(t, global)
	assert.True(t, dotAll)

	_, _, _, err = parseFlags("gx")
	assert.Error(t, err)
}

func TestExpandDotAll(t *testing.T) {
	tests := map[string]string{
		"a.b":     `a[\s\S]b`,
		`a\.b`:    `a\.b`,
		"[.]":     "[.]",
		`[\].].`:  `[\].][\s\S]`,
		"(.*)":    `([\s\S]*)`,
		"no dots": "no dots",
	}
	for in, want := range tests {
		assert.Equal(t, want, expandDotAll(in), in)
	}
}
