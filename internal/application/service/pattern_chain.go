package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"turn-annotator/internal/application/port/output"
	"turn-annotator/internal/domain/entity"
)

const (
	defaultPatternFlags = "g"
	patternMatchTimeout = 2 * time.Second
)

// PatternChain applies ordered find/replace rules. A rule that fails to compile or to run is
// logged and skipped; it never aborts the chain.
type PatternChain struct {
	logger output.LoggerPort
}

func NewPatternChain(logger output.LoggerPort) *PatternChain {
	return &PatternChain{logger: logger}
}

type compiledRule struct {
	re      *regexp2.Regexp
	replace string
	global  bool
}

// Apply runs rules left to right, each one over the output of the previous.
func (c *PatternChain) Apply(text string, rules []entity.PatternRule) string {
	result := text
	for i, rule := range rules {
		if rule.Find == "" {
			continue
		}

		compiled, err := tryCompile(rule)
		if err != nil {
			c.logger.Warn("Invalid pattern skipped", "index", i, "find", rule.Find, "flags", rule.Flags, "error", err)
			continue
		}

		replaced, err := compiled.apply(result)
		if err != nil {
			c.logger.Warn("Pattern replace failed", "index", i, "find", rule.Find, "error", err)
			continue
		}
		result = replaced
	}
	return result
}

func tryCompile(rule entity.PatternRule) (compiledRule, error) {
	opts, global, dotAll, err := parseFlags(rule.Flags)
	if err != nil {
		return compiledRule{}, err
	}

	pattern := rule.Find
	if dotAll {
		pattern = expandDotAll(pattern)
	}

	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return compiledRule{}, fmt.Errorf("compile %q: %w", rule.Find, err)
	}
	re.MatchTimeout = patternMatchTimeout

	return compiledRule{re: re, replace: namedGroupRefs(rule.Replace), global: global}, nil
}

// expandDotAll rewrites every unescaped dot outside a character class to [\s\S]. regexp2 ignores
// Singleline in ECMAScript mode, so dot-all has to be spelled out in the pattern.
func expandDotAll(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern))

	inClass := false
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '\\' && i+1 < len(pattern):
			b.WriteByte(ch)
			i++
			b.WriteByte(pattern[i])
		case ch == '[' && !inClass:
			inClass = true
			b.WriteByte(ch)
		case ch == ']' && inClass:
			inClass = false
			b.WriteByte(ch)
		case ch == '.' && !inClass:
			b.WriteString(`[\s\S]`)
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// namedGroupRefs turns JavaScript $<name> references into the ${name} form regexp2 expects.
// $$ stays an escaped dollar.
func namedGroupRefs(replace string) string {
	if !strings.Contains(replace, "$<") {
		return replace
	}

	var b strings.Builder
	b.Grow(len(replace))
	for i := 0; i < len(replace); i++ {
		if replace[i] != '$' || i+1 >= len(replace) {
			b.WriteByte(replace[i])
			continue
		}
		switch replace[i+1] {
		case '$':
			b.WriteString("$$")
			i++
		case '<':
			end := strings.IndexByte(replace[i+2:], '>')
			if end <= 0 {
				b.WriteByte('$')
				continue
			}
			b.WriteString("${" + replace[i+2:i+2+end] + "}")
			i += 2 + end
		default:
			b.WriteByte('$')
		}
	}
	return b.String()
}

func (r compiledRule) apply(text string) (string, error) {
	count := 1
	if r.global {
		count = -1
	}
	return r.re.Replace(text, r.replace, -1, count)
}

// parseFlags maps JavaScript-style flags onto regexp2 options. Sticky, indices and unicode-sets
// flags have no effect on a replace and are accepted silently.
func parseFlags(flags string) (opts regexp2.RegexOptions, global, dotAll bool, err error) {
	if flags == "" {
		flags = defaultPatternFlags
	}

	opts = regexp2.ECMAScript
	for _, f := range flags {
		switch f {
		case 'g':
			global = true
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			dotAll = true
		case 'u':
			opts |= regexp2.Unicode
		case 'y', 'd', 'v':
		default:
			return 0, false, false, fmt.Errorf("invalid flag %q in %q", f, flags)
		}
	}
	return opts, global, dotAll, nil
}
