package littlecheck

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Substitutions maps %name tokens in RUN and REQUIRES lines to values.
type Substitutions map[string]string

// DefaultSubstitutions returns the substitutions every file starts with.
func DefaultSubstitutions() Substitutions {
	return Substitutions{"%": "%"}
}

var tokenRe = regexp.MustCompile(`%(%|[a-zA-Z0-9_-]+)`)

// Expand replaces every %name token in template. The longest key that
// prefixes name wins, and the rest of name is kept after the value. The
// result is shell-quoted as one word. Unknown tokens expand to name, so
// the shell looks them up on PATH. %% always expands to %.
func (s Substitutions) Expand(template string) string {
	keys := s.orderedKeys()
	return tokenRe.ReplaceAllStringFunc(template, func(tok string) string {
		name := tok[1:]
		if name == "%" {
			return "%"
		}
		for _, key := range keys {
			if rest, ok := strings.CutPrefix(name, key); ok {
				return shellQuote(s[key] + rest)
			}
		}
		return name
	})
}

// orderedKeys returns keys longest first; equal lengths sort lexically.
func (s Substitutions) orderedKeys() []string {
	keys := slices.Collect(maps.Keys(s))
	slices.SortFunc(keys, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	return keys
}

// Clone returns a copy of s.
func (s Substitutions) Clone() Substitutions {
	out := make(Substitutions, len(s))
	maps.Copy(out, s)
	return out
}

// Merge returns a copy of s with the entries of other added on top.
func (s Substitutions) Merge(other map[string]string) Substitutions {
	out := s.Clone()
	maps.Copy(out, other)
	return out
}

func shellQuote(s string) string {
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		// Bytes POSIX quoting rejects (other than NUL) survive single quotes.
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return q
}

// ParseSubstitutions parses "key=value" pairs.
func ParseSubstitutions(pairs []string) (Substitutions, error) {
	out := make(Substitutions, len(pairs))
	for _, pair := range pairs {
		key, val, ok := strings.Cut(pair, "=")
		switch {
		case !ok:
			return nil, fmt.Errorf("invalid substitution %s: equal sign not found", pair)
		case key == "":
			return nil, fmt.Errorf("invalid substitution %s: empty key", pair)
		case val == "":
			return nil, fmt.Errorf("invalid substitution %s: empty value", pair)
		}
		out[key] = val
	}
	return out, nil
}
