package littlecheck

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

// A Check is a compiled CHECK or CHECKERR directive.
type Check struct {
	Kind    Kind
	Payload string
	Line    Line

	re *regexp2.Regexp
}

// PatternError reports a {{...}} fragment that is not a valid regular
// expression.
type PatternError struct {
	Fragment string
	Line     Line
	Err      error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("%s: invalid regular expression: '%s': %v", e.Line, e.Fragment, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

var (
	bracketRe = regexp.MustCompile(`\{\{(.*?)\}\}`)
	escapeRe  = regexp.MustCompile(`\\(?:[1-9][0-9]*|k<[^>]*>|k'[^']*'|.)`)
)

// stripBackrefs replaces every backreference in frag with an empty group.
// Other escapes are kept, so `\\1` stays a literal backslash and digit.
func stripBackrefs(frag string) string {
	return escapeRe.ReplaceAllStringFunc(frag, func(esc string) string {
		if (esc[1] == 'k' && len(esc) > 2) || (esc[1] >= '1' && esc[1] <= '9') {
			return "(?:)"
		}
		return esc
	})
}

// CompileCheck compiles a CHECK or CHECKERR directive. Text inside {{...}}
// is a regular expression, everything else is literal. The result matches
// a whole line, allowing surrounding whitespace and one trailing newline.
func CompileCheck(d Directive) (*Check, error) {
	var sb strings.Builder
	sb.WriteString(`^\s*`)
	// A fragment may refer to a group of an earlier fragment. It must still
	// compile alone once its backreferences are stripped, and then compile
	// against the pattern built so far.
	last := 0
	for _, loc := range bracketRe.FindAllStringSubmatchIndex(d.Payload, -1) {
		writeGroup(&sb, regexp2.Escape(d.Payload[last:loc[0]]))
		frag := d.Payload[loc[2]:loc[3]]
		if _, err := regexp2.Compile(frag, regexp2.None); err != nil {
			stripped := stripBackrefs(frag)
			if stripped == frag {
				return nil, &PatternError{Fragment: frag, Line: d.Line, Err: err}
			}
			if _, err := regexp2.Compile(stripped, regexp2.None); err != nil {
				return nil, &PatternError{Fragment: frag, Line: d.Line, Err: err}
			}
			if _, err := regexp2.Compile(sb.String()+"(?:"+frag+")", regexp2.None); err != nil {
				return nil, &PatternError{Fragment: frag, Line: d.Line, Err: err}
			}
		}
		writeGroup(&sb, frag)
		last = loc[1]
	}
	writeGroup(&sb, regexp2.Escape(d.Payload[last:]))
	sb.WriteString(`\s*\n?\z`)

	re, err := regexp2.Compile(sb.String(), regexp2.None)
	if err != nil {
		return nil, &PatternError{Fragment: d.Payload, Line: d.Line, Err: err}
	}
	return &Check{Kind: d.Kind, Payload: d.Payload, Line: d.Line, re: re}, nil
}

func writeGroup(sb *strings.Builder, s string) {
	sb.WriteString("(?:")
	sb.WriteString(s)
	sb.WriteString(")")
}

// Match reports whether the check accepts the whole of line's text.
func (c *Check) Match(line Line) bool {
	ok, err := c.re.MatchString(line.Text)
	return err == nil && ok
}

// String returns the pattern the check was compiled to.
func (c *Check) String() string {
	return c.re.String()
}
