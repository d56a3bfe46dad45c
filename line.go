package littlecheck

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	xunicode "golang.org/x/text/encoding/unicode"
)

// Line is a line of text that remembers where it came from.
// Text includes the trailing newline, if any. Number is 1-based.
// Only Text takes part in matching.
type Line struct {
	Text   string
	Number int
	Source string
}

// IsBlank reports whether the line is empty or contains only whitespace.
func (l Line) IsBlank() bool {
	return strings.TrimSpace(l.Text) == ""
}

// String returns "source:number".
func (l Line) String() string {
	return fmt.Sprintf("%s:%d", l.Source, l.Number)
}

// EscapedText returns the text without its trailing newline and with
// control characters escaped, suitable for display.
func (l Line) EscapedText() string {
	return escapeString(strings.TrimSuffix(l.Text, "\n"))
}

// SplitLines decodes data as UTF-8 and splits it at '\n', keeping the
// delimiter on every line. Invalid UTF-8 is replaced with U+FFFD.
func SplitLines(data []byte, source string) []Line {
	text := decodeUTF8(data)
	var lines []Line
	for n := 1; text != ""; n++ {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			lines = append(lines, Line{Text: text, Number: n, Source: source})
			break
		}
		lines = append(lines, Line{Text: text[:i+1], Number: n, Source: source})
		text = text[i+1:]
	}
	return lines
}

// ReadLines reads all lines from r, tagging them with name.
func ReadLines(r io.Reader, name string) ([]Line, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return SplitLines(data, name), nil
}

func decodeUTF8(data []byte) string {
	out, err := xunicode.UTF8.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(out)
}

var escapes = map[rune]string{
	'\n': `\n`,
	'\\': `\\`,
	'\a': `\a`,
	'\b': `\b`,
	'\f': `\f`,
	'\r': `\r`,
	'\t': `\t`,
	'\v': `\v`,
}

func escapeString(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if e, ok := escapes[r]; ok {
			sb.WriteString(e)
			continue
		}
		if unicode.In(r, unicode.C) {
			fmt.Fprintf(&sb, `\x%02x`, r)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
