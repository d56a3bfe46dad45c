package littlecheck

import (
	"regexp"
	"strings"
)

// Kind identifies a directive.
type Kind int

const (
	KindRun Kind = iota
	KindRequires
	KindCheck
	KindCheckErr
)

var kindNames = [...]string{
	KindRun:      "RUN",
	KindRequires: "REQUIRES",
	KindCheck:    "CHECK",
	KindCheckErr: "CHECKERR",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "UNKNOWN"
	}
	return kindNames[k]
}

// A Directive is a "# KEYWORD: payload" line found in a test file.
// Payload is the unexpanded text after the keyword; Line is the file line
// it was found on.
type Directive struct {
	Kind    Kind
	Payload string
	Line    Line
}

// Directives may start a line, or follow code on a line that does not
// itself start with '#'.
const commentPrefix = `^(?:[^#].*)?#\s*`

var directivePatterns = [...]struct {
	kind Kind
	re   *regexp.Regexp
}{
	{KindRun, regexp.MustCompile(commentPrefix + `RUN:\s+(.*)$`)},
	{KindRequires, regexp.MustCompile(commentPrefix + `REQUIRES:\s+(.*)$`)},
	{KindCheck, regexp.MustCompile(commentPrefix + `CHECK:\s+(.*)$`)},
	{KindCheckErr, regexp.MustCompile(commentPrefix + `CHECKERR:\s+(.*)$`)},
}

// ExtractDirectives scans lines for directives and returns them in file
// order.
func ExtractDirectives(lines []Line) []Directive {
	var out []Directive
	for _, line := range lines {
		text := strings.TrimSuffix(line.Text, "\n")
		for _, dp := range directivePatterns {
			m := dp.re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			out = append(out, Directive{Kind: dp.kind, Payload: m[1], Line: line})
		}
	}
	return out
}
