package littlecheck

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Failure is a failed TestRun, ready to be reported.
type Failure struct {
	Name     string
	Command  string
	Mismatch *Mismatch
	// Stderr is unmatched stderr output attached to a stdout failure.
	Stderr []Line
	// Signal names the signal that killed the process, if any.
	Signal string
}

// Reporter renders failures as text.
type Reporter struct {
	// Colorize enables ANSI colors.
	Colorize bool
	// Progress omits the file name from the header, since progress output
	// already printed it.
	Progress bool
	// Context is the number of matching rows shown around a divergence.
	Context int
}

const defaultContext = 3

type palette struct {
	red, bold, blue, green *color.Color
}

func (r *Reporter) palette() palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if r.Colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return palette{
		red:   mk(color.FgRed),
		bold:  mk(color.Bold),
		blue:  mk(color.FgBlue),
		green: mk(color.FgGreen),
	}
}

// Write renders f to w.
func (r *Reporter) Write(w io.Writer, f *Failure) error {
	_, err := io.WriteString(w, r.Format(f)+"\n")
	return err
}

// Format renders f.
func (r *Reporter) Format(f *Failure) string {
	p := r.palette()
	var out []string
	add := func(format string, args ...any) {
		out = append(out, fmt.Sprintf(format, args...))
	}

	if r.Progress {
		add("%s:", p.red.Sprint("Failure"))
	} else {
		add("%s in %s:", p.red.Sprint("Failure"), f.Name)
	}
	add("")
	if f.Signal != "" {
		add("  Process was killed by signal %s", p.bold.Sprint(f.Signal))
		add("")
	}

	m := f.Mismatch
	switch {
	case m.Line != nil && m.Check != nil:
		add("  The %s on line %d wants:", m.Check.Kind, m.Check.Line.Number)
		add("    %s", p.bold.Sprint(escapeString(m.Check.Payload)))
		add("")
		add("  which failed to match line %s:", m.Line)
		add("    %s", p.bold.Sprint(m.Line.EscapedText()))
		add("")
	case m.Check != nil:
		add("  The %s on line %d wants:", m.Check.Kind, m.Check.Line.Number)
		add("    %s", p.bold.Sprint(escapeString(m.Check.Payload)))
		add("")
		add("  but there was no remaining output to match.")
		add("")
	default:
		add("  There were no remaining checks left to match %s:", m.Line)
		add("    %s", p.bold.Sprint(m.Line.EscapedText()))
		add("")
	}

	if len(f.Stderr) > 0 {
		span := fmt.Sprint(f.Stderr[0].Number)
		if len(f.Stderr) > 1 {
			span += fmt.Sprintf(":%d", f.Stderr[len(f.Stderr)-1].Number)
		}
		add("  additional output on stderr:%s:", span)
		for _, l := range f.Stderr {
			add("    %s", p.bold.Sprint(l.EscapedText()))
		}
	}

	if len(m.Steps) > 0 {
		add("  Context:")
		out = append(out, r.context(p, m)...)
		add("")
	}

	add("  when running command:")
	add("    %s", f.Command)
	return strings.Join(out, "\n")
}

// context renders m.Steps, eliding matching runs far from a divergence.
func (r *Reporter) context(p palette, m *Mismatch) []string {
	ctx := r.Context
	if ctx <= 0 {
		ctx = defaultContext
	}
	steps := m.Steps
	visible := make([]bool, len(steps))
	for k, s := range steps {
		if s.Relation == RelEqual {
			continue
		}
		for v := max(0, k-ctx); v <= min(len(steps)-1, k+ctx); v++ {
			visible[v] = true
		}
	}

	var (
		out           []string
		lastCheckLine = -1
		noMoreChecks  bool
	)
	for k, s := range steps {
		if !visible[k] {
			if s.Check != nil {
				lastCheckLine = s.Check.Line.Number
			}
			continue
		}
		if k > 0 && !visible[k-1] {
			out = append(out, "    "+elisionMarker(steps[k:]))
		}

		var text string
		if s.Line != nil {
			c := p.bold
			if s.Relation != RelEqual {
				c = p.red
			}
			text = c.Sprint(s.Line.EscapedText())
		}
		var check string
		if s.Check != nil {
			check = fmt.Sprintf("%s on line %d: %s", s.Check.Kind, s.Check.Line.Number,
				p.blue.Sprint(escapeString(s.Check.Payload)))
			lastCheckLine = s.Check.Line.Number
		}

		row := "    " + text
		switch s.Relation {
		case RelReplace:
			row += " <= does not match " + check
		case RelExtraExpected:
			row += " <= nothing to match " + check
		case RelExtraActual:
			switch {
			case !checksAfter(steps[k:]):
				if !noMoreChecks {
					row += " <= no more checks"
					noMoreChecks = true
				}
			case lastCheckLine >= 0:
				row += fmt.Sprintf(" <= no check matches this, previous check on line %d", lastCheckLine)
			default:
				row += " <= no check matches"
			}
		}
		out = append(out, row)
	}
	return out
}

func checksAfter(steps []Step) bool {
	for _, s := range steps {
		if s.Check != nil {
			return true
		}
	}
	return false
}

func elisionMarker(steps []Step) string {
	var line *Line
	var check *Check
	for _, s := range steps {
		if line == nil {
			line = s.Line
		}
		if check == nil {
			check = s.Check
		}
	}
	switch {
	case line != nil && check != nil:
		return fmt.Sprintf("[...] from line %d (%s):", check.Line.Number, line)
	case line != nil:
		return fmt.Sprintf("[...] from %s:", line)
	case check != nil:
		return fmt.Sprintf("[...] from line %d:", check.Line.Number)
	}
	return "[...]"
}

// FormatError renders an error that kept a file from being checked.
func (r *Reporter) FormatError(name string, err error) string {
	p := r.palette()
	if r.Progress {
		return fmt.Sprintf("%s:\n\n  %v", p.red.Sprint("Failure"), err)
	}
	return fmt.Sprintf("%s in %s:\n\n  %v", p.red.Sprint("Failure"), name, err)
}

// Status renders the progress verdict for res, e.g. "ok (12 ms)".
func (r *Reporter) Status(res *FileResult) string {
	p := r.palette()
	c := p.green
	switch res.Status {
	case StatusSkipped:
		c = p.blue
	case StatusFailed:
		c = p.red
	}
	return fmt.Sprintf("%s (%d ms)", c.Sprint(res.Status), res.Duration.Milliseconds())
}
