package littlecheck

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/tools/txtar"
	"mvdan.cc/sh/v3/syntax"
)

// ErrNoRunDirective is returned for a file with no RUN directive and no
// shebang line.
var ErrNoRunDirective = errors.New("no runlines ('# RUN') found")

// RunError reports a RUN or REQUIRES directive that is not a usable shell
// command.
type RunError struct {
	Line Line
	Err  error
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: invalid RUN command: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("%s: invalid RUN command", e.Line)
}

func (e *RunError) Unwrap() error { return e.Err }

// Checker holds the directives parsed from one test file.
type Checker struct {
	Name        string
	RunCmds     []Directive
	RequireCmds []Directive
	OutChecks   []*Check
	ErrChecks   []*Check
	ShebangCmd  string
	Fixtures    []txtar.File
}

// NewChecker builds a Checker from the lines of a file.
func NewChecker(name string, lines []Line) (*Checker, error) {
	c := &Checker{Name: name}
	for _, d := range ExtractDirectives(lines) {
		switch d.Kind {
		case KindRun, KindRequires:
			if err := validateCommand(d); err != nil {
				return nil, err
			}
			if d.Kind == KindRun {
				c.RunCmds = append(c.RunCmds, d)
			} else {
				c.RequireCmds = append(c.RequireCmds, d)
			}
		case KindCheck, KindCheckErr:
			chk, err := CompileCheck(d)
			if err != nil {
				return nil, err
			}
			if d.Kind == KindCheck {
				c.OutChecks = append(c.OutChecks, chk)
			} else {
				c.ErrChecks = append(c.ErrChecks, chk)
			}
		}
	}

	if len(c.RunCmds) == 0 {
		// Fall back to the interpreter named by the shebang.
		if len(lines) == 0 || !strings.HasPrefix(lines[0].Text, "#!") {
			return nil, fmt.Errorf("%s: %w", name, ErrNoRunDirective)
		}
		cmd := strings.TrimSpace(strings.TrimPrefix(lines[0].Text, "#!"))
		if cmd == "" {
			return nil, fmt.Errorf("%s: %w", name, ErrNoRunDirective)
		}
		c.ShebangCmd = cmd
		c.RunCmds = []Directive{{Kind: KindRun, Payload: cmd + " %s", Line: lines[0]}}
	}
	return c, nil
}

// ArchiveExt is the extension of test files parsed as txtar archives.
const ArchiveExt = ".txtar"

// ParseChecker parses data as a test file. A file named *.txtar is an
// archive: its files become fixtures, and only its comment is scanned for
// directives. Any other file is scanned whole.
func ParseChecker(name string, data []byte) (*Checker, error) {
	var fixtures []txtar.File
	if filepath.Ext(name) == ArchiveExt {
		ar := txtar.Parse(data)
		data = ar.Comment
		fixtures = ar.Files
	}
	c, err := NewChecker(name, SplitLines(data, name))
	if err != nil {
		return nil, err
	}
	c.Fixtures = fixtures
	return c, nil
}

// ReadChecker reads and parses the named file.
func ReadChecker(path string) (*Checker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseChecker(path, data)
}

// WriteFixtures writes the checker's fixture files below dir.
func (c *Checker) WriteFixtures(dir string) error {
	for _, f := range c.Fixtures {
		path := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
			return err
		}
		if err := os.WriteFile(path, f.Data, 0o666); err != nil {
			return err
		}
	}
	return nil
}

func validateCommand(d Directive) error {
	f, err := syntax.NewParser().Parse(strings.NewReader(d.Payload), d.Line.Source)
	if err != nil {
		return &RunError{Line: d.Line, Err: err}
	}
	if len(f.Stmts) == 0 {
		return &RunError{Line: d.Line}
	}
	return nil
}
