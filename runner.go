package littlecheck

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// TestingT is the interface common to *testing.T and *testing.B.
type TestingT interface {
	Skip(args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Log(args ...any)
	Logf(format string, args ...any)
	Failed() bool
	Helper()
}

// DefaultPattern is the glob used to find test files in a directory.
const DefaultPattern = "*.sh"

// Params holds parameters for a Runner.
type Params struct {
	// Dir is the directory holding the test files, for Run.
	Dir string

	// Pattern selects test files within Dir. Defaults to DefaultPattern.
	Pattern string

	// Exclude lists files that discovery skips even if Pattern matches.
	Exclude []string

	// Substitutions are added on top of DefaultSubstitutions. Every file
	// also gets %s (its own path) and %t (its scratch directory).
	Substitutions Substitutions

	// Setup is called, if non-nil, before the file's commands run. It may
	// add environment variables and substitutions.
	Setup func(*Env) error

	// TestWork retains scratch directories after the file has run.
	TestWork bool

	// WorkdirRoot is where scratch directories are created. Setting it
	// implies TestWork. If empty, $TMPDIR is used.
	WorkdirRoot string

	// Reporter renders failures for Run. Nil means an uncolored Reporter.
	Reporter *Reporter

	Logger *zap.Logger
}

// An Env holds the environment and substitutions for one test file.
type Env struct {
	// WorkDir is the file's scratch directory, also available as %t.
	WorkDir string
	Values  []string
	Subs    Substitutions
}

// Getenv retrieves the value of the environment variable named by the key.
func (e *Env) Getenv(key string) string {
	for _, kv := range e.Values {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v
		}
	}
	return ""
}

// Setenv sets the value of the environment variable named by the key.
func (e *Env) Setenv(key, value string) {
	entry := key + "=" + value
	for i, kv := range e.Values {
		if k, _, ok := strings.Cut(kv, "="); ok && k == key {
			e.Values[i] = entry
			return
		}
	}
	e.Values = append(e.Values, entry)
}

// Substitute adds a %key substitution.
func (e *Env) Substitute(key, value string) {
	e.Subs[key] = value
}

// Status classifies the result of a file.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "ok"
	case StatusFailed:
		return "FAILED"
	case StatusSkipped:
		return "SKIPPED"
	}
	return "unknown"
}

// FileResult is the outcome of checking one file.
type FileResult struct {
	Name   string
	Status Status
	// Failures holds one entry per RUN line whose output did not align.
	Failures []*Failure
	// Err is a parse error, a setup error, or a *CommandError.
	Err      error
	Duration time.Duration
}

// Summary counts file results.
type Summary struct {
	Total, Passed, Failed, Skipped int
}

// Add counts res.
func (s *Summary) Add(res *FileResult) {
	s.Total++
	switch res.Status {
	case StatusPassed:
		s.Passed++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
}

// ExitCode returns 125 if every file was skipped, 1 if any failed, and 0
// otherwise.
func (s Summary) ExitCode() int {
	switch {
	case s.Skipped > 0 && s.Skipped == s.Total:
		return 125
	case s.Failed > 0:
		return 1
	}
	return 0
}

// A TestRun binds one RUN directive to a Checker.
type TestRun struct {
	Name    string
	Run     Directive
	Command string
	Checker *Checker
}

// NewTestRun expands the RUN directive d of c with subs.
func NewTestRun(name string, d Directive, c *Checker, subs Substitutions) *TestRun {
	return &TestRun{Name: name, Run: d, Command: subs.Expand(d.Payload), Checker: c}
}

// Execute runs the command and evaluates its output. It returns a nil
// Failure if the output aligned.
func (tr *TestRun) Execute(ctx context.Context, ex *Executor) (*Failure, error) {
	res, err := ex.Execute(ctx, tr.Command)
	if err != nil {
		return nil, err
	}
	return tr.Evaluate(res), nil
}

// Evaluate aligns captured output against the checker's checks.
func (tr *TestRun) Evaluate(res *Result) *Failure {
	outFail := Align(res.Stdout, tr.Checker.OutChecks)
	errFail := Align(res.Stderr, tr.Checker.ErrChecks)

	f := &Failure{Name: tr.Name, Command: tr.Command}
	switch {
	case outFail != nil:
		f.Mismatch = outFail
		// Unexpected stderr often explains a stdout failure.
		if errFail != nil && errFail.Line != nil {
			f.Stderr = trimBlankTail(res.Stderr[errFail.Line.Number-1:])
		}
	case errFail != nil:
		f.Mismatch = errFail
	default:
		return nil
	}
	if res.ExitStatus < 0 {
		f.Signal = SignalName(-res.ExitStatus)
	}
	return f
}

func trimBlankTail(lines []Line) []Line {
	for len(lines) > 0 && lines[len(lines)-1].IsBlank() {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Runner checks test files.
type Runner struct {
	params Params
	log    *zap.Logger
}

// NewRunner returns a Runner for p.
func NewRunner(p Params) *Runner {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if p.WorkdirRoot != "" {
		p.TestWork = true
	}
	return &Runner{params: p, log: log}
}

// CheckFile parses and runs the named test file.
func (r *Runner) CheckFile(ctx context.Context, path string) *FileResult {
	start := time.Now()
	res := &FileResult{Name: path}
	defer func() {
		res.Duration = time.Since(start)
		r.log.Debug("file checked",
			zap.String("file", path),
			zap.Stringer("status", res.Status),
			zap.Duration("elapsed", res.Duration))
	}()

	checker, err := ReadChecker(path)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}
	r.run(ctx, checker, res)
	return res
}

func (r *Runner) run(ctx context.Context, checker *Checker, res *FileResult) {
	env, cleanup, err := r.setup(checker)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		return
	}
	defer cleanup()

	ex := &Executor{Env: env.Values, Logger: r.log}

	// REQUIRES lines gate the whole file.
	for _, d := range checker.RequireCmds {
		cmd := env.Subs.Expand(d.Payload)
		out, err := ex.Execute(ctx, cmd)
		var cmdErr *CommandError
		switch {
		case errors.As(err, &cmdErr):
		case err != nil:
			res.Status, res.Err = StatusFailed, err
			return
		case out.ExitStatus <= 0:
			continue
		}
		r.log.Debug("requirement not met", zap.String("file", checker.Name), zap.String("command", cmd))
		res.Status = StatusSkipped
		return
	}

	if checker.ShebangCmd != "" {
		if word := ex.firstWord(checker.ShebangCmd); word != "" && !ex.resolves(word) {
			res.Status, res.Err = StatusFailed, &CommandError{Word: word, Status: statusNotFound}
			return
		}
	}

	for _, d := range checker.RunCmds {
		tr := NewTestRun(checker.Name, d, checker, env.Subs)
		r.log.Debug("running", zap.String("file", checker.Name), zap.String("command", tr.Command))
		f, err := tr.Execute(ctx, ex)
		if err != nil {
			// Nothing to align against; later RUN lines are not attempted.
			res.Status, res.Err = StatusFailed, fmt.Errorf("%s: %w", d.Line, err)
			return
		}
		if f != nil {
			res.Failures = append(res.Failures, f)
		}
	}
	if len(res.Failures) > 0 {
		res.Status = StatusFailed
	}
}

// setup creates the scratch directory, writes fixtures, and prepares the
// environment and substitutions for checker.
func (r *Runner) setup(checker *Checker) (*Env, func(), error) {
	root := os.TempDir()
	if r.params.WorkdirRoot != "" {
		root = r.params.WorkdirRoot
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, nil, err
		}
	}
	workdir, err := os.MkdirTemp(root, "littlecheck-*")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if r.params.TestWork {
			r.log.Info("work directory retained", zap.String("file", checker.Name), zap.String("dir", workdir))
			return
		}
		os.RemoveAll(workdir)
	}

	if err := checker.WriteFixtures(workdir); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("write fixtures: %w", err)
	}

	env := &Env{
		WorkDir: workdir,
		Values:  os.Environ(),
		Subs:    DefaultSubstitutions().Merge(r.params.Substitutions),
	}
	env.Subs["s"] = checker.Name
	env.Subs["t"] = workdir

	if r.params.Setup != nil {
		if err := r.params.Setup(env); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("setup failed: %w", err)
		}
	}
	return env, cleanup, nil
}

// Run runs the test files in p.Dir as subtests of t.
func Run(t *testing.T, p Params) {
	files := globTestFiles(t, p.Dir, p.Pattern, p.Exclude)
	RunFiles(t, p, files...)
}

// RunFiles runs the named test files as subtests of t.
func RunFiles(t *testing.T, p Params, filenames ...string) {
	runner := NewRunner(p)
	reporter := p.Reporter
	if reporter == nil {
		reporter = &Reporter{}
	}
	for _, tc := range buildTestCases(filenames) {
		t.Run(tc.name, func(t *testing.T) {
			res := runner.CheckFile(context.Background(), tc.file)
			switch {
			case res.Status == StatusSkipped:
				t.Skip("REQUIRES not met")
			case res.Err != nil:
				t.Fatal(reporter.FormatError(res.Name, res.Err))
			}
			for _, f := range res.Failures {
				t.Error(reporter.Format(f))
			}
		})
	}
}

type testCase struct {
	name string
	file string
}

func buildTestCases(filenames []string) []testCase {
	tests := make([]testCase, 0, len(filenames))
	for _, filename := range filenames {
		base := filepath.Base(filename)
		tests = append(tests, testCase{strings.TrimSuffix(base, filepath.Ext(base)), filename})
	}
	return tests
}

func globTestFiles(t TestingT, dir, pattern string, exclude []string) []string {
	t.Helper()
	files, err := GlobTestFiles(dir, pattern, exclude...)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no test files found")
	}
	return files
}

// GlobTestFiles returns the regular files in dir matching pattern, or
// DefaultPattern if pattern is empty, leaving out the excluded paths.
func GlobTestFiles(dir, pattern string, exclude ...string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		if abs, err := filepath.Abs(e); err == nil {
			skip[abs] = true
		}
	}
	var files []string
	for _, m := range matches {
		abs, err := filepath.Abs(m)
		if err != nil {
			return nil, err
		}
		if isFile(m) && !skip[abs] {
			files = append(files, m)
		}
	}
	return files, nil
}
