package littlecheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Exit statuses POSIX shells use for a missing or non-executable command.
const (
	statusNotExecutable = 126
	statusNotFound      = 127
)

var (
	ErrCommandNotFound = errors.New("command could not be found")
	ErrNotExecutable   = errors.New("command is not executable")
)

// CommandError reports that the command a RUN line starts with does not
// resolve to an executable.
type CommandError struct {
	Word   string
	Status int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%v: %s", e.reason(), e.Word)
}

func (e *CommandError) Is(target error) bool {
	return target == e.reason()
}

func (e *CommandError) reason() error {
	if e.Status == statusNotExecutable {
		return ErrNotExecutable
	}
	return ErrCommandNotFound
}

// Result is the captured outcome of one command. A negative ExitStatus
// means the process was killed by signal -ExitStatus.
type Result struct {
	ExitStatus int
	Stdout     []Line
	Stderr     []Line
}

// Executor runs commands through the platform shell.
type Executor struct {
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is the environment; nil means os.Environ().
	Env []string

	Logger *zap.Logger
}

func (e *Executor) environ() []string {
	if e.Env == nil {
		return os.Environ()
	}
	return e.Env
}

func (e *Executor) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// Execute runs command to completion and captures its output. It fails
// with a *CommandError when the shell reports a missing or non-executable
// command and the command's first word indeed does not resolve.
func (e *Executor) Execute(ctx context.Context, command string) (*Result, error) {
	cmd := shellCommand(ctx, command)
	cmd.Dir = e.Dir
	cmd.Env = e.environ()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	status := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("exec %q: %w", command, err)
		}
		status = exitStatus(exitErr.ProcessState)
	}
	e.logger().Debug("command finished",
		zap.String("command", command),
		zap.Int("status", status),
		zap.Duration("elapsed", time.Since(start)))

	if status == statusNotFound || status == statusNotExecutable {
		if word := e.firstWord(command); word != "" && !e.resolves(word) {
			return nil, &CommandError{Word: word, Status: status}
		}
	}
	return &Result{
		ExitStatus: status,
		Stdout:     SplitLines(stdout.Bytes(), "stdout"),
		Stderr:     SplitLines(stderr.Bytes(), "stderr"),
	}, nil
}

// firstWord returns the name of the first simple command in command,
// skipping variable assignments. It returns "" if there is none.
func (e *Executor) firstWord(command string) string {
	f, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return ""
	}
	cfg := &expand.Config{Env: expand.ListEnviron(e.environ()...)}
	var word string
	syntax.Walk(f, func(node syntax.Node) bool {
		if word != "" {
			return false
		}
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}
		if lit, err := expand.Literal(cfg, call.Args[0]); err == nil {
			word = lit
		}
		return false
	})
	return word
}

// resolves reports whether word names a shell builtin or an executable,
// either as a path or through the executor's PATH.
func (e *Executor) resolves(word string) bool {
	if interp.IsBuiltin(word) {
		return true
	}
	dir := e.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return false
		}
		dir = wd
	}
	_, err := interp.LookPathDir(dir, expand.ListEnviron(e.environ()...), word)
	return err == nil
}
