package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gfanton/littlecheck"
	"github.com/mattn/go-isatty"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type config struct {
	substitute  []string
	progress    bool
	forceColor  bool
	verbose     bool
	project     string
	keepWork    bool
	workdirRoot string
}

func (cfg *config) registerFlags(fs *ff.FlagSet) {
	fs.StringListVar(&cfg.substitute, 's', "substitute", "add a substitution for RUN lines, e.g. bash=/bin/bash")
	fs.BoolVar(&cfg.progress, 'p', "progress", "show the files to be checked")
	fs.BoolVar(&cfg.forceColor, 0, "force-color", "use color even if not connected to a terminal")
	fs.BoolVar(&cfg.verbose, 'v', "verbose", "enable verbose output")
	fs.StringVar(&cfg.project, 'C', "project", "", "load "+littlecheck.ProjectFile+" from this directory")
	fs.BoolVar(&cfg.keepWork, 0, "keep-work", "preserve scratch directories after tests")
	fs.StringVar(&cfg.workdirRoot, 'w', "workdir-root", "", "root directory for scratch directories")
}

// exitError carries a non-zero exit status out of the command.
type exitError struct {
	code    int
	summary littlecheck.Summary
}

func (e *exitError) Error() string {
	if e.code == 125 {
		return fmt.Sprintf("all %d files skipped", e.summary.Total)
	}
	return fmt.Sprintf("%d of %d files failed", e.summary.Failed, e.summary.Total)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := NewCommand(os.Stdout)
	err := cmd.ParseAndRun(ctx, os.Args[1:], ff.WithEnvVarPrefix("LITTLECHECK"))
	var exitErr *exitError
	switch {
	case err == nil:
	case errors.Is(err, ff.ErrHelp):
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(cmd))
	case errors.As(err, &exitErr):
		if exitErr.code != 125 {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(exitErr.code)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// NewCommand creates the root ff.Command for the littlecheck CLI. Reports
// are written to stdout.
func NewCommand(stdout io.Writer) *ff.Command {
	var cfg config

	fs := ff.NewFlagSet("littlecheck")
	cfg.registerFlags(fs)

	return &ff.Command{
		Name:      "littlecheck",
		Usage:     "littlecheck [FLAGS] FILE...",
		ShortHelp: "command line tool tester",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			return execChecks(ctx, &cfg, args, stdout)
		},
	}
}

func execChecks(ctx context.Context, cfg *config, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("at least one file required")
	}

	logger, err := newLogger(cfg.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	subs, err := littlecheck.ParseSubstitutions(cfg.substitute)
	if err != nil {
		return err
	}
	params := littlecheck.Params{
		Substitutions: subs,
		TestWork:      cfg.keepWork,
		WorkdirRoot:   cfg.workdirRoot,
		Logger:        logger,
	}

	if cfg.project != "" {
		pc, err := littlecheck.LoadProjectConfig(cfg.project)
		if err != nil {
			return fmt.Errorf("load project config: %w", err)
		}
		cleanup, err := pc.Apply(&params)
		defer cleanup()
		if err != nil {
			return err
		}
	}

	files, err := expandArgs(args, params.Pattern, params.Exclude)
	if err != nil {
		return err
	}

	runner := littlecheck.NewRunner(params)
	reporter := &littlecheck.Reporter{
		Colorize: cfg.forceColor || isTerminal(stdout),
		Progress: cfg.progress,
	}

	var summary littlecheck.Summary
	for _, path := range files {
		if cfg.progress {
			fmt.Fprintf(stdout, "Testing file %s ... ", path)
		}
		res := runner.CheckFile(ctx, path)
		summary.Add(res)

		if res.Err != nil {
			fmt.Fprintln(stdout, reporter.FormatError(res.Name, res.Err))
		}
		for _, f := range res.Failures {
			if err := reporter.Write(stdout, f); err != nil {
				return err
			}
		}
		if cfg.progress && res.Status != littlecheck.StatusFailed {
			fmt.Fprintln(stdout, reporter.Status(res))
		}
	}

	if code := summary.ExitCode(); code != 0 {
		return &exitError{code: code, summary: summary}
	}
	return nil
}

// expandArgs replaces directory arguments with the test files they hold.
func expandArgs(args []string, pattern string, exclude []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		matches, err := littlecheck.GlobTestFiles(arg, pattern, exclude...)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no test files found in %s", arg)
		}
		files = append(files, matches...)
	}
	return files, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.DisableStacktrace = true
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}
