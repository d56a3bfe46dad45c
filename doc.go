/*
Package littlecheck runs command line tests described by directives
embedded in the test files themselves.

A test file is any text file. Lines containing a "# KEYWORD: payload"
comment are directives; a directive may also follow code on the same line,
as long as the line does not start with '#':

	# RUN: %fish %s
	# REQUIRES: command -v git
	echo hello # CHECK: hello
	# CHECKERR: warning: {{.*}}

# Directives

	RUN:       a shell command to run; one TestRun per RUN line
	REQUIRES:  a gating command; if it exits non-zero the file is skipped
	CHECK:     the next expected line of standard output
	CHECKERR:  the next expected line of standard error

If a file has no RUN line but starts with "#!interpreter", it runs as
"interpreter %s".

# Checks

Text inside {{...}} is a regular expression; everything else is compared
literally. A check must match a whole output line, ignoring surrounding
whitespace:

	# CHECK: value={{[0-9]+}}

Blank output lines that no check claims are skipped. When output and checks
diverge, the failure report quotes the first bad pair and shows an aligned
context of both sequences.

# Substitutions

RUN and REQUIRES lines expand %name tokens before they are handed to the
shell. %s is the test file, %t its scratch directory, and %% a literal %.
Further substitutions come from [Params].Substitutions, the -s flag of the
command, or the [substitutions] table of littlecheck.toml. The longest
matching key wins, so with keys "fish" and "fish_indent", %fish_indent
expands to the latter. Values are shell-quoted. Unknown tokens expand to
their name, which the shell then looks up on PATH.

# Fixtures

A test file named *.txtar is a txtar archive. Its files are written to the
scratch directory before the commands run, and only the archive comment is
scanned for directives:

	# RUN: cat %t/input.txt
	# CHECK: hello world

	-- input.txt --
	hello world

# Go tests

To check a directory of files from a Go test, call [Run]:

	func TestCLI(t *testing.T) {
		littlecheck.Run(t, littlecheck.Params{
			Dir:           "testdata",
			Substitutions: littlecheck.Substitutions{"prog": binPath},
		})
	}

Each file runs as a separate subtest.

# Command-line Tool

	littlecheck tests/*.sh
	littlecheck -s fish=build/fish -p tests/
	littlecheck -C tests tests/

The exit status is 0 if every file passed, 1 if any failed, and 125 if
every file was skipped. Environment variables with the LITTLECHECK_ prefix
set flags.
*/
package littlecheck
