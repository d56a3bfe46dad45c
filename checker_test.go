package littlecheck

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) (*Checker, error) {
	t.Helper()
	return ParseChecker("t.sh", []byte(src))
}

func TestParseChecker(t *testing.T) {
	c, err := parse(t, "# RUN: %prog one\n"+
		"# RUN: %prog two\n"+
		"# REQUIRES: command -v prog\n"+
		"# CHECK: out {{\\d+}}\n"+
		"# CHECKERR: err\n"+
		"# CHECK: tail\n")
	require.NoError(t, err)

	require.Len(t, c.RunCmds, 2)
	assert.Equal(t, "%prog one", c.RunCmds[0].Payload)
	assert.Equal(t, "%prog two", c.RunCmds[1].Payload)
	require.Len(t, c.RequireCmds, 1)
	require.Len(t, c.OutChecks, 2)
	assert.Equal(t, 4, c.OutChecks[0].Line.Number)
	assert.Equal(t, 6, c.OutChecks[1].Line.Number)
	require.Len(t, c.ErrChecks, 1)
	assert.Equal(t, KindCheckErr, c.ErrChecks[0].Kind)
	assert.Empty(t, c.ShebangCmd)
	assert.Empty(t, c.Fixtures)
}

func TestParseCheckerShebang(t *testing.T) {
	c, err := parse(t, "#!/usr/bin/env python3\nprint('hi') # CHECK: hi\n")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/env python3", c.ShebangCmd)
	require.Len(t, c.RunCmds, 1)
	assert.Equal(t, "/usr/bin/env python3 %s", c.RunCmds[0].Payload)
	assert.Len(t, c.OutChecks, 1)
}

func TestParseCheckerRunWinsOverShebang(t *testing.T) {
	c, err := parse(t, "#!/bin/sh\n# RUN: echo hi\n")
	require.NoError(t, err)
	assert.Empty(t, c.ShebangCmd)
	require.Len(t, c.RunCmds, 1)
	assert.Equal(t, "echo hi", c.RunCmds[0].Payload)
}

func TestParseCheckerNoRunDirective(t *testing.T) {
	for _, src := range []string{"", "echo hi\n# CHECK: hi\n", "#!\n# CHECK: x\n"} {
		_, err := parse(t, src)
		assert.True(t, errors.Is(err, ErrNoRunDirective), "src %q: got %v", src, err)
	}
}

func TestParseCheckerInvalidRun(t *testing.T) {
	_, err := parse(t, "\n# RUN: echo 'unterminated\n")
	var rerr *RunError
	require.True(t, errors.As(err, &rerr), "got %v", err)
	assert.Equal(t, 2, rerr.Line.Number)

	_, err = parse(t, "# REQUIRES: if then\n# RUN: true\n")
	require.True(t, errors.As(err, &rerr), "got %v", err)
	assert.Equal(t, 1, rerr.Line.Number)
}

func TestParseCheckerInvalidPattern(t *testing.T) {
	_, err := parse(t, "# RUN: true\n# CHECK: {{(}}\n")
	var perr *PatternError
	require.True(t, errors.As(err, &perr), "got %v", err)
	assert.Equal(t, "(", perr.Fragment)
	assert.Equal(t, 2, perr.Line.Number)
}

func TestParseCheckerFixtures(t *testing.T) {
	src := "# RUN: cat %t/in.txt\n" +
		"# CHECK: hello\n" +
		"-- in.txt --\n" +
		"hello\n" +
		"# CHECK: not a directive\n" +
		"-- sub/dir/data.txt --\n" +
		"nested\n"
	c, err := ParseChecker("t.txtar", []byte(src))
	require.NoError(t, err)
	assert.Len(t, c.OutChecks, 1)
	require.Len(t, c.Fixtures, 2)

	dir := t.TempDir()
	require.NoError(t, c.WriteFixtures(dir))
	got, err := os.ReadFile(filepath.Join(dir, "sub", "dir", "data.txt"))
	require.NoError(t, err)
	assert.Equal(t, "nested\n", string(got))
}

func TestParseCheckerArchiveMarkersInScript(t *testing.T) {
	// Outside a .txtar file, marker-like lines are ordinary text.
	src := "#!/bin/sh\n" +
		"cat <<EOF\n" +
		"-- a --\n" +
		"EOF\n" +
		"echo done\n" +
		"# CHECK: -- a --\n" +
		"# CHECK: done\n"
	c, err := parse(t, src)
	require.NoError(t, err)
	assert.Empty(t, c.Fixtures)
	require.Len(t, c.OutChecks, 2)
	assert.Equal(t, "-- a --", c.OutChecks[0].Payload)
	assert.True(t, c.OutChecks[0].Match(Line{Text: "-- a --\n"}))
}

func TestReadChecker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.sh")
	writeFile(t, path, []byte("# RUN: true\n"), 0o644)
	c, err := ReadChecker(path)
	require.NoError(t, err)
	assert.Equal(t, path, c.Name)

	_, err = ReadChecker(filepath.Join(t.TempDir(), "missing.sh"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
