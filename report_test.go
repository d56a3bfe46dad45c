package littlecheck

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evaluate parses src, runs nothing, and evaluates fake output against it.
func evaluate(t *testing.T, src string, res *Result) *Failure {
	t.Helper()
	c, err := ParseChecker("t.sh", []byte(src))
	require.NoError(t, err)
	tr := NewTestRun("t.sh", c.RunCmds[0], c, DefaultSubstitutions())
	return tr.Evaluate(res)
}

func output(stdout, stderr string) *Result {
	return &Result{
		Stdout: SplitLines([]byte(stdout), "stdout"),
		Stderr: SplitLines([]byte(stderr), "stderr"),
	}
}

func TestEvaluatePasses(t *testing.T) {
	f := evaluate(t, "# RUN: prog\n# CHECK: hello\n# CHECKERR: warn\n", output("hello\n", "warn\n"))
	assert.Nil(t, f)
}

func TestReportMismatch(t *testing.T) {
	f := evaluate(t, "# RUN: prog\n# CHECK: hello\n", output("Hello\n", ""))
	require.NotNil(t, f)

	got := (&Reporter{}).Format(f)
	for _, want := range []string{
		"Failure in t.sh:",
		"  The CHECK on line 2 wants:\n    hello\n",
		"  which failed to match line stdout:1:\n    Hello\n",
		"  Context:\n",
		"    Hello <= does not match CHECK on line 2: hello",
		"  when running command:\n    prog",
	} {
		assert.Contains(t, got, want)
	}
	assert.NotContains(t, got, "\x1b[")
}

func TestReportMissingOutput(t *testing.T) {
	f := evaluate(t, "# RUN: prog\n# CHECK: a\n# CHECK: b\n", output("a\n", ""))
	require.NotNil(t, f)
	got := (&Reporter{}).Format(f)
	assert.Contains(t, got, "  The CHECK on line 3 wants:\n    b\n")
	assert.Contains(t, got, "  but there was no remaining output to match.")
	assert.Contains(t, got, "     <= nothing to match CHECK on line 3: b")
}

func TestReportExtraOutput(t *testing.T) {
	f := evaluate(t, "# RUN: prog\n# CHECK: a\n", output("a\nb\nc\n", ""))
	require.NotNil(t, f)
	got := (&Reporter{}).Format(f)
	assert.Contains(t, got, "  There were no remaining checks left to match stdout:2:\n    b\n")
	assert.Contains(t, got, "    b <= no more checks")
	assert.Equal(t, 1, strings.Count(got, "no more checks"))
}

func TestReportStderrFailure(t *testing.T) {
	f := evaluate(t, "# RUN: prog\n# CHECKERR: expected\n", output("", "actual\n"))
	require.NotNil(t, f)
	got := (&Reporter{}).Format(f)
	assert.Contains(t, got, "  The CHECKERR on line 2 wants:")
	assert.Contains(t, got, "which failed to match line stderr:1:")
	assert.Empty(t, f.Stderr)
}

func TestReportAttachesStderr(t *testing.T) {
	f := evaluate(t, "# RUN: prog\n# CHECK: a\n", output("b\n", "oops\nmore\n\n"))
	require.NotNil(t, f)
	require.Len(t, f.Stderr, 2)
	got := (&Reporter{}).Format(f)
	assert.Contains(t, got, "  additional output on stderr:1:2:\n    oops\n    more\n")
}

func TestReportSignal(t *testing.T) {
	res := output("partial\n", "")
	res.ExitStatus = -9
	f := evaluate(t, "# RUN: prog\n# CHECK: complete\n", res)
	require.NotNil(t, f)
	assert.Contains(t, (&Reporter{}).Format(f), "  Process was killed by signal "+SignalName(9))
}

func TestReportElidesContext(t *testing.T) {
	var src, out strings.Builder
	src.WriteString("# RUN: prog\n")
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&src, "# CHECK: l%d\n", i)
		fmt.Fprintf(&out, "l%d\n", i)
	}
	src.WriteString("# CHECK: x\n")
	out.WriteString("y\n")

	f := evaluate(t, src.String(), output(out.String(), ""))
	require.NotNil(t, f)
	got := (&Reporter{}).Format(f)
	assert.Contains(t, got, "    [...] from line 9 (stdout:8):")
	assert.NotContains(t, got, "    l7\n")
	assert.Contains(t, got, "    l8\n")
	assert.Contains(t, got, "    y <= does not match CHECK on line 12: x")
}

func TestReportTrailingChecksCapped(t *testing.T) {
	var src strings.Builder
	src.WriteString("# RUN: prog\n# CHECK: a\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&src, "# CHECK: c%d\n", i)
	}
	f := evaluate(t, src.String(), output("a\n", ""))
	require.NotNil(t, f)
	got := (&Reporter{}).Format(f)
	assert.Equal(t, 5, strings.Count(got, "<= nothing to match"))
	assert.Contains(t, got, "CHECK on line 7: c4")
	assert.NotContains(t, got, "CHECK on line 8: c5")
}

func TestReportEscapesOutput(t *testing.T) {
	f := evaluate(t, "# RUN: prog\n# CHECK: a\n", output("a\tb\x01\n", ""))
	require.NotNil(t, f)
	assert.Contains(t, (&Reporter{}).Format(f), `    a\tb\x01`)
}

func TestReportColor(t *testing.T) {
	f := evaluate(t, "# RUN: prog\n# CHECK: a\n", output("b\n", ""))
	require.NotNil(t, f)
	got := (&Reporter{Colorize: true}).Format(f)
	assert.Contains(t, got, "\x1b[31mFailure\x1b[0m")
}

func TestReportProgressHeader(t *testing.T) {
	f := evaluate(t, "# RUN: prog\n# CHECK: a\n", output("b\n", ""))
	require.NotNil(t, f)
	var buf bytes.Buffer
	require.NoError(t, (&Reporter{Progress: true}).Write(&buf, f))
	assert.True(t, strings.HasPrefix(buf.String(), "Failure:\n"), buf.String())
}

func TestReportStatus(t *testing.T) {
	r := &Reporter{}
	assert.Equal(t, "ok (12 ms)", r.Status(&FileResult{Status: StatusPassed, Duration: 12 * time.Millisecond}))
	assert.Equal(t, "SKIPPED (0 ms)", r.Status(&FileResult{Status: StatusSkipped}))
	assert.Equal(t, "FAILED (3 ms)", r.Status(&FileResult{Status: StatusFailed, Duration: 3 * time.Millisecond}))
}

func TestFormatError(t *testing.T) {
	got := (&Reporter{}).FormatError("t.sh", ErrNoRunDirective)
	assert.Equal(t, "Failure in t.sh:\n\n  "+ErrNoRunDirective.Error(), got)
}
