//go:build !unix

package littlecheck

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strconv"
)

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}

func exitStatus(ps *os.ProcessState) int {
	return ps.ExitCode()
}

// SignalName describes signal n. Only the number is known here.
func SignalName(n int) string {
	return strconv.Itoa(n)
}
