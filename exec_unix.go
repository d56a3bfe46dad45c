//go:build unix

package littlecheck

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	return exec.CommandContext(ctx, "/bin/sh", "-c", command)
}

func exitStatus(ps *os.ProcessState) int {
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return ps.ExitCode()
}

// SignalName describes signal n, e.g. "SIGSEGV (Segmentation fault)".
func SignalName(n int) string {
	sig := syscall.Signal(n)
	name := unix.SignalName(sig)
	if name == "" {
		return strconv.Itoa(n)
	}
	desc := sig.String()
	if desc == "" {
		return name
	}
	return name + " (" + strings.ToUpper(desc[:1]) + desc[1:] + ")"
}
