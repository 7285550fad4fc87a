//go:build linux

package sandbox

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/pdfacil/pdfacil-backend/pkg/logger"
)

// sysProcAttr puts the child in its own process group so a timeout kill
// also reaps its descendants.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// applyLimits sets CPU, address-space and priority limits on the running
// child. Failures are logged and otherwise ignored: a missing limit must
// not fail the job, the wall clock still bounds it.
func applyLimits(pid int, lim Limits, log *logger.Logger) {
	if lim.CPUSeconds > 0 {
		rl := unix.Rlimit{Cur: lim.CPUSeconds, Max: lim.CPUSeconds}
		if err := unix.Prlimit(pid, unix.RLIMIT_CPU, &rl, nil); err != nil {
			log.Warn().Err(err).Int("pid", pid).Msg("setting RLIMIT_CPU failed")
		}
	}
	if lim.MemoryBytes > 0 {
		rl := unix.Rlimit{Cur: lim.MemoryBytes, Max: lim.MemoryBytes}
		if err := unix.Prlimit(pid, unix.RLIMIT_AS, &rl, nil); err != nil {
			log.Warn().Err(err).Int("pid", pid).Msg("setting RLIMIT_AS failed")
		}
	}
	if lim.Niceness > 0 {
		if err := unix.Setpriority(unix.PRIO_PROCESS, pid, lim.Niceness); err != nil {
			log.Warn().Err(err).Int("pid", pid).Msg("setting priority failed")
		}
	}
}

func killTree(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// Negative pid signals the whole process group.
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
}
