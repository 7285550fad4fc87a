//go:build !linux

package sandbox

import (
	"os/exec"
	"syscall"

	"github.com/pdfacil/pdfacil-backend/pkg/logger"
)

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

// applyLimits is a no-op outside Linux; only the wall clock applies.
func applyLimits(pid int, lim Limits, log *logger.Logger) {}

func killTree(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
