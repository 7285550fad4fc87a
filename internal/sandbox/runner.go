// Package sandbox executes external binaries under wall-clock, CPU,
// memory and priority limits. Non-zero exits are reported through the
// Result, never as errors; only a timeout produces the distinct
// ErrTimeout. Argument vectors are passed verbatim, no shell involved.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/pdfacil/pdfacil-backend/pkg/logger"
)

// ErrTimeout reports that the child exceeded its wall-clock budget.
var ErrTimeout = errors.New("sandbox: wall clock timeout")

// Limits bounds one external invocation. Zero values disable the
// corresponding limit. On platforms without resource controls only the
// wall-clock timeout applies.
type Limits struct {
	WallTimeout time.Duration
	CPUSeconds  uint64
	MemoryBytes uint64
	Niceness    int
}

// Result carries the child's exit status and fully captured streams.
type Result struct {
	RC     int
	Stdout string
	Stderr string
}

// Runner runs sandboxed subprocesses.
type Runner struct {
	log *logger.Logger
}

// NewRunner creates a Runner.
func NewRunner(log *logger.Logger) *Runner {
	return &Runner{log: log.WithComponent("sandbox")}
}

// Run executes bin with args under the given limits. It returns an error
// only when the process cannot be started or the wall clock expires; a
// non-zero exit code is returned inside the Result.
func (r *Runner) Run(ctx context.Context, bin string, args []string, lim Limits) (*Result, error) {
	if lim.WallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, lim.WallTimeout)
		defer cancel()
	}

	cmd := exec.Command(bin, args...)
	cmd.SysProcAttr = sysProcAttr()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	applyLimits(cmd.Process.Pid, lim, r.log)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		killTree(cmd)
		<-done
		r.log.Warn().
			Str("bin", bin).
			Dur("elapsed", time.Since(start)).
			Msg("child killed on timeout")
		return nil, ErrTimeout
	}

	res := &Result{
		RC:     0,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.RC = exitErr.ExitCode()
		} else {
			return nil, waitErr
		}
	}

	r.log.Debug().
		Str("bin", bin).
		Int("rc", res.RC).
		Dur("elapsed", time.Since(start)).
		Msg("child finished")
	return res, nil
}
