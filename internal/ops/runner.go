package ops

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

// Output is what a finished process left behind.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner runs one external command to completion.
type Runner interface {
	Run(ctx context.Context, dir string, argv []string) (Output, error)
}

// ExecRunner runs commands with os/exec. Env entries are appended to the
// current process environment.
type ExecRunner struct {
	Env []string
}

// Run blocks until the process exits or ctx is cancelled, in which case the
// process is killed.
func (r ExecRunner) Run(ctx context.Context, dir string, argv []string) (Output, error) {
	if len(argv) == 0 {
		return Output{}, errors.New("empty command")
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
	}
	return out, err
}

// maxStderr bounds the diagnostic output kept on an execution error.
const maxStderr = 8 << 10

func tail(b []byte) string {
	if len(b) <= maxStderr {
		return string(b)
	}
	return "..." + string(b[len(b)-maxStderr:])
}
