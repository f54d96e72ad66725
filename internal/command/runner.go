package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
	"unicode/utf8"
)

var (
	// ErrEmptyCommand is returned when Run is called without a program name.
	ErrEmptyCommand = errors.New("command: empty argument vector")
	// ErrMalformedOutput is returned when stdout cannot be decoded as UTF-8 text.
	ErrMalformedOutput = errors.New("command: output is not valid UTF-8")
)

// InvocationError reports a program that could not be located or started.
type InvocationError struct {
	Name string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("command: invoke %s: %v", e.Name, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Result captures a single child process execution.
type Result struct {
	Elapsed  time.Duration // time spent in the process, cool-down excluded
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes an argument vector and waits coolDown after it finishes.
type Runner interface {
	Run(ctx context.Context, argv []string, coolDown time.Duration) (Result, error)
}

// ExecRunner executes commands on the local host.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, argv []string, coolDown time.Duration) (Result, error) {
	if len(argv) == 0 || argv[0] == "" {
		return Result{}, ErrEmptyCommand
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	res := Result{
		Elapsed: elapsed,
		Stderr:  stderr.String(),
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return res, &InvocationError{Name: argv[0], Err: err}
		}
		// Non-zero exit is reported, not treated as a failure.
		res.ExitCode = exitErr.ExitCode()
	}

	if !utf8.Valid(stdout.Bytes()) {
		return res, fmt.Errorf("%s: %w", argv[0], ErrMalformedOutput)
	}
	res.Stdout = stdout.String()

	if err := Sleep(ctx, coolDown); err != nil {
		return res, err
	}
	return res, nil
}

// Sleep blocks for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
