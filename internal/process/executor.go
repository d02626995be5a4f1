// Package process is the single I/O boundary to external SDK tools. Managers
// never touch os/exec directly; they go through an Executor so tests can swap
// in a Recorder with canned output.
package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
)

// Result captures one finished tool invocation. A non-zero ExitCode is data,
// not an error: callers inspect Stderr for known patterns and decide.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// OutputLine is one line of a streamed process, tagged by stream.
type OutputLine struct {
	Stream  string // "stdout" or "stderr"
	Content string
}

// Executor runs external programs. Errors signal launch failure only; exit
// codes travel inside Result. No retries here, retry policy belongs to
// callers.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
	// SpawnDetached starts a long-running process (the emulator) that must
	// outlive the invoking call, returning its pid.
	SpawnDetached(name string, args ...string) (int, error)
	// Stream launches a process and emits its output line by line until the
	// context is cancelled or the process exits.
	Stream(ctx context.Context, name string, args ...string) (<-chan OutputLine, <-chan error)
}

// Runner is the production Executor.
type Runner struct{}

func NewRunner() *Runner {
	return &Runner{}
}

func (r *Runner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	log.Debug().Str("cmd", name+" "+strings.Join(args, " ")).Msg("run")

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		// Launch failure: binary missing, permission denied.
		return res, err
	}
	return res, nil
}

func (r *Runner) SpawnDetached(name string, args ...string) (int, error) {
	log.Debug().Str("cmd", name+" "+strings.Join(args, " ")).Msg("spawn detached")

	cmd := exec.Command(name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	pid := cmd.Process.Pid
	// Reap the child in the background so it never turns into a zombie; the
	// process itself keeps running after we return.
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

func (r *Runner) Stream(ctx context.Context, name string, args ...string) (<-chan OutputLine, <-chan error) {
	log.Debug().Str("cmd", name+" "+strings.Join(args, " ")).Msg("stream")

	outChan := make(chan OutputLine, 100)
	errChan := make(chan error, 1)

	go func() {
		defer close(outChan)
		defer close(errChan)

		cmd := exec.CommandContext(ctx, name, args...)

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			errChan <- err
			return
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			errChan <- err
			return
		}
		if err := cmd.Start(); err != nil {
			errChan <- err
			return
		}

		var wg sync.WaitGroup
		wg.Add(2)

		scan := func(stream string, src *bufio.Scanner) {
			defer wg.Done()
			for src.Scan() {
				select {
				case <-ctx.Done():
					return
				case outChan <- OutputLine{Stream: stream, Content: src.Text()}:
				}
			}
		}
		go scan("stdout", bufio.NewScanner(stdout))
		go scan("stderr", bufio.NewScanner(stderr))

		wg.Wait()

		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			errChan <- err
		}
	}()

	return outChan, errChan
}

// LookPath reports whether a tool is resolvable on PATH.
func LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// IsPermission unwraps launch errors down to EACCES/EPERM.
func IsPermission(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM)
}
