package process

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Recorder is an Executor for tests: canned responses keyed by the full
// command line, with a call history for assertions.
type Recorder struct {
	mu        sync.Mutex
	responses map[string]recorded
	streams   map[string][]OutputLine
	spawnPIDs map[string]int
	calls     []string
}

type recorded struct {
	result Result
	err    error
}

func NewRecorder() *Recorder {
	return &Recorder{
		responses: map[string]recorded{},
		streams:   map[string][]OutputLine{},
		spawnPIDs: map[string]int{},
	}
}

func key(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

// WithStdout registers a zero-exit response for a command line.
func (r *Recorder) WithStdout(name string, args []string, stdout string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[key(name, args)] = recorded{result: Result{Stdout: stdout}}
	return r
}

// WithExit registers a non-zero exit with stderr text.
func (r *Recorder) WithExit(name string, args []string, code int, stderr string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[key(name, args)] = recorded{result: Result{Stderr: stderr, ExitCode: code}}
	return r
}

// WithError registers a launch failure.
func (r *Recorder) WithError(name string, args []string, err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[key(name, args)] = recorded{err: err}
	return r
}

// WithStream registers lines for Stream calls.
func (r *Recorder) WithStream(name string, args []string, lines ...string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OutputLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, OutputLine{Stream: "stdout", Content: l})
	}
	r.streams[key(name, args)] = out
	return r
}

// WithSpawnPID registers a pid for SpawnDetached calls.
func (r *Recorder) WithSpawnPID(name string, args []string, pid int) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spawnPIDs[key(name, args)] = pid
	return r
}

func (r *Recorder) Run(_ context.Context, name string, args ...string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(name, args)
	r.calls = append(r.calls, k)
	if resp, ok := r.responses[k]; ok {
		return resp.result, resp.err
	}
	return Result{}, fmt.Errorf("recorder: no response for %q", k)
}

func (r *Recorder) SpawnDetached(name string, args ...string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(name, args)
	r.calls = append(r.calls, k)
	if pid, ok := r.spawnPIDs[k]; ok {
		return pid, nil
	}
	return 4242, nil
}

func (r *Recorder) Stream(ctx context.Context, name string, args ...string) (<-chan OutputLine, <-chan error) {
	r.mu.Lock()
	k := key(name, args)
	r.calls = append(r.calls, k)
	lines := r.streams[k]
	r.mu.Unlock()

	outChan := make(chan OutputLine, len(lines)+1)
	errChan := make(chan error, 1)
	go func() {
		defer close(outChan)
		defer close(errChan)
		for _, l := range lines {
			select {
			case <-ctx.Done():
				return
			case outChan <- l:
			}
		}
		<-ctx.Done()
	}()
	return outChan, errChan
}

// Calls returns the command lines issued so far.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

// CalledWith reports whether any issued command line contains the fragment.
func (r *Recorder) CalledWith(fragment string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if strings.Contains(c, fragment) {
			return true
		}
	}
	return false
}
