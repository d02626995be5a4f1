package device

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error categories. Managers wrap these with context so callers can
// classify with errors.Is while still seeing the tool's own words.
var (
	// ErrSdkUnavailable means the SDK root or a required tool is missing.
	// Fatal to manager construction, never deferred to first use.
	ErrSdkUnavailable = errors.New("sdk unavailable")

	// ErrDeviceNotFound means the identifier matched no known device.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrTimeout means boot or property polling exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrPermissionDenied means the OS refused to launch a tool.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrOperationConflict means a duplicate start/stop was requested for an
	// identifier that already has one in flight.
	ErrOperationConflict = errors.New("operation already in progress")
)

// CommandError reports a tool that launched but exited non-zero. The stderr
// text is preserved verbatim for display.
type CommandError struct {
	Tool     string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// ParseError reports malformed tool output. Individual records degrade
// gracefully; this error surfaces only when the whole payload is unusable.
type ParseError struct {
	Source string
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %s output: %s", e.Source, e.Detail)
}

// CreationError reports a failed device creation with an actionable hint,
// e.g. the sdkmanager invocation that would install the missing image.
type CreationError struct {
	Name string
	Hint string
	Err  error
}

func (e *CreationError) Error() string {
	msg := fmt.Sprintf("cannot create device %q", e.Name)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *CreationError) Unwrap() error { return e.Err }

// ClassifyCreateFailure maps avdmanager/simctl stderr text onto a
// CreationError with a hint the user can act on.
func ClassifyCreateFailure(name, version string, err error) error {
	if err == nil {
		return nil
	}
	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "license") || strings.Contains(text, "accept"):
		return &CreationError{Name: name, Hint: "run: sdkmanager --licenses", Err: err}
	case strings.Contains(text, "system image") || strings.Contains(text, "package path") || strings.Contains(text, "not installed"):
		return &CreationError{Name: name, Hint: fmt.Sprintf("install a system image for API %s with sdkmanager", version), Err: err}
	case strings.Contains(text, "already exists"):
		return &CreationError{Name: name, Hint: "delete the existing device or choose another name", Err: err}
	case strings.Contains(text, "not found") && strings.Contains(text, "device"):
		return &CreationError{Name: name, Hint: "check available device types", Err: err}
	default:
		return &CreationError{Name: name, Err: err}
	}
}
