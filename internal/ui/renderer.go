// Package ui renders state snapshots to the terminal. It only reads
// snapshots; all mutation goes through the state store.
package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/arnavsurve/emuctl/internal/device"
	"github.com/arnavsurve/emuctl/internal/device/rank"
	"github.com/arnavsurve/emuctl/internal/state"
)

// Renderer handles terminal output with colors and spinners.
type Renderer struct {
	mu          sync.Mutex
	spinning    bool
	spinnerDone chan struct{}
}

func NewRenderer() *Renderer {
	return &Renderer{}
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// StartSpinner starts an animated spinner with a message.
func (r *Renderer) StartSpinner(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.spinning {
		return
	}

	r.spinning = true
	r.spinnerDone = make(chan struct{})

	msg := fmt.Sprintf(format, args...)

	go func() {
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-r.spinnerDone:
				return
			case <-ticker.C:
				r.mu.Lock()
				fmt.Fprintf(os.Stderr, "\r%s %s", cyan(spinnerFrames[frame]), msg)
				r.mu.Unlock()
				frame = (frame + 1) % len(spinnerFrames)
			}
		}
	}()
}

// StopSpinner stops the spinner and clears its line.
func (r *Renderer) StopSpinner() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.spinning {
		return
	}

	close(r.spinnerDone)
	r.spinning = false

	fmt.Fprint(os.Stderr, "\r\033[K")
}

func (r *Renderer) Success(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", green("✓"), fmt.Sprintf(format, args...))
}

func (r *Renderer) Error(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", red("✗"), fmt.Sprintf(format, args...))
}

func (r *Renderer) Warning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", yellow("!"), fmt.Sprintf(format, args...))
}

func (r *Renderer) Info(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s\n", fmt.Sprintf(format, args...))
}

func (r *Renderer) Dim(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s\n", dim(fmt.Sprintf(format, args...)))
}

func statusColor(status device.Status) func(a ...interface{}) string {
	switch status {
	case device.StatusRunning:
		return green
	case device.StatusStarting, device.StatusStopping, device.StatusCreating:
		return yellow
	case device.StatusError:
		return red
	default:
		return dim
	}
}

// RenderSnapshot prints the full device view: both panels, the headline
// operation, and any live notifications.
func (r *Renderer) RenderSnapshot(snap state.Snapshot) {
	r.RenderAndroidDevices(snap.AndroidDevices, snap.PendingStarts)
	r.RenderIosDevices(snap.IosDevices)

	if snap.OperationStatus != "" {
		fmt.Fprintf(os.Stderr, "\n%s %s\n", cyan("…"), snap.OperationStatus)
	}
	for _, n := range snap.Notifications {
		switch n.Type {
		case state.NotifyError:
			r.Error("%s", n.Message)
		case state.NotifyWarning:
			r.Warning("%s", n.Message)
		case state.NotifySuccess:
			r.Success("%s", n.Message)
		default:
			r.Info("%s", n.Message)
		}
	}
}

// RenderAndroidDevices prints the AVD panel.
func (r *Renderer) RenderAndroidDevices(devices []*device.AndroidDevice, pending map[string]struct{}) {
	fmt.Fprintf(os.Stderr, "\n%s\n", bold("ANDROID"))
	if len(devices) == 0 {
		r.Dim("no AVDs found")
		return
	}
	for _, d := range devices {
		marker := " "
		if _, starting := pending[d.Name]; starting {
			marker = cyan(spinnerFrames[0])
		}
		version := rank.AndroidVersionName(d.APILevel)
		if d.APILevel == device.ApiLevelUnknown {
			version = "unknown"
		}
		fmt.Fprintf(os.Stderr, " %s %s %s %s\n",
			marker,
			d.Name,
			dim(fmt.Sprintf("Android %s", version)),
			statusColor(d.Status)(fmt.Sprintf("[%s]", d.Status)),
		)
	}
}

// RenderIosDevices prints the simulator panel; unavailable runtimes render
// dimmed.
func (r *Renderer) RenderIosDevices(devices []*device.IosDevice) {
	fmt.Fprintf(os.Stderr, "\n%s\n", bold("IOS"))
	if len(devices) == 0 {
		r.Dim("no simulators found")
		return
	}
	for _, d := range devices {
		line := fmt.Sprintf("   %s %s %s",
			d.Name,
			dim(d.UDID[:minInt(8, len(d.UDID))]),
			statusColor(d.Status)(fmt.Sprintf("[%s]", d.Status)),
		)
		if !d.Available {
			line = dim(line + " (unavailable)")
		}
		fmt.Fprintln(os.Stderr, line)
	}
}

// RenderLogs prints the tail of the log buffer honoring the scroll offset.
func (r *Renderer) RenderLogs(logs []state.LogEntry, scrollOffset, height int) {
	if height <= 0 {
		height = 20
	}
	end := len(logs) - scrollOffset
	if end < 0 {
		end = 0
	}
	start := end - height
	if start < 0 {
		start = 0
	}
	for _, entry := range logs[start:end] {
		switch strings.ToUpper(entry.Level) {
		case "E", "F":
			fmt.Fprintln(os.Stderr, red(entry.Message))
		case "W":
			fmt.Fprintln(os.Stderr, yellow(entry.Message))
		default:
			fmt.Fprintln(os.Stderr, entry.Message)
		}
	}
}

// RenderDetails prints the cached detail view for the selected device.
func (r *Renderer) RenderDetails(details string) {
	for _, line := range strings.Split(details, "\n") {
		r.Info("%s", line)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
