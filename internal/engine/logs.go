package engine

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arnavsurve/emuctl/internal/process"
	"github.com/arnavsurve/emuctl/internal/state"
)

// LogStreamer tails the selected device's logs into the state buffer. Only
// one stream runs at a time; the stream checks the state's log target on
// every line and exits as soon as it no longer matches the device it was
// started for.
type LogStreamer struct {
	state   *state.AppState
	exec    process.Executor
	adbPath string
	// serialForName maps an AVD name to its emulator serial; supplied by the
	// Android manager.
	serialForName func(ctx context.Context, name string) string
}

func NewLogStreamer(s *state.AppState, exec process.Executor, adbPath string, serialForName func(ctx context.Context, name string) string) *LogStreamer {
	if adbPath == "" {
		adbPath = "adb"
	}
	return &LogStreamer{state: s, exec: exec, adbPath: adbPath, serialForName: serialForName}
}

// logcat "-v time" lines look like
// "08-27 14:03:22.123 I/ActivityManager( 1234): ..."
var logcatLevelRegex = regexp.MustCompile(`^\S+\s+\S+\s+([VDIWEF])/`)

// A quiet device never delivers a line, so the per-line liveness check alone
// would never fire. The ticker bounds how long a retargeted stream and its
// subprocess can linger.
const logLivenessInterval = 500 * time.Millisecond

// Follow starts streaming logs for a device. It replaces any previous target
// in the state; the old stream notices on its next line or liveness tick and
// exits, cancelling its subprocess.
func (l *LogStreamer) Follow(ctx context.Context, panel state.Panel, identifier string) {
	l.state.SetLogTarget(panel, identifier)

	go func() {
		streamCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		name, args, ok := l.command(streamCtx, panel, identifier)
		if !ok {
			l.state.AppendLog(state.LogEntry{
				Timestamp: time.Now(),
				Level:     "W",
				Message:   "no log source for " + identifier,
			})
			return
		}

		lines, errs := l.exec.Stream(streamCtx, name, args...)
		liveness := time.NewTicker(logLivenessInterval)
		defer liveness.Stop()
		for {
			select {
			case <-streamCtx.Done():
				return
			case <-liveness.C:
				if !l.state.LogTargetMatches(panel, identifier) {
					return
				}
			case err, ok := <-errs:
				if ok && err != nil {
					log.Debug().Err(err).Str("device", identifier).Msg("log stream ended")
				}
				return
			case line, ok := <-lines:
				if !ok {
					return
				}
				// Liveness check on every line, not just at suspension
				// points, to bound staleness.
				if !l.state.LogTargetMatches(panel, identifier) {
					return
				}
				l.state.AppendLog(parseLogLine(panel, line.Content))
			}
		}
	}()
}

// StopIfTarget clears the target when it names the given device, ending its
// stream cooperatively.
func (l *LogStreamer) StopIfTarget(panel state.Panel, identifier string) {
	if l.state.LogTargetMatches(panel, identifier) {
		l.state.ClearLogTarget()
	}
}

func (l *LogStreamer) command(ctx context.Context, panel state.Panel, identifier string) (string, []string, bool) {
	if panel == state.PanelAndroid {
		if l.serialForName == nil {
			return "", nil, false
		}
		serial := l.serialForName(ctx, identifier)
		if serial == "" {
			return "", nil, false
		}
		return l.adbPath, []string{"-s", serial, "logcat", "-v", "time"}, true
	}
	return "xcrun", []string{"simctl", "spawn", identifier, "log", "stream", "--style", "compact"}, true
}

func parseLogLine(panel state.Panel, content string) state.LogEntry {
	entry := state.LogEntry{Timestamp: time.Now(), Level: "I", Message: content}
	if panel == state.PanelAndroid {
		if caps := logcatLevelRegex.FindStringSubmatch(content); caps != nil {
			entry.Level = caps[1]
		}
		return entry
	}
	// simctl compact style tags the type in angle brackets.
	switch {
	case strings.Contains(content, "<Error>"), strings.Contains(content, "<Fault>"):
		entry.Level = "E"
	case strings.Contains(content, "<Warning>"):
		entry.Level = "W"
	case strings.Contains(content, "<Debug>"):
		entry.Level = "D"
	}
	return entry
}
