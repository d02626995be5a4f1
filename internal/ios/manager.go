// Package ios manages iOS simulators through `xcrun simctl`. State listing
// is JSON, everything else is plain invocations with tolerant error
// handling for the operations simctl treats as already done.
package ios

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/arnavsurve/emuctl/internal/device"
	"github.com/arnavsurve/emuctl/internal/device/rank"
	"github.com/arnavsurve/emuctl/internal/process"
)

const commandTimeout = 30 * time.Second

// Manager drives simctl. NewManager fails when xcrun is not on PATH, so
// callers on non-mac hosts simply run without an iOS panel.
type Manager struct {
	exec process.Executor
}

func NewManager() (*Manager, error) {
	if !process.LookPath("xcrun") {
		return nil, fmt.Errorf("%w: xcrun not found, Xcode tools required", device.ErrSdkUnavailable)
	}
	return &Manager{exec: process.NewRunner()}, nil
}

// NewManagerWithExecutor wires a custom executor; used by tests.
func NewManagerWithExecutor(exec process.Executor) *Manager {
	return &Manager{exec: exec}
}

func (m *Manager) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	res, err := m.exec.Run(ctx, "xcrun", args...)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return res.Stdout, &device.CommandError{
			Tool:     "simctl",
			Args:     args,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
		}
	}
	return res.Stdout, nil
}

// ListDevices returns every simulator simctl knows about, including
// unavailable ones (they render dimmed rather than hidden). Older Xcode
// versions reject --json, so the short flag is retried.
func (m *Manager) ListDevices(ctx context.Context) ([]*device.IosDevice, error) {
	output, err := m.run(ctx, "simctl", "list", "devices", "--json")
	if err != nil {
		var cmdErr *device.CommandError
		if errors.As(err, &cmdErr) && strings.Contains(cmdErr.Stderr, "--json") {
			output, err = m.run(ctx, "simctl", "list", "devices", "-j")
		}
		if err != nil {
			return nil, fmt.Errorf("simctl list: %w", err)
		}
	}

	parsed := gjson.Parse(output)
	if !parsed.Get("devices").Exists() {
		return nil, &device.ParseError{Source: "simctl list", Detail: "missing devices object"}
	}

	var devices []*device.IosDevice
	parsed.Get("devices").ForEach(func(runtime, list gjson.Result) bool {
		version, ok := iosVersionFromRuntime(runtime.String())
		if !ok {
			// watchOS, tvOS and damaged runtime keys are skipped whole.
			return true
		}

		list.ForEach(func(_, dev gjson.Result) bool {
			udid := dev.Get("udid").String()
			if udid == "" {
				log.Debug().Str("runtime", runtime.String()).Msg("simulator record without udid dropped")
				return true
			}

			rawName := dev.Get("name").String()
			state := dev.Get("state").String()
			status := MapSimctlState(state)

			devices = append(devices, &device.IosDevice{
				Name:           fmt.Sprintf("%s (iOS %s)", rawName, version),
				UDID:           udid,
				DeviceType:     rawName,
				IosVersion:     version,
				RuntimeVersion: runtime.String(),
				Status:         status,
				Running:        status == device.StatusRunning,
				Available:      dev.Get("isAvailable").Bool(),
			})
			return true
		})
		return true
	})

	sort.SliceStable(devices, func(i, j int) bool {
		ri := rank.IosDevicePriority(devices[i].DeviceType)
		rj := rank.IosDevicePriority(devices[j].DeviceType)
		if ri != rj {
			return ri < rj
		}
		return devices[i].IosVersion > devices[j].IosVersion
	})
	return devices, nil
}

// iosVersionFromRuntime turns "com.apple.CoreSimulator.SimRuntime.iOS-17-0"
// into "17.0". Non-iOS runtimes report ok=false.
func iosVersionFromRuntime(runtime string) (string, bool) {
	idx := strings.Index(runtime, "iOS-")
	if idx < 0 {
		return "", false
	}
	version := strings.ReplaceAll(runtime[idx+len("iOS-"):], "-", ".")
	if version == "" {
		return "", false
	}
	return version, true
}

// MapSimctlState maps a simctl state string to a Status. Transitional states
// like "Booting" or "Creating" land on Unknown rather than a guess, and
// strings simctl invents later never break the list.
func MapSimctlState(state string) device.Status {
	switch state {
	case "Booted":
		return device.StatusRunning
	case "Shutdown":
		return device.StatusStopped
	default:
		return device.StatusUnknown
	}
}

// StartDevice boots a simulator and opens the Simulator app so the window is
// actually visible. Booting an already-booted device is not an error.
func (m *Manager) StartDevice(ctx context.Context, udid string) error {
	if _, err := m.run(ctx, "simctl", "boot", udid); err != nil {
		if !isAlreadyError(err) {
			return fmt.Errorf("boot %s: %w", udid, err)
		}
	}

	if _, err := m.exec.Run(ctx, "open", "-a", "Simulator"); err != nil {
		log.Debug().Err(err).Msg("Simulator.app did not open")
	}
	return nil
}

// StopDevice shuts a simulator down; already-shutdown devices are fine.
func (m *Manager) StopDevice(ctx context.Context, udid string) error {
	if _, err := m.run(ctx, "simctl", "shutdown", udid); err != nil {
		if isAlreadyError(err) {
			return nil
		}
		return fmt.Errorf("shutdown %s: %w", udid, err)
	}
	return nil
}

// StopAll shuts down every simulator and quits the Simulator app.
func (m *Manager) StopAll(ctx context.Context) error {
	if _, err := m.run(ctx, "simctl", "shutdown", "all"); err != nil && !isAlreadyError(err) {
		return fmt.Errorf("shutdown all: %w", err)
	}
	_, err := m.exec.Run(ctx, "osascript", "-e", `quit app "Simulator"`)
	if err != nil {
		log.Debug().Err(err).Msg("Simulator.app did not quit")
	}
	return nil
}

// CreateDevice makes a new simulator. cfg.DeviceType is the device type
// identifier and cfg.Version the runtime identifier from the catalogs.
func (m *Manager) CreateDevice(ctx context.Context, cfg device.Config) (string, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return "", &device.CreationError{Name: cfg.Name, Hint: "simulator names cannot be empty"}
	}

	out, err := m.run(ctx, "simctl", "create", name, cfg.DeviceType, cfg.Version)
	if err != nil {
		return "", device.ClassifyCreateFailure(name, cfg.Version, err)
	}
	return strings.TrimSpace(out), nil
}

// DeleteDevice removes a simulator permanently.
func (m *Manager) DeleteDevice(ctx context.Context, udid string) error {
	if _, err := m.run(ctx, "simctl", "delete", udid); err != nil {
		var cmdErr *device.CommandError
		if errors.As(err, &cmdErr) && strings.Contains(strings.ToLower(cmdErr.Stderr), "invalid device") {
			return fmt.Errorf("%w: %s", device.ErrDeviceNotFound, udid)
		}
		return fmt.Errorf("delete %s: %w", udid, err)
	}
	return nil
}

// WipeDevice erases a simulator's content and settings. simctl refuses to
// erase a booted device, so it is shut down first.
func (m *Manager) WipeDevice(ctx context.Context, udid string) error {
	if err := m.StopDevice(ctx, udid); err != nil {
		return fmt.Errorf("stop before erase: %w", err)
	}
	if _, err := m.run(ctx, "simctl", "erase", udid); err != nil {
		return fmt.Errorf("erase %s: %w", udid, err)
	}
	return nil
}

// ListDeviceTypes returns the creatable device types, priority ordered.
func (m *Manager) ListDeviceTypes(ctx context.Context) ([]CatalogEntry, error) {
	output, err := m.run(ctx, "simctl", "list", "devicetypes", "--json")
	if err != nil {
		return nil, fmt.Errorf("simctl list devicetypes: %w", err)
	}

	var entries []CatalogEntry
	gjson.Parse(output).Get("devicetypes").ForEach(func(_, dt gjson.Result) bool {
		id := dt.Get("identifier").String()
		name := dt.Get("name").String()
		if id == "" || name == "" {
			return true
		}
		entries = append(entries, CatalogEntry{ID: id, Display: name})
		return true
	})

	sort.SliceStable(entries, func(i, j int) bool {
		return rank.IosDevicePriority(entries[i].Display) < rank.IosDevicePriority(entries[j].Display)
	})
	return entries, nil
}

// ListRuntimes returns the installed, available iOS runtimes, newest first.
func (m *Manager) ListRuntimes(ctx context.Context) ([]CatalogEntry, error) {
	output, err := m.run(ctx, "simctl", "list", "runtimes", "--json")
	if err != nil {
		return nil, fmt.Errorf("simctl list runtimes: %w", err)
	}

	var entries []CatalogEntry
	gjson.Parse(output).Get("runtimes").ForEach(func(_, rt gjson.Result) bool {
		if !rt.Get("isAvailable").Bool() {
			return true
		}
		id := rt.Get("identifier").String()
		if !strings.Contains(id, "iOS") {
			return true
		}
		entries = append(entries, CatalogEntry{
			ID:      id,
			Display: fmt.Sprintf("iOS %s", rt.Get("version").String()),
		})
		return true
	})

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Display > entries[j].Display
	})
	return entries, nil
}

// IsAvailable reports whether simctl answers at all.
func (m *Manager) IsAvailable(ctx context.Context) bool {
	_, err := m.run(ctx, "simctl", "help")
	return err == nil
}

// CatalogEntry pairs a simctl identifier with its display name.
type CatalogEntry struct {
	ID      string
	Display string
}

// isAlreadyError matches simctl's "Unable to boot device in current state:
// Booted" family of complaints.
func isAlreadyError(err error) bool {
	var cmdErr *device.CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	text := strings.ToLower(cmdErr.Stderr)
	return strings.Contains(text, "current state: booted") ||
		strings.Contains(text, "current state: shutdown") ||
		strings.Contains(text, "already booted") ||
		strings.Contains(text, "already shutdown")
}
