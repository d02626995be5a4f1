// Package android manages Android Virtual Devices through the SDK
// command-line tools: avdmanager for definitions, adb for runtime state,
// emulator for booting, and sdkmanager for system image discovery.
package android

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arnavsurve/emuctl/internal/device"
	"github.com/arnavsurve/emuctl/internal/process"
	"github.com/arnavsurve/emuctl/internal/sdk"
)

const (
	commandTimeout   = 30 * time.Second
	catalogTimeout   = 60 * time.Second
	bootTimeout      = 120 * time.Second
	bootPollInterval = 2 * time.Second
)

// Manager drives the Android SDK tooling. Construct with NewManager; a
// missing SDK fails construction, not the first operation.
type Manager struct {
	exec    process.Executor
	sdk     *sdk.AndroidSDK
	avdHome string
}

func NewManager(sdkRootOverride string) (*Manager, error) {
	s, err := sdk.FindAndroidSDK(sdkRootOverride)
	if err != nil {
		return nil, err
	}
	return &Manager{exec: process.NewRunner(), sdk: s, avdHome: sdk.AvdHome()}, nil
}

// NewManagerWithExecutor wires a custom executor; used by tests.
func NewManagerWithExecutor(exec process.Executor, s *sdk.AndroidSDK, avdHome string) *Manager {
	return &Manager{exec: exec, sdk: s, avdHome: avdHome}
}

// run executes a tool and folds non-zero exits into a CommandError carrying
// the tool's stderr.
func (m *Manager) run(ctx context.Context, timeout time.Duration, tool string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := m.exec.Run(ctx, tool, args...)
	if err != nil {
		if process.IsPermission(err) {
			return "", fmt.Errorf("%w: %s", device.ErrPermissionDenied, tool)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s %s", device.ErrTimeout, filepath.Base(tool), strings.Join(args, " "))
		}
		return "", err
	}
	if res.ExitCode != 0 {
		return res.Stdout, &device.CommandError{
			Tool:     filepath.Base(tool),
			Args:     args,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
		}
	}
	return res.Stdout, nil
}

// ListDevices returns all AVDs with their runtime state resolved from adb.
func (m *Manager) ListDevices(ctx context.Context) ([]*device.AndroidDevice, error) {
	output, err := m.run(ctx, commandTimeout, m.sdk.AvdManagerPath, "list", "avd")
	if err != nil {
		return nil, fmt.Errorf("list avd: %w", err)
	}

	running := m.runningAvdNames(ctx)

	var devices []*device.AndroidDevice
	for _, block := range parseAvdList(output) {
		apiLevel := m.resolveAPILevel(block)

		ram, storage := m.hardwareProfile(block)

		status := device.StatusStopped
		isRunning := false
		if _, ok := running[block.Name]; ok {
			status = device.StatusRunning
			isRunning = true
		}

		devices = append(devices, &device.AndroidDevice{
			Name:        block.Name,
			DeviceType:  block.Device,
			APILevel:    apiLevel,
			Status:      status,
			Running:     isRunning,
			RAMSize:     ram,
			StorageSize: storage,
		})
	}

	return devices, nil
}

// runningAvdNames maps AVD names to emulator serials. Serials whose name
// lookup fails are left unassociated; the device then reports Stopped.
func (m *Manager) runningAvdNames(ctx context.Context) map[string]string {
	avdMap := map[string]string{}

	output, err := m.run(ctx, commandTimeout, m.sdk.AdbPath, "devices")
	if err != nil {
		log.Debug().Err(err).Msg("adb devices unavailable, all AVDs treated as stopped")
		return avdMap
	}

	for _, serial := range parseAdbSerials(output) {
		if serial.State != adbStateDevice {
			// offline / unauthorized serials are never surfaced as Running.
			continue
		}
		name := m.avdNameForSerial(ctx, serial.Serial)
		if name == "" {
			continue
		}
		avdMap[name] = serial.Serial
		if normalized := strings.ReplaceAll(name, " ", "_"); normalized != name {
			if _, ok := avdMap[normalized]; !ok {
				avdMap[normalized] = serial.Serial
			}
		}
	}
	return avdMap
}

// avdNameForSerial resolves the AVD behind an emulator serial, preferring the
// kernel property and falling back to the emulator console.
func (m *Manager) avdNameForSerial(ctx context.Context, serial string) string {
	out, err := m.run(ctx, commandTimeout, m.sdk.AdbPath,
		"-s", serial, "shell", "getprop", "ro.kernel.qemu.avd_name")
	if err == nil {
		if name := strings.TrimSpace(out); name != "" {
			return name
		}
	}

	out, err = m.run(ctx, commandTimeout, m.sdk.AdbPath, "-s", serial, "emu", "avd", "name")
	if err != nil {
		return ""
	}
	first := strings.TrimSpace(strings.SplitN(out, "\n", 2)[0])
	// The console echoes status words; none of those are AVD names.
	switch {
	case first == "", first == "OK", first == "KO":
		return ""
	case strings.Contains(first, "error"), strings.Contains(first, "unknown command"):
		return ""
	}
	return first
}

// AdbPath exposes the resolved adb binary for callers that stream from it.
func (m *Manager) AdbPath() string {
	return m.sdk.AdbPath
}

// SerialForName is the exported form of serialForName for the log streamer.
func (m *Manager) SerialForName(ctx context.Context, name string) string {
	return m.serialForName(ctx, name)
}

// IsAvailable reports whether the manager can reach its tools. Construction
// already verified them, so this only rechecks adb.
func (m *Manager) IsAvailable(ctx context.Context) bool {
	_, err := m.run(ctx, commandTimeout, m.sdk.AdbPath, "version")
	return err == nil
}
