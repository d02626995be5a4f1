package android

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arnavsurve/emuctl/internal/device"
)

var nameSanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// sanitizeAvdName rewrites a display name into the character set avdmanager
// accepts.
func sanitizeAvdName(name string) string {
	return strings.Trim(nameSanitizeRegex.ReplaceAllString(name, "_"), "_")
}

// StartDevice boots an AVD in a detached emulator process and blocks until
// the system reports boot completion or the boot deadline passes.
func (m *Manager) StartDevice(ctx context.Context, name string) error {
	if m.sdk.EmulatorPath == "" {
		return fmt.Errorf("%w: emulator not found", device.ErrSdkUnavailable)
	}

	pid, err := m.exec.SpawnDetached(m.sdk.EmulatorPath,
		"-avd", name, "-no-audio", "-no-snapshot-save", "-no-boot-anim")
	if err != nil {
		return fmt.Errorf("launch emulator for %s: %w", name, err)
	}
	log.Debug().Str("avd", name).Int("pid", pid).Msg("emulator spawned")

	return m.waitForBoot(ctx, name)
}

// waitForBoot waits for an emulator serial to appear for the AVD, then polls
// sys.boot_completed until it reads "1".
func (m *Manager) waitForBoot(ctx context.Context, name string) error {
	deadline := time.Now().Add(bootTimeout)
	bootCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	// wait-for-device returns once any emulator is in state "device"; the
	// serial for our AVD is matched afterwards by name.
	if _, err := m.run(bootCtx, bootTimeout, m.sdk.AdbPath, "wait-for-device"); err != nil {
		return fmt.Errorf("wait for %s: %w", name, err)
	}

	for {
		serial := m.serialForName(bootCtx, name)
		if serial != "" {
			out, err := m.run(bootCtx, commandTimeout, m.sdk.AdbPath,
				"-s", serial, "shell", "getprop", "sys.boot_completed")
			if err == nil && strings.TrimSpace(out) == "1" {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s did not finish booting", device.ErrTimeout, name)
		}
		select {
		case <-bootCtx.Done():
			return fmt.Errorf("%w: %s did not finish booting", device.ErrTimeout, name)
		case <-time.After(bootPollInterval):
		}
	}
}

// serialForName finds the emulator serial currently running an AVD, or "".
func (m *Manager) serialForName(ctx context.Context, name string) string {
	running := m.runningAvdNames(ctx)
	if serial, ok := running[name]; ok {
		return serial
	}
	return running[strings.ReplaceAll(name, " ", "_")]
}

// StopDevice asks the emulator console to shut the AVD down. Asking to stop
// an AVD that is not running is not an error.
func (m *Manager) StopDevice(ctx context.Context, name string) error {
	serial := m.serialForName(ctx, name)
	if serial == "" {
		log.Debug().Str("avd", name).Msg("stop requested but no emulator serial found")
		return nil
	}
	if _, err := m.run(ctx, commandTimeout, m.sdk.AdbPath, "-s", serial, "emu", "kill"); err != nil {
		return fmt.Errorf("stop %s: %w", name, err)
	}
	return nil
}

// CreateDevice creates a new AVD from a Config, resolving an installed system
// image for the requested API level and fine-tuning the hardware profile
// afterwards.
func (m *Manager) CreateDevice(ctx context.Context, cfg device.Config) error {
	name := sanitizeAvdName(cfg.Name)
	if name == "" {
		return &device.CreationError{Name: cfg.Name, Hint: "device names need at least one letter or digit"}
	}

	existing, err := m.ListDevices(ctx)
	if err == nil {
		for _, d := range existing {
			if d.Name == name {
				return &device.CreationError{Name: name, Hint: "delete the existing device or choose another name"}
			}
		}
	}

	tag, abi, ok := m.firstAvailableSystemImage(ctx, cfg.Version)
	if !ok {
		return &device.CreationError{
			Name: name,
			Hint: fmt.Sprintf("install one with: sdkmanager \"system-images;android-%s;google_apis;%s\"", cfg.Version, hostPreferredABI()),
			Err:  fmt.Errorf("no system image installed for API %s", cfg.Version),
		}
	}
	pkg := fmt.Sprintf("system-images;android-%s;%s;%s", cfg.Version, tag, abi)

	args := []string{"create", "avd", "-n", name, "-k", pkg}
	if cfg.DeviceType != "" {
		args = append(args, "--device", cfg.DeviceType)
	}
	if _, err := m.run(ctx, commandTimeout, m.sdk.AvdManagerPath, args...); err != nil {
		return device.ClassifyCreateFailure(name, cfg.Version, err)
	}

	if err := m.fineTuneConfig(name, cfg); err != nil {
		// The AVD exists and boots; a failed tune is worth a log, not a
		// rollback.
		log.Warn().Err(err).Str("avd", name).Msg("hardware profile not applied")
	}
	return nil
}

// fineTuneConfig rewrites RAM and data partition sizes in the fresh AVD's
// config.ini. avdmanager has no flags for these, so the file is edited in
// place.
func (m *Manager) fineTuneConfig(name string, cfg device.Config) error {
	if cfg.RAMSize == "" && cfg.StorageSize == "" {
		return nil
	}
	path := filepath.Join(m.avdHome, name+".avd", "config.ini")
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	text := string(content)
	if cfg.RAMSize != "" {
		text = upsertConfigKey(text, "hw.ramSize", cfg.RAMSize)
	}
	if cfg.StorageSize != "" {
		text = upsertConfigKey(text, "disk.dataPartition.size", cfg.StorageSize)
	}
	for key, value := range cfg.AdditionalOptions {
		text = upsertConfigKey(text, key, value)
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

// upsertConfigKey replaces key=... in ini text, appending when absent.
func upsertConfigKey(text, key, value string) string {
	re := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(key) + `\s*=.*$`)
	line := key + "=" + value
	if re.MatchString(text) {
		return re.ReplaceAllString(text, line)
	}
	if !strings.HasSuffix(text, "\n") && text != "" {
		text += "\n"
	}
	return text + line + "\n"
}

// DeleteDevice removes an AVD definition, stopping it first if it is running.
func (m *Manager) DeleteDevice(ctx context.Context, name string) error {
	if serial := m.serialForName(ctx, name); serial != "" {
		if err := m.StopDevice(ctx, name); err != nil {
			return fmt.Errorf("stop before delete: %w", err)
		}
	}
	if _, err := m.run(ctx, commandTimeout, m.sdk.AvdManagerPath, "delete", "avd", "-n", name); err != nil {
		var cmdErr *device.CommandError
		if errors.As(err, &cmdErr) && strings.Contains(strings.ToLower(cmdErr.Stderr), "no avd") {
			return fmt.Errorf("%w: %s", device.ErrDeviceNotFound, name)
		}
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// WipeDevice clears user data without touching the AVD definition: the data
// partition images, cache, sdcard and snapshots go, config.ini stays.
func (m *Manager) WipeDevice(ctx context.Context, name string) error {
	if serial := m.serialForName(ctx, name); serial != "" {
		if err := m.StopDevice(ctx, name); err != nil {
			return fmt.Errorf("stop before wipe: %w", err)
		}
	}

	avdDir := filepath.Join(m.avdHome, name+".avd")
	if _, err := os.Stat(avdDir); err != nil {
		return fmt.Errorf("%w: %s", device.ErrDeviceNotFound, name)
	}

	for _, pattern := range []string{"userdata*.img*", "cache.img*", "sdcard.img*"} {
		matches, err := filepath.Glob(filepath.Join(avdDir, pattern))
		if err != nil {
			continue
		}
		for _, match := range matches {
			if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("wipe %s: %w", name, err)
			}
		}
	}
	if err := os.RemoveAll(filepath.Join(avdDir, "snapshots")); err != nil {
		return fmt.Errorf("wipe %s snapshots: %w", name, err)
	}
	return nil
}

// GetDeviceDetails returns the single device matching name.
func (m *Manager) GetDeviceDetails(ctx context.Context, name string) (*device.AndroidDevice, error) {
	devices, err := m.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, name)
}
