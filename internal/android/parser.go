package android

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/arnavsurve/emuctl/internal/device"
	"github.com/arnavsurve/emuctl/internal/device/rank"
)

// avdmanager still emits 1990s-style indented key/value blocks separated by
// dashed lines; these anchors match the lines we care about.
var (
	avdNameRegex   = regexp.MustCompile(`Name:\s*(.+)`)
	avdPathRegex   = regexp.MustCompile(`Path:\s*(.+)`)
	avdTargetRegex = regexp.MustCompile(`Target:\s*(.+)`)
	avdDeviceRegex = regexp.MustCompile(`Device:\s*(.+)`)

	basedOnRegex       = regexp.MustCompile(`Based on:\s*Android\s*([\d.]+)`)
	apiLevelRegex      = regexp.MustCompile(`API level (\d+)`)
	androidDashRegex   = regexp.MustCompile(`android-(\d+)`)
	imageSysdirRegex   = regexp.MustCompile(`image\.sysdir\.1=system-images/android-(\d+)/?`)
	targetConfigRegex  = regexp.MustCompile(`target=android-(\d+)`)
	ramConfigRegex     = regexp.MustCompile(`hw\.ramSize\s*=\s*(\S+)`)
	storageConfigRegex = regexp.MustCompile(`disk\.dataPartition\.size\s*=\s*(\S+)`)
)

const (
	defaultRAM     = "2048"
	defaultStorage = "8192M"
)

// avdBlock is one parsed `avdmanager list avd` entry. Raw holds the original
// block text for last-resort pattern matching.
type avdBlock struct {
	Name   string
	Path   string
	Target string
	Device string
	Raw    string
}

// parseAvdList splits output on dashed separators and extracts the anchored
// fields of each block. Blocks with an empty Name are discarded, never
// padded with placeholders.
func parseAvdList(output string) []avdBlock {
	var (
		blocks  []avdBlock
		current avdBlock
		open    bool
	)

	flush := func() {
		if open && current.Name != "" {
			blocks = append(blocks, current)
		}
		current = avdBlock{}
		open = false
	}

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "---") {
			flush()
			continue
		}
		if open {
			current.Raw += line + "\n"
		}

		// "Based on:" continues the Target line on some tool versions.
		if open && strings.HasPrefix(trimmed, "Based on:") {
			current.Target += " " + trimmed
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "Name:"):
			flush()
			if caps := avdNameRegex.FindStringSubmatch(trimmed); caps != nil {
				open = true
				current.Name = strings.TrimSpace(caps[1])
				current.Raw = line + "\n"
			}
		case open && strings.HasPrefix(trimmed, "Path:"):
			if caps := avdPathRegex.FindStringSubmatch(trimmed); caps != nil {
				current.Path = strings.TrimSpace(caps[1])
			}
		case open && strings.HasPrefix(trimmed, "Target:"):
			if caps := avdTargetRegex.FindStringSubmatch(trimmed); caps != nil {
				current.Target = strings.TrimSpace(caps[1])
			}
		case open && strings.HasPrefix(trimmed, "Device:"):
			if caps := avdDeviceRegex.FindStringSubmatch(trimmed); caps != nil {
				current.Device = strings.TrimSpace(caps[1])
			}
		}
	}
	flush()

	return blocks
}

// resolveAPILevel tries each strategy in order and stops at the first hit:
// the AVD's config.ini, the "Based on: Android X" target text, then any
// "API level N" / "android-N" fragment in the block. Unresolved levels stay
// at the ApiLevelUnknown sentinel.
func (m *Manager) resolveAPILevel(block avdBlock) int {
	if api := apiLevelFromConfig(m.configPath(block)); api != device.ApiLevelUnknown {
		return api
	}

	if caps := basedOnRegex.FindStringSubmatch(block.Target); caps != nil {
		if api := rank.APILevelForVersion(caps[1]); api != 0 {
			return api
		}
	}

	haystack := block.Target + "\n" + block.Raw
	if caps := apiLevelRegex.FindStringSubmatch(haystack); caps != nil {
		if api, err := strconv.Atoi(caps[1]); err == nil {
			return api
		}
	}
	if caps := androidDashRegex.FindStringSubmatch(haystack); caps != nil {
		if api, err := strconv.Atoi(caps[1]); err == nil {
			return api
		}
	}

	return device.ApiLevelUnknown
}

// configPath prefers the Path: reported by avdmanager, falling back to the
// conventional ~/.android/avd/<name>.avd location.
func (m *Manager) configPath(block avdBlock) string {
	if block.Path != "" {
		return filepath.Join(block.Path, "config.ini")
	}
	if m.avdHome == "" {
		return ""
	}
	return filepath.Join(m.avdHome, block.Name+".avd", "config.ini")
}

func apiLevelFromConfig(path string) int {
	if path == "" {
		return device.ApiLevelUnknown
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return device.ApiLevelUnknown
	}
	if caps := imageSysdirRegex.FindSubmatch(content); caps != nil {
		if api, err := strconv.Atoi(string(caps[1])); err == nil {
			return api
		}
	}
	if caps := targetConfigRegex.FindSubmatch(content); caps != nil {
		if api, err := strconv.Atoi(string(caps[1])); err == nil {
			return api
		}
	}
	return device.ApiLevelUnknown
}

// hardwareProfile reads RAM and storage strings from config.ini, keeping the
// unit suffix as reported. Unreadable configs fall back to SDK defaults.
func (m *Manager) hardwareProfile(block avdBlock) (ram, storage string) {
	ram, storage = defaultRAM, defaultStorage

	path := m.configPath(block)
	if path == "" {
		return ram, storage
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return ram, storage
	}
	if caps := ramConfigRegex.FindSubmatch(content); caps != nil {
		ram = string(caps[1])
	}
	if caps := storageConfigRegex.FindSubmatch(content); caps != nil {
		storage = string(caps[1])
	}
	return ram, storage
}

const (
	adbStateDevice       = "device"
	adbStateOffline      = "offline"
	adbStateUnauthorized = "unauthorized"
)

type adbSerial struct {
	Serial string
	State  string
}

// parseAdbSerials reads `adb devices` tab-separated lines, skipping the
// banner and anything that is not an emulator serial.
func parseAdbSerials(output string) []adbSerial {
	var serials []adbSerial
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "emulator-") {
			continue
		}
		serials = append(serials, adbSerial{Serial: fields[0], State: fields[1]})
	}
	return serials
}

// MapAdbState maps an adb device state to a device status. Every state adb
// emits resolves to Running or Stopped; an emulator is never guessed to be
// Running from a degraded state.
func MapAdbState(state string) device.Status {
	if state == adbStateDevice {
		return device.StatusRunning
	}
	return device.StatusStopped
}
