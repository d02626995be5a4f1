package android

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/arnavsurve/emuctl/internal/device"
	"github.com/arnavsurve/emuctl/internal/device/rank"
)

var (
	deviceIDRegex  = regexp.MustCompile(`id:\s*\d+\s*or\s*"(.+)"`)
	deviceOEMRegex = regexp.MustCompile(`OEM\s*:\s*(.+)`)
)

// CatalogEntry pairs a tool identifier with its display form, e.g.
// ("pixel_7", "Pixel 7") or ("34", "API 34 - Android 14").
type CatalogEntry struct {
	ID      string
	Display string
}

// ListAvailableDevices parses `avdmanager list device` into hardware
// profiles, sorted by model priority. A missing SDK yields an empty catalog
// plus the error, never a panic.
func (m *Manager) ListAvailableDevices(ctx context.Context) ([]CatalogEntry, error) {
	output, err := m.run(ctx, catalogTimeout, m.sdk.AvdManagerPath, "list", "device")
	if err != nil {
		return nil, fmt.Errorf("list device definitions: %w", err)
	}

	var (
		entries       []CatalogEntry
		id, name, oem string
	)

	flush := func() {
		if id == "" {
			return
		}
		display := name
		if oem != "" && oem != "Generic" {
			display = fmt.Sprintf("%s (%s)", name, oem)
		}
		entries = append(entries, CatalogEntry{ID: id, Display: display})
		id, name, oem = "", "", ""
	}

	for _, line := range strings.Split(output, "\n") {
		switch {
		case deviceIDRegex.MatchString(line):
			id = deviceIDRegex.FindStringSubmatch(line)[1]
		case strings.Contains(line, "Name:"):
			if caps := avdNameRegex.FindStringSubmatch(strings.TrimSpace(line)); caps != nil {
				name = strings.TrimSpace(caps[1])
			}
		case deviceOEMRegex.MatchString(line):
			oem = strings.TrimSpace(deviceOEMRegex.FindStringSubmatch(line)[1])
		case strings.Contains(line, "-----"):
			flush()
		}
	}
	flush()

	sort.SliceStable(entries, func(i, j int) bool {
		return rank.AndroidDevicePriority(entries[i].ID, entries[i].Display) <
			rank.AndroidDevicePriority(entries[j].ID, entries[j].Display)
	})
	return entries, nil
}

// ListAvailableTargets derives the installable API levels from the system
// images already present, newest first, with marketing names attached.
func (m *Manager) ListAvailableTargets(ctx context.Context) ([]CatalogEntry, error) {
	images, err := m.ListAvailableSystemImages(ctx)
	if err != nil {
		return nil, err
	}

	seen := map[string]string{}
	for _, image := range images {
		parts := strings.Split(image, ";")
		if len(parts) < 4 {
			continue
		}
		apiLevel, ok := strings.CutPrefix(parts[1], "android-")
		if !ok {
			continue
		}
		api, err := strconv.Atoi(apiLevel)
		if err != nil {
			continue
		}
		seen[apiLevel] = fmt.Sprintf("API %s - Android %s", apiLevel, rank.AndroidVersionName(api))
	}

	entries := lo.MapToSlice(seen, func(id, display string) CatalogEntry {
		return CatalogEntry{ID: id, Display: display}
	})
	sort.Slice(entries, func(i, j int) bool {
		a, _ := strconv.Atoi(entries[i].ID)
		b, _ := strconv.Atoi(entries[j].ID)
		return a > b
	})
	return entries, nil
}

// ListAvailableSystemImages returns installed system image package ids
// (`system-images;android-34;google_apis;arm64-v8a`) from sdkmanager.
func (m *Manager) ListAvailableSystemImages(ctx context.Context) ([]string, error) {
	if m.sdk.SdkManagerPath == "" {
		return nil, fmt.Errorf("%w: sdkmanager not found", device.ErrSdkUnavailable)
	}

	output, err := m.run(ctx, catalogTimeout, m.sdk.SdkManagerPath, "--list")
	if err != nil {
		return nil, fmt.Errorf("list system images: %w", err)
	}

	var (
		images      []string
		inAvailable bool
	)
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "Available Packages") {
			inAvailable = true
			continue
		}
		if inAvailable {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) == 0 || !strings.HasPrefix(fields[0], "system-images;") {
			continue
		}
		images = append(images, fields[0])
	}
	return lo.Uniq(images), nil
}

// firstAvailableSystemImage picks an installed (tag, abi) pair for an API
// level, preferring Play Store images on the host's preferred architecture.
func (m *Manager) firstAvailableSystemImage(ctx context.Context, apiLevel string) (tag, abi string, ok bool) {
	images, err := m.ListAvailableSystemImages(ctx)
	if err != nil {
		return "", "", false
	}

	prefix := "system-images;android-" + apiLevel + ";"
	tagOrder := []string{"google_apis_playstore", "google_apis", "default"}
	preferredABI := hostPreferredABI()

	type variant struct{ tag, abi string }
	var variants []variant
	for _, image := range images {
		rest, found := strings.CutPrefix(image, prefix)
		if !found {
			continue
		}
		parts := strings.Split(rest, ";")
		if len(parts) != 2 {
			continue
		}
		variants = append(variants, variant{tag: parts[0], abi: parts[1]})
	}
	if len(variants) == 0 {
		return "", "", false
	}

	for _, wantTag := range tagOrder {
		for _, v := range variants {
			if v.tag == wantTag && v.abi == preferredABI {
				return v.tag, v.abi, true
			}
		}
	}
	for _, wantTag := range tagOrder {
		for _, v := range variants {
			if v.tag == wantTag {
				return v.tag, v.abi, true
			}
		}
	}
	return variants[0].tag, variants[0].abi, true
}

func hostPreferredABI() string {
	if runtime.GOARCH == "arm64" {
		return "arm64-v8a"
	}
	return "x86_64"
}

// DeviceCategory infers a category from the hardware profile's id and
// display name, defaulting to phone.
func DeviceCategory(deviceID, display string) device.Category {
	combined := strings.ToLower(deviceID + " " + display)
	hasInch := strings.Contains(combined, "inch")

	switch {
	case strings.Contains(combined, "wear") || strings.Contains(combined, "watch") ||
		(strings.Contains(combined, "round") && !strings.Contains(combined, "tablet")):
		return device.CategoryWear
	case strings.Contains(combined, "tv") || strings.Contains(combined, "1080p") ||
		strings.Contains(combined, "4k") || strings.Contains(combined, "720p"):
		return device.CategoryTV
	case strings.Contains(combined, "auto") || strings.Contains(combined, "car"):
		return device.CategoryAutomotive
	case strings.Contains(combined, "desktop") ||
		(hasInch && (strings.Contains(combined, "15") || strings.Contains(combined, "17"))):
		return device.CategoryDesktop
	case strings.Contains(combined, "tablet") || strings.Contains(combined, "pad") ||
		(hasInch && (strings.Contains(combined, "10") || strings.Contains(combined, "11") ||
			strings.Contains(combined, "12") || strings.Contains(combined, "13"))):
		return device.CategoryTablet
	default:
		return device.CategoryPhone
	}
}

// ListDevicesByCategory filters the hardware catalog. "all" or empty keeps
// everything.
func (m *Manager) ListDevicesByCategory(ctx context.Context, category string) ([]CatalogEntry, error) {
	entries, err := m.ListAvailableDevices(ctx)
	if err != nil {
		return nil, err
	}
	return FilterByCategory(entries, category), nil
}

// FilterByCategory keeps the entries whose inferred category matches. An
// empty category or "all" passes everything through.
func FilterByCategory(entries []CatalogEntry, category string) []CatalogEntry {
	if category == "" || category == "all" {
		return entries
	}
	return lo.Filter(entries, func(e CatalogEntry, _ int) bool {
		return string(DeviceCategory(e.ID, e.Display)) == category
	})
}
