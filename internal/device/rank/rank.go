// Package rank derives stable sort priorities and human-readable version
// names for device models. Lower priority sorts first. All scoring is a pure
// function of its inputs, so results are memoized process-wide.
package rank

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

const (
	pixelMaxBonus     = 19
	pixelUnversioned  = 25
	phoneBase         = 30
	versionBase       = 100
	maxVersion        = 50
	unknownIosDevice  = 900
	categoryFoldable  = 150
	categoryPhone     = 0
	categoryTablet    = 100
	categoryTV        = 200
	categoryWear      = 300
	categoryAuto      = 400
	categoryUnmatched = 500
)

var versionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`pixel[_\s]?(\d+)`),
	regexp.MustCompile(`galaxy[_\s]?s(\d+)`),
	regexp.MustCompile(`nexus[_\s]?(\d+)`),
	regexp.MustCompile(`oneplus[_\s]?(\d+)`),
	regexp.MustCompile(`(\d+)[_\s]?pro`),
	regexp.MustCompile(`(\d+)[_\s]?plus`),
	regexp.MustCompile(`(\d+)[_\s]?ultra`),
}

var bareNumber = regexp.MustCompile(`\b(\d{1,2})\b`)

type cacheKey struct {
	id   string
	name string
}

var (
	mu           sync.Mutex
	androidCache = map[cacheKey]int{}
	iosCache     = map[string]int{}
)

// AndroidDevicePriority scores an Android hardware profile. Pixel devices
// lead, then Nexus, then OnePlus, then everything else by category, with
// newer model numbers sorting before older ones.
func AndroidDevicePriority(deviceID, displayName string) int {
	key := cacheKey{deviceID, displayName}
	mu.Lock()
	if p, ok := androidCache[key]; ok {
		mu.Unlock()
		return p
	}
	mu.Unlock()

	p := scoreAndroid(deviceID, displayName)

	mu.Lock()
	androidCache[key] = p
	mu.Unlock()
	return p
}

func scoreAndroid(deviceID, displayName string) int {
	combined := strings.ToLower(deviceID + " " + displayName)

	if strings.Contains(combined, "pixel") && !strings.Contains(combined, "nexus") {
		bonus := extractDeviceVersion(combined)
		if bonus != maxVersion {
			p := bonus - 80
			if p < 0 {
				p = 0
			}
			if p > pixelMaxBonus {
				p = pixelMaxBonus
			}
			return p
		}
		return pixelUnversioned
	}

	category := inferCategory(combined)
	version := extractDeviceVersion(combined)
	oem := oemPriority(combined)

	if category == categoryPhone {
		return phoneBase + version + oem/2
	}
	return category + oem*2 + version
}

func inferCategory(combined string) int {
	hasInch := strings.Contains(combined, "inch")
	switch {
	case strings.Contains(combined, "fold") || strings.Contains(combined, "flip"):
		return categoryFoldable
	case strings.Contains(combined, "tablet") || strings.Contains(combined, "pad") ||
		(hasInch && (strings.Contains(combined, "10") || strings.Contains(combined, "11") || strings.Contains(combined, "13"))):
		return categoryTablet
	case strings.Contains(combined, "phone") || strings.Contains(combined, "pixel") ||
		strings.Contains(combined, "galaxy") || strings.Contains(combined, "oneplus") ||
		strings.Contains(combined, "nexus"):
		return categoryPhone
	case strings.Contains(combined, "tv") || strings.Contains(combined, "1080p") || strings.Contains(combined, "4k"):
		return categoryTV
	case strings.Contains(combined, "wear") || strings.Contains(combined, "watch") || strings.Contains(combined, "round"):
		return categoryWear
	case strings.Contains(combined, "auto") || strings.Contains(combined, "car"):
		return categoryAuto
	default:
		return categoryUnmatched
	}
}

func oemPriority(combined string) int {
	switch {
	case strings.Contains(combined, "google") || strings.Contains(combined, "pixel"):
		return 0
	case strings.Contains(combined, "nexus"):
		return 1
	case strings.Contains(combined, "oneplus"):
		return 2
	case strings.Contains(combined, "samsung") || strings.Contains(combined, "galaxy"):
		return 3
	default:
		return 9
	}
}

// extractDeviceVersion maps a model number to a priority bonus where a higher
// model number yields a lower bonus, so Pixel 9 sorts before Pixel 7.
// Returns maxVersion when no version is recognizable.
func extractDeviceVersion(combined string) int {
	for _, re := range versionPatterns {
		if m := re.FindStringSubmatch(combined); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				if v > maxVersion {
					v = maxVersion
				}
				return versionBase - v
			}
		}
	}

	best := 0
	for _, m := range bareNumber.FindAllStringSubmatch(combined, -1) {
		if v, err := strconv.Atoi(m[1]); err == nil && v > best && v <= maxVersion {
			best = v
		}
	}
	if best > 0 {
		return versionBase - best
	}
	return maxVersion
}

// IosDevicePriority scores an iOS simulator by family and tier: iPhone Pro
// Max before Pro before base before SE, then iPads (Pro > Air > mini), then
// Apple TV, then Apple Watch (Ultra > Series > SE). Devices outside every
// known family keep the source ordering and sort last.
func IosDevicePriority(displayName string) int {
	mu.Lock()
	if p, ok := iosCache[displayName]; ok {
		mu.Unlock()
		return p
	}
	mu.Unlock()

	p := scoreIos(displayName)

	mu.Lock()
	iosCache[displayName] = p
	mu.Unlock()
	return p
}

func scoreIos(displayName string) int {
	name := strings.ToLower(displayName)

	if strings.Contains(name, "iphone") {
		switch {
		case strings.Contains(name, "pro max"):
			return 0
		case strings.Contains(name, "pro"):
			return 1
		case strings.Contains(name, "plus") || strings.Contains(name, "max"):
			return 2
		case strings.Contains(name, "mini"):
			return 40
		case strings.Contains(name, "se"):
			return 50
		default:
			if v := extractIosModelNumber(name); v > 0 {
				if v > 30 {
					v = 30
				}
				return 35 - v
			}
			return 49
		}
	}

	if strings.Contains(name, "ipad") {
		switch {
		case strings.Contains(name, "pro") && strings.Contains(name, "12.9"):
			return 100
		case strings.Contains(name, "pro") && strings.Contains(name, "11"):
			return 101
		case strings.Contains(name, "pro"):
			return 102
		case strings.Contains(name, "air"):
			return 110
		case strings.Contains(name, "mini"):
			return 130
		default:
			return 120
		}
	}

	if strings.Contains(name, "tv") {
		if strings.Contains(name, "4k") {
			return 200
		}
		return 210
	}

	if strings.Contains(name, "watch") {
		switch {
		case strings.Contains(name, "ultra"):
			return 300
		case strings.Contains(name, "series"):
			if v := extractIosModelNumber(name); v > 0 {
				if v > 20 {
					v = 20
				}
				return 330 - v
			}
			return 330
		case strings.Contains(name, "se"):
			return 340
		default:
			return 350
		}
	}

	return unknownIosDevice
}

func extractIosModelNumber(name string) int {
	for _, part := range strings.Fields(name) {
		if v, err := strconv.Atoi(part); err == nil && v > 0 && v <= maxVersion {
			return v
		}
		if i := strings.LastIndex(part, "-"); i >= 0 {
			if v, err := strconv.Atoi(part[i+1:]); err == nil && v > 0 && v <= maxVersion {
				return v
			}
		}
	}
	return 0
}

// androidVersionNames maps API levels to marketing names.
var androidVersionNames = map[int]string{
	36: "16",
	35: "15",
	34: "14",
	33: "13",
	32: "12L",
	31: "12",
	30: "11",
	29: "10",
	28: "9",
	27: "8.1",
	26: "8.0",
	25: "7.1",
	24: "7.0",
	23: "6.0",
	22: "5.1",
	21: "5.0",
}

// AndroidVersionName returns the marketing name for an API level, or a
// formatted placeholder outside the known range.
func AndroidVersionName(apiLevel int) string {
	if name, ok := androidVersionNames[apiLevel]; ok {
		return name
	}
	return fmt.Sprintf("API %d", apiLevel)
}

// APILevelForVersion maps an Android marketing version string (e.g. "14.0"
// from an avdmanager "Based on: Android 14.0" line) to its API level.
func APILevelForVersion(version string) int {
	major, err := strconv.Atoi(strings.SplitN(version, ".", 2)[0])
	if err != nil {
		return 0
	}
	switch major {
	case 16:
		return 36
	case 15:
		return 35
	case 14:
		return 34
	case 13:
		return 33
	case 12:
		return 32
	case 11:
		return 30
	case 10:
		return 29
	case 9:
		return 28
	case 8:
		return 26
	case 7:
		return 24
	case 6:
		return 23
	case 5:
		return 21
	default:
		// Pre-5.0 versions and anything else unmapped: report no answer so
		// callers fall through to their other resolution strategies instead
		// of trusting a bare major number as an API level.
		return 0
	}
}
