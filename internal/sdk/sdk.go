// Package sdk resolves the Android SDK root and its command-line tools once
// at startup. Managers receive resolved paths; nothing reads the environment
// during parsing.
package sdk

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/arnavsurve/emuctl/internal/device"
)

const (
	envAndroidHome    = "ANDROID_HOME"
	envAndroidSdkRoot = "ANDROID_SDK_ROOT"
)

// AndroidSDK holds the resolved tool paths for one SDK installation.
type AndroidSDK struct {
	Root           string
	AvdManagerPath string
	SdkManagerPath string
	EmulatorPath   string
	AdbPath        string
}

// FindAndroidSDK locates the SDK from an explicit override, ANDROID_HOME,
// ANDROID_SDK_ROOT, or the platform default, in that order. A missing SDK is
// a constructor-time error wrapping device.ErrSdkUnavailable.
func FindAndroidSDK(override string) (*AndroidSDK, error) {
	root := override
	if root == "" {
		root = os.Getenv(envAndroidHome)
	}
	if root == "" {
		root = os.Getenv(envAndroidSdkRoot)
	}
	if root == "" {
		root = defaultSdkPath()
	}
	if root == "" {
		return nil, fmt.Errorf("%w: set %s or %s", device.ErrSdkUnavailable, envAndroidHome, envAndroidSdkRoot)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", device.ErrSdkUnavailable, root)
	}

	sdk := &AndroidSDK{Root: root}

	var err error
	if sdk.AvdManagerPath, err = findTool(root, "avdmanager"); err != nil {
		return nil, err
	}
	if sdk.EmulatorPath, err = findTool(root, "emulator"); err != nil {
		return nil, err
	}
	// sdkmanager and adb are soft requirements: catalog queries and status
	// cross-referencing degrade without them, listing still works.
	sdk.SdkManagerPath, _ = findTool(root, "sdkmanager")
	if p := filepath.Join(root, "platform-tools", "adb"); exists(p) {
		sdk.AdbPath = p
	} else {
		sdk.AdbPath = "adb"
	}

	return sdk, nil
}

// findTool searches the SDK layouts that have shipped over the years:
// cmdline-tools/latest/bin, tools/bin, and the emulator directory.
func findTool(root, tool string) (string, error) {
	candidates := []string{
		filepath.Join(root, "cmdline-tools", "latest", "bin", tool),
		filepath.Join(root, "tools", "bin", tool),
		filepath.Join(root, "emulator", tool),
	}
	for _, p := range candidates {
		if exists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tool %q not found under %s", device.ErrSdkUnavailable, tool, root)
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func defaultSdkPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Android", "sdk")
	case "windows":
		return filepath.Join(home, "AppData", "Local", "Android", "Sdk")
	default:
		return filepath.Join(home, "Android", "Sdk")
	}
}

// AvdHome returns the directory where AVD definitions live.
func AvdHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".android", "avd")
}
