package android

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/arnavsurve/emuctl/internal/device"
	"github.com/arnavsurve/emuctl/internal/process"
	"github.com/arnavsurve/emuctl/internal/sdk"
)

func testSDK() *sdk.AndroidSDK {
	return &sdk.AndroidSDK{
		Root:           "/opt/android-sdk",
		AvdManagerPath: "avdmanager",
		SdkManagerPath: "sdkmanager",
		EmulatorPath:   "emulator",
		AdbPath:        "adb",
	}
}

func newTestManager(t *testing.T, rec *process.Recorder) *Manager {
	t.Helper()
	return NewManagerWithExecutor(rec, testSDK(), t.TempDir())
}

func TestListDevicesAllStopped(t *testing.T) {
	rec := process.NewRecorder().
		WithStdout("avdmanager", []string{"list", "avd"}, threeBlockOutput).
		WithStdout("adb", []string{"devices"}, "List of devices attached\n\n")

	m := newTestManager(t, rec)
	devices, err := m.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("expected 3 devices, got %d", len(devices))
	}
	for _, d := range devices {
		if d.Status != device.StatusStopped || d.Running {
			t.Fatalf("device %s: expected Stopped, got %s running=%v", d.Name, d.Status, d.Running)
		}
	}
	if devices[0].APILevel != 34 {
		t.Fatalf("expected API 34 for %s, got %d", devices[0].Name, devices[0].APILevel)
	}
}

func TestListDevicesRunningAndOffline(t *testing.T) {
	rec := process.NewRecorder().
		WithStdout("avdmanager", []string{"list", "avd"}, threeBlockOutput).
		WithStdout("adb", []string{"devices"},
			"List of devices attached\nemulator-5554\tdevice\nemulator-5556\toffline\n").
		WithStdout("adb", []string{"-s", "emulator-5554", "shell", "getprop", "ro.kernel.qemu.avd_name"},
			"Pixel_7_API_34\n")

	m := newTestManager(t, rec)
	devices, err := m.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byName := map[string]*device.AndroidDevice{}
	for _, d := range devices {
		byName[d.Name] = d
	}
	if got := byName["Pixel_7_API_34"].Status; got != device.StatusRunning {
		t.Fatalf("Pixel_7_API_34: expected Running, got %s", got)
	}
	// The offline serial is never queried or surfaced as Running.
	if got := byName["Galaxy_S22_API_33"].Status; got != device.StatusStopped {
		t.Fatalf("Galaxy_S22_API_33: expected Stopped, got %s", got)
	}
	if rec.CalledWith("emulator-5556") {
		t.Fatal("offline serial should not be queried for its AVD name")
	}
}

func TestListDevicesAdbUnavailable(t *testing.T) {
	rec := process.NewRecorder().
		WithStdout("avdmanager", []string{"list", "avd"}, threeBlockOutput).
		WithError("adb", []string{"devices"}, os.ErrNotExist)

	m := newTestManager(t, rec)
	devices, err := m.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("adb failure must not fail the listing: %v", err)
	}
	for _, d := range devices {
		if d.Status != device.StatusStopped {
			t.Fatalf("device %s: expected Stopped without adb, got %s", d.Name, d.Status)
		}
	}
}

func TestAvdNameForSerialConsoleFallback(t *testing.T) {
	rec := process.NewRecorder().
		WithStdout("adb", []string{"-s", "emulator-5554", "shell", "getprop", "ro.kernel.qemu.avd_name"}, "\n").
		WithStdout("adb", []string{"-s", "emulator-5554", "emu", "avd", "name"}, "Pixel_7_API_34\nOK\n")

	m := newTestManager(t, rec)
	if got := m.avdNameForSerial(context.Background(), "emulator-5554"); got != "Pixel_7_API_34" {
		t.Fatalf("expected console fallback name, got %q", got)
	}
}

func TestAvdNameForSerialRejectsConsoleNoise(t *testing.T) {
	rec := process.NewRecorder().
		WithStdout("adb", []string{"-s", "emulator-5554", "shell", "getprop", "ro.kernel.qemu.avd_name"}, "").
		WithStdout("adb", []string{"-s", "emulator-5554", "emu", "avd", "name"}, "KO\n")

	m := newTestManager(t, rec)
	if got := m.avdNameForSerial(context.Background(), "emulator-5554"); got != "" {
		t.Fatalf("expected empty name for console error output, got %q", got)
	}
}

func TestStartDeviceBootsAndPolls(t *testing.T) {
	rec := process.NewRecorder().
		WithStdout("adb", []string{"wait-for-device"}, "").
		WithStdout("adb", []string{"devices"},
			"List of devices attached\nemulator-5554\tdevice\n").
		WithStdout("adb", []string{"-s", "emulator-5554", "shell", "getprop", "ro.kernel.qemu.avd_name"},
			"Pixel_7_API_34\n").
		WithStdout("adb", []string{"-s", "emulator-5554", "shell", "getprop", "sys.boot_completed"}, "1\n")

	m := newTestManager(t, rec)
	if err := m.StartDevice(context.Background(), "Pixel_7_API_34"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.CalledWith("emulator -avd Pixel_7_API_34") {
		t.Fatalf("emulator was not spawned: %v", rec.Calls())
	}
}

func TestStopDeviceNotRunningIsNoop(t *testing.T) {
	rec := process.NewRecorder().
		WithStdout("adb", []string{"devices"}, "List of devices attached\n")

	m := newTestManager(t, rec)
	if err := m.StopDevice(context.Background(), "Pixel_7_API_34"); err != nil {
		t.Fatalf("stopping a stopped device must not fail: %v", err)
	}
	if rec.CalledWith("emu kill") {
		t.Fatal("no kill should be issued without a serial")
	}
}

func TestCreateDeviceResolvesSystemImage(t *testing.T) {
	sdkList := `Installed packages:
  system-images;android-34;google_apis;arm64-v8a | 1 | Google APIs ARM 64 v8a System Image
  platform-tools | 35.0.0 | Android SDK Platform-Tools

Available Packages:
  system-images;android-35;google_apis;arm64-v8a | 1 | not installed
`
	rec := process.NewRecorder().
		WithStdout("avdmanager", []string{"list", "avd"}, "").
		WithStdout("adb", []string{"devices"}, "List of devices attached\n").
		WithStdout("sdkmanager", []string{"--list"}, sdkList).
		WithStdout("avdmanager", []string{"create", "avd", "-n", "Test_Phone", "-k",
			"system-images;android-34;google_apis;arm64-v8a", "--device", "pixel_7"}, "")

	m := newTestManager(t, rec)
	cfg := device.NewConfig("Test Phone", "pixel_7", "34")
	if err := m.CreateDevice(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.CalledWith("create avd -n Test_Phone") {
		t.Fatalf("sanitized name not used: %v", rec.Calls())
	}
}

func TestCreateDeviceMissingImage(t *testing.T) {
	rec := process.NewRecorder().
		WithStdout("avdmanager", []string{"list", "avd"}, "").
		WithStdout("adb", []string{"devices"}, "List of devices attached\n").
		WithStdout("sdkmanager", []string{"--list"}, "Installed packages:\n  platform-tools | 35.0.0 | tools\n")

	m := newTestManager(t, rec)
	err := m.CreateDevice(context.Background(), device.NewConfig("NoImage", "pixel_7", "99"))
	if err == nil {
		t.Fatal("expected a creation error")
	}
	var createErr *device.CreationError
	if !errors.As(err, &createErr) {
		t.Fatalf("expected CreationError, got %T: %v", err, err)
	}
	if createErr.Hint == "" {
		t.Fatal("expected an actionable hint")
	}
}

func TestCreateDeviceDuplicateName(t *testing.T) {
	rec := process.NewRecorder().
		WithStdout("avdmanager", []string{"list", "avd"}, threeBlockOutput).
		WithStdout("adb", []string{"devices"}, "List of devices attached\n")

	m := newTestManager(t, rec)
	err := m.CreateDevice(context.Background(), device.NewConfig("Pixel_7_API_34", "pixel_7", "34"))
	var createErr *device.CreationError
	if !errors.As(err, &createErr) {
		t.Fatalf("expected CreationError for duplicate name, got %v", err)
	}
}

func TestDeleteDeviceNotFound(t *testing.T) {
	rec := process.NewRecorder().
		WithStdout("adb", []string{"devices"}, "List of devices attached\n").
		WithExit("avdmanager", []string{"delete", "avd", "-n", "Ghost"}, 1,
			"Error: There is no Android Virtual Device named 'Ghost'")

	m := newTestManager(t, rec)
	err := m.DeleteDevice(context.Background(), "Ghost")
	if !errors.Is(err, device.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestWipeDeviceRemovesUserData(t *testing.T) {
	rec := process.NewRecorder().
		WithStdout("adb", []string{"devices"}, "List of devices attached\n")

	home := t.TempDir()
	avdDir := filepath.Join(home, "Pixel_7.avd")
	if err := os.MkdirAll(filepath.Join(avdDir, "snapshots", "default_boot"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"userdata.img", "userdata-qemu.img", "cache.img", "config.ini"} {
		if err := os.WriteFile(filepath.Join(avdDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	m := NewManagerWithExecutor(rec, testSDK(), home)
	if err := m.WipeDevice(context.Background(), "Pixel_7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, gone := range []string{"userdata.img", "userdata-qemu.img", "cache.img", "snapshots"} {
		if _, err := os.Stat(filepath.Join(avdDir, gone)); !os.IsNotExist(err) {
			t.Fatalf("%s should have been removed", gone)
		}
	}
	if _, err := os.Stat(filepath.Join(avdDir, "config.ini")); err != nil {
		t.Fatal("config.ini must survive a wipe")
	}
}

func TestWipeDeviceUnknownName(t *testing.T) {
	rec := process.NewRecorder().
		WithStdout("adb", []string{"devices"}, "List of devices attached\n")

	m := newTestManager(t, rec)
	if err := m.WipeDevice(context.Background(), "Ghost"); !errors.Is(err, device.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestSanitizeAvdName(t *testing.T) {
	cases := map[string]string{
		"Test Phone":     "Test_Phone",
		"pixel-7_ok.avd": "pixel-7_ok.avd",
		"weird!!name":    "weird_name",
		"__":             "",
	}
	for in, want := range cases {
		if got := sanitizeAvdName(in); got != want {
			t.Fatalf("sanitize %q: expected %q, got %q", in, want, got)
		}
	}
}
