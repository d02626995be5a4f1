package android

import (
	"context"
	"testing"

	"github.com/arnavsurve/emuctl/internal/device"
	"github.com/arnavsurve/emuctl/internal/process"
)

const deviceListOutput = `Available devices definitions:
id: 0 or "automotive_1024p_landscape"
    Name: Automotive (1024p landscape)
    OEM : Google
---------
id: 9 or "Nexus 5"
    Name: Nexus 5
    OEM : Google
---------
id: 17 or "pixel_7"
    Name: Pixel 7
    OEM : Google
---------
id: 30 or "wearos_small_round"
    Name: Wear OS Small Round
    OEM : Google
`

func TestListAvailableDevicesSortedByPriority(t *testing.T) {
	rec := process.NewRecorder().
		WithStdout("avdmanager", []string{"list", "device"}, deviceListOutput)

	m := newTestManager(t, rec)
	entries, err := m.ListAvailableDevices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 profiles, got %d", len(entries))
	}
	// Pixel before Nexus before the rest.
	if entries[0].ID != "pixel_7" {
		t.Fatalf("expected pixel_7 first, got %s", entries[0].ID)
	}
	if entries[1].ID != "Nexus 5" {
		t.Fatalf("expected Nexus 5 second, got %s", entries[1].ID)
	}
}

func TestListAvailableTargetsNewestFirst(t *testing.T) {
	sdkList := `Installed packages:
  system-images;android-33;google_apis;x86_64 | 1 | image
  system-images;android-34;google_apis;arm64-v8a | 1 | image
  system-images;android-34;default;arm64-v8a | 1 | image
`
	rec := process.NewRecorder().
		WithStdout("sdkmanager", []string{"--list"}, sdkList)

	m := newTestManager(t, rec)
	entries, err := m.ListAvailableTargets(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 API levels after dedup, got %d", len(entries))
	}
	if entries[0].ID != "34" || entries[1].ID != "33" {
		t.Fatalf("expected 34 then 33, got %s then %s", entries[0].ID, entries[1].ID)
	}
	if entries[0].Display != "API 34 - Android 14" {
		t.Fatalf("unexpected display: %q", entries[0].Display)
	}
}

func TestListDevicesByCategory(t *testing.T) {
	rec := process.NewRecorder().
		WithStdout("avdmanager", []string{"list", "device"}, deviceListOutput)

	m := newTestManager(t, rec)
	entries, err := m.ListDevicesByCategory(context.Background(), "wear")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "wearos_small_round" {
		t.Fatalf("expected only the wear profile, got %+v", entries)
	}
}

func TestFilterByCategory(t *testing.T) {
	entries := []CatalogEntry{
		{ID: "pixel_7", Display: "Pixel 7"},
		{ID: "pixel_tablet", Display: "Pixel Tablet"},
		{ID: "wearos_small_round", Display: "Wear OS Small Round"},
	}

	phones := FilterByCategory(entries, "phone")
	if len(phones) != 1 || phones[0].ID != "pixel_7" {
		t.Fatalf("expected only pixel_7, got %+v", phones)
	}
	if got := FilterByCategory(entries, "all"); len(got) != 3 {
		t.Fatalf("\"all\" must pass everything through, got %d entries", len(got))
	}
	if got := FilterByCategory(entries, ""); len(got) != 3 {
		t.Fatalf("empty category must pass everything through, got %d entries", len(got))
	}
}

func TestDeviceCategory(t *testing.T) {
	cases := []struct {
		id, display string
		want        device.Category
	}{
		{"pixel_7", "Pixel 7", device.CategoryPhone},
		{"pixel_tablet", "Pixel Tablet", device.CategoryTablet},
		{"wearos_small_round", "Wear OS Small Round", device.CategoryWear},
		{"tv_1080p", "Television (1080p)", device.CategoryTV},
		{"automotive_1024p_landscape", "Automotive (1024p landscape)", device.CategoryAutomotive},
		{"desktop_medium", "Medium Desktop", device.CategoryDesktop},
		{"10.1in WXGA", "10.1in WXGA (Tablet)", device.CategoryTablet},
	}
	for _, tc := range cases {
		if got := DeviceCategory(tc.id, tc.display); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.id, tc.want, got)
		}
	}
}
