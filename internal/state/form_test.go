package state

import (
	"testing"

	"github.com/arnavsurve/emuctl/internal/device"
)

func populatedAndroidForm() *CreateDeviceForm {
	f := NewCreateDeviceForm(device.PlatformAndroid)
	f.ApiLevels = []FormOption{
		{ID: "34", Display: "API 34 - Android 14"},
		{ID: "33", Display: "API 33 - Android 13"},
	}
	f.Categories = []FormOption{
		{ID: "phone", Display: "Phone"},
		{ID: "tablet", Display: "Tablet"},
	}
	f.DeviceTypes = []FormOption{
		{ID: "pixel_7", Display: "Pixel 7"},
		{ID: "pixel_tablet", Display: "Pixel Tablet"},
	}
	return f
}

func populatedIosForm() *CreateDeviceForm {
	f := NewCreateDeviceForm(device.PlatformIOS)
	f.ApiLevels = []FormOption{
		{ID: "com.apple.CoreSimulator.SimRuntime.iOS-17-0", Display: "iOS 17.0"},
	}
	f.DeviceTypes = []FormOption{
		{ID: "com.apple.CoreSimulator.SimDeviceType.iPhone-15", Display: "iPhone 15"},
	}
	return f
}

func TestAndroidFieldCycleClosesAfterSix(t *testing.T) {
	f := populatedAndroidForm()
	want := []FormField{
		FieldCategory, FieldDeviceType, FieldRamSize, FieldStorageSize, FieldName, FieldApiLevel,
	}
	for i, expect := range want {
		f.NextField()
		if f.Active != expect {
			t.Fatalf("step %d: expected %s, got %s", i+1, expect, f.Active)
		}
	}
}

func TestIosFieldCycleClosesAfterThree(t *testing.T) {
	f := populatedIosForm()
	want := []FormField{FieldDeviceType, FieldName, FieldApiLevel}
	for i, expect := range want {
		f.NextField()
		if f.Active != expect {
			t.Fatalf("step %d: expected %s, got %s", i+1, expect, f.Active)
		}
	}
}

func TestPrevFieldWrapsBackwards(t *testing.T) {
	f := populatedAndroidForm()
	f.PrevField()
	if f.Active != FieldName {
		t.Fatalf("expected wrap to name, got %s", f.Active)
	}
}

func TestIosFallsBackFromAndroidOnlyField(t *testing.T) {
	f := populatedIosForm()
	f.Active = FieldRamSize
	f.NextField()
	if f.Active != FieldApiLevel {
		t.Fatalf("focus on a field outside the cycle must fall back to its start, got %s", f.Active)
	}
}

func TestMoveOptionClampsAndResetsDeviceType(t *testing.T) {
	f := populatedAndroidForm()

	f.Active = FieldApiLevel
	f.MoveOption(-3)
	if f.SelectedApiLevel != 0 {
		t.Fatalf("expected clamp at 0, got %d", f.SelectedApiLevel)
	}
	f.MoveOption(10)
	if f.SelectedApiLevel != 1 {
		t.Fatalf("expected clamp at last option, got %d", f.SelectedApiLevel)
	}

	f.Active = FieldDeviceType
	f.MoveOption(1)
	if f.SelectedDeviceType != 1 {
		t.Fatalf("expected device type selection 1, got %d", f.SelectedDeviceType)
	}

	f.Active = FieldCategory
	f.ErrorMessage = "stale"
	f.MoveOption(1)
	if f.SelectedDeviceType != 0 {
		t.Fatal("category change must reset the device type selection")
	}
	if f.ErrorMessage != "" {
		t.Fatal("any option movement must clear the error message")
	}
}

func TestPlaceholderName(t *testing.T) {
	android := populatedAndroidForm()
	if got := android.PlaceholderName(); got != "Pixel_7_API_34" {
		t.Fatalf("unexpected android placeholder: %q", got)
	}

	ios := populatedIosForm()
	if got := ios.PlaceholderName(); got != "iPhone 15 iOS 17.0" {
		t.Fatalf("unexpected ios placeholder: %q", got)
	}

	empty := NewCreateDeviceForm(device.PlatformAndroid)
	if got := empty.PlaceholderName(); got != "" {
		t.Fatalf("placeholder without catalogs must be empty, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	f := NewCreateDeviceForm(device.PlatformAndroid)
	if f.Validate() {
		t.Fatal("form without catalogs must not validate")
	}
	if f.ErrorMessage != "no version selected" {
		t.Fatalf("unexpected error message: %q", f.ErrorMessage)
	}

	f = populatedAndroidForm()
	if !f.Validate() {
		t.Fatalf("populated form must validate, got %q", f.ErrorMessage)
	}

	f.RamSize = "lots"
	if f.Validate() {
		t.Fatal("non-numeric ram must fail validation")
	}
	f.RamSize = "2048M"
	f.StorageSize = "8G"
	if !f.Validate() {
		t.Fatalf("suffixed sizes must validate, got %q", f.ErrorMessage)
	}
	if f.ErrorMessage != "" {
		t.Fatal("successful validation must clear the error")
	}
}

func TestConfigUsesPlaceholderWhenNameEmpty(t *testing.T) {
	f := populatedAndroidForm()
	f.RamSize = "2048"
	cfg := f.Config()
	if cfg.Name != "Pixel_7_API_34" {
		t.Fatalf("empty name must use the placeholder, got %q", cfg.Name)
	}
	if cfg.DeviceType != "pixel_7" || cfg.Version != "34" {
		t.Fatalf("config must carry the selected ids, got %+v", cfg)
	}
	if cfg.RAMSize != "2048" {
		t.Fatalf("ram must carry through, got %q", cfg.RAMSize)
	}

	f.Name = "  My Phone  "
	cfg = f.Config()
	if cfg.Name != "My Phone" {
		t.Fatalf("explicit name must be trimmed and used, got %q", cfg.Name)
	}
}

func TestBackspaceTrimsFocusedTextField(t *testing.T) {
	f := populatedAndroidForm()
	f.Active = FieldName
	f.Name = "Pixel_7é"
	f.Backspace()
	if f.Name != "Pixel_7" {
		t.Fatalf("backspace must drop the last rune, got %q", f.Name)
	}

	f.Name = ""
	f.Backspace()
	if f.Name != "" {
		t.Fatalf("backspace on an empty field must be a no-op, got %q", f.Name)
	}

	f.Active = FieldRamSize
	f.RamSize = "2048"
	f.ErrorMessage = "stale"
	f.Backspace()
	if f.RamSize != "204" || f.ErrorMessage != "" {
		t.Fatalf("expected ram %q and a cleared error, got %q / %q", "204", f.RamSize, f.ErrorMessage)
	}

	f.Active = FieldDeviceType
	before := f.SelectedDeviceType
	f.Backspace()
	if f.SelectedDeviceType != before {
		t.Fatal("option fields must ignore backspace")
	}
}
