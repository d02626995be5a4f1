package state

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arnavsurve/emuctl/internal/device"
)

// FormField is the focused field of the create-device form.
type FormField int

const (
	FieldApiLevel FormField = iota
	FieldCategory
	FieldDeviceType
	FieldRamSize
	FieldStorageSize
	FieldName
)

func (f FormField) String() string {
	switch f {
	case FieldApiLevel:
		return "api level"
	case FieldCategory:
		return "category"
	case FieldDeviceType:
		return "device type"
	case FieldRamSize:
		return "ram"
	case FieldStorageSize:
		return "storage"
	case FieldName:
		return "name"
	default:
		return "unknown"
	}
}

// FormOption is one selectable catalog row: the tool identifier plus its
// display form.
type FormOption struct {
	ID      string
	Display string
}

// CreateDeviceForm drives the create dialog. Tab/shift-tab cycle fields,
// left/right move within a field's options, up/down deliberately do nothing.
type CreateDeviceForm struct {
	Platform device.Platform
	Active   FormField

	ApiLevels   []FormOption
	Categories  []FormOption
	DeviceTypes []FormOption

	SelectedApiLevel   int
	SelectedCategory   int
	SelectedDeviceType int

	Name        string
	RamSize     string
	StorageSize string

	ErrorMessage string
}

func NewCreateDeviceForm(platform device.Platform) *CreateDeviceForm {
	return &CreateDeviceForm{
		Platform: platform,
		Active:   FieldApiLevel,
	}
}

var androidFieldCycle = []FormField{
	FieldApiLevel, FieldCategory, FieldDeviceType, FieldRamSize, FieldStorageSize, FieldName,
}

var iosFieldCycle = []FormField{
	FieldApiLevel, FieldDeviceType, FieldName,
}

// NextField advances focus, wrapping at the end of the platform's cycle. A
// focus left on an Android-only field when the platform is iOS falls back to
// the cycle start.
func (f *CreateDeviceForm) NextField() {
	f.Active = f.step(1)
}

func (f *CreateDeviceForm) PrevField() {
	f.Active = f.step(-1)
}

func (f *CreateDeviceForm) step(direction int) FormField {
	cycle := androidFieldCycle
	if f.Platform == device.PlatformIOS {
		cycle = iosFieldCycle
	}
	idx := -1
	for i, field := range cycle {
		if field == f.Active {
			idx = i
			break
		}
	}
	if idx == -1 {
		return cycle[0]
	}
	return cycle[(idx+direction+len(cycle))%len(cycle)]
}

// MoveOption shifts the focused field's selection left or right, clamped.
// Non-option fields ignore the movement.
func (f *CreateDeviceForm) MoveOption(delta int) {
	switch f.Active {
	case FieldApiLevel:
		f.SelectedApiLevel = clampIndex(f.SelectedApiLevel+delta, len(f.ApiLevels))
	case FieldCategory:
		f.SelectedCategory = clampIndex(f.SelectedCategory+delta, len(f.Categories))
		// A category change invalidates the device-type selection.
		f.SelectedDeviceType = 0
	case FieldDeviceType:
		f.SelectedDeviceType = clampIndex(f.SelectedDeviceType+delta, len(f.DeviceTypes))
	}
	f.ErrorMessage = ""
}

// Backspace removes the last rune of the focused text field. Option fields
// ignore it.
func (f *CreateDeviceForm) Backspace() {
	trim := func(s string) string {
		r := []rune(s)
		if len(r) == 0 {
			return s
		}
		return string(r[:len(r)-1])
	}
	switch f.Active {
	case FieldName:
		f.Name = trim(f.Name)
	case FieldRamSize:
		f.RamSize = trim(f.RamSize)
	case FieldStorageSize:
		f.StorageSize = trim(f.StorageSize)
	}
	f.ErrorMessage = ""
}

func (f *CreateDeviceForm) selectedOption(options []FormOption, idx int) (FormOption, bool) {
	if len(options) == 0 {
		return FormOption{}, false
	}
	return options[clampIndex(idx, len(options))], true
}

func (f *CreateDeviceForm) ApiLevel() (FormOption, bool) {
	return f.selectedOption(f.ApiLevels, f.SelectedApiLevel)
}

func (f *CreateDeviceForm) Category() (FormOption, bool) {
	return f.selectedOption(f.Categories, f.SelectedCategory)
}

func (f *CreateDeviceForm) DeviceType() (FormOption, bool) {
	return f.selectedOption(f.DeviceTypes, f.SelectedDeviceType)
}

// PlaceholderName derives a name from the chosen device type and version,
// used when the user leaves the name empty.
func (f *CreateDeviceForm) PlaceholderName() string {
	dt, okType := f.DeviceType()
	api, okApi := f.ApiLevel()
	if !okType || !okApi {
		return ""
	}
	base := strings.ReplaceAll(dt.Display, " ", "_")
	if f.Platform == device.PlatformAndroid {
		return fmt.Sprintf("%s_API_%s", base, api.ID)
	}
	return fmt.Sprintf("%s iOS %s", dt.Display, strings.TrimPrefix(api.Display, "iOS "))
}

// Validate checks the focused requirements field-locally and records at most
// one error message, cleared on the next successful input.
func (f *CreateDeviceForm) Validate() bool {
	if _, ok := f.ApiLevel(); !ok {
		f.ErrorMessage = "no version selected"
		return false
	}
	if _, ok := f.DeviceType(); !ok {
		f.ErrorMessage = "no device type selected"
		return false
	}
	if strings.TrimSpace(f.Name) == "" && f.PlaceholderName() == "" {
		f.ErrorMessage = "name cannot be empty"
		return false
	}
	if f.Platform == device.PlatformAndroid {
		if f.RamSize != "" && !isNumericSize(f.RamSize) {
			f.ErrorMessage = "ram must be a number, optionally with M or G"
			return false
		}
		if f.StorageSize != "" && !isNumericSize(f.StorageSize) {
			f.ErrorMessage = "storage must be a number, optionally with M or G"
			return false
		}
	}
	f.ErrorMessage = ""
	return true
}

func isNumericSize(s string) bool {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimSuffix(s, "M"), "G")
	if s == "" {
		return false
	}
	_, err := strconv.Atoi(s)
	return err == nil
}

// Config turns a validated form into a creation request.
func (f *CreateDeviceForm) Config() device.Config {
	api, _ := f.ApiLevel()
	dt, _ := f.DeviceType()

	name := strings.TrimSpace(f.Name)
	if name == "" {
		name = f.PlaceholderName()
	}
	cfg := device.NewConfig(name, dt.ID, api.ID)
	if f.Platform == device.PlatformAndroid {
		cfg.RAMSize = f.RamSize
		cfg.StorageSize = f.StorageSize
	}
	return cfg
}
