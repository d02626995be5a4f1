package device

// Platform identifies which toolchain owns a device.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

// Status represents the current operational state of a virtual device.
type Status string

const (
	StatusUnknown  Status = "Unknown"
	StatusCreating Status = "Creating"
	StatusStarting Status = "Starting"
	StatusRunning  Status = "Running"
	StatusStopping Status = "Stopping"
	StatusStopped  Status = "Stopped"
	StatusError    Status = "Error"
)

// Category groups hardware profiles for filtering in the create form.
type Category string

const (
	CategoryPhone      Category = "phone"
	CategoryTablet     Category = "tablet"
	CategoryWear       Category = "wear"
	CategoryTV         Category = "tv"
	CategoryAutomotive Category = "automotive"
	CategoryDesktop    Category = "desktop"
)

// ApiLevelUnknown marks a device whose API level could not be resolved by any
// parsing strategy. It is a deliberate sentinel, never a guessed default.
const ApiLevelUnknown = 0

// Device is the capability set shared by both platforms. Platform-specific
// fields live on the concrete structs, not behind this interface.
type Device interface {
	// ID returns the lookup identifier: AVD name on Android, UDID on iOS.
	ID() string
	// DisplayName returns the name surfaced to the UI. Never empty for a
	// device that made it through parsing.
	DisplayName() string
	GetStatus() Status
	// IsRunning is derived and always equals GetStatus() == StatusRunning.
	IsRunning() bool
}

// AndroidDevice represents an Android Virtual Device (AVD).
type AndroidDevice struct {
	Name       string `json:"name"`
	DeviceType string `json:"device_type"`
	APILevel   int    `json:"api_level"`
	Status     Status `json:"status"`
	Running    bool   `json:"is_running"`
	// RAM allocation carrying the unit, e.g. "2048"
	RAMSize string `json:"ram_size"`
	// Storage size carrying the unit, e.g. "8192M"
	StorageSize string `json:"storage_size"`
}

func (d *AndroidDevice) ID() string          { return d.Name }
func (d *AndroidDevice) DisplayName() string { return d.Name }
func (d *AndroidDevice) GetStatus() Status   { return d.Status }
func (d *AndroidDevice) IsRunning() bool     { return d.Running }

// IosDevice represents an iOS simulator.
type IosDevice struct {
	Name           string `json:"name"`
	UDID           string `json:"udid"`
	DeviceType     string `json:"device_type"`
	IosVersion     string `json:"ios_version"`
	RuntimeVersion string `json:"runtime_version"`
	Status         Status `json:"status"`
	Running        bool   `json:"is_running"`
	// Available reports whether the backing simulator runtime is installed
	// and usable.
	Available bool `json:"is_available"`
}

func (d *IosDevice) ID() string          { return d.UDID }
func (d *IosDevice) DisplayName() string { return d.Name }
func (d *IosDevice) GetStatus() Status   { return d.Status }
func (d *IosDevice) IsRunning() bool     { return d.Running }

// Config is a one-shot device creation request, consumed by CreateDevice.
type Config struct {
	Name       string
	DeviceType string
	// Version holds the Android API level or the iOS runtime identifier.
	Version     string
	RAMSize     string
	StorageSize string
	// AdditionalOptions carries free-form tool hints, e.g. "tag" or "abi"
	// overrides for system image resolution.
	AdditionalOptions map[string]string
}

// NewConfig builds a creation request with the required identity fields.
func NewConfig(name, deviceType, version string) Config {
	return Config{
		Name:              name,
		DeviceType:        deviceType,
		Version:           version,
		AdditionalOptions: map[string]string{},
	}
}
