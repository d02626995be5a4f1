// Package state holds the single mutable source of truth for the UI: device
// lists, selection, mode, notifications and logs. Everything goes through
// AppState methods under its lock; background tasks do their slow work
// outside the lock and write results back in one short critical section.
package state

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/arnavsurve/emuctl/internal/device"
)

// Panel identifies which list has focus.
type Panel int

const (
	PanelAndroid Panel = iota
	PanelIos
	PanelDetails
)

// Mode gates which input handlers are active.
type Mode int

const (
	ModeNormal Mode = iota
	ModeCreateDevice
	ModeConfirmDelete
	ModeConfirmWipe
)

// NotificationType selects rendering style only.
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

type Notification struct {
	Message   string
	Type      NotificationType
	Timestamp time.Time
	// AutoDismissAfter zero means the notification stays until dismissed.
	AutoDismissAfter time.Duration
}

type LogEntry struct {
	Timestamp time.Time
	Level     string
	Message   string
}

// LogTarget names the one device whose logs are being streamed. Its absence
// is the cancellation signal for the streaming task.
type LogTarget struct {
	Panel      Panel
	Identifier string
}

const (
	defaultMaxNotifications = 50
	defaultMaxLogEntries    = 1000
)

// AppState is constructed once at startup and lives until process exit. All
// fields are private; mutation happens only through methods.
type AppState struct {
	mu sync.RWMutex

	activePanel     Panel
	selectedAndroid int
	selectedIos     int

	androidDevices []*device.AndroidDevice
	iosDevices     []*device.IosDevice

	mode Mode
	form *CreateDeviceForm

	notifications    []Notification
	maxNotifications int

	logs            []LogEntry
	maxLogs         int
	logScrollOffset int
	autoScrollLogs  bool
	manualScroll    bool
	logFilterLevel  string

	logTarget *LogTarget

	cachedDetails       string
	cachedDetailsForKey string

	pendingStarts map[string]struct{}

	operationStatus string
}

func NewAppState(maxNotifications, maxLogs int) *AppState {
	if maxNotifications <= 0 {
		maxNotifications = defaultMaxNotifications
	}
	if maxLogs <= 0 {
		maxLogs = defaultMaxLogEntries
	}
	return &AppState{
		maxNotifications: maxNotifications,
		maxLogs:          maxLogs,
		autoScrollLogs:   true,
		pendingStarts:    map[string]struct{}{},
	}
}

// SetAndroidDevices replaces the Android list wholesale and renormalizes the
// selection so it never points past the end.
func (s *AppState) SetAndroidDevices(devices []*device.AndroidDevice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.androidDevices = devices
	s.selectedAndroid = clampIndex(s.selectedAndroid, len(devices))
}

func (s *AppState) SetIosDevices(devices []*device.IosDevice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iosDevices = devices
	s.selectedIos = clampIndex(s.selectedIos, len(devices))
}

func clampIndex(idx, length int) int {
	if length == 0 {
		return 0
	}
	if idx >= length {
		return length - 1
	}
	if idx < 0 {
		return 0
	}
	return idx
}

// PatchAndroidStatus updates one device's status in place during an
// operation; refresh will overwrite it with the tool's truth later.
func (s *AppState) PatchAndroidStatus(name string, status device.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.androidDevices {
		if d.Name == name {
			d.Status = status
			d.Running = status == device.StatusRunning
			return
		}
	}
}

func (s *AppState) PatchIosStatus(udid string, status device.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.iosDevices {
		if d.UDID == udid {
			d.Status = status
			d.Running = status == device.StatusRunning
			return
		}
	}
}

// ActivePanel / SetActivePanel. Switching panels invalidates the cached
// detail view.
func (s *AppState) ActivePanel() Panel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activePanel
}

func (s *AppState) SetActivePanel(p Panel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activePanel != p {
		s.invalidateDetailsLocked()
	}
	s.activePanel = p
}

// MoveSelection shifts the focused panel's selection by delta, clamped to
// the list bounds, and invalidates cached details on change.
func (s *AppState) MoveSelection(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.activePanel {
	case PanelAndroid:
		next := clampIndex(s.selectedAndroid+delta, len(s.androidDevices))
		if next != s.selectedAndroid {
			s.selectedAndroid = next
			s.invalidateDetailsLocked()
		}
	case PanelIos:
		next := clampIndex(s.selectedIos+delta, len(s.iosDevices))
		if next != s.selectedIos {
			s.selectedIos = next
			s.invalidateDetailsLocked()
		}
	}
}

// SelectedAndroid returns the focused Android device, or nil when the list
// is empty.
func (s *AppState) SelectedAndroid() *device.AndroidDevice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.androidDevices) == 0 {
		return nil
	}
	return s.androidDevices[clampIndex(s.selectedAndroid, len(s.androidDevices))]
}

func (s *AppState) SelectedIos() *device.IosDevice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.iosDevices) == 0 {
		return nil
	}
	return s.iosDevices[clampIndex(s.selectedIos, len(s.iosDevices))]
}

func (s *AppState) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *AppState) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
	if m != ModeCreateDevice {
		s.form = nil
	}
}

// OpenCreateForm enters CreateDevice mode with a fresh form for the given
// platform.
func (s *AppState) OpenCreateForm(platform device.Platform) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = ModeCreateDevice
	s.form = NewCreateDeviceForm(platform)
}

// WithForm runs fn on the active form under the state lock; it is the only
// sanctioned way to touch form fields, since the input pump and the catalog
// loader mutate them from different goroutines. fn is skipped when no form
// is open.
func (s *AppState) WithForm(fn func(f *CreateDeviceForm)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.form == nil {
		return false
	}
	fn(s.form)
	return true
}

// FormSnapshot returns a copy of the active form for rendering.
func (s *AppState) FormSnapshot() (CreateDeviceForm, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.form == nil {
		return CreateDeviceForm{}, false
	}
	return *s.form, true
}

// Notify appends a notification, evicting the oldest when full.
func (s *AppState) Notify(message string, typ NotificationType, dismissAfter time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, Notification{
		Message:          message,
		Type:             typ,
		Timestamp:        time.Now(),
		AutoDismissAfter: dismissAfter,
	})
	if len(s.notifications) > s.maxNotifications {
		s.notifications = s.notifications[len(s.notifications)-s.maxNotifications:]
	}
}

// Notifications returns the live, unexpired notifications.
func (s *AppState) Notifications(now time.Time) []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Filter(s.notifications, func(n Notification, _ int) bool {
		return n.AutoDismissAfter == 0 || now.Sub(n.Timestamp) < n.AutoDismissAfter
	})
}

// PruneNotifications drops expired entries so the buffer does not hold dead
// weight between renders.
func (s *AppState) PruneNotifications(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = lo.Filter(s.notifications, func(n Notification, _ int) bool {
		return n.AutoDismissAfter == 0 || now.Sub(n.Timestamp) < n.AutoDismissAfter
	})
}

// AppendLog pushes one entry into the bounded ring. When the user has not
// scrolled manually the view stays pinned to the tail.
func (s *AppState) AppendLog(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > s.maxLogs {
		s.logs = s.logs[len(s.logs)-s.maxLogs:]
	}
	if s.autoScrollLogs && !s.manualScroll {
		s.logScrollOffset = 0
	}
}

// Logs returns entries at or above the filter level, oldest first.
func (s *AppState) Logs() []LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.logFilterLevel == "" {
		out := make([]LogEntry, len(s.logs))
		copy(out, s.logs)
		return out
	}
	min := levelRank(s.logFilterLevel)
	return lo.Filter(s.logs, func(e LogEntry, _ int) bool {
		return levelRank(e.Level) >= min
	})
}

func levelRank(level string) int {
	switch strings.ToUpper(level) {
	case "V", "VERBOSE":
		return 0
	case "D", "DEBUG":
		return 1
	case "I", "INFO":
		return 2
	case "W", "WARN", "WARNING":
		return 3
	case "E", "ERROR":
		return 4
	case "F", "FATAL":
		return 5
	default:
		return 2
	}
}

// ScrollLogs moves the view delta lines back from the tail; scrolling marks
// the session as manual until ResetLogScroll.
func (s *AppState) ScrollLogs(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	offset := s.logScrollOffset + delta
	if offset < 0 {
		offset = 0
	}
	if max := len(s.logs); offset > max {
		offset = max
	}
	s.logScrollOffset = offset
	s.manualScroll = offset != 0
}

func (s *AppState) ResetLogScroll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logScrollOffset = 0
	s.manualScroll = false
}

func (s *AppState) LogScrollOffset() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logScrollOffset
}

func (s *AppState) SetLogFilter(level string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logFilterLevel = level
}

func (s *AppState) ClearLogs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = nil
	s.logScrollOffset = 0
	s.manualScroll = false
}

// SetLogTarget switches the streamed device and clears the old buffer. The
// running stream notices the change on its next liveness check and exits.
func (s *AppState) SetLogTarget(panel Panel, identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logTarget = &LogTarget{Panel: panel, Identifier: identifier}
	s.logs = nil
	s.logScrollOffset = 0
	s.manualScroll = false
}

func (s *AppState) ClearLogTarget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logTarget = nil
}

// LogTargetMatches is the streaming task's liveness check.
func (s *AppState) LogTargetMatches(panel Panel, identifier string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logTarget != nil && s.logTarget.Panel == panel && s.logTarget.Identifier == identifier
}

func (s *AppState) LogTarget() (LogTarget, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.logTarget == nil {
		return LogTarget{}, false
	}
	return *s.logTarget, true
}

// SetDetails caches the rendered detail view for a device key.
func (s *AppState) SetDetails(key, details string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cachedDetails = details
	s.cachedDetailsForKey = key
}

// Details returns the cached view when it still belongs to key.
func (s *AppState) Details(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cachedDetailsForKey != key || s.cachedDetails == "" {
		return "", false
	}
	return s.cachedDetails, true
}

func (s *AppState) invalidateDetailsLocked() {
	s.cachedDetails = ""
	s.cachedDetailsForKey = ""
}

// BeginStart registers an in-flight start. A second start for the same
// identifier is rejected so the emulator is never double-launched.
func (s *AppState) BeginStart(identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, pending := s.pendingStarts[identifier]; pending {
		return fmt.Errorf("%w: start of %s", device.ErrOperationConflict, identifier)
	}
	s.pendingStarts[identifier] = struct{}{}
	return nil
}

func (s *AppState) EndStart(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pendingStarts, identifier)
}

func (s *AppState) IsStartPending(identifier string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, pending := s.pendingStarts[identifier]
	return pending
}

func (s *AppState) HasPendingStarts() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pendingStarts) > 0
}

// SetOperationStatus sets the single headline operation label. Operations
// may run concurrently underneath; only one is narrated.
func (s *AppState) SetOperationStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operationStatus = status
}

func (s *AppState) ClearOperationStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operationStatus = ""
}

func (s *AppState) OperationStatus() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.operationStatus
}

// Snapshot is a point-in-time copy handed to the renderer. Device structs are
// copied by value so the render loop never reads a field an operation
// goroutine is patching under the lock.
type Snapshot struct {
	ActivePanel     Panel
	SelectedAndroid int
	SelectedIos     int
	AndroidDevices  []*device.AndroidDevice
	IosDevices      []*device.IosDevice
	Mode            Mode
	Notifications   []Notification
	Logs            []LogEntry
	LogScrollOffset int
	OperationStatus string
	PendingStarts   map[string]struct{}
}

func (s *AppState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	android := make([]*device.AndroidDevice, len(s.androidDevices))
	for i, d := range s.androidDevices {
		c := *d
		android[i] = &c
	}
	ios := make([]*device.IosDevice, len(s.iosDevices))
	for i, d := range s.iosDevices {
		c := *d
		ios[i] = &c
	}
	notifications := make([]Notification, len(s.notifications))
	copy(notifications, s.notifications)
	logs := make([]LogEntry, len(s.logs))
	copy(logs, s.logs)
	pending := make(map[string]struct{}, len(s.pendingStarts))
	for id := range s.pendingStarts {
		pending[id] = struct{}{}
	}

	return Snapshot{
		ActivePanel:     s.activePanel,
		SelectedAndroid: s.selectedAndroid,
		SelectedIos:     s.selectedIos,
		AndroidDevices:  android,
		IosDevices:      ios,
		Mode:            s.mode,
		Notifications:   notifications,
		Logs:            logs,
		LogScrollOffset: s.logScrollOffset,
		OperationStatus: s.operationStatus,
		PendingStarts:   pending,
	}
}
