package cli

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/arnavsurve/emuctl/internal/android"
	"github.com/arnavsurve/emuctl/internal/device"
	"github.com/arnavsurve/emuctl/internal/engine"
	"github.com/arnavsurve/emuctl/internal/input"
	"github.com/arnavsurve/emuctl/internal/ios"
	"github.com/arnavsurve/emuctl/internal/process"
	"github.com/arnavsurve/emuctl/internal/sdk"
	"github.com/arnavsurve/emuctl/internal/state"
	"github.com/arnavsurve/emuctl/internal/ui"
)

const (
	watcherDebounce = 500 * time.Millisecond
	logViewHeight   = 20
	logScrollStep   = 5
	categoryAll     = "all"
)

func tuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Interactive device dashboard",
		Long:  `A keyboard-driven dashboard over both device panels with live refresh and log streaming.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTui(cmd.Context())
		},
	}
}

func runTui(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appState := state.NewAppState(0, cfg.MaxLogEntries)
	renderer := ui.NewRenderer()

	var androidMgr *android.Manager
	var iosMgr *ios.Manager
	var engineAndroid engine.AndroidManager
	var engineIos engine.IosManager

	if mgr, err := android.NewManager(cfg.AndroidSdkRoot); err != nil {
		log.Warn().Err(err).Msg("android toolchain unavailable")
		appState.Notify("Android SDK not found, AVD panel disabled", state.NotifyWarning, 0)
	} else {
		androidMgr = mgr
		engineAndroid = mgr
	}
	if mgr, err := ios.NewManager(); err != nil {
		log.Debug().Err(err).Msg("ios toolchain unavailable")
	} else {
		iosMgr = mgr
		engineIos = mgr
	}
	if androidMgr == nil && iosMgr == nil {
		return device.ErrSdkUnavailable
	}

	adbPath := ""
	var serialLookup func(ctx context.Context, name string) string
	if androidMgr != nil {
		adbPath = androidMgr.AdbPath()
		serialLookup = androidMgr.SerialForName
	}
	streamer := engine.NewLogStreamer(appState, process.NewRunner(), adbPath, serialLookup)

	eng := engine.New(appState, engineAndroid, engineIos, cfg.RefreshInterval(), streamer)

	var changes <-chan engine.ChangeEvent
	if androidMgr != nil {
		if watcher, err := engine.NewAvdWatcher(watcherDebounce); err == nil {
			if err := watcher.AddAvdHome(sdk.AvdHome()); err == nil {
				changes = watcher.Watch(ctx)
				defer watcher.Close()
			}
		}
	}
	go eng.Run(ctx, changes)

	// Tool availability is a round-trip per platform; check off the hot path
	// and surface a warning rather than refusing to start.
	go func() {
		if androidMgr != nil && !androidMgr.IsAvailable(ctx) {
			appState.Notify("adb is not responding, AVD statuses may be stale", state.NotifyWarning, 0)
		}
		if iosMgr != nil && !iosMgr.IsAvailable(ctx) {
			appState.Notify("simctl is not responding, simulator statuses may be stale", state.NotifyWarning, 0)
		}
	}()

	handler := &tuiHandler{
		ctx:        ctx,
		cancel:     cancel,
		state:      appState,
		engine:     eng,
		streamer:   streamer,
		renderer:   renderer,
		androidMgr: androidMgr,
	}
	if androidMgr != nil {
		handler.androidProfiles = engine.NewCatalogCache(cfg.CacheExpiry(), androidMgr.ListAvailableDevices)
		handler.androidTargets = engine.NewCatalogCache(cfg.CacheExpiry(), androidMgr.ListAvailableTargets)
	}
	if iosMgr != nil {
		handler.iosTypes = engine.NewCatalogCache(cfg.CacheExpiry(), iosMgr.ListDeviceTypes)
		handler.iosRuntimes = engine.NewCatalogCache(cfg.CacheExpiry(), iosMgr.ListRuntimes)
	}
	go input.Pump(ctx, input.NewReaderSource(os.Stdin), handler)

	// Redraw loop: a fixed cadence keeps spinners and notifications moving
	// even when no input arrives.
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			appState.PruneNotifications(time.Now())
			snap := appState.Snapshot()
			renderer.RenderSnapshot(snap)
			if _, ok := appState.LogTarget(); ok {
				renderer.RenderLogs(appState.Logs(), appState.LogScrollOffset(), logViewHeight)
			}
			if details, ok := appState.Details(detailsKey(snap)); ok {
				renderer.RenderDetails(details)
			}
		}
	}
}

// tuiHandler maps pipeline output onto state mutations and engine calls.
type tuiHandler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	state    *state.AppState
	engine   *engine.Engine
	streamer *engine.LogStreamer
	renderer *ui.Renderer

	androidMgr *android.Manager

	androidProfiles *engine.CatalogCache[[]android.CatalogEntry]
	androidTargets  *engine.CatalogCache[[]android.CatalogEntry]
	iosTypes        *engine.CatalogCache[[]ios.CatalogEntry]
	iosRuntimes     *engine.CatalogCache[[]ios.CatalogEntry]

	// logFilter mirrors the state's minimum level so the F key can cycle it.
	// Only the pump goroutine touches it.
	logFilter string
}

func (h *tuiHandler) HandleNavigation(step input.NavStep) {
	if h.state.Mode() == state.ModeCreateDevice {
		if step.Horizontal != 0 {
			refilter := false
			h.state.WithForm(func(f *state.CreateDeviceForm) {
				f.MoveOption(step.Horizontal)
				refilter = f.Platform == device.PlatformAndroid && f.Active == state.FieldCategory
			})
			if refilter {
				go h.refilterDeviceTypes()
			}
		}
		return
	}
	if step.Vertical != 0 {
		h.state.MoveSelection(step.Vertical)
	}
	if step.Horizontal != 0 {
		h.togglePanel()
	}
}

func (h *tuiHandler) togglePanel() {
	if h.state.ActivePanel() == state.PanelAndroid {
		h.state.SetActivePanel(state.PanelIos)
	} else {
		h.state.SetActivePanel(state.PanelAndroid)
	}
}

func (h *tuiHandler) HandleEvent(e input.Event) {
	switch h.state.Mode() {
	case state.ModeCreateDevice:
		h.handleFormEvent(e)
	case state.ModeConfirmDelete:
		h.handleConfirm(e, h.deleteSelected)
	case state.ModeConfirmWipe:
		h.handleConfirm(e, h.wipeSelected)
	default:
		h.handleNormalEvent(e)
	}
}

func (h *tuiHandler) handleNormalEvent(e input.Event) {
	switch e.Key {
	case input.KeyTab:
		h.togglePanel()
	case input.KeyEnter:
		h.startSelected()
	case input.KeyRune:
		switch e.Rune {
		case 'q':
			h.cancel()
		case 's':
			h.stopSelected()
		case 'c':
			h.openCreateForm()
		case 'd':
			h.state.SetMode(state.ModeConfirmDelete)
		case 'w':
			h.state.SetMode(state.ModeConfirmWipe)
		case 'i':
			h.showSelectedDetails()
		case 'L':
			h.followSelectedLogs()
		case '[':
			h.state.ScrollLogs(logScrollStep)
		case ']':
			h.state.ScrollLogs(-logScrollStep)
		case '0':
			h.state.ResetLogScroll()
		case 'C':
			h.state.ClearLogs()
		case 'F':
			h.cycleLogFilter()
		case 'r':
			go h.engine.RefreshNow(h.ctx)
		}
	}
}

func (h *tuiHandler) handleFormEvent(e input.Event) {
	var submit *struct {
		platform device.Platform
		cfg      device.Config
	}

	open := h.state.WithForm(func(form *state.CreateDeviceForm) {
		switch e.Key {
		case input.KeyTab:
			form.NextField()
		case input.KeyBacktab:
			form.PrevField()
		case input.KeyEnter:
			if !form.Validate() {
				return
			}
			submit = &struct {
				platform device.Platform
				cfg      device.Config
			}{form.Platform, form.Config()}
		case input.KeyBackspace:
			form.Backspace()
		case input.KeyRune:
			switch form.Active {
			case state.FieldName:
				form.Name += string(e.Rune)
			case state.FieldRamSize:
				form.RamSize += string(e.Rune)
			case state.FieldStorageSize:
				form.StorageSize += string(e.Rune)
			}
		}
	})

	if !open || e.Key == input.KeyEscape {
		h.state.SetMode(state.ModeNormal)
		return
	}
	if submit != nil {
		h.engine.CreateDevice(h.ctx, submit.platform, submit.cfg)
		h.state.SetMode(state.ModeNormal)
	}
}

func (h *tuiHandler) handleConfirm(e input.Event, action func()) {
	switch {
	case e.Key == input.KeyRune && (e.Rune == 'y' || e.Rune == 'Y'):
		action()
		h.state.SetMode(state.ModeNormal)
	case e.Key == input.KeyEscape, e.Key == input.KeyRune && (e.Rune == 'n' || e.Rune == 'N'):
		h.state.SetMode(state.ModeNormal)
	}
}

// selected returns the focused device's identity, or ok=false on an empty
// panel.
func (h *tuiHandler) selected() (panel state.Panel, identifier, display string, ok bool) {
	panel = h.state.ActivePanel()
	if panel == state.PanelAndroid {
		d := h.state.SelectedAndroid()
		if d == nil {
			return panel, "", "", false
		}
		return panel, d.Name, d.Name, true
	}
	d := h.state.SelectedIos()
	if d == nil {
		return panel, "", "", false
	}
	return panel, d.UDID, d.Name, true
}

func (h *tuiHandler) startSelected() {
	if panel, ident, display, ok := h.selected(); ok {
		h.engine.StartDevice(h.ctx, panel, ident, display)
	}
}

func (h *tuiHandler) stopSelected() {
	if panel, ident, display, ok := h.selected(); ok {
		h.engine.StopDevice(h.ctx, panel, ident, display)
	}
}

func (h *tuiHandler) deleteSelected() {
	if panel, ident, display, ok := h.selected(); ok {
		h.engine.DeleteDevice(h.ctx, panel, ident, display)
	}
}

func (h *tuiHandler) wipeSelected() {
	if panel, ident, display, ok := h.selected(); ok {
		h.engine.WipeDevice(h.ctx, panel, ident, display)
	}
}

func (h *tuiHandler) followSelectedLogs() {
	if panel, ident, _, ok := h.selected(); ok {
		h.streamer.Follow(h.ctx, panel, ident)
	}
}

// cycleLogFilter steps the minimum log level "" -> W -> E -> "".
func (h *tuiHandler) cycleLogFilter() {
	switch h.logFilter {
	case "":
		h.logFilter = "W"
	case "W":
		h.logFilter = "E"
	default:
		h.logFilter = ""
	}
	h.state.SetLogFilter(h.logFilter)
}

// showSelectedDetails caches a detail view for the focused device. Android
// details need a tool round-trip, so that branch runs in the background.
func (h *tuiHandler) showSelectedDetails() {
	panel, ident, _, ok := h.selected()
	if !ok {
		return
	}
	if panel == state.PanelAndroid {
		if h.androidMgr == nil {
			return
		}
		go func() {
			d, err := h.androidMgr.GetDeviceDetails(h.ctx, ident)
			if err != nil {
				h.state.Notify("cannot load details: "+err.Error(), state.NotifyError, 0)
				return
			}
			h.state.SetDetails("android/"+ident, formatAndroidDetails(d))
		}()
		return
	}
	snap := h.state.Snapshot()
	if snap.SelectedIos < len(snap.IosDevices) {
		d := snap.IosDevices[snap.SelectedIos]
		h.state.SetDetails("ios/"+d.UDID, formatIosDetails(d))
	}
}

// refilterDeviceTypes narrows the hardware-profile options to the form's
// category. The catalog cache may refetch, so this runs off the pump
// goroutine.
func (h *tuiHandler) refilterDeviceTypes() {
	if h.androidProfiles == nil {
		return
	}
	profiles, err := h.androidProfiles.Get(h.ctx)
	if err != nil {
		return
	}
	h.state.WithForm(func(f *state.CreateDeviceForm) {
		if f.Platform != device.PlatformAndroid {
			return
		}
		category, ok := f.Category()
		if !ok {
			return
		}
		f.DeviceTypes = androidOptions(android.FilterByCategory(profiles, category.ID))
		f.SelectedDeviceType = 0
	})
}

func (h *tuiHandler) openCreateForm() {
	platform := device.PlatformAndroid
	if h.state.ActivePanel() == state.PanelIos {
		platform = device.PlatformIOS
	}
	h.state.OpenCreateForm(platform)

	// Catalog queries are slow; fill the form in the background through the
	// freshness-windowed caches.
	go func() {
		if platform == device.PlatformAndroid {
			if h.androidTargets == nil || h.androidProfiles == nil {
				return
			}
			targets, err := h.androidTargets.Get(h.ctx)
			if err != nil {
				h.state.Notify("cannot load API levels: "+err.Error(), state.NotifyError, 0)
				return
			}
			profiles, err := h.androidProfiles.Get(h.ctx)
			if err != nil {
				h.state.Notify("cannot load hardware profiles: "+err.Error(), state.NotifyError, 0)
				return
			}
			h.state.WithForm(func(f *state.CreateDeviceForm) {
				f.ApiLevels = androidOptions(targets)
				f.Categories = categoryOptions()
				category, _ := f.Category()
				f.DeviceTypes = androidOptions(android.FilterByCategory(profiles, category.ID))
			})
			return
		}
		if h.iosRuntimes == nil || h.iosTypes == nil {
			return
		}
		runtimes, err := h.iosRuntimes.Get(h.ctx)
		if err != nil {
			h.state.Notify("cannot load runtimes: "+err.Error(), state.NotifyError, 0)
			return
		}
		types, err := h.iosTypes.Get(h.ctx)
		if err != nil {
			h.state.Notify("cannot load device types: "+err.Error(), state.NotifyError, 0)
			return
		}
		h.state.WithForm(func(f *state.CreateDeviceForm) {
			f.ApiLevels = iosOptions(runtimes)
			f.DeviceTypes = iosOptions(types)
		})
	}()
}

func androidOptions(entries []android.CatalogEntry) []state.FormOption {
	out := make([]state.FormOption, len(entries))
	for i, e := range entries {
		out[i] = state.FormOption{ID: e.ID, Display: e.Display}
	}
	return out
}

func iosOptions(entries []ios.CatalogEntry) []state.FormOption {
	out := make([]state.FormOption, len(entries))
	for i, e := range entries {
		out[i] = state.FormOption{ID: e.ID, Display: e.Display}
	}
	return out
}

func categoryOptions() []state.FormOption {
	categories := []device.Category{
		device.CategoryPhone, device.CategoryTablet, device.CategoryWear,
		device.CategoryTV, device.CategoryAutomotive, device.CategoryDesktop,
	}
	out := make([]state.FormOption, 0, len(categories)+1)
	out = append(out, state.FormOption{ID: categoryAll, Display: "all"})
	for _, c := range categories {
		out = append(out, state.FormOption{ID: string(c), Display: string(c)})
	}
	return out
}

// detailsKey identifies the focused device for the details cache.
func detailsKey(snap state.Snapshot) string {
	if snap.ActivePanel == state.PanelAndroid {
		if snap.SelectedAndroid < len(snap.AndroidDevices) {
			return "android/" + snap.AndroidDevices[snap.SelectedAndroid].Name
		}
		return ""
	}
	if snap.SelectedIos < len(snap.IosDevices) {
		return "ios/" + snap.IosDevices[snap.SelectedIos].UDID
	}
	return ""
}

func formatAndroidDetails(d *device.AndroidDevice) string {
	return strings.Join([]string{
		"Name:    " + d.Name,
		"Type:    " + d.DeviceType,
		"API:     " + strconv.Itoa(d.APILevel),
		"Status:  " + string(d.Status),
		"RAM:     " + d.RAMSize,
		"Storage: " + d.StorageSize,
	}, "\n")
}

func formatIosDetails(d *device.IosDevice) string {
	return strings.Join([]string{
		"Name:    " + d.Name,
		"Type:    " + d.DeviceType,
		"iOS:     " + d.IosVersion,
		"Runtime: " + d.RuntimeVersion,
		"UDID:    " + d.UDID,
		"Status:  " + string(d.Status),
	}, "\n")
}
