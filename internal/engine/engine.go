// Package engine is the background orchestrator: periodic device refresh,
// per-device log streaming, and user-initiated device operations, all
// coordinating through the state store. No engine goroutine ever holds the
// state lock across a command invocation.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arnavsurve/emuctl/internal/device"
	"github.com/arnavsurve/emuctl/internal/state"
)

// AndroidManager is the slice of the Android manager the engine needs.
type AndroidManager interface {
	ListDevices(ctx context.Context) ([]*device.AndroidDevice, error)
	StartDevice(ctx context.Context, name string) error
	StopDevice(ctx context.Context, name string) error
	CreateDevice(ctx context.Context, cfg device.Config) error
	DeleteDevice(ctx context.Context, name string) error
	WipeDevice(ctx context.Context, name string) error
}

// IosManager mirrors AndroidManager for simctl. Create returns the new UDID.
type IosManager interface {
	ListDevices(ctx context.Context) ([]*device.IosDevice, error)
	StartDevice(ctx context.Context, udid string) error
	StopDevice(ctx context.Context, udid string) error
	CreateDevice(ctx context.Context, cfg device.Config) (string, error)
	DeleteDevice(ctx context.Context, udid string) error
	WipeDevice(ctx context.Context, udid string) error
}

// Engine owns the background goroutines. Either manager may be nil when its
// toolchain is absent; the corresponding panel just stays empty.
type Engine struct {
	state   *state.AppState
	android AndroidManager
	ios     IosManager

	refreshInterval time.Duration

	refreshing sync.Mutex
	inFlight   bool

	streams *LogStreamer
}

const (
	// fastRefreshInterval applies while a start is pending so the UI picks
	// up the Running transition promptly.
	fastRefreshInterval = 1 * time.Second

	notifyDismiss = 5 * time.Second
)

func New(s *state.AppState, android AndroidManager, ios IosManager, refreshInterval time.Duration, streams *LogStreamer) *Engine {
	return &Engine{
		state:           s,
		android:         android,
		ios:             ios,
		refreshInterval: refreshInterval,
		streams:         streams,
	}
}

// Run drives the refresh loop until ctx ends. An optional change channel
// (from the AVD watcher) forces refreshes between ticks.
func (e *Engine) Run(ctx context.Context, changes <-chan ChangeEvent) {
	e.RefreshNow(ctx)

	timer := time.NewTimer(e.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			e.RefreshNow(ctx)
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			e.RefreshNow(ctx)
		}
		timer.Reset(e.nextInterval())
	}
}

func (e *Engine) nextInterval() time.Duration {
	if e.state.HasPendingStarts() {
		return fastRefreshInterval
	}
	return e.refreshInterval
}

// RefreshNow runs one refresh cycle unless one is already in flight; the
// duplicate request is dropped, not queued.
func (e *Engine) RefreshNow(ctx context.Context) {
	e.refreshing.Lock()
	if e.inFlight {
		e.refreshing.Unlock()
		return
	}
	e.inFlight = true
	e.refreshing.Unlock()

	defer func() {
		e.refreshing.Lock()
		e.inFlight = false
		e.refreshing.Unlock()
	}()

	if e.android != nil {
		devices, err := e.android.ListDevices(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("android refresh failed")
		} else {
			e.state.SetAndroidDevices(devices)
		}
	}
	if e.ios != nil {
		devices, err := e.ios.ListDevices(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("ios refresh failed")
		} else {
			e.state.SetIosDevices(devices)
		}
	}
}

// StartDevice launches a device in the background. The Starting status is
// applied before the command is issued so the UI never shows a state older
// than the user's action.
func (e *Engine) StartDevice(ctx context.Context, panel state.Panel, identifier, displayName string) {
	if err := e.state.BeginStart(identifier); err != nil {
		e.state.Notify("start already in progress for "+displayName, state.NotifyWarning, notifyDismiss)
		return
	}

	e.patchStatus(panel, identifier, device.StatusStarting)
	e.state.SetOperationStatus("Starting " + displayName)

	go func() {
		defer e.state.EndStart(identifier)
		defer e.state.ClearOperationStatus()

		err := e.start(ctx, panel, identifier)
		if err != nil {
			e.patchStatus(panel, identifier, device.StatusError)
			e.state.Notify("start failed: "+err.Error(), state.NotifyError, 0)
			return
		}
		e.patchStatus(panel, identifier, device.StatusRunning)
		e.state.Notify(displayName+" is running", state.NotifySuccess, notifyDismiss)
		e.RefreshNow(ctx)
	}()
}

func (e *Engine) start(ctx context.Context, panel state.Panel, identifier string) error {
	if panel == state.PanelAndroid {
		return e.android.StartDevice(ctx, identifier)
	}
	return e.ios.StartDevice(ctx, identifier)
}

// StopDevice shuts a device down in the background.
func (e *Engine) StopDevice(ctx context.Context, panel state.Panel, identifier, displayName string) {
	e.patchStatus(panel, identifier, device.StatusStopping)
	e.state.SetOperationStatus("Stopping " + displayName)

	go func() {
		defer e.state.ClearOperationStatus()

		var err error
		if panel == state.PanelAndroid {
			err = e.android.StopDevice(ctx, identifier)
		} else {
			err = e.ios.StopDevice(ctx, identifier)
		}
		if err != nil {
			e.patchStatus(panel, identifier, device.StatusError)
			e.state.Notify("stop failed: "+err.Error(), state.NotifyError, 0)
			return
		}
		e.patchStatus(panel, identifier, device.StatusStopped)
		e.state.Notify(displayName+" stopped", state.NotifySuccess, notifyDismiss)
		e.RefreshNow(ctx)
	}()
}

// CreateDevice runs a creation request in the background and refreshes on
// success.
func (e *Engine) CreateDevice(ctx context.Context, platform device.Platform, cfg device.Config) {
	e.state.SetOperationStatus("Creating " + cfg.Name)

	go func() {
		defer e.state.ClearOperationStatus()

		var err error
		if platform == device.PlatformAndroid {
			err = e.android.CreateDevice(ctx, cfg)
		} else {
			_, err = e.ios.CreateDevice(ctx, cfg)
		}
		if err != nil {
			e.state.Notify("create failed: "+err.Error(), state.NotifyError, 0)
			return
		}
		e.state.Notify("created "+cfg.Name, state.NotifySuccess, notifyDismiss)
		e.RefreshNow(ctx)
	}()
}

// DeleteDevice removes a device permanently.
func (e *Engine) DeleteDevice(ctx context.Context, panel state.Panel, identifier, displayName string) {
	e.state.SetOperationStatus("Deleting " + displayName)

	go func() {
		defer e.state.ClearOperationStatus()

		var err error
		if panel == state.PanelAndroid {
			err = e.android.DeleteDevice(ctx, identifier)
		} else {
			err = e.ios.DeleteDevice(ctx, identifier)
		}
		if err != nil {
			e.state.Notify("delete failed: "+err.Error(), state.NotifyError, 0)
			return
		}
		if e.streams != nil {
			e.streams.StopIfTarget(panel, identifier)
		}
		e.state.Notify("deleted "+displayName, state.NotifySuccess, notifyDismiss)
		e.RefreshNow(ctx)
	}()
}

// WipeDevice clears user data, keeping the device definition.
func (e *Engine) WipeDevice(ctx context.Context, panel state.Panel, identifier, displayName string) {
	e.state.SetOperationStatus("Wiping " + displayName)

	go func() {
		defer e.state.ClearOperationStatus()

		var err error
		if panel == state.PanelAndroid {
			err = e.android.WipeDevice(ctx, identifier)
		} else {
			err = e.ios.WipeDevice(ctx, identifier)
		}
		if err != nil {
			e.state.Notify("wipe failed: "+err.Error(), state.NotifyError, 0)
			return
		}
		e.state.Notify("wiped "+displayName, state.NotifySuccess, notifyDismiss)
		e.RefreshNow(ctx)
	}()
}

func (e *Engine) patchStatus(panel state.Panel, identifier string, status device.Status) {
	if panel == state.PanelAndroid {
		e.state.PatchAndroidStatus(identifier, status)
	} else {
		e.state.PatchIosStatus(identifier, status)
	}
}
