package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arnavsurve/emuctl/internal/device"
	"github.com/arnavsurve/emuctl/internal/state"
)

// fakeAndroid stubs the Android manager slice the engine consumes.
type fakeAndroid struct {
	mu      sync.Mutex
	devices []*device.AndroidDevice
	listErr error
	lists   int

	startErr error
	started  []string
	stopped  []string
	deleted  []string
	wiped    []string
	created  []device.Config
	startGo  chan struct{}
}

func (f *fakeAndroid) ListDevices(ctx context.Context) ([]*device.AndroidDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.devices, nil
}

func (f *fakeAndroid) StartDevice(ctx context.Context, name string) error {
	if f.startGo != nil {
		<-f.startGo
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, name)
	return f.startErr
}

func (f *fakeAndroid) StopDevice(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, name)
	return nil
}

func (f *fakeAndroid) CreateDevice(ctx context.Context, cfg device.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, cfg)
	return nil
}

func (f *fakeAndroid) DeleteDevice(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeAndroid) WipeDevice(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wiped = append(f.wiped, name)
	return nil
}

func (f *fakeAndroid) startedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.started))
	copy(out, f.started)
	return out
}

func androidStatus(s *state.AppState, name string) device.Status {
	for _, d := range s.Snapshot().AndroidDevices {
		if d.Name == name {
			return d.Status
		}
	}
	return device.StatusUnknown
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRefreshNowPopulatesState(t *testing.T) {
	s := state.NewAppState(0, 0)
	android := &fakeAndroid{devices: []*device.AndroidDevice{
		{Name: "Pixel_7_API_34", Status: device.StatusStopped},
	}}
	e := New(s, android, nil, time.Minute, nil)

	e.RefreshNow(context.Background())

	snap := s.Snapshot()
	if len(snap.AndroidDevices) != 1 || snap.AndroidDevices[0].Name != "Pixel_7_API_34" {
		t.Fatalf("refresh must publish the device list, got %+v", snap.AndroidDevices)
	}
}

func TestRefreshKeepsOldListOnError(t *testing.T) {
	s := state.NewAppState(0, 0)
	android := &fakeAndroid{devices: []*device.AndroidDevice{{Name: "a"}}}
	e := New(s, android, nil, time.Minute, nil)

	e.RefreshNow(context.Background())
	android.mu.Lock()
	android.listErr = errors.New("adb went away")
	android.mu.Unlock()
	e.RefreshNow(context.Background())

	snap := s.Snapshot()
	if len(snap.AndroidDevices) != 1 || snap.AndroidDevices[0].Name != "a" {
		t.Fatalf("a failed refresh must not clobber the last good list, got %+v", snap.AndroidDevices)
	}
}

func TestStartDevicePatchesBeforeCommand(t *testing.T) {
	s := state.NewAppState(0, 0)
	android := &fakeAndroid{
		devices: []*device.AndroidDevice{{Name: "pixel", Status: device.StatusStopped}},
		startGo: make(chan struct{}),
	}
	s.SetAndroidDevices(android.devices)
	e := New(s, android, nil, time.Minute, nil)

	e.StartDevice(context.Background(), state.PanelAndroid, "pixel", "pixel")

	// The optimistic patch lands before the manager call completes.
	if got := androidStatus(s, "pixel"); got != device.StatusStarting {
		t.Fatalf("expected Starting before the command returns, got %s", got)
	}
	if !s.IsStartPending("pixel") {
		t.Fatal("start must be registered as pending")
	}

	close(android.startGo)
	waitFor(t, func() bool { return !s.IsStartPending("pixel") })
	waitFor(t, func() bool { return androidStatus(s, "pixel") == device.StatusRunning })

	if got := android.startedNames(); len(got) != 1 || got[0] != "pixel" {
		t.Fatalf("expected one start call, got %v", got)
	}
}

func TestStartDeviceDuplicateRejected(t *testing.T) {
	s := state.NewAppState(0, 0)
	android := &fakeAndroid{
		devices: []*device.AndroidDevice{{Name: "pixel"}},
		startGo: make(chan struct{}),
	}
	s.SetAndroidDevices(android.devices)
	e := New(s, android, nil, time.Minute, nil)

	e.StartDevice(context.Background(), state.PanelAndroid, "pixel", "pixel")
	e.StartDevice(context.Background(), state.PanelAndroid, "pixel", "pixel")

	live := s.Notifications(time.Now())
	if len(live) != 1 || live[0].Type != state.NotifyWarning {
		t.Fatalf("duplicate start must warn, got %+v", live)
	}

	close(android.startGo)
	waitFor(t, func() bool { return !s.IsStartPending("pixel") })
	if got := android.startedNames(); len(got) != 1 {
		t.Fatalf("the device must only be launched once, got %v", got)
	}
}

func TestStartDeviceFailureMarksError(t *testing.T) {
	s := state.NewAppState(0, 0)
	android := &fakeAndroid{
		devices:  []*device.AndroidDevice{{Name: "pixel"}},
		startErr: errors.New("emulator binary missing"),
	}
	s.SetAndroidDevices(android.devices)
	e := New(s, android, nil, time.Minute, nil)

	e.StartDevice(context.Background(), state.PanelAndroid, "pixel", "pixel")
	waitFor(t, func() bool { return !s.IsStartPending("pixel") })
	waitFor(t, func() bool { return androidStatus(s, "pixel") == device.StatusError })

	live := s.Notifications(time.Now())
	if len(live) != 1 || live[0].Type != state.NotifyError {
		t.Fatalf("failed start must raise an error notification, got %+v", live)
	}
}

func TestNextIntervalSpeedsUpWhilePending(t *testing.T) {
	s := state.NewAppState(0, 0)
	e := New(s, &fakeAndroid{}, nil, time.Minute, nil)

	if got := e.nextInterval(); got != time.Minute {
		t.Fatalf("expected configured interval, got %s", got)
	}
	if err := s.BeginStart("pixel"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := e.nextInterval(); got != fastRefreshInterval {
		t.Fatalf("pending start must shorten the interval, got %s", got)
	}
	s.EndStart("pixel")
	if got := e.nextInterval(); got != time.Minute {
		t.Fatalf("interval must recover after the start ends, got %s", got)
	}
}
