package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/capture/camera2"
)

func newVirtualController(t *testing.T, c VideoTrackConstraints, logs *syncBuffer) (*CameraCaptureController, *camera2.VirtualHAL) {
	t.Helper()
	lf := newTestLoggerFactory(logs)
	hal := camera2.NewVirtualHAL(camera2.DefaultVirtualCameras()...)
	ctrl := NewCameraCaptureController(c, NewCameraEnumerator(camera2.NewEnumerator(hal, lf)), nil, lf)
	t.Cleanup(func() { ctrl.Stop() })
	return ctrl, hal
}

func newFakeController(t *testing.T) (*CameraCaptureController, *fakeEnumerator, *syncBuffer) {
	t.Helper()
	logs := &syncBuffer{}
	enum := &fakeEnumerator{catalog: phoneCatalog()}
	ctrl := NewCameraCaptureController(VideoTrackConstraints{}, enum, nil, newTestLoggerFactory(logs))
	require.NoError(t, ctrl.Open(context.Background()))
	return ctrl, enum, logs
}

func TestCameraCaptureController_OpenFrontCamera(t *testing.T) {
	ctrl, hal := newVirtualController(t, VideoTrackConstraints{
		FacingMode: Exact(FacingModeUser),
		Width:      Ideal(1280),
		Height:     Ideal(720),
	}, &syncBuffer{})

	require.NoError(t, ctrl.Open(context.Background()))
	assert.Equal(t, StateOpened, ctrl.State())

	target := ctrl.Target()
	assert.Equal(t, "1", target.DeviceID)
	assert.Equal(t, Size{Width: 1280, Height: 720}, target.Size)
	assert.Equal(t, 30, target.FPS)
	assert.True(t, hal.IsOpen("1"))

	sink := &sinkCounter{}
	ctrl.Track().AddSink(sink)
	require.Eventually(t, func() bool { return sink.count() > 0 }, 2*time.Second, 10*time.Millisecond)

	settings := ctrl.Track().Settings()
	assert.Equal(t, "user", settings.FacingMode)
	assert.Equal(t, 1280, settings.Width)
}

func TestCameraCaptureController_OpenNotFound(t *testing.T) {
	enum := &fakeEnumerator{}
	ctrl := NewCameraCaptureController(VideoTrackConstraints{}, enum, nil, newTestLoggerFactory(&syncBuffer{}))

	err := ctrl.Open(context.Background())
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "device", nf.What)
	assert.Zero(t, enum.createdCount())
	assert.Equal(t, StateCreated, ctrl.State())
}

func TestCameraCaptureController_OpenStartFailure(t *testing.T) {
	enum := &fakeEnumerator{catalog: phoneCatalog(), capturer: newFakeCapturer("back")}
	enum.capturer.startErr = errors.New("camera in use")
	ctrl := NewCameraCaptureController(VideoTrackConstraints{}, enum, nil, newTestLoggerFactory(&syncBuffer{}))

	err := ctrl.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "camera in use")
	assert.True(t, enum.capturer.disposed)
	assert.Equal(t, StateCreated, ctrl.State())
}

func TestCameraCaptureController_Lifecycle(t *testing.T) {
	enum := &fakeEnumerator{catalog: phoneCatalog()}
	ctrl := NewCameraCaptureController(VideoTrackConstraints{}, enum, nil, newTestLoggerFactory(&syncBuffer{}))

	assert.ErrorIs(t, ctrl.SwitchCamera(context.Background(), ""), ErrNotOpened)
	assert.Nil(t, ctrl.Track())

	require.NoError(t, ctrl.Open(context.Background()))
	assert.ErrorIs(t, ctrl.Open(context.Background()), ErrAlreadyOpened)

	require.NoError(t, ctrl.Stop())
	require.NoError(t, ctrl.Stop())
	assert.Equal(t, StateStopped, ctrl.State())
	assert.True(t, enum.capturer.stopped)
	assert.True(t, enum.capturer.disposed)
	assert.Equal(t, TrackStateEnded, ctrl.Track().State())

	assert.ErrorIs(t, ctrl.SwitchCamera(context.Background(), ""), ErrStopped)
	assert.ErrorIs(t, ctrl.Open(context.Background()), ErrStopped)
}

func TestCameraCaptureController_SwitchErrorMessage(t *testing.T) {
	ctrl, enum, _ := newFakeController(t)
	enum.capturer.onSwitch = func(h camera2.CameraSwitchHandler, _ string) {
		h.OnCameraSwitchError("busy")
	}
	before := ctrl.Target()

	err := ctrl.SwitchCamera(context.Background(), "")
	require.Error(t, err)
	assert.EqualError(t, err, "Switch camera failed: busy")

	var se *SwitchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "busy", se.Message)
	assert.Equal(t, before, ctrl.Target())
	assert.Equal(t, StateOpened, ctrl.State())
}

func TestCameraCaptureController_SwitchResolvesOnce(t *testing.T) {
	ctrl, enum, logs := newFakeController(t)
	enum.capturer.onSwitch = func(h camera2.CameraSwitchHandler, name string) {
		enum.capturer.setName("front")
		h.OnCameraSwitchDone(true)
		h.OnCameraSwitchError("late")
	}

	require.NoError(t, ctrl.SwitchCamera(context.Background(), "front"))
	target := ctrl.Target()
	assert.Equal(t, "front", target.DeviceID)
	assert.True(t, target.IsFrontFacing)
	assert.Equal(t, Size{Width: 1280, Height: 720}, target.Size)
	assert.Equal(t, "front", ctrl.Track().Settings().DeviceID)
	assert.Contains(t, logs.String(), "duplicate camera switch error ignored")
}

func TestSwitchResult_ExactlyOnce(t *testing.T) {
	r := newSwitchResult(newTestLoggerFactory(&syncBuffer{}).NewLogger("test"))
	r.OnCameraSwitchError("first")
	r.OnCameraSwitchDone(false)
	r.abort(ErrStopped)

	err := <-r.done()
	assert.EqualError(t, err, "Switch camera failed: first")
	select {
	case extra := <-r.done():
		t.Fatalf("second result delivered: %v", extra)
	default:
	}
}

func TestCameraCaptureController_ConcurrentSwitchIsBusy(t *testing.T) {
	ctrl, enum, _ := newFakeController(t)

	first := make(chan error, 1)
	go func() { first <- ctrl.SwitchCamera(context.Background(), "") }()

	var h camera2.CameraSwitchHandler
	select {
	case h = <-enum.capturer.handlers:
	case <-time.After(2 * time.Second):
		t.Fatal("switch never reached the capturer")
	}
	assert.Equal(t, StateSwitching, ctrl.State())
	assert.ErrorIs(t, ctrl.SwitchCamera(context.Background(), ""), ErrBusy)

	enum.capturer.setName("front")
	h.OnCameraSwitchDone(true)
	require.NoError(t, <-first)
	assert.Equal(t, StateOpened, ctrl.State())
}

func TestCameraCaptureController_SwitchContextOnlyBoundsWait(t *testing.T) {
	ctrl, enum, _ := newFakeController(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.SwitchCamera(ctx, "front") }()
	h := <-enum.capturer.handlers
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// The switch is still in flight.
	assert.ErrorIs(t, ctrl.SwitchCamera(context.Background(), ""), ErrBusy)

	enum.capturer.setName("front")
	h.OnCameraSwitchDone(true)
	require.Eventually(t, func() bool {
		return ctrl.State() == StateOpened && ctrl.Target().DeviceID == "front"
	}, time.Second, 5*time.Millisecond)

	enum.capturer.onSwitch = func(h camera2.CameraSwitchHandler, _ string) { h.OnCameraSwitchDone(false) }
	assert.NoError(t, ctrl.SwitchCamera(context.Background(), ""))
}

func TestCameraCaptureController_StopDuringSwitch(t *testing.T) {
	ctrl, enum, _ := newFakeController(t)

	done := make(chan error, 1)
	go func() { done <- ctrl.SwitchCamera(context.Background(), "") }()
	h := <-enum.capturer.handlers

	require.NoError(t, ctrl.Stop())
	assert.ErrorIs(t, <-done, ErrStopped)

	// A late engine callback is dropped.
	h.OnCameraSwitchDone(true)
	assert.Equal(t, StateStopped, ctrl.State())
}

func TestCameraCaptureController_SwitchOnVirtualHAL(t *testing.T) {
	ctrl, hal := newVirtualController(t, VideoTrackConstraints{}, &syncBuffer{})
	require.NoError(t, ctrl.Open(context.Background()))
	assert.Equal(t, "0", ctrl.Target().DeviceID)

	require.NoError(t, ctrl.SwitchCamera(context.Background(), ""))
	target := ctrl.Target()
	assert.Equal(t, "1", target.DeviceID)
	assert.True(t, target.IsFrontFacing)
	assert.True(t, hal.IsOpen("1"))
	assert.False(t, hal.IsOpen("0"))

	err := ctrl.SwitchCamera(context.Background(), "7")
	var se *SwitchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Attempted to switch to unknown camera device 7", se.Message)
	assert.Equal(t, "1", ctrl.Target().DeviceID)

	sink := &sinkCounter{}
	ctrl.Track().AddSink(sink)
	require.Eventually(t, func() bool { return sink.count() > 0 }, 2*time.Second, 10*time.Millisecond)
}

// gatedHAL holds OpenCamera for one camera until release is closed.
type gatedHAL struct {
	*camera2.VirtualHAL
	id      string
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (h *gatedHAL) OpenCamera(id string, cb camera2.DeviceCallback) (camera2.Device, error) {
	if id == h.id {
		h.once.Do(func() { close(h.entered) })
		<-h.release
	}
	return h.VirtualHAL.OpenCamera(id, cb)
}

func TestCameraCaptureController_StopDuringSwitchClosesCameras(t *testing.T) {
	hal := &gatedHAL{
		VirtualHAL: camera2.NewVirtualHAL(camera2.DefaultVirtualCameras()...),
		id:         "1",
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	lf := newTestLoggerFactory(&syncBuffer{})
	ctrl := NewCameraCaptureController(VideoTrackConstraints{}, NewCameraEnumerator(camera2.NewEnumerator(hal, lf)), nil, lf)
	require.NoError(t, ctrl.Open(context.Background()))

	done := make(chan error, 1)
	go func() { done <- ctrl.SwitchCamera(context.Background(), "1") }()
	<-hal.entered

	require.NoError(t, ctrl.Stop())
	assert.ErrorIs(t, <-done, ErrStopped)
	close(hal.release)

	require.Eventually(t, func() bool {
		return !hal.IsOpen("0") && !hal.IsOpen("1")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateStopped, ctrl.State())
}

func TestCameraCaptureController_SwitchReportsNegotiatedFormat(t *testing.T) {
	cameras := []camera2.VirtualCamera{
		{
			ID:        "a",
			Label:     "Wide",
			Facing:    camera2.LensFacingBack,
			Streams:   []camera2.StreamConfig{{Width: 1920, Height: 1080}},
			FPSRanges: []camera2.Range{{Min: 15, Max: 30}},
		},
		{
			ID:        "b",
			Label:     "Selfie",
			Facing:    camera2.LensFacingFront,
			Streams:   []camera2.StreamConfig{{Width: 1280, Height: 720}, {Width: 640, Height: 480}},
			FPSRanges: []camera2.Range{{Min: 15, Max: 30}},
		},
	}
	lf := newTestLoggerFactory(&syncBuffer{})
	hal := camera2.NewVirtualHAL(cameras...)
	c := VideoTrackConstraints{Width: Ideal(800), Height: Ideal(600)}
	ctrl := NewCameraCaptureController(c, NewCameraEnumerator(camera2.NewEnumerator(hal, lf)), nil, lf)
	t.Cleanup(func() { ctrl.Stop() })

	require.NoError(t, ctrl.Open(context.Background()))
	assert.Equal(t, Size{Width: 1920, Height: 1080}, ctrl.Target().Size)

	require.NoError(t, ctrl.SwitchCamera(context.Background(), "b"))
	target := ctrl.Target()
	assert.Equal(t, "b", target.DeviceID)
	assert.Equal(t, Size{Width: 1280, Height: 720}, target.Size)
	assert.Equal(t, 30, target.FPS)

	s := ctrl.Track().Settings()
	assert.Equal(t, 1280, s.Width)
	assert.Equal(t, 720, s.Height)

	sink := &sinkCounter{}
	ctrl.Track().AddSink(sink)
	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return sink.last == Size{Width: 1280, Height: 720}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCameraCaptureController_SwitchWithoutNegotiatedFormat(t *testing.T) {
	ctrl, enum, _ := newFakeController(t)
	enum.capturer.onSwitch = func(h camera2.CameraSwitchHandler, name string) {
		enum.capturer.setName("front")
		h.OnCameraSwitchDone(true)
	}

	require.NoError(t, ctrl.SwitchCamera(context.Background(), "front"))
	assert.Equal(t, Size{Width: 1280, Height: 720}, ctrl.Target().Size)

	enum.capturer.negotiated = &CaptureFormat{Width: 320, Height: 240, Framerate: FramerateRange{Min: 15000, Max: 24000}}
	enum.capturer.onSwitch = func(h camera2.CameraSwitchHandler, name string) {
		enum.capturer.setName("back")
		h.OnCameraSwitchDone(false)
	}
	require.NoError(t, ctrl.SwitchCamera(context.Background(), "back"))
	target := ctrl.Target()
	assert.Equal(t, Size{Width: 320, Height: 240}, target.Size)
	assert.Equal(t, 24, target.FPS)
	assert.Equal(t, 30, target.RequestedFPS)
	assert.True(t, target.FPSAdjusted)
}

func TestCameraCaptureController_Torch(t *testing.T) {
	ctrl, hal := newVirtualController(t, VideoTrackConstraints{}, &syncBuffer{})
	require.NoError(t, ctrl.Open(context.Background()))
	count := hal.RepeatingRequestCount("0")

	ctrl.SetTorchEnabled(true)
	assert.True(t, hal.TorchEnabled("0"))
	assert.Equal(t, count+1, hal.RepeatingRequestCount("0"))

	req, ok := hal.LastRepeatingRequest("0")
	require.True(t, ok)
	assert.Equal(t, camera2.TemplateRecord, req.Template)
	assert.Equal(t, camera2.FlashModeTorch, req.FlashMode)
	assert.Equal(t, camera2.AEModeOn, req.AEMode)
	assert.False(t, req.AELock)
	assert.Equal(t, camera2.Range{Min: 15, Max: 30}, req.AETargetFPSRange)
	require.Len(t, req.Targets, 1)
	assert.Equal(t, Size{Width: 640, Height: 480}, req.Targets[0].Size())

	ctrl.SetTorchEnabled(false)
	assert.False(t, hal.TorchEnabled("0"))
	req, _ = hal.LastRepeatingRequest("0")
	assert.Equal(t, camera2.FlashModeOff, req.FlashMode)
}

func TestCameraCaptureController_TorchFailuresAreLogged(t *testing.T) {
	t.Run("hardware error", func(t *testing.T) {
		logs := &syncBuffer{}
		ctrl, hal := newVirtualController(t, VideoTrackConstraints{}, logs)
		require.NoError(t, ctrl.Open(context.Background()))
		hal.FailRequests("0", errors.New("sensor fault"))

		assert.NotPanics(t, func() { ctrl.SetTorchEnabled(true) })
		assert.False(t, hal.TorchEnabled("0"))
		assert.Contains(t, logs.String(), "setTorchEnabled")
		assert.Contains(t, logs.String(), "sensor fault")
	})

	t.Run("missing field", func(t *testing.T) {
		logs := &syncBuffer{}
		lf := newTestLoggerFactory(logs)
		hal := camera2.NewVirtualHAL(camera2.DefaultVirtualCameras()...)
		layout := Camera2LayoutV1
		layout.SessionField = "activeSession"
		ctrl := NewCameraCaptureController(VideoTrackConstraints{},
			NewCameraEnumerator(camera2.NewEnumerator(hal, lf)), NewSessionIntrospector(layout), lf)
		t.Cleanup(func() { ctrl.Stop() })
		require.NoError(t, ctrl.Open(context.Background()))

		assert.NotPanics(t, func() { ctrl.SetTorchEnabled(true) })
		assert.False(t, hal.TorchEnabled("0"))
		assert.Contains(t, logs.String(), "failed to get 'activeSession' from camera2.Capturer")
	})

	t.Run("not opened", func(t *testing.T) {
		logs := &syncBuffer{}
		ctrl, _ := newVirtualController(t, VideoTrackConstraints{}, logs)
		assert.NotPanics(t, func() { ctrl.SetTorchEnabled(true) })
		assert.Contains(t, logs.String(), "setTorchEnabled")
	})

	t.Run("stopped", func(t *testing.T) {
		logs := &syncBuffer{}
		ctrl, hal := newVirtualController(t, VideoTrackConstraints{}, logs)
		require.NoError(t, ctrl.Open(context.Background()))
		require.NoError(t, ctrl.Stop())
		assert.NotPanics(t, func() { ctrl.SetTorchEnabled(true) })
		assert.False(t, hal.TorchEnabled("0"))
	})
}

func TestCameraCaptureController_SetEnabled(t *testing.T) {
	ctrl, _ := newVirtualController(t, VideoTrackConstraints{}, &syncBuffer{})
	require.NoError(t, ctrl.Open(context.Background()))

	sink := &sinkCounter{}
	ctrl.Track().AddSink(sink)
	require.Eventually(t, func() bool { return sink.count() > 0 }, 2*time.Second, 10*time.Millisecond)

	ctrl.SetEnabled(false)
	assert.False(t, ctrl.Track().Enabled())
	time.Sleep(50 * time.Millisecond)
	n := sink.count()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, n, sink.count())

	ctrl.SetEnabled(true)
	require.Eventually(t, func() bool { return sink.count() > n }, 2*time.Second, 10*time.Millisecond)
}
