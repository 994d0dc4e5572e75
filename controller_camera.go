package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// CameraCaptureController drives a camera2 capturer for one track.
type CameraCaptureController struct {
	constraints  VideoTrackConstraints
	enumerator   CameraEnumerator
	introspector SessionIntrospector
	log          logging.LeveledLogger

	switching atomic.Bool

	mu            sync.Mutex
	state         CaptureState
	target        SelectedTarget
	capturer      NativeCapturer
	track         *LocalVideoTrack
	pendingSwitch *switchResult
	startFPS      int
}

// NewCameraCaptureController returns a controller in StateCreated. A nil
// introspector uses Camera2LayoutV1.
func NewCameraCaptureController(c VideoTrackConstraints, enumerator CameraEnumerator, introspector SessionIntrospector, loggerFactory logging.LoggerFactory) *CameraCaptureController {
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}
	if introspector == nil {
		introspector = NewSessionIntrospector(Camera2LayoutV1)
	}
	return &CameraCaptureController{
		constraints:  c,
		enumerator:   enumerator,
		introspector: introspector,
		log:          loggerFactory.NewLogger("capture"),
	}
}

func (c *CameraCaptureController) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateStopped:
		return ErrStopped
	case StateCreated:
	default:
		return ErrAlreadyOpened
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	catalog, err := QueryCatalog(c.enumerator)
	if err != nil {
		return err
	}
	target, err := Select(c.constraints, catalog)
	if err != nil {
		return err
	}
	if target.FPSAdjusted {
		c.log.Warnf("requested %d fps is outside %v of %s, capturing at %d fps",
			target.RequestedFPS, target.Range, target.DeviceID, target.FPS)
	}

	track := NewLocalVideoTrack(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		uuid.NewString(), uuid.NewString(), target.Label)
	track.setSettings(settingsFor(target))

	capturer := c.enumerator.CreateCapturer(target.DeviceID, cameraEventsLogger{log: c.log})
	capturer.Initialize(track)
	if err := capturer.StartCapture(target.Size.Width, target.Size.Height, target.FPS); err != nil {
		capturer.Dispose()
		return fmt.Errorf("capture: start %s at %v@%d: %w", target.DeviceID, target.Size, target.FPS, err)
	}

	c.log.Infof("capturing from %s at %v@%d", target.DeviceID, target.Size, target.FPS)
	c.target = target
	c.startFPS = target.FPS
	c.capturer = capturer
	c.track = track
	c.state = StateOpened
	return nil
}

func settingsFor(t SelectedTarget) VideoTrackSettings {
	facing := FacingModeEnvironment
	if t.IsFrontFacing {
		facing = FacingModeUser
	}
	return VideoTrackSettings{
		Width:      t.Size.Width,
		Height:     t.Size.Height,
		FrameRate:  t.FPS,
		DeviceID:   t.DeviceID,
		FacingMode: facing.String(),
	}
}

// running returns the capturer when the controller is opened.
func (c *CameraCaptureController) running() (NativeCapturer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateCreated:
		return nil, ErrNotOpened
	case StateStopped:
		return nil, ErrStopped
	}
	return c.capturer, nil
}

// SwitchCamera fails fast with ErrBusy while another switch is in flight.
// A rejected switch returns a *SwitchError and keeps the current target.
func (c *CameraCaptureController) SwitchCamera(ctx context.Context, deviceID string) error {
	if !c.switching.CompareAndSwap(false, true) {
		return ErrBusy
	}

	c.mu.Lock()
	switch c.state {
	case StateCreated:
		c.mu.Unlock()
		c.switching.Store(false)
		return ErrNotOpened
	case StateStopped:
		c.mu.Unlock()
		c.switching.Store(false)
		return ErrStopped
	}
	capturer := c.capturer
	result := newSwitchResult(c.log)
	c.pendingSwitch = result
	c.state = StateSwitching
	c.mu.Unlock()

	capturer.SwitchCamera(result, deviceID)

	select {
	case err := <-result.done():
		c.finishSwitch(capturer, result, err)
		return err
	case <-ctx.Done():
		go func() {
			c.finishSwitch(capturer, result, <-result.done())
		}()
		return ctx.Err()
	}
}

func (c *CameraCaptureController) finishSwitch(capturer NativeCapturer, result *switchResult, err error) {
	defer c.switching.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingSwitch == result {
		c.pendingSwitch = nil
	}
	if c.state != StateSwitching {
		return
	}
	c.state = StateOpened
	if err != nil {
		return
	}

	name := capturer.CameraName()
	target := SelectedTarget{DeviceID: name, IsFrontFacing: result.isFront}
	catalog, qerr := QueryCatalog(c.enumerator)
	if qerr == nil {
		if entry, ok := findEntry(catalog, name); ok {
			if t, serr := selectFormat(c.constraints, entry); serr == nil {
				target = t
			}
		}
	}
	// The engine reopens at the previous request; report what it opened.
	if f, ok := capturer.CaptureFormat(); ok {
		target = withNegotiatedFormat(target, f, c.startFPS)
	}
	c.target = target
	c.track.setSettings(settingsFor(target))
}

// withNegotiatedFormat replaces the format of t with f. fps is the rate
// capture was started with.
func withNegotiatedFormat(t SelectedTarget, f CaptureFormat, fps int) SelectedTarget {
	if t.RequestedFPS == 0 {
		t.RequestedFPS = fps
	}
	t.Size = f.Size()
	t.Range = f.Framerate
	t.FPS = clampFPS(fps, f.Framerate)
	t.FPSAdjusted = t.FPS != t.RequestedFPS
	return t
}

// SetTorchEnabled builds and submits a torch request on the capturer's
// camera thread. The engine has no torch control, so the active session
// is read through the introspector.
func (c *CameraCaptureController) SetTorchEnabled(enabled bool) {
	capturer, err := c.running()
	if err != nil {
		c.log.Warnf("setTorchEnabled => %v", err)
		return
	}

	handles, err := c.introspector.ExtractSessionHandles(capturer)
	if err != nil {
		var missing *MissingFieldError
		switch {
		case errors.As(err, &missing):
			c.log.Errorf("setTorchEnabled => %v", missing)
		case errors.Is(err, ErrNoActiveSession):
			c.log.Errorf("setTorchEnabled => Failed to get currentSession")
		default:
			c.log.Errorf("setTorchEnabled => %v", err)
		}
		return
	}

	if err := setTorch(handles, enabled); err != nil {
		c.log.Errorf("setTorchEnabled => %v", err)
		return
	}
	c.log.Debugf("torch enabled: %t", enabled)
}

func (c *CameraCaptureController) SetEnabled(enabled bool) {
	c.mu.Lock()
	track := c.track
	c.mu.Unlock()
	if track != nil {
		track.SetEnabled(enabled)
	}
}

// Stop releases the camera and ends the track. An in-flight switch
// resolves with ErrStopped.
func (c *CameraCaptureController) Stop() error {
	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopped
	capturer, track, pending := c.capturer, c.track, c.pendingSwitch
	c.pendingSwitch = nil
	c.mu.Unlock()

	if pending != nil {
		pending.abort(ErrStopped)
	}
	if capturer != nil {
		capturer.StopCapture()
		capturer.Dispose()
	}
	if track != nil {
		return track.Close()
	}
	return nil
}

func (c *CameraCaptureController) State() CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *CameraCaptureController) Target() SelectedTarget {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *CameraCaptureController) Track() NativeVideoTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.track == nil {
		return nil
	}
	return c.track
}

var _ CaptureController = (*CameraCaptureController)(nil)
