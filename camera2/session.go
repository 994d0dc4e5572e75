package camera2

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// freezeMessage is reported when a running session stops producing frames.
const freezeMessage = "Camera failure. Client must return video buffers."

// cameraSession is one open camera streaming into one surface. It is
// created and stopped on the capturer's camera thread.
type cameraSession struct {
	capturer   *Capturer
	cameraName string

	captureSession      CaptureSession
	cameraDevice        Device
	captureFormat       CaptureFormat
	fpsUnitFactor       int
	surface             *Surface
	cameraThreadHandler *Handler

	firstFrameReported atomic.Bool
	stopped            atomic.Bool

	watchdogMu sync.Mutex
	watchdog   *time.Timer
}

// openSession opens name and starts a repeating record request for the
// format closest to width x height at framerate. Runs on the camera thread.
func (c *Capturer) openSession(name string, width, height, framerate int) (*cameraSession, error) {
	c.events.OnCameraOpening(name)

	hal := c.enumerator.hal
	chars, err := hal.Characteristics(name)
	if err != nil {
		return nil, fmt.Errorf("camera2: characteristics of %s: %w", name, err)
	}
	if len(chars.Streams) == 0 {
		return nil, fmt.Errorf("camera2: %s reports no stream configurations", name)
	}

	sizes := make([]Size, 0, len(chars.Streams))
	for _, s := range chars.Streams {
		sizes = append(sizes, Size{Width: s.Width, Height: s.Height})
	}
	unitFactor := FpsUnitFactor(chars.FPSRanges)
	fpsRange := ClosestSupportedFramerateRange(convertFramerates(chars.FPSRanges, unitFactor), framerate)
	size := ClosestSupportedSize(sizes, width, height)

	s := &cameraSession{
		capturer:            c,
		cameraName:          name,
		captureFormat:       CaptureFormat{Width: size.Width, Height: size.Height, Framerate: fpsRange},
		fpsUnitFactor:       unitFactor,
		cameraThreadHandler: c.cameraThreadHandler,
	}
	c.log.Debugf("opening %s with format %s", name, s.captureFormat)

	device, err := hal.OpenCamera(name, s)
	if err != nil {
		return nil, err
	}
	s.cameraDevice = device
	s.surface = NewSurface(size.Width, size.Height, s.onFrame)

	captureSession, err := device.CreateCaptureSession(s.surface)
	if err != nil {
		device.Close()
		return nil, fmt.Errorf("camera2: configure session on %s: %w", name, err)
	}
	s.captureSession = captureSession

	req, err := device.CreateCaptureRequest(TemplateRecord)
	if err != nil {
		s.release()
		return nil, err
	}
	req.AETargetFPSRange = Range{Min: fpsRange.Min / unitFactor, Max: fpsRange.Max / unitFactor}
	req.AEMode = AEModeOn
	req.AELock = false
	req.FlashMode = FlashModeOff
	req.AddTarget(s.surface)

	s.armWatchdog()
	if err := captureSession.SetRepeatingRequest(req); err != nil {
		s.release()
		return nil, err
	}
	return s, nil
}

func (s *cameraSession) onFrame(f *Frame) {
	if s.stopped.Load() {
		return
	}
	s.resetWatchdog()
	if s.firstFrameReported.CompareAndSwap(false, true) {
		s.capturer.events.OnFirstFrameAvailable()
	}
	s.capturer.deliverFrame(f)
}

func (s *cameraSession) armWatchdog() {
	timeout := s.capturer.enumerator.FreezeTimeout
	if timeout <= 0 {
		return
	}
	s.watchdogMu.Lock()
	defer s.watchdogMu.Unlock()
	s.watchdog = time.AfterFunc(timeout, func() {
		if !s.stopped.Load() {
			s.capturer.events.OnCameraFreezed(freezeMessage)
		}
	})
}

func (s *cameraSession) resetWatchdog() {
	s.watchdogMu.Lock()
	defer s.watchdogMu.Unlock()
	if s.watchdog != nil {
		s.watchdog.Reset(s.capturer.enumerator.FreezeTimeout)
	}
}

// release frees HAL resources without reporting events.
func (s *cameraSession) release() {
	s.stopped.Store(true)
	s.watchdogMu.Lock()
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	s.watchdogMu.Unlock()
	if s.captureSession != nil {
		s.captureSession.StopRepeating()
		s.captureSession.Close()
	}
	if s.cameraDevice != nil {
		s.cameraDevice.Close()
	}
}

// stop closes the session. Runs on the camera thread.
func (s *cameraSession) stop() {
	if s.stopped.Load() {
		return
	}
	s.release()
	s.capturer.events.OnCameraClosed()
}

// OnDisconnected implements DeviceCallback.
func (s *cameraSession) OnDisconnected() {
	s.cameraThreadHandler.Post(func() {
		if !s.capturer.sessionLost(s) {
			return
		}
		s.capturer.events.OnCameraDisconnected()
		s.stop()
	})
}

// OnError implements DeviceCallback.
func (s *cameraSession) OnError(code int) {
	s.cameraThreadHandler.Post(func() {
		if !s.capturer.sessionLost(s) {
			return
		}
		s.capturer.events.OnCameraError(fmt.Sprintf("Camera device error %d", code))
		s.stop()
	})
}
