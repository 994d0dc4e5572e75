package camera2

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/pion/logging"
)

// CameraEventsHandler receives camera lifecycle events. Calls are made
// from the camera Handler or, for frame related events, from the HAL's
// frame goroutine.
type CameraEventsHandler interface {
	OnCameraError(errorDescription string)
	OnCameraDisconnected()
	OnCameraFreezed(errorDescription string)
	OnCameraOpening(cameraName string)
	OnFirstFrameAvailable()
	OnCameraClosed()
}

// CameraSwitchHandler receives the outcome of one SwitchCamera call.
// Exactly one of the two methods is called.
type CameraSwitchHandler interface {
	OnCameraSwitchDone(isFrontCamera bool)
	OnCameraSwitchError(errorDescription string)
}

// CapturerObserver consumes frames and start/stop notifications.
type CapturerObserver interface {
	OnCapturerStarted(success bool)
	OnCapturerStopped()
	OnFrameCaptured(frame *Frame)
}

var (
	errNotInitialized = errors.New("camera2: capturer not initialized")
	errAlreadyStarted = errors.New("camera2: capture already started")
	errDisposed       = errors.New("camera2: capturer disposed")
)

// Capturer captures from one camera at a time and can switch between
// cameras. It must be initialized before StartCapture.
type Capturer struct {
	enumerator *Enumerator
	events     CameraEventsHandler
	log        logging.LeveledLogger

	mu                  sync.Mutex
	cameraName          string
	observer            CapturerObserver
	cameraThreadHandler *Handler
	currentSession      *cameraSession
	width               int
	height              int
	framerate           int
	sessionOpening      bool
	switchPending       bool
	disposed            bool
}

func newCapturer(name string, events CameraEventsHandler, e *Enumerator) *Capturer {
	if events == nil {
		events = nopEventsHandler{}
	}
	return &Capturer{
		enumerator: e,
		events:     events,
		log:        e.loggerFactory.NewLogger("camera2"),
		cameraName: name,
	}
}

// Initialize binds the observer and starts the camera thread.
func (c *Capturer) Initialize(observer CapturerObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = observer
	if c.cameraThreadHandler == nil {
		c.cameraThreadHandler = NewHandler("camera2-" + c.cameraName)
	}
}

// CameraName returns the camera currently bound to the capturer.
func (c *Capturer) CameraName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cameraName
}

// IsScreencast always reports false.
func (c *Capturer) IsScreencast() bool { return false }

// StartCapture opens the camera and starts streaming the format closest
// to the requested one. It blocks until the session is configured.
func (c *Capturer) StartCapture(width, height, framerate int) error {
	c.mu.Lock()
	switch {
	case c.disposed:
		c.mu.Unlock()
		return errDisposed
	case c.cameraThreadHandler == nil:
		c.mu.Unlock()
		return errNotInitialized
	case c.sessionOpening || c.currentSession != nil:
		c.mu.Unlock()
		return errAlreadyStarted
	}
	c.width, c.height, c.framerate = width, height, framerate
	c.sessionOpening = true
	name := c.cameraName
	handler := c.cameraThreadHandler
	observer := c.observer
	c.mu.Unlock()

	var (
		session *cameraSession
		err     error
	)
	if !handler.Invoke(func() { session, err = c.openSession(name, width, height, framerate) }) {
		err = errDisposed
	}

	c.mu.Lock()
	c.sessionOpening = false
	if err == nil {
		c.currentSession = session
	}
	c.mu.Unlock()

	if err != nil {
		c.events.OnCameraError(err.Error())
		if observer != nil {
			observer.OnCapturerStarted(false)
		}
		return err
	}
	if observer != nil {
		observer.OnCapturerStarted(true)
	}
	return nil
}

// StopCapture closes the current session. It is safe to call when not
// capturing.
func (c *Capturer) StopCapture() {
	c.mu.Lock()
	session := c.currentSession
	c.currentSession = nil
	handler := c.cameraThreadHandler
	observer := c.observer
	c.mu.Unlock()

	if session == nil {
		return
	}
	if handler == nil || !handler.Invoke(session.stop) {
		session.stop()
	}
	if observer != nil {
		observer.OnCapturerStopped()
	}
}

// SwitchCamera switches to the named camera, or to the next camera in
// enumeration order when cameraName is empty. The result is reported to
// handler from the camera thread.
func (c *Capturer) SwitchCamera(handler CameraSwitchHandler, cameraName string) {
	c.mu.Lock()
	thread := c.cameraThreadHandler
	c.mu.Unlock()

	if thread == nil {
		c.reportSwitchError(handler, "switchCamera: capturer is not initialized.")
		return
	}
	if !thread.Post(func() { c.switchCameraInternal(handler, cameraName) }) {
		c.reportSwitchError(handler, "switchCamera: capturer is disposed.")
	}
}

func (c *Capturer) switchCameraInternal(handler CameraSwitchHandler, cameraName string) {
	names, err := c.enumerator.DeviceNames()
	if err != nil {
		c.reportSwitchError(handler, err.Error())
		return
	}
	if len(names) < 2 {
		c.reportSwitchError(handler, "No camera to switch to.")
		return
	}

	c.mu.Lock()
	if c.switchPending {
		c.mu.Unlock()
		c.reportSwitchError(handler, "Camera switch already in progress.")
		return
	}
	if c.currentSession == nil {
		c.mu.Unlock()
		c.reportSwitchError(handler, "switchCamera: camera is not running.")
		return
	}

	previous := c.cameraName
	target := cameraName
	if target == "" {
		idx := slices.Index(names, previous)
		target = names[(idx+1)%len(names)]
	} else if !slices.Contains(names, target) {
		c.mu.Unlock()
		c.reportSwitchError(handler, "Attempted to switch to unknown camera device "+target)
		return
	}

	c.switchPending = true
	old := c.currentSession
	c.currentSession = nil
	width, height, framerate := c.width, c.height, c.framerate
	c.mu.Unlock()

	c.log.Debugf("switching camera %s -> %s", previous, target)
	old.stop()

	session, err := c.openSession(target, width, height, framerate)
	if err != nil {
		restored, rerr := c.openSession(previous, width, height, framerate)
		c.mu.Lock()
		c.switchPending = false
		disposed := c.disposed
		if rerr == nil && !disposed {
			c.currentSession = restored
		}
		c.mu.Unlock()
		switch {
		case rerr != nil:
			c.events.OnCameraError(fmt.Sprintf("reopen %s after failed switch: %v", previous, rerr))
		case disposed:
			restored.stop()
		}
		c.reportSwitchError(handler, err.Error())
		return
	}

	c.mu.Lock()
	c.switchPending = false
	if c.disposed {
		c.mu.Unlock()
		session.stop()
		c.reportSwitchError(handler, "switchCamera: capturer is disposed.")
		return
	}
	c.cameraName = target
	c.currentSession = session
	c.mu.Unlock()

	if handler != nil {
		handler.OnCameraSwitchDone(c.enumerator.IsFrontFacing(target))
	}
}

func (c *Capturer) reportSwitchError(handler CameraSwitchHandler, msg string) {
	c.log.Errorf("switch camera: %s", msg)
	if handler != nil {
		handler.OnCameraSwitchError(msg)
	}
}

// Dispose stops capture and the camera thread. The capturer cannot be
// restarted. A switch still running on the camera thread closes the
// session it opens instead of keeping it.
func (c *Capturer) Dispose() {
	c.mu.Lock()
	c.disposed = true
	handler := c.cameraThreadHandler
	c.mu.Unlock()

	c.StopCapture()

	if handler != nil {
		handler.Quit()
	}
}

// CaptureFormat returns the format the running session negotiated, with
// the frame rate range in frames per 1000 seconds.
func (c *Capturer) CaptureFormat() (CaptureFormat, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentSession == nil {
		return CaptureFormat{}, false
	}
	return c.currentSession.captureFormat, true
}

func (c *Capturer) deliverFrame(f *Frame) {
	c.mu.Lock()
	observer := c.observer
	c.mu.Unlock()
	if observer != nil {
		observer.OnFrameCaptured(f)
	}
}

// sessionLost is called on the camera thread when the HAL drops a session.
func (c *Capturer) sessionLost(s *cameraSession) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentSession != s {
		return false
	}
	c.currentSession = nil
	return true
}

type nopEventsHandler struct{}

func (nopEventsHandler) OnCameraError(string)   {}
func (nopEventsHandler) OnCameraDisconnected()  {}
func (nopEventsHandler) OnCameraFreezed(string) {}
func (nopEventsHandler) OnCameraOpening(string) {}
func (nopEventsHandler) OnFirstFrameAvailable() {}
func (nopEventsHandler) OnCameraClosed()        {}
