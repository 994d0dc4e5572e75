package capture

import (
	"sync"

	"github.com/pion/logging"

	"github.com/thesyncim/capture/camera2"
)

// cameraEventsLogger reports engine lifecycle events through pion logging.
type cameraEventsLogger struct {
	log logging.LeveledLogger
}

func (e cameraEventsLogger) OnCameraError(desc string) {
	e.log.Errorf("Camera error: %s", desc)
}

func (e cameraEventsLogger) OnCameraDisconnected() {
	e.log.Warn("Camera disconnected")
}

func (e cameraEventsLogger) OnCameraFreezed(desc string) {
	e.log.Errorf("Camera freezed: %s", desc)
}

func (e cameraEventsLogger) OnCameraOpening(name string) {
	e.log.Debugf("Opening camera %s", name)
}

func (e cameraEventsLogger) OnFirstFrameAvailable() {
	e.log.Debug("First frame available")
}

func (e cameraEventsLogger) OnCameraClosed() {
	e.log.Debug("Camera closed")
}

var _ camera2.CameraEventsHandler = cameraEventsLogger{}

// switchResult turns the engine's switch callback pair into a one-shot
// result. The first report wins; later ones are logged and dropped.
type switchResult struct {
	log  logging.LeveledLogger
	once sync.Once
	ch   chan error
	// isFront is written before the send on ch.
	isFront bool
}

func newSwitchResult(log logging.LeveledLogger) *switchResult {
	return &switchResult{log: log, ch: make(chan error, 1)}
}

func (r *switchResult) OnCameraSwitchDone(isFrontCamera bool) {
	if !r.resolve(nil, func() { r.isFront = isFrontCamera }) {
		r.log.Warn("duplicate camera switch completion ignored")
		return
	}
	r.log.Debugf("Camera switched, front facing: %t", isFrontCamera)
}

func (r *switchResult) OnCameraSwitchError(desc string) {
	err := &SwitchError{Message: desc}
	if !r.resolve(err, nil) {
		r.log.Warnf("duplicate camera switch error ignored: %s", desc)
		return
	}
	r.log.Errorf("%v", err)
}

// abort resolves the switch with err unless it already completed.
func (r *switchResult) abort(err error) {
	r.resolve(err, nil)
}

func (r *switchResult) resolve(err error, before func()) bool {
	resolved := false
	r.once.Do(func() {
		if before != nil {
			before()
		}
		r.ch <- err
		resolved = true
	})
	return resolved
}

func (r *switchResult) done() <-chan error { return r.ch }

var _ camera2.CameraSwitchHandler = (*switchResult)(nil)
