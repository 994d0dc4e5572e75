package capture

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pion/logging"
)

// TrackHooks are the backend capabilities a VideoStreamTrack exposes.
// A nil hook is replaced by a stub: SwitchCamera and SetTorch log a
// warning and do nothing, SetEnabled toggles the native track and Stop
// does nothing beyond closing it.
type TrackHooks struct {
	SwitchCamera func(ctx context.Context, deviceID string) error
	SetEnabled   func(enabled bool)
	Stop         func() error
	SetTorch     func(enabled bool)
}

// VideoStreamTrack is the track handed to callers. It wraps exactly one
// native track and routes the camera controls to the backend hooks.
type VideoStreamTrack struct {
	native NativeVideoTrack
	hooks  TrackHooks
	log    logging.LeveledLogger

	stopped  atomic.Bool
	stopOnce sync.Once
	stopErr  error
}

// NewVideoStreamTrack wraps native with hooks.
func NewVideoStreamTrack(native NativeVideoTrack, hooks TrackHooks, log logging.LeveledLogger) *VideoStreamTrack {
	if log == nil {
		log = logging.NewDefaultLoggerFactory().NewLogger("capture")
	}
	if hooks.SwitchCamera == nil {
		hooks.SwitchCamera = func(context.Context, string) error {
			log.Warn("switchCamera() is not supported by this backend")
			return nil
		}
	}
	if hooks.SetTorch == nil {
		hooks.SetTorch = func(bool) {
			log.Warn("setTorchEnabled() is not supported by this backend")
		}
	}
	if hooks.SetEnabled == nil {
		hooks.SetEnabled = native.SetEnabled
	}
	if hooks.Stop == nil {
		hooks.Stop = func() error { return nil }
	}
	return &VideoStreamTrack{native: native, hooks: hooks, log: log}
}

func (t *VideoStreamTrack) ID() string                   { return t.native.ID() }
func (t *VideoStreamTrack) Kind() RTPCodecType           { return RTPCodecTypeVideo }
func (t *VideoStreamTrack) Label() string                { return t.native.Label() }
func (t *VideoStreamTrack) State() TrackState            { return t.native.State() }
func (t *VideoStreamTrack) Enabled() bool                { return t.native.Enabled() }
func (t *VideoStreamTrack) Settings() VideoTrackSettings { return t.native.Settings() }
func (t *VideoStreamTrack) AddSink(sink VideoSink)       { t.native.AddSink(sink) }
func (t *VideoStreamTrack) RemoveSink(sink VideoSink)    { t.native.RemoveSink(sink) }
func (t *VideoStreamTrack) OnEnded(callback func())      { t.native.OnEnded(callback) }

// Native returns the wrapped backend track.
func (t *VideoStreamTrack) Native() NativeVideoTrack { return t.native }

// SetEnabled pauses or resumes frame delivery. It is ignored after Stop.
func (t *VideoStreamTrack) SetEnabled(enabled bool) {
	if t.stopped.Load() {
		return
	}
	t.hooks.SetEnabled(enabled)
}

// SwitchCamera moves capture to deviceID, or to the next camera when
// deviceID is empty. It blocks until the backend reports the outcome or
// ctx is done.
func (t *VideoStreamTrack) SwitchCamera(ctx context.Context, deviceID string) error {
	if t.stopped.Load() {
		return ErrStopped
	}
	return t.hooks.SwitchCamera(ctx, deviceID)
}

// SetTorchEnabled turns the torch on or off. Failures are logged, never
// returned.
func (t *VideoStreamTrack) SetTorchEnabled(enabled bool) {
	if t.stopped.Load() {
		return
	}
	t.hooks.SetTorch(enabled)
}

// Stop releases the capture source and ends the track. Later calls return
// the first call's result.
func (t *VideoStreamTrack) Stop() error {
	t.stopOnce.Do(func() {
		t.stopped.Store(true)
		t.stopErr = t.hooks.Stop()
		if err := t.native.Close(); err != nil && t.stopErr == nil {
			t.stopErr = err
		}
	})
	return t.stopErr
}

// Close is Stop.
func (t *VideoStreamTrack) Close() error { return t.Stop() }
