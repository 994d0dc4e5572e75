package capture

import (
	"context"
	"errors"

	"github.com/pion/logging"

	"github.com/thesyncim/capture/camera2"
)

// AppContext carries the platform handles the backends need. It is
// passed explicitly; the package keeps no process-wide state.
type AppContext struct {
	// HAL is the camera hardware layer. Required by the camera backend.
	HAL camera2.HAL
	// LoggerFactory defaults to pion's default factory.
	LoggerFactory logging.LoggerFactory
	// Introspector defaults to one for Camera2LayoutV1.
	Introspector SessionIntrospector
}

func (a AppContext) loggerFactory() logging.LoggerFactory {
	if a.LoggerFactory == nil {
		return logging.NewDefaultLoggerFactory()
	}
	return a.LoggerFactory
}

// Backend creates capture controllers and the tracks they feed.
type Backend interface {
	Name() string
	EnumerateDevices(ctx context.Context) ([]DeviceCatalogEntry, error)
	NewController(c VideoTrackConstraints) CaptureController
	CreateVideoTrack(ctx context.Context, c VideoTrackConstraints) (*VideoStreamTrack, error)
}

// CameraBackend captures from a camera2 engine.
type CameraBackend struct {
	enumerator    CameraEnumerator
	introspector  SessionIntrospector
	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger
}

// NewCameraBackend returns a backend over appCtx.HAL.
func NewCameraBackend(appCtx AppContext) (*CameraBackend, error) {
	if appCtx.HAL == nil {
		return nil, errors.New("capture: camera backend requires a HAL")
	}
	lf := appCtx.loggerFactory()
	introspector := appCtx.Introspector
	if introspector == nil {
		introspector = NewSessionIntrospector(Camera2LayoutV1)
	}
	return &CameraBackend{
		enumerator:    NewCameraEnumerator(camera2.NewEnumerator(appCtx.HAL, lf)),
		introspector:  introspector,
		loggerFactory: lf,
		log:           lf.NewLogger("capture"),
	}, nil
}

// newCameraBackendWithEnumerator is used where the enumerator is faked.
func newCameraBackendWithEnumerator(e CameraEnumerator, introspector SessionIntrospector, lf logging.LoggerFactory) *CameraBackend {
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	return &CameraBackend{enumerator: e, introspector: introspector, loggerFactory: lf, log: lf.NewLogger("capture")}
}

func (b *CameraBackend) Name() string { return "camera" }

func (b *CameraBackend) EnumerateDevices(ctx context.Context) ([]DeviceCatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return QueryCatalog(b.enumerator)
}

func (b *CameraBackend) NewController(c VideoTrackConstraints) CaptureController {
	return NewCameraCaptureController(c, b.enumerator, b.introspector, b.loggerFactory)
}

func (b *CameraBackend) CreateVideoTrack(ctx context.Context, c VideoTrackConstraints) (*VideoStreamTrack, error) {
	ctrl := b.NewController(c)
	if err := ctrl.Open(ctx); err != nil {
		return nil, err
	}
	return NewVideoStreamTrack(ctrl.Track(), TrackHooks{
		SwitchCamera: ctrl.SwitchCamera,
		SetEnabled:   ctrl.SetEnabled,
		Stop:         ctrl.Stop,
		SetTorch:     ctrl.SetTorchEnabled,
	}, b.log), nil
}

// BrowserBackend captures through pion/mediadevices.
type BrowserBackend struct {
	api           mediaDevicesAPI
	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger
}

// NewBrowserBackend returns a backend over the registered mediadevices
// drivers. appCtx.HAL is ignored.
func NewBrowserBackend(appCtx AppContext) *BrowserBackend {
	lf := appCtx.loggerFactory()
	return &BrowserBackend{api: defaultMediaDevicesAPI, loggerFactory: lf, log: lf.NewLogger("capture")}
}

func (b *BrowserBackend) Name() string { return "browser" }

func (b *BrowserBackend) EnumerateDevices(ctx context.Context) ([]DeviceCatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return browserCatalog(b.api.enumerate()), nil
}

func (b *BrowserBackend) NewController(c VideoTrackConstraints) CaptureController {
	ctrl := NewBrowserCaptureController(c, b.loggerFactory)
	ctrl.api = b.api
	return ctrl
}

// CreateVideoTrack leaves the switch and torch hooks unset so the track
// reports them as unsupported.
func (b *BrowserBackend) CreateVideoTrack(ctx context.Context, c VideoTrackConstraints) (*VideoStreamTrack, error) {
	ctrl := b.NewController(c)
	if err := ctrl.Open(ctx); err != nil {
		return nil, err
	}
	return NewVideoStreamTrack(ctrl.Track(), TrackHooks{
		SetEnabled: ctrl.SetEnabled,
		Stop:       ctrl.Stop,
	}, b.log), nil
}

// MediaDevices is the getUserMedia-style entry point over one backend.
type MediaDevices struct {
	backend Backend
}

// NewMediaDevices returns the entry point for backend.
func NewMediaDevices(backend Backend) *MediaDevices {
	return &MediaDevices{backend: backend}
}

// Backend returns the active backend.
func (d *MediaDevices) Backend() Backend { return d.backend }

// EnumerateDevices lists the capture devices of the backend.
func (d *MediaDevices) EnumerateDevices(ctx context.Context) ([]DeviceCatalogEntry, error) {
	return d.backend.EnumerateDevices(ctx)
}

// GetUserMedia opens a video track satisfying c. Unsatisfiable
// constraints fail here with *NotFoundError.
func (d *MediaDevices) GetUserMedia(ctx context.Context, c VideoTrackConstraints) (*VideoStreamTrack, error) {
	return d.backend.CreateVideoTrack(ctx, c)
}

var (
	_ Backend = (*CameraBackend)(nil)
	_ Backend = (*BrowserBackend)(nil)
)
