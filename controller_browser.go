package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/prop"
)

// mediaDevicesAPI is the subset of pion/mediadevices the browser backend
// uses.
type mediaDevicesAPI struct {
	enumerate    func() []mediadevices.MediaDeviceInfo
	getUserMedia func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error)
}

var defaultMediaDevicesAPI = mediaDevicesAPI{
	enumerate:    mediadevices.EnumerateDevices,
	getUserMedia: mediadevices.GetUserMedia,
}

// frontFacingHints are label fragments that mark a webcam as user facing.
var frontFacingHints = []string{"front", "user", "facetime", "integrated", "webcam"}

func looksFrontFacing(label string) bool {
	l := strings.ToLower(label)
	for _, hint := range frontFacingHints {
		if strings.Contains(l, hint) {
			return true
		}
	}
	return false
}

// browserCatalog lists the video inputs. The platform resolves formats
// itself, so entries carry none.
func browserCatalog(devices []mediadevices.MediaDeviceInfo) []DeviceCatalogEntry {
	var catalog []DeviceCatalogEntry
	for _, d := range devices {
		if d.Kind != mediadevices.VideoInput {
			continue
		}
		catalog = append(catalog, DeviceCatalogEntry{
			ID:            d.DeviceID,
			Label:         d.Label,
			IsFrontFacing: looksFrontFacing(d.Label),
		})
	}
	return catalog
}

func applyInt(dst *prop.IntConstraint, c *ConstraintValue[int]) {
	switch {
	case c == nil:
	case c.Exact != nil:
		*dst = prop.IntExact(*c.Exact)
	case c.Ideal != nil:
		*dst = prop.Int(*c.Ideal)
	}
}

func applyFloat(dst *prop.FloatConstraint, c *ConstraintValue[float64]) {
	switch {
	case c == nil:
	case c.Exact != nil:
		*dst = prop.FloatExact(float32(*c.Exact))
	case c.Ideal != nil:
		*dst = prop.Float(float32(*c.Ideal))
	}
}

// BrowserCaptureController captures through pion/mediadevices. Camera
// switching and torch do not exist on this backend.
type BrowserCaptureController struct {
	constraints VideoTrackConstraints
	api         mediaDevicesAPI
	log         logging.LeveledLogger

	mu     sync.Mutex
	state  CaptureState
	target SelectedTarget
	track  *browserTrack
}

// NewBrowserCaptureController returns a controller in StateCreated.
func NewBrowserCaptureController(c VideoTrackConstraints, loggerFactory logging.LoggerFactory) *BrowserCaptureController {
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &BrowserCaptureController{
		constraints: c,
		api:         defaultMediaDevicesAPI,
		log:         loggerFactory.NewLogger("capture"),
	}
}

// Open pins a device when the constraints name one or a facing mode, and
// lets the platform choose otherwise.
func (c *BrowserCaptureController) Open(ctx context.Context) error {
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

	catalog := browserCatalog(c.api.enumerate())
	if len(catalog) == 0 {
		return &NotFoundError{What: "device", Constraints: c.constraints}
	}
	dev := catalog[0]
	if c.constraints.DeviceID != "" || c.constraints.FacingMode.IsSet() {
		var err error
		if dev, err = SelectDevice(c.constraints, catalog); err != nil {
			return err
		}
	}

	stream, err := c.api.getUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(m *mediadevices.MediaTrackConstraints) {
			m.DeviceID = prop.StringExact(dev.ID)
			applyInt(&m.Width, c.constraints.Width)
			applyInt(&m.Height, c.constraints.Height)
			applyFloat(&m.FrameRate, c.constraints.FrameRate)
		},
	})
	if err != nil {
		return &NotFoundError{What: "device", Constraints: c.constraints, Err: err}
	}
	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return &NotFoundError{What: "device", Constraints: c.constraints, Err: errors.New("no video track")}
	}

	fps := int(c.constraints.FrameRate.Resolve(DefaultFrameRate))
	c.target = SelectedTarget{
		DeviceID:      dev.ID,
		Label:         dev.Label,
		IsFrontFacing: dev.IsFrontFacing,
		Size: Size{
			Width:  c.constraints.Width.Resolve(DefaultVideoWidth),
			Height: c.constraints.Height.Resolve(DefaultVideoHeight),
		},
		FPS:          fps,
		RequestedFPS: fps,
	}
	c.track = newBrowserTrack(tracks[0], dev.Label, settingsFor(c.target), c.log)
	c.state = StateOpened
	c.log.Infof("capturing from %s (%s)", dev.ID, dev.Label)
	return nil
}

// SwitchCamera is not available in the browser. It logs a warning and
// leaves capture unchanged.
func (c *BrowserCaptureController) SwitchCamera(context.Context, string) error {
	c.log.Warn("switchCamera() is not available in the browser backend")
	return nil
}

// SetTorchEnabled is not available in the browser.
func (c *BrowserCaptureController) SetTorchEnabled(bool) {
	c.log.Warn("setTorchEnabled() is not available in the browser backend")
}

func (c *BrowserCaptureController) SetEnabled(enabled bool) {
	c.mu.Lock()
	track := c.track
	c.mu.Unlock()
	if track != nil {
		track.SetEnabled(enabled)
	}
}

func (c *BrowserCaptureController) Stop() error {
	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopped
	track := c.track
	c.mu.Unlock()
	if track != nil {
		return track.Close()
	}
	return nil
}

func (c *BrowserCaptureController) State() CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *BrowserCaptureController) Target() SelectedTarget {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *BrowserCaptureController) Track() NativeVideoTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.track == nil {
		return nil
	}
	return c.track
}

var _ CaptureController = (*BrowserCaptureController)(nil)

// browserTrack adapts a mediadevices track to NativeVideoTrack. Frames
// are pulled from the track's reader once the first sink is added.
type browserTrack struct {
	*BaseTrack
	track    mediadevices.Track
	settings VideoTrackSettings
	log      logging.LeveledLogger
	sinks    sinkSet

	pumpOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

func newBrowserTrack(track mediadevices.Track, label string, settings VideoTrackSettings, log logging.LeveledLogger) *browserTrack {
	return &browserTrack{
		BaseTrack: NewBaseTrack(uuid.NewString(), uuid.NewString(), label),
		track:     track,
		settings:  settings,
		log:       log,
		done:      make(chan struct{}),
	}
}

func (t *browserTrack) Settings() VideoTrackSettings { return t.settings }

func (t *browserTrack) AddSink(sink VideoSink) {
	t.sinks.add(sink)
	t.pumpOnce.Do(func() {
		vt, ok := t.track.(*mediadevices.VideoTrack)
		if !ok {
			t.log.Warnf("track %s has no video reader", t.track.ID())
			return
		}
		go t.pump(vt)
	})
}

func (t *browserTrack) RemoveSink(sink VideoSink) { t.sinks.remove(sink) }

func (t *browserTrack) pump(vt *mediadevices.VideoTrack) {
	reader := vt.NewReader(false)
	for {
		select {
		case <-t.done:
			return
		default:
		}
		img, release, err := reader.Read()
		if err != nil {
			t.log.Debugf("video reader stopped: %v", err)
			return
		}
		if t.State() == TrackStateLive && t.Enabled() {
			t.sinks.deliver(frameFromImage(img, time.Now().UnixNano()))
		}
		release()
	}
}

func (t *browserTrack) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.track.Close()
		t.SetState(TrackStateEnded)
	})
	return err
}

var _ NativeVideoTrack = (*browserTrack)(nil)
