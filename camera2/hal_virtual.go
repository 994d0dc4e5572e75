package camera2

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// VirtualCamera describes one camera of a VirtualHAL.
type VirtualCamera struct {
	ID        string
	Label     string
	Facing    LensFacing
	Streams   []StreamConfig
	FPSRanges []Range // in fps
}

// DefaultVirtualCameras returns a back camera and a front camera with
// typical phone stream configurations.
func DefaultVirtualCameras() []VirtualCamera {
	return []VirtualCamera{
		{
			ID:     "0",
			Label:  "Virtual Back Camera",
			Facing: LensFacingBack,
			Streams: []StreamConfig{
				{Width: 1920, Height: 1080, MinFrameDurationNs: int64(time.Second / 30)},
				{Width: 1280, Height: 720, MinFrameDurationNs: int64(time.Second / 60)},
				{Width: 640, Height: 480, MinFrameDurationNs: int64(time.Second / 60)},
				{Width: 320, Height: 240, MinFrameDurationNs: int64(time.Second / 60)},
			},
			FPSRanges: []Range{{Min: 15, Max: 15}, {Min: 15, Max: 30}, {Min: 30, Max: 30}, {Min: 30, Max: 60}},
		},
		{
			ID:     "1",
			Label:  "Virtual Front Camera",
			Facing: LensFacingFront,
			Streams: []StreamConfig{
				{Width: 1280, Height: 720, MinFrameDurationNs: int64(time.Second / 30)},
				{Width: 640, Height: 480, MinFrameDurationNs: int64(time.Second / 30)},
			},
			FPSRanges: []Range{{Min: 15, Max: 30}, {Min: 30, Max: 30}},
		},
	}
}

// VirtualHAL is an in-process HAL whose cameras stream generated I420
// frames. It records the requests submitted to it so callers can observe
// the effect of control changes such as the flash mode.
type VirtualHAL struct {
	mu           sync.Mutex
	cameras      []VirtualCamera
	devices      map[string]*virtualDevice
	torch        map[string]bool
	lastRequest  map[string]*CaptureRequest
	requestCount map[string]int
	openErr      map[string]error
	requestErr   map[string]error
	frozen       map[string]bool
}

var _ HAL = (*VirtualHAL)(nil)

// NewVirtualHAL creates a HAL with the given cameras, in enumeration order.
func NewVirtualHAL(cameras ...VirtualCamera) *VirtualHAL {
	return &VirtualHAL{
		cameras:      slices.Clone(cameras),
		devices:      make(map[string]*virtualDevice),
		torch:        make(map[string]bool),
		lastRequest:  make(map[string]*CaptureRequest),
		requestCount: make(map[string]int),
		openErr:      make(map[string]error),
		requestErr:   make(map[string]error),
		frozen:       make(map[string]bool),
	}
}

// AddCamera appends a camera.
func (h *VirtualHAL) AddCamera(c VirtualCamera) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cameras = append(h.cameras, c)
}

// RemoveCamera removes a camera, disconnecting it if open.
func (h *VirtualHAL) RemoveCamera(id string) {
	h.Disconnect(id)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cameras = slices.DeleteFunc(h.cameras, func(c VirtualCamera) bool { return c.ID == id })
}

func (h *VirtualHAL) camera(id string) (VirtualCamera, bool) {
	for _, c := range h.cameras {
		if c.ID == id {
			return c, true
		}
	}
	return VirtualCamera{}, false
}

// CameraIDs implements HAL.
func (h *VirtualHAL) CameraIDs() ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.cameras))
	for _, c := range h.cameras {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// Characteristics implements HAL.
func (h *VirtualHAL) Characteristics(id string) (Characteristics, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.camera(id)
	if !ok {
		return Characteristics{}, fmt.Errorf("%w: %s", ErrCameraNotFound, id)
	}
	return Characteristics{
		Label:      c.Label,
		LensFacing: c.Facing,
		Streams:    slices.Clone(c.Streams),
		FPSRanges:  slices.Clone(c.FPSRanges),
	}, nil
}

// OpenCamera implements HAL.
func (h *VirtualHAL) OpenCamera(id string, cb DeviceCallback) (Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.camera(id); !ok {
		return nil, fmt.Errorf("%w: %s", ErrCameraNotFound, id)
	}
	if err := h.openErr[id]; err != nil {
		return nil, &CameraAccessError{CameraID: id, Reason: AccessReasonError, Err: err}
	}
	if _, busy := h.devices[id]; busy {
		return nil, &CameraAccessError{CameraID: id, Reason: AccessReasonInUse}
	}
	d := &virtualDevice{hal: h, id: id, cb: cb}
	h.devices[id] = d
	return d, nil
}

// TorchEnabled reports whether the last repeating request on id turned
// the torch on.
func (h *VirtualHAL) TorchEnabled(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.torch[id]
}

// LastRepeatingRequest returns a copy of the last request submitted for id.
func (h *VirtualHAL) LastRepeatingRequest(id string) (*CaptureRequest, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.lastRequest[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// RepeatingRequestCount returns how many repeating requests id accepted.
func (h *VirtualHAL) RepeatingRequestCount(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requestCount[id]
}

// IsOpen reports whether id is currently opened by a client.
func (h *VirtualHAL) IsOpen(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.devices[id]
	return ok
}

// FailOpen makes OpenCamera(id) fail with err. A nil err clears it.
func (h *VirtualHAL) FailOpen(id string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.openErr[id] = err
}

// FailRequests makes SetRepeatingRequest on id fail with err. A nil err
// clears it.
func (h *VirtualHAL) FailRequests(id string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requestErr[id] = err
}

// Freeze stops or resumes frame delivery on id without closing it.
func (h *VirtualHAL) Freeze(id string, frozen bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frozen[id] = frozen
}

// Disconnect drops an open camera as if it was unplugged.
func (h *VirtualHAL) Disconnect(id string) {
	h.mu.Lock()
	d, ok := h.devices[id]
	if ok {
		delete(h.devices, id)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	d.shutdown()
	if d.cb != nil {
		d.cb.OnDisconnected()
	}
}

func (h *VirtualHAL) isFrozen(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frozen[id]
}

type virtualDevice struct {
	hal *VirtualHAL
	id  string
	cb  DeviceCallback

	mu      sync.Mutex
	closed  bool
	session *virtualSession
}

func (d *virtualDevice) ID() string { return d.id }

func (d *virtualDevice) CreateCaptureRequest(template Template) (*CaptureRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, &CameraAccessError{CameraID: d.id, Reason: AccessReasonDisconnected}
	}
	return &CaptureRequest{Template: template, AEMode: AEModeOn, FlashMode: FlashModeOff}, nil
}

func (d *virtualDevice) CreateCaptureSession(surface *Surface) (CaptureSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, &CameraAccessError{CameraID: d.id, Reason: AccessReasonDisconnected}
	}
	if d.session != nil {
		d.session.Close()
	}
	d.session = &virtualSession{device: d, surface: surface}
	return d.session, nil
}

// shutdown stops frame production and marks the device unusable.
func (d *virtualDevice) shutdown() {
	d.mu.Lock()
	d.closed = true
	s := d.session
	d.session = nil
	d.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

func (d *virtualDevice) Close() error {
	d.shutdown()
	d.hal.mu.Lock()
	if d.hal.devices[d.id] == d {
		delete(d.hal.devices, d.id)
		d.hal.torch[d.id] = false
	}
	d.hal.mu.Unlock()
	return nil
}

type virtualSession struct {
	device  *virtualDevice
	surface *Surface

	mu      sync.Mutex
	closed  bool
	request *CaptureRequest
	ticker  *time.Ticker
	stop    chan struct{}
	done    chan struct{}
}

func (s *virtualSession) SetRepeatingRequest(req *CaptureRequest) error {
	id := s.device.id
	h := s.device.hal

	h.mu.Lock()
	if err := h.requestErr[id]; err != nil {
		h.mu.Unlock()
		return &CameraAccessError{CameraID: id, Reason: AccessReasonError, Err: err}
	}
	h.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &CameraAccessError{CameraID: id, Reason: AccessReasonDisconnected}
	}
	s.request = req.Clone()

	h.mu.Lock()
	h.lastRequest[id] = req.Clone()
	h.requestCount[id]++
	h.torch[id] = req.FlashMode == FlashModeTorch
	h.mu.Unlock()

	interval := frameInterval(req.AETargetFPSRange)
	if s.ticker == nil {
		s.ticker = time.NewTicker(interval)
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.produce(s.ticker, s.stop, s.done)
	} else {
		s.ticker.Reset(interval)
	}
	return nil
}

func frameInterval(r Range) time.Duration {
	fps := r.Max
	if fps >= 1000 {
		fps /= 1000
	}
	if fps <= 0 {
		fps = 30
	}
	return time.Second / time.Duration(fps)
}

func (s *virtualSession) produce(ticker *time.Ticker, stop, done chan struct{}) {
	defer close(done)
	start := time.Now()
	buffers := make(map[*Surface][]byte)
	var count uint8

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		if s.device.hal.isFrozen(s.device.id) {
			continue
		}

		s.mu.Lock()
		var targets []*Surface
		if s.request != nil {
			targets = s.request.Targets
		}
		s.mu.Unlock()

		count++
		for _, target := range targets {
			size := target.Size()
			buf, ok := buffers[target]
			if !ok {
				buf = make([]byte, size.Width*size.Height*3/2)
				buffers[target] = buf
			}
			target.Deliver(fillFrame(buf, size, count, time.Since(start).Nanoseconds()))
		}
	}
}

// fillFrame paints a flat luma level that changes every frame.
func fillFrame(buf []byte, size Size, level uint8, ts int64) *Frame {
	ySize := size.Width * size.Height
	uvSize := ySize / 4
	y := buf[:ySize]
	for i := range y {
		y[i] = level
	}
	uv := buf[ySize:]
	for i := range uv {
		uv[i] = 128
	}
	return &Frame{
		Width:       size.Width,
		Height:      size.Height,
		Y:           y,
		U:           buf[ySize : ySize+uvSize],
		V:           buf[ySize+uvSize : ySize+2*uvSize],
		StrideY:     size.Width,
		StrideUV:    size.Width / 2,
		TimestampNs: ts,
	}
}

func (s *virtualSession) StopRepeating() error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.request = nil
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

func (s *virtualSession) Close() error {
	s.StopRepeating()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
