//go:build (darwin || linux) && !nodevices

package camera2

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	nativeOnce    sync.Once
	nativeHandle  uintptr
	nativeInitErr error
	nativeLoaded  bool

	frameCallbackOnce sync.Once
	frameCallbackPtr  uintptr
)

// libstream_camera2 function pointers
var (
	streamCam2DeviceCount       func() int32
	streamCam2DeviceID          func(index int32) uintptr
	streamCam2DeviceLabel       func(index int32) uintptr
	streamCam2LensFacing        func(deviceID string) int32
	streamCam2StreamCount       func(deviceID string) int32
	streamCam2StreamConfig      func(deviceID string, index int32, width, height, minFrameDurationNs unsafe.Pointer) int32
	streamCam2FPSRangeCount     func(deviceID string) int32
	streamCam2FPSRange          func(deviceID string, index int32, minFPS, maxFPS unsafe.Pointer) int32
	streamCam2Open              func(deviceID string) uint64
	streamCam2Close             func(handle uint64)
	streamCam2SessionCreate     func(handle uint64, width, height int32, callback, userData uintptr) uint64
	streamCam2SessionRepeating  func(session uint64, template, flashMode, aeMode, aeLock, fpsMin, fpsMax int32) int32
	streamCam2SessionStop       func(session uint64) int32
	streamCam2SessionDestroy    func(session uint64)
	streamCam2DeviceDisconnects func(handle uint64) int32
	streamCam2FreeString        func(ptr uintptr)
	streamCam2GetError          func() uintptr
)

func libraryName() string {
	if runtime.GOOS == "darwin" {
		return "libstream_camera2.dylib"
	}
	return "libstream_camera2.so"
}

// findLibrary searches for a library in common locations
func findLibrary(libName string) string {
	searchPaths := []string{
		os.Getenv("STREAM_CAMERA2_LIB_PATH"),
		os.Getenv("STREAM_SDK_LIB_PATH"),
	}
	if exe, err := os.Executable(); err == nil {
		searchPaths = append(searchPaths, filepath.Dir(exe))
	}
	searchPaths = append(searchPaths,
		"build",
		"../build",
		"../../build",
		"/usr/local/lib",
		"/usr/lib",
	)

	for _, p := range searchPaths {
		if p == "" {
			continue
		}
		candidate := filepath.Join(p, libName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func initNative() {
	nativeOnce.Do(func() {
		libPath := findLibrary(libraryName())
		if libPath == "" {
			nativeInitErr = fmt.Errorf("%w: %s not found", ErrHALUnavailable, libraryName())
			return
		}

		var err error
		nativeHandle, err = purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			nativeInitErr = fmt.Errorf("%w: load %s: %v", ErrHALUnavailable, libPath, err)
			return
		}

		purego.RegisterLibFunc(&streamCam2DeviceCount, nativeHandle, "stream_camera2_device_count")
		purego.RegisterLibFunc(&streamCam2DeviceID, nativeHandle, "stream_camera2_device_id")
		purego.RegisterLibFunc(&streamCam2DeviceLabel, nativeHandle, "stream_camera2_device_label")
		purego.RegisterLibFunc(&streamCam2LensFacing, nativeHandle, "stream_camera2_lens_facing")
		purego.RegisterLibFunc(&streamCam2StreamCount, nativeHandle, "stream_camera2_stream_count")
		purego.RegisterLibFunc(&streamCam2StreamConfig, nativeHandle, "stream_camera2_stream_config")
		purego.RegisterLibFunc(&streamCam2FPSRangeCount, nativeHandle, "stream_camera2_fps_range_count")
		purego.RegisterLibFunc(&streamCam2FPSRange, nativeHandle, "stream_camera2_fps_range")
		purego.RegisterLibFunc(&streamCam2Open, nativeHandle, "stream_camera2_open")
		purego.RegisterLibFunc(&streamCam2Close, nativeHandle, "stream_camera2_close")
		purego.RegisterLibFunc(&streamCam2SessionCreate, nativeHandle, "stream_camera2_session_create")
		purego.RegisterLibFunc(&streamCam2SessionRepeating, nativeHandle, "stream_camera2_session_set_repeating")
		purego.RegisterLibFunc(&streamCam2SessionStop, nativeHandle, "stream_camera2_session_stop_repeating")
		purego.RegisterLibFunc(&streamCam2SessionDestroy, nativeHandle, "stream_camera2_session_destroy")
		purego.RegisterLibFunc(&streamCam2DeviceDisconnects, nativeHandle, "stream_camera2_device_disconnected")
		purego.RegisterLibFunc(&streamCam2FreeString, nativeHandle, "stream_camera2_free_string")
		purego.RegisterLibFunc(&streamCam2GetError, nativeHandle, "stream_camera2_get_error")

		nativeLoaded = true
	})
}

// IsNativeAvailable reports whether libstream_camera2 could be loaded.
func IsNativeAvailable() bool {
	initNative()
	return nativeLoaded
}

func nativeError(op string) error {
	msg := goStringFromPtr(streamCam2GetError())
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Errorf("camera2: %s: %s", op, msg)
}

func takeString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	s := goStringFromPtr(ptr)
	streamCam2FreeString(ptr)
	return s
}

// Active native sessions, keyed by the userData passed to the library.
var (
	activeNativeSessions sync.Map // uintptr -> *nativeSession
	nativeSessionSeq     uintptr
	nativeSessionSeqMu   sync.Mutex
)

func nativeFrameCallback(
	yPlane uintptr, yStride int32,
	uPlane uintptr, vPlane uintptr, uvStride int32,
	width, height int32,
	timestampNs int64,
	userData uintptr,
) uintptr {
	v, ok := activeNativeSessions.Load(userData)
	if !ok {
		return 0
	}
	s := v.(*nativeSession)

	ySize := int(yStride) * int(height)
	uvSize := int(uvStride) * (int(height) / 2)
	s.surface.Deliver(&Frame{
		Width:       int(width),
		Height:      int(height),
		Y:           unsafe.Slice((*byte)(unsafe.Pointer(yPlane)), ySize),
		U:           unsafe.Slice((*byte)(unsafe.Pointer(uPlane)), uvSize),
		V:           unsafe.Slice((*byte)(unsafe.Pointer(vPlane)), uvSize),
		StrideY:     int(yStride),
		StrideUV:    int(uvStride),
		TimestampNs: timestampNs,
	})
	return 0
}

// PuregoHAL is the native HAL backed by libstream_camera2.
type PuregoHAL struct {
	mu sync.RWMutex
}

var _ HAL = (*PuregoHAL)(nil)

// NewPuregoHAL loads libstream_camera2.
func NewPuregoHAL() (*PuregoHAL, error) {
	initNative()
	if !nativeLoaded {
		return nil, nativeInitErr
	}
	frameCallbackOnce.Do(func() {
		frameCallbackPtr = purego.NewCallback(nativeFrameCallback)
	})
	return &PuregoHAL{}, nil
}

// CameraIDs implements HAL.
func (h *PuregoHAL) CameraIDs() ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := streamCam2DeviceCount()
	if count < 0 {
		return nil, nativeError("device count")
	}
	ids := make([]string, 0, count)
	for i := int32(0); i < count; i++ {
		if id := takeString(streamCam2DeviceID(i)); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (h *PuregoHAL) label(id string) string {
	count := streamCam2DeviceCount()
	for i := int32(0); i < count; i++ {
		if takeString(streamCam2DeviceID(i)) == id {
			return takeString(streamCam2DeviceLabel(i))
		}
	}
	return ""
}

// Characteristics implements HAL.
func (h *PuregoHAL) Characteristics(id string) (Characteristics, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	facing := streamCam2LensFacing(id)
	if facing < 0 {
		return Characteristics{}, fmt.Errorf("%w: %s", ErrCameraNotFound, id)
	}
	c := Characteristics{
		Label:      h.label(id),
		LensFacing: LensFacing(facing),
	}

	for i := int32(0); i < streamCam2StreamCount(id); i++ {
		var w, ht int32
		var minDur int64
		if streamCam2StreamConfig(id, i, unsafe.Pointer(&w), unsafe.Pointer(&ht), unsafe.Pointer(&minDur)) != 0 {
			return Characteristics{}, nativeError("stream config")
		}
		c.Streams = append(c.Streams, StreamConfig{Width: int(w), Height: int(ht), MinFrameDurationNs: minDur})
	}
	for i := int32(0); i < streamCam2FPSRangeCount(id); i++ {
		var lo, hi int32
		if streamCam2FPSRange(id, i, unsafe.Pointer(&lo), unsafe.Pointer(&hi)) != 0 {
			return Characteristics{}, nativeError("fps range")
		}
		c.FPSRanges = append(c.FPSRanges, Range{Min: int(lo), Max: int(hi)})
	}
	return c, nil
}

// OpenCamera implements HAL.
func (h *PuregoHAL) OpenCamera(id string, cb DeviceCallback) (Device, error) {
	handle := streamCam2Open(id)
	if handle == 0 {
		return nil, &CameraAccessError{CameraID: id, Reason: AccessReasonError, Err: nativeError("open")}
	}
	return &nativeDevice{id: id, handle: handle, cb: cb}, nil
}

type nativeDevice struct {
	id     string
	handle uint64
	cb     DeviceCallback

	mu     sync.Mutex
	closed bool
}

func (d *nativeDevice) ID() string { return d.id }

func (d *nativeDevice) checkConnected() error {
	if d.closed {
		return &CameraAccessError{CameraID: d.id, Reason: AccessReasonDisconnected}
	}
	if streamCam2DeviceDisconnects(d.handle) != 0 {
		d.closed = true
		if d.cb != nil {
			go d.cb.OnDisconnected()
		}
		return &CameraAccessError{CameraID: d.id, Reason: AccessReasonDisconnected}
	}
	return nil
}

func (d *nativeDevice) CreateCaptureRequest(template Template) (*CaptureRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkConnected(); err != nil {
		return nil, err
	}
	return &CaptureRequest{Template: template, AEMode: AEModeOn, FlashMode: FlashModeOff}, nil
}

func (d *nativeDevice) CreateCaptureSession(surface *Surface) (CaptureSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkConnected(); err != nil {
		return nil, err
	}

	nativeSessionSeqMu.Lock()
	nativeSessionSeq++
	key := nativeSessionSeq
	nativeSessionSeqMu.Unlock()

	s := &nativeSession{device: d, surface: surface, key: key}
	activeNativeSessions.Store(key, s)

	size := surface.Size()
	s.handle = streamCam2SessionCreate(d.handle, int32(size.Width), int32(size.Height), frameCallbackPtr, key)
	if s.handle == 0 {
		activeNativeSessions.Delete(key)
		return nil, &CameraAccessError{CameraID: d.id, Reason: AccessReasonError, Err: nativeError("create session")}
	}
	return s, nil
}

func (d *nativeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handle != 0 {
		streamCam2Close(d.handle)
		d.handle = 0
	}
	d.closed = true
	return nil
}

type nativeSession struct {
	device  *nativeDevice
	surface *Surface
	key     uintptr
	handle  uint64
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (s *nativeSession) SetRepeatingRequest(req *CaptureRequest) error {
	if rc := streamCam2SessionRepeating(s.handle,
		int32(req.Template), int32(req.FlashMode), int32(req.AEMode), boolToInt32(req.AELock),
		int32(req.AETargetFPSRange.Min), int32(req.AETargetFPSRange.Max)); rc != 0 {
		return &CameraAccessError{CameraID: s.device.id, Reason: AccessReasonError, Err: nativeError("set repeating request")}
	}
	return nil
}

func (s *nativeSession) StopRepeating() error {
	if streamCam2SessionStop(s.handle) != 0 {
		return nativeError("stop repeating")
	}
	return nil
}

func (s *nativeSession) Close() error {
	if s.handle != 0 {
		streamCam2SessionDestroy(s.handle)
		s.handle = 0
	}
	activeNativeSessions.Delete(s.key)
	return nil
}
