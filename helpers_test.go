package capture

import (
	"bytes"
	"sync"

	"github.com/pion/logging"

	"github.com/thesyncim/capture/camera2"
)

// syncBuffer is a goroutine safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLoggerFactory(w *syncBuffer) logging.LoggerFactory {
	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = logging.LogLevelDebug
	lf.Writer = w
	return lf
}

// fakeCapturer records calls and hands switch requests to onSwitch.
type fakeCapturer struct {
	mu       sync.Mutex
	name     string
	observer camera2.CapturerObserver
	width    int
	height   int
	fps      int
	started  bool
	stopped  bool
	disposed bool
	startErr error
	// negotiated is reported by CaptureFormat when set.
	negotiated *CaptureFormat

	onSwitch func(h camera2.CameraSwitchHandler, name string)
	handlers chan camera2.CameraSwitchHandler
}

func newFakeCapturer(name string) *fakeCapturer {
	return &fakeCapturer{name: name, handlers: make(chan camera2.CameraSwitchHandler, 4)}
}

func (f *fakeCapturer) Initialize(o camera2.CapturerObserver) {
	f.mu.Lock()
	f.observer = o
	f.mu.Unlock()
}

func (f *fakeCapturer) StartCapture(w, h, fps int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.width, f.height, f.fps = w, h, fps
	f.started = true
	return nil
}

func (f *fakeCapturer) StopCapture() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeCapturer) SwitchCamera(h camera2.CameraSwitchHandler, name string) {
	f.mu.Lock()
	fn := f.onSwitch
	f.mu.Unlock()
	if fn != nil {
		fn(h, name)
		return
	}
	f.handlers <- h
}

func (f *fakeCapturer) Dispose() {
	f.mu.Lock()
	f.disposed = true
	f.mu.Unlock()
}

func (f *fakeCapturer) CameraName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.name
}

func (f *fakeCapturer) CaptureFormat() (CaptureFormat, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.negotiated == nil {
		return CaptureFormat{}, false
	}
	return *f.negotiated, true
}

func (f *fakeCapturer) setName(name string) {
	f.mu.Lock()
	f.name = name
	f.mu.Unlock()
}

// fakeEnumerator serves a fixed catalog.
type fakeEnumerator struct {
	mu       sync.Mutex
	catalog  []DeviceCatalogEntry
	capturer *fakeCapturer
	created  []string
	namesErr error
}

func (e *fakeEnumerator) DeviceNames() ([]string, error) {
	if e.namesErr != nil {
		return nil, e.namesErr
	}
	names := make([]string, 0, len(e.catalog))
	for _, d := range e.catalog {
		names = append(names, d.ID)
	}
	return names, nil
}

func (e *fakeEnumerator) entry(name string) DeviceCatalogEntry {
	d, _ := findEntry(e.catalog, name)
	return d
}

func (e *fakeEnumerator) IsFrontFacing(name string) bool { return e.entry(name).IsFrontFacing }
func (e *fakeEnumerator) Label(name string) string       { return e.entry(name).Label }

func (e *fakeEnumerator) SupportedFormats(name string) ([]CaptureFormat, error) {
	return e.entry(name).Formats, nil
}

func (e *fakeEnumerator) CreateCapturer(name string, _ camera2.CameraEventsHandler) NativeCapturer {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.created = append(e.created, name)
	if e.capturer == nil {
		e.capturer = newFakeCapturer(name)
	}
	e.capturer.setName(name)
	return e.capturer
}

func (e *fakeEnumerator) createdCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.created)
}

func format(w, h, maxFps int) CaptureFormat {
	return CaptureFormat{Width: w, Height: h, Framerate: FramerateRange{Min: 0, Max: maxFps * 1000}}
}

// phoneCatalog has one back camera at 640x480@30 and one front camera at
// 1280x720@30.
func phoneCatalog() []DeviceCatalogEntry {
	return []DeviceCatalogEntry{
		{ID: "back", Label: "Back Camera", Formats: []CaptureFormat{format(640, 480, 30)}},
		{ID: "front", Label: "Front Camera", IsFrontFacing: true, Formats: []CaptureFormat{format(1280, 720, 30)}},
	}
}

// sinkCounter counts frames and remembers the last frame size.
type sinkCounter struct {
	mu     sync.Mutex
	frames int
	last   Size
}

func (s *sinkCounter) OnFrame(f *VideoFrame) {
	s.mu.Lock()
	s.frames++
	s.last = Size{Width: f.Width, Height: f.Height}
	s.mu.Unlock()
}

func (s *sinkCounter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}
