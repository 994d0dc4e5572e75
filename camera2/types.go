package camera2

import "fmt"

// LensFacing is the direction a camera faces relative to the device screen.
type LensFacing int

const (
	LensFacingFront    LensFacing = iota // Same side as the screen
	LensFacingBack                       // Opposite side from the screen
	LensFacingExternal                   // USB or otherwise detachable
)

func (f LensFacing) String() string {
	switch f {
	case LensFacingFront:
		return "front"
	case LensFacingBack:
		return "back"
	case LensFacingExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Size is a stream resolution in pixels.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// Range is a frame rate range in the units the HAL reports them in.
// Some HALs report frames per second, others frames per 1000 seconds;
// see FpsUnitFactor.
type Range struct {
	Min int
	Max int
}

// StreamConfig is one output configuration a camera supports.
type StreamConfig struct {
	Width  int
	Height int
	// MinFrameDurationNs bounds the maximum frame rate for this size.
	// Zero means the size is not rate limited beyond the camera's ranges.
	MinFrameDurationNs int64
}

// Characteristics describes a camera as reported by the HAL.
type Characteristics struct {
	Label      string
	LensFacing LensFacing
	Streams    []StreamConfig
	FPSRanges  []Range
}

// Template selects the defaults a new CaptureRequest starts from.
type Template int

const (
	TemplatePreview Template = iota + 1
	TemplateStillCapture
	TemplateRecord
)

func (t Template) String() string {
	switch t {
	case TemplatePreview:
		return "preview"
	case TemplateStillCapture:
		return "still"
	case TemplateRecord:
		return "record"
	default:
		return "unknown"
	}
}

// FlashMode controls the flash unit for a request.
type FlashMode int

const (
	FlashModeOff FlashMode = iota
	FlashModeSingle
	FlashModeTorch
)

func (m FlashMode) String() string {
	switch m {
	case FlashModeOff:
		return "off"
	case FlashModeSingle:
		return "single"
	case FlashModeTorch:
		return "torch"
	default:
		return "unknown"
	}
}

// AEMode controls auto-exposure for a request.
type AEMode int

const (
	AEModeOff AEMode = iota
	AEModeOn
)

// CaptureRequest is the set of controls a capture session applies to
// every frame while the request is repeating.
type CaptureRequest struct {
	Template         Template
	FlashMode        FlashMode
	AEMode           AEMode
	AELock           bool
	AETargetFPSRange Range
	Targets          []*Surface
}

// AddTarget adds an output surface for the request.
func (r *CaptureRequest) AddTarget(s *Surface) {
	r.Targets = append(r.Targets, s)
}

// Clone returns a copy safe to keep after the request is resubmitted.
func (r *CaptureRequest) Clone() *CaptureRequest {
	c := *r
	c.Targets = append([]*Surface(nil), r.Targets...)
	return &c
}

// Frame is one I420 image delivered to a Surface.
// Data is only valid for the duration of the callback.
type Frame struct {
	Width       int
	Height      int
	Y, U, V     []byte
	StrideY     int
	StrideUV    int
	TimestampNs int64
}

// Surface is a render target a capture session writes frames into.
type Surface struct {
	width   int
	height  int
	onFrame func(*Frame)
}

// NewSurface creates a surface of the given default buffer size.
func NewSurface(width, height int, onFrame func(*Frame)) *Surface {
	return &Surface{width: width, height: height, onFrame: onFrame}
}

// Size returns the default buffer size of the surface.
func (s *Surface) Size() Size { return Size{Width: s.width, Height: s.height} }

// Deliver hands a frame to the surface consumer.
func (s *Surface) Deliver(f *Frame) {
	if s.onFrame != nil {
		s.onFrame(f)
	}
}
