package camera2

import (
	"fmt"
	"math"
	"time"

	"github.com/pion/logging"
)

// FramerateRange is a frame rate range in frames per 1000 seconds
// (30 fps is 30000).
type FramerateRange struct {
	Min int
	Max int
}

func (r FramerateRange) String() string {
	return fmt.Sprintf("[%.1f:%.1f]", float64(r.Min)/1000, float64(r.Max)/1000)
}

// CaptureFormat is a size plus the frame rate range it can be captured at.
type CaptureFormat struct {
	Width     int
	Height    int
	Framerate FramerateRange
}

func (f CaptureFormat) String() string {
	return fmt.Sprintf("%dx%d@%s", f.Width, f.Height, f.Framerate)
}

// Size returns the format resolution.
func (f CaptureFormat) Size() Size { return Size{Width: f.Width, Height: f.Height} }

// Frame rate range penalty weights. The min penalty grows faster above
// 8 fps so that ranges with a low floor are preferred; the max penalty
// grows faster once it is more than 5 fps away from the request.
const (
	maxFpsDiffThreshold   = 5000
	maxFpsLowDiffWeight   = 1
	maxFpsHighDiffWeight  = 3
	minFpsThreshold       = 8000
	minFpsLowValueWeight  = 1
	minFpsHighValueWeight = 4
)

func progressivePenalty(value, threshold, lowWeight, highWeight int) int {
	if value < threshold {
		return value * lowWeight
	}
	return threshold*lowWeight + (value-threshold)*highWeight
}

// FramerateRangeDistance is the penalty of capturing requestedFps with r.
// Lower is better.
func FramerateRangeDistance(r FramerateRange, requestedFps int) int {
	minErr := progressivePenalty(r.Min, minFpsThreshold, minFpsLowValueWeight, minFpsHighValueWeight)
	maxErr := progressivePenalty(abs(requestedFps*1000-r.Max), maxFpsDiffThreshold, maxFpsLowDiffWeight, maxFpsHighDiffWeight)
	return minErr + maxErr
}

// ClosestSupportedFramerateRange returns the first range with the lowest
// FramerateRangeDistance. It returns the zero range for an empty input.
func ClosestSupportedFramerateRange(ranges []FramerateRange, requestedFps int) FramerateRange {
	var best FramerateRange
	bestDiff := math.MaxInt
	for _, r := range ranges {
		if d := FramerateRangeDistance(r, requestedFps); d < bestDiff {
			best, bestDiff = r, d
		}
	}
	return best
}

// SizeDistance is the Manhattan distance between s and the requested size.
func SizeDistance(s Size, width, height int) int {
	return abs(width-s.Width) + abs(height-s.Height)
}

// ClosestSupportedSize returns the first size with the lowest SizeDistance.
// It returns the zero size for an empty input.
func ClosestSupportedSize(sizes []Size, width, height int) Size {
	var best Size
	bestDiff := math.MaxInt
	for _, s := range sizes {
		if d := SizeDistance(s, width, height); d < bestDiff {
			best, bestDiff = s, d
		}
	}
	return best
}

// FpsUnitFactor returns the multiplier that converts the HAL's frame rate
// ranges into frames per 1000 seconds. HALs that report plain fps get 1000.
func FpsUnitFactor(ranges []Range) int {
	if len(ranges) == 0 {
		return 1000
	}
	if ranges[0].Max < 1000 {
		return 1000
	}
	return 1
}

func convertFramerates(ranges []Range, unitFactor int) []FramerateRange {
	out := make([]FramerateRange, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, FramerateRange{Min: r.Min * unitFactor, Max: r.Max * unitFactor})
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// DefaultFreezeTimeout is how long a running session may go without a frame
// before the capturer reports it frozen.
const DefaultFreezeTimeout = 4 * time.Second

// Enumerator lists cameras and their formats and creates capturers.
type Enumerator struct {
	hal           HAL
	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger

	// FreezeTimeout overrides DefaultFreezeTimeout for new capturers.
	FreezeTimeout time.Duration
}

// NewEnumerator creates an enumerator over hal. A nil loggerFactory uses
// pion's default factory.
func NewEnumerator(hal HAL, loggerFactory logging.LoggerFactory) *Enumerator {
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Enumerator{
		hal:           hal,
		loggerFactory: loggerFactory,
		log:           loggerFactory.NewLogger("camera2"),
		FreezeTimeout: DefaultFreezeTimeout,
	}
}

// HAL returns the underlying HAL.
func (e *Enumerator) HAL() HAL { return e.hal }

// DeviceNames returns the ids of all cameras, in HAL order.
func (e *Enumerator) DeviceNames() ([]string, error) {
	ids, err := e.hal.CameraIDs()
	if err != nil {
		return nil, fmt.Errorf("camera2: list cameras: %w", err)
	}
	return ids, nil
}

// IsFrontFacing reports whether the named camera faces the user.
func (e *Enumerator) IsFrontFacing(name string) bool {
	c, err := e.hal.Characteristics(name)
	return err == nil && c.LensFacing == LensFacingFront
}

// IsBackFacing reports whether the named camera faces away from the user.
func (e *Enumerator) IsBackFacing(name string) bool {
	c, err := e.hal.Characteristics(name)
	return err == nil && c.LensFacing == LensFacingBack
}

// Label returns a human-readable camera name, or the id when the HAL has none.
func (e *Enumerator) Label(name string) string {
	c, err := e.hal.Characteristics(name)
	if err != nil || c.Label == "" {
		return name
	}
	return c.Label
}

// SupportedFormats lists the formats of the named camera. Each size is
// reported with the range [0, max] where max is the fastest rate the size
// can be streamed at.
func (e *Enumerator) SupportedFormats(name string) ([]CaptureFormat, error) {
	c, err := e.hal.Characteristics(name)
	if err != nil {
		return nil, fmt.Errorf("camera2: characteristics of %s: %w", name, err)
	}

	ranges := convertFramerates(c.FPSRanges, FpsUnitFactor(c.FPSRanges))
	defaultMaxFps := 0
	for _, r := range ranges {
		defaultMaxFps = max(defaultMaxFps, r.Max)
	}

	formats := make([]CaptureFormat, 0, len(c.Streams))
	for _, s := range c.Streams {
		maxFps := defaultMaxFps
		if s.MinFrameDurationNs > 0 {
			maxFps = int(math.Round(float64(time.Second)/float64(s.MinFrameDurationNs))) * 1000
		}
		formats = append(formats, CaptureFormat{
			Width:     s.Width,
			Height:    s.Height,
			Framerate: FramerateRange{Min: 0, Max: maxFps},
		})
	}
	e.log.Debugf("supported formats for %s: %v", name, formats)
	return formats, nil
}

// CreateCapturer returns a capturer bound to the named camera. The camera
// is not opened until StartCapture.
func (e *Enumerator) CreateCapturer(name string, events CameraEventsHandler) *Capturer {
	return newCapturer(name, events, e)
}
