package capture

import (
	"math"

	"github.com/thesyncim/capture/camera2"
)

// Engine types reused by the selector.
type (
	Size           = camera2.Size
	CaptureFormat  = camera2.CaptureFormat
	FramerateRange = camera2.FramerateRange
)

// DeviceCatalogEntry describes one capture device and the formats it
// supports. Framerates are in milli-fps.
type DeviceCatalogEntry struct {
	ID            string
	Label         string
	IsFrontFacing bool
	Formats       []CaptureFormat
}

// Sizes returns the distinct frame sizes of the entry in catalog order.
func (e DeviceCatalogEntry) Sizes() []Size {
	sizes := make([]Size, 0, len(e.Formats))
	seen := make(map[Size]struct{}, len(e.Formats))
	for _, f := range e.Formats {
		s := f.Size()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		sizes = append(sizes, s)
	}
	return sizes
}

// Ranges returns the distinct frame rate ranges of the entry in catalog
// order.
func (e DeviceCatalogEntry) Ranges() []FramerateRange {
	ranges := make([]FramerateRange, 0, len(e.Formats))
	seen := make(map[FramerateRange]struct{}, len(e.Formats))
	for _, f := range e.Formats {
		if _, ok := seen[f.Framerate]; ok {
			continue
		}
		seen[f.Framerate] = struct{}{}
		ranges = append(ranges, f.Framerate)
	}
	return ranges
}

// FrameRateSelection is the outcome of SelectFrameRate. FPS is the
// requested rate clamped into Range. Adjusted is set when clamping changed
// the request.
type FrameRateSelection struct {
	FPS          int
	Range        FramerateRange
	RequestedFPS int
	Adjusted     bool
}

// SelectedTarget is a device plus the format to capture at.
type SelectedTarget struct {
	DeviceID      string
	Label         string
	IsFrontFacing bool
	Size          Size
	FPS           int
	Range         FramerateRange
	RequestedFPS  int
	FPSAdjusted   bool
}

// desiredFrontFacing reports whether the constraints ask for the front
// camera. An exact facing wins over an ideal one. No preference means
// back.
func desiredFrontFacing(c VideoTrackConstraints) bool {
	if c.FacingMode == nil {
		return false
	}
	if c.FacingMode.Exact != nil {
		return *c.FacingMode.Exact == FacingModeUser
	}
	if c.FacingMode.Ideal != nil {
		return *c.FacingMode.Ideal == FacingModeUser
	}
	return false
}

// SelectDevice picks the device for c from catalog. A DeviceID must match
// exactly. Otherwise the first entry whose facing matches the desired
// facing is returned.
func SelectDevice(c VideoTrackConstraints, catalog []DeviceCatalogEntry) (DeviceCatalogEntry, error) {
	if c.DeviceID != "" {
		for _, e := range catalog {
			if e.ID == c.DeviceID {
				return e, nil
			}
		}
		return DeviceCatalogEntry{}, &NotFoundError{What: "device", Constraints: c}
	}

	front := desiredFrontFacing(c)
	for _, e := range catalog {
		if e.IsFrontFacing == front {
			return e, nil
		}
	}
	return DeviceCatalogEntry{}, &NotFoundError{What: "device", Constraints: c}
}

// SelectSize returns the size in sizes closest to the requested width and
// height. Ties keep the earliest entry.
func SelectSize(c VideoTrackConstraints, sizes []Size) (Size, error) {
	if len(sizes) == 0 {
		return Size{}, &NotFoundError{What: "format", Constraints: c}
	}
	width := c.Width.Resolve(DefaultVideoWidth)
	height := c.Height.Resolve(DefaultVideoHeight)
	return camera2.ClosestSupportedSize(sizes, width, height), nil
}

// SelectFrameRate returns the range in ranges closest to the requested
// rate, and the rate clamped into it. The requested rate is rounded to
// whole fps; rates below 1 fps are not satisfiable.
func SelectFrameRate(c VideoTrackConstraints, ranges []FramerateRange) (FrameRateSelection, error) {
	if len(ranges) == 0 {
		return FrameRateSelection{}, &NotFoundError{What: "frame rate", Constraints: c}
	}
	rate := c.FrameRate.Resolve(DefaultFrameRate)
	if math.IsNaN(rate) || math.IsInf(rate, 0) || math.Round(rate) < 1 {
		return FrameRateSelection{}, &NotFoundError{What: "frame rate", Constraints: c}
	}
	requested := int(math.Round(rate))
	r := camera2.ClosestSupportedFramerateRange(ranges, requested)

	fps := clampFPS(requested, r)
	return FrameRateSelection{
		FPS:          fps,
		Range:        r,
		RequestedFPS: requested,
		Adjusted:     fps != requested,
	}, nil
}

// clampFPS limits fps to the whole frame rates of r.
func clampFPS(fps int, r FramerateRange) int {
	lo, hi := r.Min/1000, r.Max/1000
	if fps > hi {
		fps = hi
	}
	if fps < lo {
		fps = lo
	}
	return fps
}

// Select resolves c against catalog: device first, then size and frame
// rate scoped to that device.
func Select(c VideoTrackConstraints, catalog []DeviceCatalogEntry) (SelectedTarget, error) {
	dev, err := SelectDevice(c, catalog)
	if err != nil {
		return SelectedTarget{}, err
	}
	return selectFormat(c, dev)
}

func selectFormat(c VideoTrackConstraints, dev DeviceCatalogEntry) (SelectedTarget, error) {
	size, err := SelectSize(c, dev.Sizes())
	if err != nil {
		return SelectedTarget{}, err
	}
	rate, err := SelectFrameRate(c, dev.Ranges())
	if err != nil {
		return SelectedTarget{}, err
	}
	return SelectedTarget{
		DeviceID:      dev.ID,
		Label:         dev.Label,
		IsFrontFacing: dev.IsFrontFacing,
		Size:          size,
		FPS:           rate.FPS,
		Range:         rate.Range,
		RequestedFPS:  rate.RequestedFPS,
		FPSAdjusted:   rate.Adjusted,
	}, nil
}
