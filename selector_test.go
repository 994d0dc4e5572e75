package capture

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/capture/camera2"
)

func TestSelect_FrontCameraExact(t *testing.T) {
	target, err := Select(VideoTrackConstraints{FacingMode: Exact(FacingModeUser)}, phoneCatalog())
	require.NoError(t, err)

	assert.Equal(t, "front", target.DeviceID)
	assert.True(t, target.IsFrontFacing)
	assert.Equal(t, Size{Width: 1280, Height: 720}, target.Size)
	assert.Equal(t, 30, target.FPS)
	assert.False(t, target.FPSAdjusted)
}

func TestSelect_ClosestSize(t *testing.T) {
	catalog := []DeviceCatalogEntry{{
		ID: "0",
		Formats: []CaptureFormat{
			format(320, 240, 30),
			format(640, 480, 30),
			format(1920, 1080, 30),
		},
	}}
	c := VideoTrackConstraints{Width: Ideal(800), Height: Ideal(600)}

	target, err := Select(c, catalog)
	require.NoError(t, err)
	assert.Equal(t, Size{Width: 640, Height: 480}, target.Size)

	again, err := Select(c, catalog)
	require.NoError(t, err)
	assert.Equal(t, target, again)
}

func TestSelect_EmptyCatalog(t *testing.T) {
	c := VideoTrackConstraints{Width: Exact(640)}
	_, err := Select(c, nil)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "device", nf.What)
	assert.Equal(t, c, nf.Constraints)
}

func TestSelectDevice_ExactIDIgnoresFacing(t *testing.T) {
	for _, id := range []string{"back", "front"} {
		for _, facing := range []FacingMode{FacingModeUser, FacingModeEnvironment} {
			dev, err := SelectDevice(VideoTrackConstraints{DeviceID: id, FacingMode: Exact(facing)}, phoneCatalog())
			require.NoError(t, err)
			assert.Equal(t, id, dev.ID)
		}
	}

	_, err := SelectDevice(VideoTrackConstraints{DeviceID: "missing"}, phoneCatalog())
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestSelectDevice_Facing(t *testing.T) {
	tests := []struct {
		name string
		c    VideoTrackConstraints
		want string
	}{
		{"no preference picks back", VideoTrackConstraints{}, "back"},
		{"exact user", VideoTrackConstraints{FacingMode: Exact(FacingModeUser)}, "front"},
		{"ideal user", VideoTrackConstraints{FacingMode: Ideal(FacingModeUser)}, "front"},
		{"exact environment", VideoTrackConstraints{FacingMode: Exact(FacingModeEnvironment)}, "back"},
		{
			"exact wins over ideal",
			VideoTrackConstraints{FacingMode: &ConstraintValue[FacingMode]{
				Exact: ptr(FacingModeEnvironment),
				Ideal: ptr(FacingModeUser),
			}},
			"back",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := SelectDevice(tt.c, phoneCatalog())
			require.NoError(t, err)
			assert.Equal(t, tt.want, dev.ID)
		})
	}
}

func TestSelectDevice_FacingNotFound(t *testing.T) {
	backOnly := phoneCatalog()[:1]
	_, err := SelectDevice(VideoTrackConstraints{FacingMode: Exact(FacingModeUser)}, backOnly)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, err.Error(), "facingMode={exact: user}")
}

func TestSelectSize_Defaults(t *testing.T) {
	sizes := []Size{{Width: 1280, Height: 720}, {Width: 640, Height: 480}}
	got, err := SelectSize(VideoTrackConstraints{}, sizes)
	require.NoError(t, err)
	assert.Equal(t, Size{Width: 640, Height: 480}, got)
}

func TestSelectSize_TieKeepsFirst(t *testing.T) {
	sizes := []Size{{Width: 600, Height: 480}, {Width: 680, Height: 480}}
	got, err := SelectSize(VideoTrackConstraints{}, sizes)
	require.NoError(t, err)
	assert.Equal(t, sizes[0], got)
}

func TestSelectSize_NoCloserOption(t *testing.T) {
	sizes := []Size{{Width: 176, Height: 144}, {Width: 352, Height: 288}, {Width: 1024, Height: 768}, {Width: 3840, Height: 2160}}
	for _, req := range []Size{{Width: 100, Height: 100}, {Width: 800, Height: 600}, {Width: 4000, Height: 100}} {
		c := VideoTrackConstraints{Width: Exact(req.Width), Height: Exact(req.Height)}
		got, err := SelectSize(c, sizes)
		require.NoError(t, err)
		best := camera2.SizeDistance(got, req.Width, req.Height)
		for _, s := range sizes {
			assert.GreaterOrEqual(t, camera2.SizeDistance(s, req.Width, req.Height), best)
		}
	}
}

func TestSelectFrameRate_Clamped(t *testing.T) {
	ranges := []FramerateRange{{Min: 15000, Max: 30000}}

	tests := []struct {
		fps      float64
		want     int
		adjusted bool
	}{
		{60, 30, true},
		{5, 15, true},
		{24, 24, false},
		{30, 30, false},
	}
	for _, tt := range tests {
		sel, err := SelectFrameRate(VideoTrackConstraints{FrameRate: Ideal(tt.fps)}, ranges)
		require.NoError(t, err)
		assert.Equal(t, tt.want, sel.FPS, "fps %v", tt.fps)
		assert.Equal(t, int(tt.fps), sel.RequestedFPS)
		assert.Equal(t, tt.adjusted, sel.Adjusted, "fps %v", tt.fps)
		assert.GreaterOrEqual(t, sel.FPS, sel.Range.Min/1000)
		assert.LessOrEqual(t, sel.FPS, sel.Range.Max/1000)
	}
}

func TestSelectFrameRate_ClosestRange(t *testing.T) {
	ranges := []FramerateRange{{Min: 15000, Max: 15000}, {Min: 15000, Max: 30000}, {Min: 30000, Max: 30000}, {Min: 30000, Max: 60000}}
	sel, err := SelectFrameRate(VideoTrackConstraints{FrameRate: Exact(30.0)}, ranges)
	require.NoError(t, err)
	assert.Equal(t, FramerateRange{Min: 15000, Max: 30000}, sel.Range)

	best := camera2.FramerateRangeDistance(sel.Range, 30)
	for _, r := range ranges {
		assert.GreaterOrEqual(t, camera2.FramerateRangeDistance(r, 30), best)
	}
}

func TestSelectFrameRate_Empty(t *testing.T) {
	_, err := SelectFrameRate(VideoTrackConstraints{}, nil)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "frame rate", nf.What)
}

func TestSelect_ReportsAdjustedFPS(t *testing.T) {
	target, err := Select(VideoTrackConstraints{FrameRate: Ideal(120.0)}, phoneCatalog())
	require.NoError(t, err)
	assert.Equal(t, "back", target.DeviceID)
	assert.Equal(t, 30, target.FPS)
	assert.Equal(t, 120, target.RequestedFPS)
	assert.True(t, target.FPSAdjusted)
}

func TestDeviceCatalogEntry_SizesAndRanges(t *testing.T) {
	e := DeviceCatalogEntry{Formats: []CaptureFormat{format(640, 480, 30), format(640, 480, 60), format(320, 240, 30)}}
	assert.Equal(t, []Size{{Width: 640, Height: 480}, {Width: 320, Height: 240}}, e.Sizes())
	assert.Equal(t, []FramerateRange{{Min: 0, Max: 30000}, {Min: 0, Max: 60000}}, e.Ranges())
}

func TestSelectFrameRate_RoundsFractionalRate(t *testing.T) {
	ranges := []FramerateRange{{Min: 15000, Max: 30000}}
	sel, err := SelectFrameRate(VideoTrackConstraints{FrameRate: Ideal(29.97)}, ranges)
	require.NoError(t, err)
	assert.Equal(t, 30, sel.FPS)
	assert.Equal(t, 30, sel.RequestedFPS)
	assert.False(t, sel.Adjusted)
}

func TestSelectFrameRate_RejectsUnusableRate(t *testing.T) {
	ranges := []FramerateRange{{Min: 15000, Max: 30000}}
	for _, fps := range []float64{0, 0.4, -5, math.NaN(), math.Inf(1)} {
		_, err := SelectFrameRate(VideoTrackConstraints{FrameRate: Exact(fps)}, ranges)
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf, "fps %v", fps)
		assert.Equal(t, "frame rate", nf.What)
	}
}
