// Raw video frame type and conversions from the capture backends.
package capture

import (
	"image"
	"image/color"

	"github.com/thesyncim/capture/camera2"
)

// PixelFormat represents video pixel formats.
type PixelFormat int

const (
	PixelFormatI420 PixelFormat = iota // YUV 4:2:0 planar (Y + U + V)
	PixelFormatNV12                    // YUV 4:2:0 semi-planar (Y + interleaved UV)
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatI420:
		return "I420"
	case PixelFormatNV12:
		return "NV12"
	default:
		return "Unknown"
	}
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatI420:
		return 3
	case PixelFormatNV12:
		return 2
	default:
		return 0
	}
}

// VideoFrame represents a raw video frame handed to sinks.
// Sinks must Clone a frame they keep past OnFrame.
type VideoFrame struct {
	Data      [][]byte    // Plane data
	Stride    []int       // Stride for each plane in bytes
	Width     int         // Frame width in pixels
	Height    int         // Frame height in pixels
	Format    PixelFormat // Pixel format
	Timestamp int64       // Capture timestamp in nanoseconds
}

// Clone creates a deep copy of the video frame.
func (f *VideoFrame) Clone() *VideoFrame {
	clone := &VideoFrame{
		Data:      make([][]byte, len(f.Data)),
		Stride:    make([]int, len(f.Stride)),
		Width:     f.Width,
		Height:    f.Height,
		Format:    f.Format,
		Timestamp: f.Timestamp,
	}
	copy(clone.Stride, f.Stride)
	for i, plane := range f.Data {
		if plane != nil {
			clone.Data[i] = make([]byte, len(plane))
			copy(clone.Data[i], plane)
		}
	}
	return clone
}

// I420Size returns the total buffer size needed for an I420 frame.
func I420Size(width, height int) int {
	ySize := width * height
	uvSize := ((width + 1) / 2) * ((height + 1) / 2)
	return ySize + uvSize*2
}

// frameFromCamera2 wraps an engine frame without copying. The planes are
// only valid for the duration of the engine callback.
func frameFromCamera2(f *camera2.Frame) *VideoFrame {
	return &VideoFrame{
		Data:      [][]byte{f.Y, f.U, f.V},
		Stride:    []int{f.StrideY, f.StrideUV, f.StrideUV},
		Width:     f.Width,
		Height:    f.Height,
		Format:    PixelFormatI420,
		Timestamp: f.TimestampNs,
	}
}

// frameFromImage converts a decoded image into an I420 frame. 4:2:0
// YCbCr images are wrapped in place; anything else is converted.
func frameFromImage(img image.Image, ts int64) *VideoFrame {
	if yuv, ok := img.(*image.YCbCr); ok && yuv.SubsampleRatio == image.YCbCrSubsampleRatio420 {
		b := yuv.Rect
		return &VideoFrame{
			Data: [][]byte{
				yuv.Y[yuv.YOffset(b.Min.X, b.Min.Y):],
				yuv.Cb[yuv.COffset(b.Min.X, b.Min.Y):],
				yuv.Cr[yuv.COffset(b.Min.X, b.Min.Y):],
			},
			Stride:    []int{yuv.YStride, yuv.CStride, yuv.CStride},
			Width:     b.Dx(),
			Height:    b.Dy(),
			Format:    PixelFormatI420,
			Timestamp: ts,
		}
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	cw, ch := (w+1)/2, (h+1)/2
	buf := make([]byte, I420Size(w, h))
	y, u, v := buf[:w*h], buf[w*h:w*h+cw*ch], buf[w*h+cw*ch:]
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			c := color.YCbCrModel.Convert(img.At(b.Min.X+col, b.Min.Y+row)).(color.YCbCr)
			y[row*w+col] = c.Y
			if row%2 == 0 && col%2 == 0 {
				u[(row/2)*cw+col/2] = c.Cb
				v[(row/2)*cw+col/2] = c.Cr
			}
		}
	}
	return &VideoFrame{
		Data:      [][]byte{y, u, v},
		Stride:    []int{w, cw, cw},
		Width:     w,
		Height:    h,
		Format:    PixelFormatI420,
		Timestamp: ts,
	}
}
