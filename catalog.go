package capture

import (
	"fmt"

	"github.com/thesyncim/capture/camera2"
)

// NativeCapturer is the camera engine's capturer as the camera backend
// drives it. *camera2.Capturer satisfies it.
type NativeCapturer interface {
	Initialize(observer camera2.CapturerObserver)
	StartCapture(width, height, framerate int) error
	StopCapture()
	SwitchCamera(handler camera2.CameraSwitchHandler, cameraName string)
	Dispose()
	CameraName() string
	CaptureFormat() (CaptureFormat, bool)
}

// CameraEnumerator lists cameras and creates capturers for them.
type CameraEnumerator interface {
	DeviceNames() ([]string, error)
	IsFrontFacing(name string) bool
	Label(name string) string
	SupportedFormats(name string) ([]CaptureFormat, error)
	CreateCapturer(name string, events camera2.CameraEventsHandler) NativeCapturer
}

// camera2Enumerator adapts *camera2.Enumerator to CameraEnumerator.
type camera2Enumerator struct {
	*camera2.Enumerator
}

func (e camera2Enumerator) CreateCapturer(name string, events camera2.CameraEventsHandler) NativeCapturer {
	return e.Enumerator.CreateCapturer(name, events)
}

// NewCameraEnumerator wraps a camera2 enumerator.
func NewCameraEnumerator(e *camera2.Enumerator) CameraEnumerator {
	return camera2Enumerator{Enumerator: e}
}

// QueryCatalog builds a fresh catalog from e. Devices whose formats cannot
// be read are listed without formats.
func QueryCatalog(e CameraEnumerator) ([]DeviceCatalogEntry, error) {
	names, err := e.DeviceNames()
	if err != nil {
		return nil, fmt.Errorf("capture: list cameras: %w", err)
	}
	catalog := make([]DeviceCatalogEntry, 0, len(names))
	for _, name := range names {
		formats, err := e.SupportedFormats(name)
		if err != nil {
			formats = nil
		}
		catalog = append(catalog, DeviceCatalogEntry{
			ID:            name,
			Label:         e.Label(name),
			IsFrontFacing: e.IsFrontFacing(name),
			Formats:       formats,
		})
	}
	return catalog, nil
}

func findEntry(catalog []DeviceCatalogEntry, id string) (DeviceCatalogEntry, bool) {
	for _, e := range catalog {
		if e.ID == id {
			return e, true
		}
	}
	return DeviceCatalogEntry{}, false
}
