package camera2

import (
	"errors"
	"fmt"
)

// ErrHALUnavailable is returned when a native HAL cannot be loaded.
var ErrHALUnavailable = errors.New("camera2: HAL not available")

// ErrCameraNotFound is returned for an unknown camera id.
var ErrCameraNotFound = errors.New("camera2: camera not found")

// AccessReason classifies a CameraAccessError.
type AccessReason int

const (
	AccessReasonDisabled AccessReason = iota + 1
	AccessReasonDisconnected
	AccessReasonError
	AccessReasonInUse
	AccessReasonMaxCamerasInUse
)

func (r AccessReason) String() string {
	switch r {
	case AccessReasonDisabled:
		return "camera disabled"
	case AccessReasonDisconnected:
		return "camera disconnected"
	case AccessReasonError:
		return "camera error"
	case AccessReasonInUse:
		return "camera in use"
	case AccessReasonMaxCamerasInUse:
		return "max cameras in use"
	default:
		return "unknown"
	}
}

// CameraAccessError reports that the HAL refused or lost access to a camera.
type CameraAccessError struct {
	CameraID string
	Reason   AccessReason
	Err      error
}

func (e *CameraAccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera2: %s: %s: %v", e.CameraID, e.Reason, e.Err)
	}
	return fmt.Sprintf("camera2: %s: %s", e.CameraID, e.Reason)
}

func (e *CameraAccessError) Unwrap() error { return e.Err }

// DeviceCallback receives asynchronous device state changes from the HAL.
type DeviceCallback interface {
	OnDisconnected()
	OnError(code int)
}

// HAL is the platform camera layer.
type HAL interface {
	// CameraIDs lists the cameras currently present.
	CameraIDs() ([]string, error)

	// Characteristics returns the static description of a camera.
	Characteristics(id string) (Characteristics, error)

	// OpenCamera opens exclusive access to a camera.
	OpenCamera(id string, cb DeviceCallback) (Device, error)
}

// Device is an open camera.
type Device interface {
	ID() string

	// CreateCaptureRequest returns a request populated with the
	// template's defaults.
	CreateCaptureRequest(template Template) (*CaptureRequest, error)

	// CreateCaptureSession configures a session that outputs to surface.
	CreateCaptureSession(surface *Surface) (CaptureSession, error)

	Close() error
}

// CaptureSession is a configured output pipeline of an open Device.
type CaptureSession interface {
	// SetRepeatingRequest replaces the request applied to every frame.
	SetRepeatingRequest(req *CaptureRequest) error

	// StopRepeating stops frame production.
	StopRepeating() error

	Close() error
}
