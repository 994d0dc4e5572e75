//go:build !(darwin || linux) || nodevices

package camera2

// PuregoHAL is unavailable on this platform or with the nodevices tag.
type PuregoHAL struct{}

// IsNativeAvailable always reports false.
func IsNativeAvailable() bool { return false }

// NewPuregoHAL always fails with ErrHALUnavailable.
func NewPuregoHAL() (*PuregoHAL, error) { return nil, ErrHALUnavailable }

// CameraIDs implements HAL.
func (h *PuregoHAL) CameraIDs() ([]string, error) { return nil, ErrHALUnavailable }

// Characteristics implements HAL.
func (h *PuregoHAL) Characteristics(string) (Characteristics, error) {
	return Characteristics{}, ErrHALUnavailable
}

// OpenCamera implements HAL.
func (h *PuregoHAL) OpenCamera(string, DeviceCallback) (Device, error) {
	return nil, ErrHALUnavailable
}
