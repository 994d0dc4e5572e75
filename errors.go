package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a camera switch is already in flight.
	ErrBusy = errors.New("capture: camera switch already in progress")

	// ErrNotOpened is returned by controls used before Open.
	ErrNotOpened = errors.New("capture: controller not opened")

	// ErrAlreadyOpened is returned by a second Open.
	ErrAlreadyOpened = errors.New("capture: controller already opened")

	// ErrStopped is returned once a controller has been stopped.
	ErrStopped = errors.New("capture: controller stopped")

	// ErrNoActiveSession is returned when the capturer has no open session.
	ErrNoActiveSession = errors.New("capture: no active capture session")
)

// NotFoundError reports that no device, size or frame rate satisfies the
// constraints. It carries the constraints for diagnostics.
type NotFoundError struct {
	What        string // "device", "format" or "frame rate"
	Constraints VideoTrackConstraints
	Err         error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture: no %s satisfies %s: %v", e.What, e.Constraints, e.Err)
	}
	return fmt.Sprintf("capture: no %s satisfies %s", e.What, e.Constraints)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// SwitchError reports a camera switch the engine rejected. The controller
// keeps capturing from the previous camera.
type SwitchError struct {
	Message string
}

func (e *SwitchError) Error() string {
	return "Switch camera failed: " + e.Message
}

// MissingFieldError reports that a capturer's internal layout did not
// match the expected SessionLayout.
type MissingFieldError struct {
	ClassName string
	FieldName string
	// GotType is set when the field exists with an unexpected type.
	GotType string
}

func (e *MissingFieldError) Error() string {
	if e.GotType != "" {
		return fmt.Sprintf("capture: field '%s' of %s has unexpected type %s", e.FieldName, e.ClassName, e.GotType)
	}
	return fmt.Sprintf("capture: failed to get '%s' from %s", e.FieldName, e.ClassName)
}

// HardwareAccessError reports a camera access failure while building or
// submitting a manual capture request.
type HardwareAccessError struct {
	Op  string
	Err error
}

func (e *HardwareAccessError) Error() string {
	return fmt.Sprintf("capture: %s: %v", e.Op, e.Err)
}

func (e *HardwareAccessError) Unwrap() error { return e.Err }
