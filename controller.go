package capture

import "context"

// CaptureState is the lifecycle state of a CaptureController.
type CaptureState int32

const (
	StateCreated CaptureState = iota
	StateOpened
	StateSwitching
	StateStopped
)

func (s CaptureState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpened:
		return "opened"
	case StateSwitching:
		return "switching"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// CaptureController owns the capture source behind one track. Open moves
// it from Created to Opened; Stop is terminal.
type CaptureController interface {
	// Open selects a device and format and starts capture.
	Open(ctx context.Context) error
	// SwitchCamera moves capture to deviceID, or to the next camera when
	// deviceID is empty. ctx bounds only the wait for the outcome.
	SwitchCamera(ctx context.Context, deviceID string) error
	// SetTorchEnabled turns the torch on or off. It never fails; problems
	// are logged.
	SetTorchEnabled(enabled bool)
	SetEnabled(enabled bool)
	Stop() error
	State() CaptureState
	Target() SelectedTarget
	// Track returns the native track, or nil before Open.
	Track() NativeVideoTrack
}
