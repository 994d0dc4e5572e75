// Package capture opens camera video tracks from a set of constraints and
// exposes camera controls over them.
//
// Two backends sit behind one track API:
//   - CameraBackend drives the camera2 engine: it lists devices and their
//     stream formats, picks the device, size and frame rate closest to the
//     constraints, and supports camera switching and torch control.
//   - BrowserBackend hands the constraints to pion/mediadevices, which
//     resolves formats itself. Switching and torch are reported as
//     unsupported and do nothing.
//
// # Selection
//
//	device:     exact DeviceID, else first device whose facing matches
//	size:       minimum |w-W| + |h-H|, first wins on ties
//	frame rate: progressive penalty over the device's ranges, then the
//	            requested rate is clamped into the chosen range
//
// Missing values default to 640x480 at 30 fps. With no facing preference
// the back camera is chosen.
//
// # Torch
//
// The camera2 engine does not expose torch control. The camera backend
// reads the active session through a SessionIntrospector, whose field
// names live in a versioned SessionLayout, and resubmits the session's
// repeating request with the flash in torch mode on the session's camera
// thread. Failures are logged and never returned.
//
// # Usage
//
//	backend, err := capture.NewCameraBackend(capture.AppContext{HAL: camera2.NewVirtualHAL()})
//	devices := capture.NewMediaDevices(backend)
//	track, err := devices.GetUserMedia(ctx, capture.VideoTrackConstraints{
//		FacingMode: capture.Exact(capture.FacingModeUser),
//		Width:      capture.Ideal(1280),
//		Height:     capture.Ideal(720),
//	})
//	defer track.Stop()
//	track.SetTorchEnabled(true)
//	err = track.SwitchCamera(ctx, "")
package capture
