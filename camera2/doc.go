// Package camera2 is a camera2-style capture engine: a hardware abstraction
// layer (HAL) reports cameras and stream configurations, a Capturer opens a
// capture session bound to a Surface and keeps it fed with a repeating
// CaptureRequest issued on a dedicated camera Handler.
//
// # Architecture
//
//	HAL -> Enumerator -> Capturer -> cameraSession -> CaptureSession (HAL)
//	                                      |
//	                                   Surface -> CapturerObserver
//
// All session work runs on the capturer's camera Handler. Callbacks to
// CameraEventsHandler and CameraSwitchHandler are invoked from that
// goroutine.
//
// # HAL implementations
//
//   - VirtualHAL: in-process cameras producing I420 frames, used in tests
//     and by the example tools.
//   - PuregoHAL: loads libstream_camera2 at runtime (darwin/linux). Set
//     STREAM_SDK_LIB_PATH to the directory containing the library. The
//     nodevices build tag disables it.
//
// The public Capturer API deliberately mirrors the upstream engine it was
// modelled on: there is no torch or flash control.
package camera2
