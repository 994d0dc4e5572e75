package capture

import (
	"errors"

	"github.com/thesyncim/capture/camera2"
)

var errHandlerStopped = errors.New("camera thread stopped")

// torchRequest builds the repeating request for the session in h with the
// flash in torch mode or off.
func torchRequest(h *SessionHandles, enabled bool) (*camera2.CaptureRequest, error) {
	req, err := h.Device.CreateCaptureRequest(camera2.TemplateRecord)
	if err != nil {
		return nil, &HardwareAccessError{Op: "create capture request", Err: err}
	}
	req.FlashMode = camera2.FlashModeOff
	if enabled {
		req.FlashMode = camera2.FlashModeTorch
	}
	req.AETargetFPSRange = camera2.Range{
		Min: h.Format.Framerate.Min / h.FpsUnitFactor,
		Max: h.Format.Framerate.Max / h.FpsUnitFactor,
	}
	req.AEMode = camera2.AEModeOn
	req.AELock = false
	req.AddTarget(h.Surface)
	return req, nil
}

// setTorch submits a torch request as the session's repeating request on
// the session's camera thread and waits for the submission.
func setTorch(h *SessionHandles, enabled bool) error {
	req, err := torchRequest(h, enabled)
	if err != nil {
		return err
	}
	var submitErr error
	if !h.Handler.Invoke(func() { submitErr = h.Session.SetRepeatingRequest(req) }) {
		return &HardwareAccessError{Op: "set repeating request", Err: errHandlerStopped}
	}
	if submitErr != nil {
		return &HardwareAccessError{Op: "set repeating request", Err: submitErr}
	}
	return nil
}
