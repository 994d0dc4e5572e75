package capture

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/thesyncim/capture/camera2"
)

// SessionLayout names the unexported fields the bridge reads from a
// capturer and its active session. Layouts are versioned with the engine;
// no other code refers to these names.
type SessionLayout struct {
	Version string

	// Owner side. LockField, when set, is a sync.Locker held while the
	// session pointer and its fields are read.
	LockField    string
	SessionField string

	// Session side.
	CaptureSessionField string
	CameraDeviceField   string
	CaptureFormatField  string
	FpsUnitFactorField  string
	SurfaceField        string
	HandlerField        string
}

// Camera2LayoutV1 matches camera2.Capturer and its session type.
var Camera2LayoutV1 = SessionLayout{
	Version:             "camera2/v1",
	LockField:           "mu",
	SessionField:        "currentSession",
	CaptureSessionField: "captureSession",
	CameraDeviceField:   "cameraDevice",
	CaptureFormatField:  "captureFormat",
	FpsUnitFactorField:  "fpsUnitFactor",
	SurfaceField:        "surface",
	HandlerField:        "cameraThreadHandler",
}

// SessionHandles are the pieces of an active session needed to submit a
// manual capture request.
type SessionHandles struct {
	Session       camera2.CaptureSession
	Device        camera2.Device
	Format        camera2.CaptureFormat
	FpsUnitFactor int
	Surface       *camera2.Surface
	Handler       *camera2.Handler
}

// SessionIntrospector reads session handles out of a capturer whose
// public API does not expose them.
type SessionIntrospector interface {
	Layout() SessionLayout
	ExtractSessionHandles(capturer any) (*SessionHandles, error)
}

type reflectIntrospector struct {
	layout SessionLayout
}

// NewSessionIntrospector returns a reflection based introspector for
// layout.
func NewSessionIntrospector(layout SessionLayout) SessionIntrospector {
	return reflectIntrospector{layout: layout}
}

func (r reflectIntrospector) Layout() SessionLayout { return r.layout }

// ExtractSessionHandles returns *MissingFieldError when a field of the
// layout is absent or has another type, and ErrNoActiveSession when the
// capturer is not streaming.
func (r reflectIntrospector) ExtractSessionHandles(capturer any) (*SessionHandles, error) {
	v := reflect.ValueOf(capturer)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("capture: capturer %T is not a pointer to a struct", capturer)
	}
	owner := v.Elem()

	if r.layout.LockField != "" {
		lock, err := fieldOf[sync.Locker](owner, r.layout.LockField, true)
		if err != nil {
			return nil, err
		}
		lock.Lock()
		defer lock.Unlock()
	}

	sv, err := field(owner, r.layout.SessionField)
	if err != nil {
		return nil, err
	}
	if sv.Kind() != reflect.Pointer {
		return nil, &MissingFieldError{ClassName: owner.Type().String(), FieldName: r.layout.SessionField, GotType: sv.Type().String()}
	}
	if sv.IsNil() {
		return nil, ErrNoActiveSession
	}
	session := sv.Elem()
	if session.Kind() != reflect.Struct {
		return nil, &MissingFieldError{ClassName: owner.Type().String(), FieldName: r.layout.SessionField, GotType: sv.Type().String()}
	}

	var h SessionHandles
	if h.Session, err = fieldOf[camera2.CaptureSession](session, r.layout.CaptureSessionField, false); err != nil {
		return nil, err
	}
	if h.Device, err = fieldOf[camera2.Device](session, r.layout.CameraDeviceField, false); err != nil {
		return nil, err
	}
	if h.Format, err = fieldOf[camera2.CaptureFormat](session, r.layout.CaptureFormatField, false); err != nil {
		return nil, err
	}
	if h.FpsUnitFactor, err = fieldOf[int](session, r.layout.FpsUnitFactorField, false); err != nil {
		return nil, err
	}
	if h.Surface, err = fieldOf[*camera2.Surface](session, r.layout.SurfaceField, false); err != nil {
		return nil, err
	}
	if h.Handler, err = fieldOf[*camera2.Handler](session, r.layout.HandlerField, false); err != nil {
		return nil, err
	}
	if h.FpsUnitFactor <= 0 || h.Surface == nil || h.Handler == nil || h.Session == nil || h.Device == nil {
		return nil, ErrNoActiveSession
	}
	return &h, nil
}

// field returns a readable view of the named, possibly unexported, field
// of the addressable struct owner.
func field(owner reflect.Value, name string) (reflect.Value, error) {
	f := owner.FieldByName(name)
	if !f.IsValid() {
		return reflect.Value{}, &MissingFieldError{ClassName: owner.Type().String(), FieldName: name}
	}
	return reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem(), nil
}

// fieldOf reads the named field as T. With addr set the field's address
// is converted instead of its value.
func fieldOf[T any](owner reflect.Value, name string, addr bool) (T, error) {
	var zero T
	f, err := field(owner, name)
	if err != nil {
		return zero, err
	}
	if addr {
		f = f.Addr()
	}
	if f.Kind() == reflect.Interface && f.IsNil() {
		return zero, nil
	}
	v, ok := f.Interface().(T)
	if !ok {
		return zero, &MissingFieldError{ClassName: owner.Type().String(), FieldName: name, GotType: f.Type().String()}
	}
	return v, nil
}
