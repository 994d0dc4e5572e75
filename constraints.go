package capture

import (
	"fmt"
	"strings"
)

// Platform defaults used when a constraint names neither an exact nor an
// ideal value.
const (
	DefaultVideoWidth  = 640
	DefaultVideoHeight = 480
	DefaultFrameRate   = 30
)

// FacingMode is the direction a camera points relative to the user.
type FacingMode int

const (
	FacingModeUser        FacingMode = iota + 1 // Toward the user (front camera)
	FacingModeEnvironment                       // Away from the user (back camera)
)

func (m FacingMode) String() string {
	switch m {
	case FacingModeUser:
		return "user"
	case FacingModeEnvironment:
		return "environment"
	default:
		return "unknown"
	}
}

// ParseFacingMode parses "user" or "environment" (case-insensitive).
// "front" and "back" are accepted as aliases.
func ParseFacingMode(s string) (FacingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "front":
		return FacingModeUser, nil
	case "environment", "back":
		return FacingModeEnvironment, nil
	default:
		return 0, fmt.Errorf("capture: invalid facing mode %q", s)
	}
}

// ConstraintValue is a requested value for one capture parameter. Exact is
// a hard requirement, Ideal a soft preference. Neither set means no
// preference.
type ConstraintValue[T any] struct {
	Exact *T
	Ideal *T
}

// Exact returns a constraint requiring v.
func Exact[T any](v T) *ConstraintValue[T] {
	return &ConstraintValue[T]{Exact: &v}
}

// Ideal returns a constraint preferring v.
func Ideal[T any](v T) *ConstraintValue[T] {
	return &ConstraintValue[T]{Ideal: &v}
}

// IsSet reports whether either value is present. It is nil-safe.
func (c *ConstraintValue[T]) IsSet() bool {
	return c != nil && (c.Exact != nil || c.Ideal != nil)
}

// IsExact reports whether the constraint is a hard requirement.
func (c *ConstraintValue[T]) IsExact() bool {
	return c != nil && c.Exact != nil
}

// Resolve returns the exact value, else the ideal value, else def.
// It is nil-safe.
func (c *ConstraintValue[T]) Resolve(def T) T {
	if c == nil {
		return def
	}
	if c.Exact != nil {
		return *c.Exact
	}
	if c.Ideal != nil {
		return *c.Ideal
	}
	return def
}

func (c *ConstraintValue[T]) String() string {
	switch {
	case c == nil:
		return "<none>"
	case c.Exact != nil && c.Ideal != nil:
		return fmt.Sprintf("{exact: %v, ideal: %v}", *c.Exact, *c.Ideal)
	case c.Exact != nil:
		return fmt.Sprintf("{exact: %v}", *c.Exact)
	case c.Ideal != nil:
		return fmt.Sprintf("{ideal: %v}", *c.Ideal)
	default:
		return "{}"
	}
}

// VideoTrackConstraints describes a requested video stream. The capture
// subsystem only reads it.
type VideoTrackConstraints struct {
	DeviceID   string
	FacingMode *ConstraintValue[FacingMode]
	Width      *ConstraintValue[int]
	Height     *ConstraintValue[int]
	FrameRate  *ConstraintValue[float64]
}

func (c VideoTrackConstraints) String() string {
	var parts []string
	if c.DeviceID != "" {
		parts = append(parts, "deviceId="+c.DeviceID)
	}
	if c.FacingMode.IsSet() {
		parts = append(parts, "facingMode="+c.FacingMode.String())
	}
	if c.Width.IsSet() {
		parts = append(parts, "width="+c.Width.String())
	}
	if c.Height.IsSet() {
		parts = append(parts, "height="+c.Height.String())
	}
	if c.FrameRate.IsSet() {
		parts = append(parts, "frameRate="+c.FrameRate.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
