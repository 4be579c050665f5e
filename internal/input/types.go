package input

import (
	"math"
	"strings"
)

// Joystick is an analog stick reading, each axis nominally in [-1, 1].
type Joystick struct {
	Horizontal float64 `json:"horizontal" msgpack:"h"`
	Vertical   float64 `json:"vertical" msgpack:"v"`
}

// Vec3 is a three-axis sensor reading.
type Vec3 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// Orientation is a device orientation in degrees.
type Orientation struct {
	Alpha float64 `json:"alpha" msgpack:"a"`
	Beta  float64 `json:"beta" msgpack:"b"`
	Gamma float64 `json:"gamma" msgpack:"g"`
}

// Motion groups the inertial sensors of a motion controller.
type Motion struct {
	Accel       Vec3        `json:"accel" msgpack:"acc"`
	GyroDps     Vec3        `json:"gyroDps" msgpack:"gyro"`
	Orientation Orientation `json:"orientation" msgpack:"ori"`
}

// ControlInput is one controller sample for one paddle side. Missing fields
// decode to zero.
type ControlInput struct {
	Joystick Joystick `json:"joystick" msgpack:"js"`
	Motion   Motion   `json:"motion" msgpack:"mo"`
}

// Sanitize replaces non-finite readings with zero.
func (c ControlInput) Sanitize() ControlInput {
	c.Joystick.Horizontal = finite(c.Joystick.Horizontal)
	c.Joystick.Vertical = finite(c.Joystick.Vertical)
	c.Motion.Accel = c.Motion.Accel.sanitize()
	c.Motion.GyroDps = c.Motion.GyroDps.sanitize()
	c.Motion.Orientation.Alpha = finite(c.Motion.Orientation.Alpha)
	c.Motion.Orientation.Beta = finite(c.Motion.Orientation.Beta)
	c.Motion.Orientation.Gamma = finite(c.Motion.Orientation.Gamma)
	return c
}

func (v Vec3) sanitize() Vec3 {
	return Vec3{X: finite(v.X), Y: finite(v.Y), Z: finite(v.Z)}
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ControlMode selects how a sample drives a paddle.
type ControlMode int

const (
	ModeJoystick ControlMode = iota
	ModeOrientation
)

func (m ControlMode) String() string {
	if m == ModeOrientation {
		return "orientation"
	}
	return "joystick"
}

// ParseControlMode maps a configured mode name to a ControlMode. Unknown names
// fall back to joystick.
func ParseControlMode(s string) ControlMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "orientation", "motion", "tilt":
		return ModeOrientation
	default:
		return ModeJoystick
	}
}
