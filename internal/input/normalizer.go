package input

import "math"

// Params are the per-side tunables for normalizing controller samples.
type Params struct {
	// Joystick mode
	BaseSpeed         float64
	DeadZone          float64
	CalibrationOffset float64
	AccelStep         float64
	AccelMax          float64

	// Both modes: gyroscope rate (deg/s) above which a swing is detected
	SwingThreshold float64

	// Orientation mode
	Neutral             float64
	Alpha               float64
	ScaleUp             float64
	ScaleDown           float64
	OrientationDeadZone float64
	MinPitch            float64
	MaxPitch            float64
	Boost               float64

	// Legal paddle range the orientation target is mapped onto
	MinY float64
	MaxY float64
}

// State is the per-side accumulator carried between ticks. The zero value is
// not ready for use; call NewState or Reset.
type State struct {
	Accel        float64
	LastVelocity float64
	Smoothed     float64
}

func NewState() State {
	return State{Accel: 1}
}

// Reset zeroes all accumulators and smoothing state.
func (s *State) Reset() {
	*s = NewState()
}

// Output is what one tick of normalization produced for one paddle.
// Velocity is meaningful in joystick mode, Target in orientation mode.
type Output struct {
	Mode     ControlMode
	Velocity float64
	Target   float64
	Swing    bool
}

// Normalize runs the mode-specific mapping for one sample.
func Normalize(mode ControlMode, in ControlInput, p Params, st *State) Output {
	in = in.Sanitize()
	switch mode {
	case ModeOrientation:
		target, swing := orientationTarget(in, p, st)
		return Output{Mode: ModeOrientation, Target: target, Swing: swing}
	default:
		v, swing := joystickVelocity(in, p, st)
		return Output{Mode: ModeJoystick, Velocity: v, Swing: swing}
	}
}

// JoystickVelocity returns the paddle velocity for a joystick sample.
func JoystickVelocity(in ControlInput, p Params, st *State) float64 {
	v, _ := joystickVelocity(in.Sanitize(), p, st)
	return v
}

// OrientationTarget returns the absolute paddle Y for an orientation sample.
func OrientationTarget(in ControlInput, p Params, st *State) float64 {
	y, _ := orientationTarget(in.Sanitize(), p, st)
	return y
}

func joystickVelocity(in ControlInput, p Params, st *State) (float64, bool) {
	raw := in.Joystick.Vertical - p.CalibrationOffset
	if math.Abs(raw) <= p.DeadZone {
		st.Accel = 1
		st.LastVelocity = 0
		return 0, false
	}

	scaled := (math.Abs(raw) - p.DeadZone) / (1 - p.DeadZone)
	dir := sign(raw)

	if dir != sign(st.LastVelocity) {
		st.Accel = 1
	} else {
		st.Accel = math.Min(st.Accel+p.AccelStep, math.Max(p.AccelMax, 1))
	}

	v := p.BaseSpeed * scaled * dir * st.Accel
	swing := swinging(in, p)
	if swing {
		v *= 2
	}
	st.LastVelocity = v
	return v, swing
}

func orientationTarget(in ControlInput, p Params, st *State) (float64, bool) {
	pitch := in.Motion.Orientation.Beta - p.Neutral
	st.Smoothed = st.Smoothed*(1-p.Alpha) + pitch*p.Alpha

	v := st.Smoothed
	if v > 0 {
		v *= p.ScaleUp
	} else if v < 0 {
		v *= p.ScaleDown
	}
	if math.Abs(v) < p.OrientationDeadZone {
		v = 0
	}

	clamped := clamp(v, p.MinPitch, p.MaxPitch)
	ratio := (clamped - p.MinPitch) / (p.MaxPitch - p.MinPitch)
	y := p.MinY + ratio*(p.MaxY-p.MinY)

	swing := swinging(in, p)
	if swing {
		y += p.Boost
	}
	return y, swing
}

// swinging reports a deliberate swing gesture on the pitch axis.
func swinging(in ControlInput, p Params) bool {
	return p.SwingThreshold > 0 && math.Abs(in.Motion.GyroDps.X) > p.SwingThreshold
}

func sign(f float64) float64 {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
