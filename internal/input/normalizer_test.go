package input

import (
	"math"
	"testing"
)

func joystickParams() Params {
	return Params{
		BaseSpeed:         7,
		DeadZone:          0.1,
		CalibrationOffset: 0.1,
		AccelStep:         0.05,
		AccelMax:          2,
		SwingThreshold:    250,
	}
}

func orientationParams() Params {
	return Params{
		Neutral:             45,
		Alpha:               1, // no smoothing so a single sample lands exactly
		ScaleUp:             1,
		ScaleDown:           1,
		OrientationDeadZone: 2,
		MinPitch:            -30,
		MaxPitch:            30,
		Boost:               40,
		SwingThreshold:      250,
		MinY:                20,
		MaxY:                480,
	}
}

func vertical(v float64) ControlInput {
	return ControlInput{Joystick: Joystick{Vertical: v}}
}

func TestJoystickFirstTickScaling(t *testing.T) {
	st := NewState()
	v := JoystickVelocity(vertical(0.5), joystickParams(), &st)

	want := 7 * (0.5 - 0.1 - 0.1) / (1 - 0.1)
	if math.Abs(v-want) > 1e-9 {
		t.Fatalf("velocity = %.4f, want %.4f", v, want)
	}
	if math.Abs(v-2.333) > 0.01 {
		t.Errorf("velocity = %.4f, want ~2.33", v)
	}
	if st.Accel != 1 {
		t.Errorf("accel = %.2f after first tick, want 1", st.Accel)
	}
}

func TestJoystickDeadZoneStopsAndResetsAccel(t *testing.T) {
	p := joystickParams()
	st := NewState()
	for i := 0; i < 5; i++ {
		JoystickVelocity(vertical(1), p, &st)
	}
	if st.Accel <= 1 {
		t.Fatalf("accel did not ramp: %.2f", st.Accel)
	}

	// 0.15 - 0.1 calibration = 0.05, inside the dead zone
	v := JoystickVelocity(vertical(0.15), p, &st)
	if v != 0 {
		t.Errorf("velocity inside dead zone = %.3f, want 0", v)
	}
	if st.Accel != 1 {
		t.Errorf("accel inside dead zone = %.2f, want 1", st.Accel)
	}
}

func TestJoystickAccelerationRampCapsAtMax(t *testing.T) {
	p := joystickParams()
	st := NewState()
	for i := 0; i < 100; i++ {
		JoystickVelocity(vertical(1), p, &st)
	}
	if st.Accel != p.AccelMax {
		t.Errorf("accel = %.3f, want cap %.3f", st.Accel, p.AccelMax)
	}
	v := JoystickVelocity(vertical(1), p, &st)
	want := p.BaseSpeed * ((0.9 - 0.1) / 0.9) * p.AccelMax
	if math.Abs(v-want) > 1e-9 {
		t.Errorf("velocity at cap = %.4f, want %.4f", v, want)
	}
}

func TestJoystickDirectionChangeResetsAccel(t *testing.T) {
	p := joystickParams()
	st := NewState()
	for i := 0; i < 10; i++ {
		JoystickVelocity(vertical(1), p, &st)
	}
	v := JoystickVelocity(vertical(-1), p, &st)
	if v >= 0 {
		t.Fatalf("velocity after reversal = %.3f, want negative", v)
	}
	if st.Accel != 1 {
		t.Errorf("accel after reversal = %.2f, want 1", st.Accel)
	}
}

func TestJoystickSwingDoublesVelocity(t *testing.T) {
	p := joystickParams()
	calm := NewState()
	base := JoystickVelocity(vertical(0.5), p, &calm)

	in := vertical(0.5)
	in.Motion.GyroDps.X = -300
	swung := NewState()
	v := JoystickVelocity(in, p, &swung)
	if math.Abs(v-2*base) > 1e-9 {
		t.Errorf("swing velocity = %.4f, want %.4f", v, 2*base)
	}
}

func TestJoystickNonFiniteSampleIsNeutral(t *testing.T) {
	st := NewState()
	v := JoystickVelocity(vertical(math.NaN()), Params{DeadZone: 0.1, BaseSpeed: 7}, &st)
	if v != 0 {
		t.Errorf("NaN sample produced velocity %.3f", v)
	}
}

func TestOrientationMapsPitchOntoPaddleRange(t *testing.T) {
	p := orientationParams()
	tests := []struct {
		name string
		beta float64
		want float64
	}{
		{"neutral", 45, 250},
		{"full down", 45 + 30, 480},
		{"beyond max clamps", 45 + 90, 480},
		{"full up", 45 - 30, 20},
		{"inside dead zone", 46, 250},
	}
	for _, tt := range tests {
		st := NewState()
		in := ControlInput{Motion: Motion{Orientation: Orientation{Beta: tt.beta}}}
		got := OrientationTarget(in, p, &st)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: target = %.2f, want %.2f", tt.name, got, tt.want)
		}
	}
}

func TestOrientationSmoothing(t *testing.T) {
	p := orientationParams()
	p.Alpha = 0.5
	st := NewState()
	in := ControlInput{Motion: Motion{Orientation: Orientation{Beta: 45 + 20}}}

	OrientationTarget(in, p, &st)
	if st.Smoothed != 10 {
		t.Fatalf("smoothed after one sample = %.2f, want 10", st.Smoothed)
	}
	OrientationTarget(in, p, &st)
	if st.Smoothed != 15 {
		t.Errorf("smoothed after two samples = %.2f, want 15", st.Smoothed)
	}

	st.Reset()
	if st.Smoothed != 0 || st.Accel != 1 {
		t.Errorf("reset left state %+v", st)
	}
}

func TestOrientationAsymmetricScale(t *testing.T) {
	p := orientationParams()
	p.ScaleDown = 0.5
	st := NewState()
	in := ControlInput{Motion: Motion{Orientation: Orientation{Beta: 45 - 20}}}
	got := OrientationTarget(in, p, &st)
	// -20 scaled by 0.5 -> -10 -> ratio (20/60)
	want := 20 + (20.0/60.0)*460
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("target = %.3f, want %.3f", got, want)
	}
}

func TestOrientationSwingAddsBoost(t *testing.T) {
	p := orientationParams()
	st := NewState()
	in := ControlInput{Motion: Motion{
		Orientation: Orientation{Beta: 45},
		GyroDps:     Vec3{X: 400},
	}}
	out := Normalize(ModeOrientation, in, p, &st)
	if !out.Swing {
		t.Fatal("swing not detected")
	}
	if out.Target != 250+p.Boost {
		t.Errorf("target = %.2f, want %.2f", out.Target, 250+p.Boost)
	}
}

func TestParseControlModeDefaultsToJoystick(t *testing.T) {
	if ParseControlMode("orientation") != ModeOrientation {
		t.Error("orientation not parsed")
	}
	for _, s := range []string{"", "joystick", "wiimote", "??"} {
		if ParseControlMode(s) != ModeJoystick {
			t.Errorf("ParseControlMode(%q) is not joystick", s)
		}
	}
}
