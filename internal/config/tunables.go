package config

import (
	"errors"
	"fmt"
)

// Tunables is the flat set of named game parameters injected into a session
// when it starts. The simulation never mutates them.
type Tunables struct {
	// World geometry
	CanvasWidth   float64 `json:"canvas_width"`
	CanvasHeight  float64 `json:"canvas_height"`
	WallThickness float64 `json:"wall_thickness"`
	PaddleWidth   float64 `json:"paddle_width"`
	PaddleHeight  float64 `json:"paddle_height"`
	PaddleInset   float64 `json:"paddle_inset"` // distance from the side edge to the paddle
	BallSize      float64 `json:"ball_size"`
	GravityX      float64 `json:"gravity_x"`
	GravityY      float64 `json:"gravity_y"`

	// Physical coefficients
	Restitution float64 `json:"restitution"`
	Friction    float64 `json:"friction"`
	FrictionAir float64 `json:"friction_air"`

	// Ball motion (units per physics step)
	BallSpeed       float64 `json:"ball_speed"`
	MaxBallSpeed    float64 `json:"max_ball_speed"`
	SpeedIncrement  float64 `json:"speed_increment"`
	MaxBounceAngle  float64 `json:"max_bounce_angle_deg"`
	LaunchBuffer    float64 `json:"launch_buffer_deg"`
	DriftTolerance  float64 `json:"drift_tolerance"`
	StallSpeed      float64 `json:"stall_speed"`
	ResetDelayMs    int     `json:"reset_delay_ms"`
	WinningScore    int     `json:"winning_score"`
	MultiBall       bool    `json:"multi_ball"`
	MultiBallEvery  int     `json:"multi_ball_every_ms"`
	MultiBallLimit  int     `json:"multi_ball_limit"`
	StreakThreshold int     `json:"streak_threshold"`
	StreakMultiply  float64 `json:"streak_multiplier"`

	// Control modes per side: "joystick" or "orientation"
	LeftControlMode  string `json:"left_control_mode"`
	RightControlMode string `json:"right_control_mode"`

	// Joystick mode
	JoystickBaseSpeed      float64 `json:"joystick_base_speed"`
	JoystickDeadZone       float64 `json:"joystick_dead_zone"`
	LeftCalibrationOffset  float64 `json:"left_calibration_offset"`
	RightCalibrationOffset float64 `json:"right_calibration_offset"`
	AccelStep              float64 `json:"accel_step"`
	AccelMax               float64 `json:"accel_max"`
	SwingThresholdDps      float64 `json:"swing_threshold_dps"`

	// Orientation mode
	OrientationNeutral  float64 `json:"orientation_neutral"`
	OrientationAlpha    float64 `json:"orientation_alpha"`
	OrientationScaleUp  float64 `json:"orientation_scale_up"`
	OrientationScaleDn  float64 `json:"orientation_scale_down"`
	OrientationDeadZone float64 `json:"orientation_dead_zone"`
	MinPitch            float64 `json:"min_pitch"`
	MaxPitch            float64 `json:"max_pitch"`
	SwingBoost          float64 `json:"swing_boost"`

	// Haptics
	RumbleHigh          float64 `json:"rumble_high"`
	RumbleLow           float64 `json:"rumble_low"`
	RumbleStrength      float64 `json:"rumble_strength"`
	RumbleDurationMs    int     `json:"rumble_duration_ms"`
	RumbleSecondDelayMs int     `json:"rumble_second_delay_ms"`
	RumbleSecondScale   float64 `json:"rumble_second_scale"`

	// Scheduler diagnostics
	FrameIntervalMs float64 `json:"frame_interval_ms"`
	FPSSmoothing    float64 `json:"fps_smoothing"`
	LagSpikeFPS     float64 `json:"lag_spike_fps"`

	// Game over
	SubmitDelayMs int    `json:"submit_delay_ms"`
	GameMode      string `json:"game_mode"`
}

// DefaultTunables returns the stock arcade configuration.
func DefaultTunables() Tunables {
	return Tunables{
		CanvasWidth:   800,
		CanvasHeight:  600,
		WallThickness: 20,
		PaddleWidth:   15,
		PaddleHeight:  100,
		PaddleInset:   30,
		BallSize:      15,

		Restitution: 1,
		Friction:    0,
		FrictionAir: 0,

		BallSpeed:       7,
		MaxBallSpeed:    15,
		SpeedIncrement:  0.5,
		MaxBounceAngle:  60,
		LaunchBuffer:    15,
		DriftTolerance:  0.05,
		StallSpeed:      0.5,
		ResetDelayMs:    1000,
		WinningScore:    10,
		MultiBall:       false,
		MultiBallEvery:  15000,
		MultiBallLimit:  3,
		StreakThreshold: 3,
		StreakMultiply:  2,

		LeftControlMode:  "joystick",
		RightControlMode: "joystick",

		JoystickBaseSpeed:      7,
		JoystickDeadZone:       0.1,
		LeftCalibrationOffset:  0,
		RightCalibrationOffset: 0,
		AccelStep:              0.05,
		AccelMax:               2,
		SwingThresholdDps:      250,

		OrientationNeutral:  45,
		OrientationAlpha:    0.3,
		OrientationScaleUp:  1,
		OrientationScaleDn:  1,
		OrientationDeadZone: 2,
		MinPitch:            -30,
		MaxPitch:            30,
		SwingBoost:          40,

		RumbleHigh:          1,
		RumbleLow:           0.6,
		RumbleStrength:      1,
		RumbleDurationMs:    200,
		RumbleSecondDelayMs: 250,
		RumbleSecondScale:   0.4,

		FrameIntervalMs: 1000.0 / 60.0,
		FPSSmoothing:    0.1,
		LagSpikeFPS:     45,

		SubmitDelayMs: 3000,
		GameMode:      "classic",
	}
}

// LoadTunables applies PONG_* environment overrides on top of DefaultTunables.
func LoadTunables() Tunables {
	t := DefaultTunables()

	t.CanvasWidth = getEnvFloat("PONG_CANVAS_WIDTH", t.CanvasWidth)
	t.CanvasHeight = getEnvFloat("PONG_CANVAS_HEIGHT", t.CanvasHeight)
	t.WallThickness = getEnvFloat("PONG_WALL_THICKNESS", t.WallThickness)
	t.PaddleWidth = getEnvFloat("PONG_PADDLE_WIDTH", t.PaddleWidth)
	t.PaddleHeight = getEnvFloat("PONG_PADDLE_HEIGHT", t.PaddleHeight)
	t.PaddleInset = getEnvFloat("PONG_PADDLE_INSET", t.PaddleInset)
	t.BallSize = getEnvFloat("PONG_BALL_SIZE", t.BallSize)
	t.GravityX = getEnvFloat("PONG_GRAVITY_X", t.GravityX)
	t.GravityY = getEnvFloat("PONG_GRAVITY_Y", t.GravityY)

	t.BallSpeed = getEnvFloat("PONG_BALL_SPEED", t.BallSpeed)
	t.MaxBallSpeed = getEnvFloat("PONG_MAX_BALL_SPEED", t.MaxBallSpeed)
	t.SpeedIncrement = getEnvFloat("PONG_SPEED_INCREMENT", t.SpeedIncrement)
	t.MaxBounceAngle = getEnvFloat("PONG_MAX_BOUNCE_ANGLE", t.MaxBounceAngle)
	t.LaunchBuffer = getEnvFloat("PONG_LAUNCH_BUFFER", t.LaunchBuffer)
	t.ResetDelayMs = getEnvInt("PONG_RESET_DELAY_MS", t.ResetDelayMs)
	t.WinningScore = getEnvInt("PONG_WINNING_SCORE", t.WinningScore)
	t.MultiBall = getEnvBool("PONG_MULTI_BALL", t.MultiBall)
	t.MultiBallEvery = getEnvInt("PONG_MULTI_BALL_EVERY_MS", t.MultiBallEvery)
	t.MultiBallLimit = getEnvInt("PONG_MULTI_BALL_LIMIT", t.MultiBallLimit)

	t.LeftControlMode = getEnv("PONG_LEFT_CONTROL_MODE", t.LeftControlMode)
	t.RightControlMode = getEnv("PONG_RIGHT_CONTROL_MODE", t.RightControlMode)
	t.JoystickBaseSpeed = getEnvFloat("PONG_JOYSTICK_BASE_SPEED", t.JoystickBaseSpeed)
	t.JoystickDeadZone = getEnvFloat("PONG_JOYSTICK_DEAD_ZONE", t.JoystickDeadZone)
	t.LeftCalibrationOffset = getEnvFloat("PONG_LEFT_CALIBRATION_OFFSET", t.LeftCalibrationOffset)
	t.RightCalibrationOffset = getEnvFloat("PONG_RIGHT_CALIBRATION_OFFSET", t.RightCalibrationOffset)
	t.SwingThresholdDps = getEnvFloat("PONG_SWING_THRESHOLD_DPS", t.SwingThresholdDps)

	t.OrientationNeutral = getEnvFloat("PONG_ORIENTATION_NEUTRAL", t.OrientationNeutral)
	t.OrientationAlpha = getEnvFloat("PONG_ORIENTATION_ALPHA", t.OrientationAlpha)
	t.MinPitch = getEnvFloat("PONG_MIN_PITCH", t.MinPitch)
	t.MaxPitch = getEnvFloat("PONG_MAX_PITCH", t.MaxPitch)

	t.RumbleDurationMs = getEnvInt("PONG_RUMBLE_DURATION_MS", t.RumbleDurationMs)
	t.LagSpikeFPS = getEnvFloat("PONG_LAG_SPIKE_FPS", t.LagSpikeFPS)
	t.SubmitDelayMs = getEnvInt("PONG_SUBMIT_DELAY_MS", t.SubmitDelayMs)
	t.GameMode = getEnv("PONG_GAME_MODE", t.GameMode)

	return t
}

// Validate rejects parameter sets the simulation cannot run with.
func (t Tunables) Validate() error {
	if t.CanvasWidth <= 0 || t.CanvasHeight <= 0 {
		return errors.New("canvas dimensions must be positive")
	}
	if t.WallThickness < 0 || t.PaddleHeight <= 0 || t.PaddleWidth <= 0 || t.BallSize <= 0 {
		return errors.New("wall, paddle and ball dimensions must be positive")
	}
	if t.CanvasHeight-t.PaddleHeight-2*t.WallThickness < 0 {
		return fmt.Errorf("paddle height %.0f does not fit between walls", t.PaddleHeight)
	}
	if t.MaxBallSpeed <= 0 || t.BallSpeed < 0 {
		return errors.New("ball speeds must be positive")
	}
	if t.JoystickDeadZone < 0 || t.JoystickDeadZone >= 1 {
		return fmt.Errorf("joystick dead zone %.2f out of range [0,1)", t.JoystickDeadZone)
	}
	if t.MaxPitch <= t.MinPitch {
		return errors.New("max pitch must be greater than min pitch")
	}
	if t.OrientationAlpha <= 0 || t.OrientationAlpha > 1 {
		return errors.New("orientation smoothing factor must be in (0,1]")
	}
	if t.LaunchBuffer < 0 || t.LaunchBuffer >= 45 {
		return errors.New("launch buffer must be in [0,45) degrees")
	}
	if t.WinningScore <= 0 {
		return errors.New("winning score must be positive")
	}
	if t.FrameIntervalMs <= 0 {
		return errors.New("frame interval must be positive")
	}
	return nil
}
