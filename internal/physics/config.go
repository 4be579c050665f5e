package physics

import (
	"math"

	"github.com/swingpong/backend/internal/config"
)

// Side identifies a paddle.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// Opponent returns the other paddle side.
func (s Side) Opponent() Side {
	if s == Left {
		return Right
	}
	return Left
}

// WorldConfig is the immutable description of a physics world. A new value is
// built for every rebuild; a running world is never reconfigured in place.
type WorldConfig struct {
	Width         float64
	Height        float64
	WallThickness float64
	Gravity       Vec2

	PaddleWidth  float64
	PaddleHeight float64
	PaddleInset  float64
	BallSize     float64

	Restitution float64
	Friction    float64
	FrictionAir float64

	// StepDt is the engine time step per tick. Velocities are expressed in
	// canvas units per step.
	StepDt float64
}

// WorldConfigFromTunables extracts the physics-relevant tunables.
func WorldConfigFromTunables(t config.Tunables) WorldConfig {
	return WorldConfig{
		Width:         t.CanvasWidth,
		Height:        t.CanvasHeight,
		WallThickness: t.WallThickness,
		Gravity:       Vec2{X: t.GravityX, Y: t.GravityY},
		PaddleWidth:   t.PaddleWidth,
		PaddleHeight:  t.PaddleHeight,
		PaddleInset:   t.PaddleInset,
		BallSize:      t.BallSize,
		Restitution:   t.Restitution,
		Friction:      t.Friction,
		FrictionAir:   t.FrictionAir,
		StepDt:        1,
	}
}

// PaddleX returns the left edge of the paddle on side s.
func (c WorldConfig) PaddleX(s Side) float64 {
	if s == Right {
		return c.Width - c.PaddleInset - c.PaddleWidth
	}
	return c.PaddleInset
}

// MinPaddleY and MaxPaddleY bound the top edge of a paddle.
func (c WorldConfig) MinPaddleY() float64 {
	return c.WallThickness
}

func (c WorldConfig) MaxPaddleY() float64 {
	return c.Height - c.PaddleHeight - c.WallThickness
}

// ClampPaddleY keeps a paddle between the walls.
func (c WorldConfig) ClampPaddleY(y float64) float64 {
	if math.IsNaN(y) {
		return c.MinPaddleY()
	}
	return math.Max(c.MinPaddleY(), math.Min(c.MaxPaddleY(), y))
}

// Center is the ball spawn point.
func (c WorldConfig) Center() Vec2 {
	return Vec2{X: c.Width / 2, Y: c.Height / 2}
}
