package game

import (
	"github.com/swingpong/backend/internal/physics"
)

// Status represents where a session is in its lifecycle.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusRunning    Status = "RUNNING"
	StatusPaused     Status = "PAUSED"
	StatusOver       Status = "OVER"
)

// Ball is the observable state of one ball. X and Y are its centre.
type Ball struct {
	ID        physics.BallID `json:"id" msgpack:"id"`
	X         float64        `json:"x" msgpack:"x"`
	Y         float64        `json:"y" msgpack:"y"`
	Width     float64        `json:"width" msgpack:"w"`
	Height    float64        `json:"height" msgpack:"h"`
	DX        float64        `json:"dx" msgpack:"dx"`
	DY        float64        `json:"dy" msgpack:"dy"`
	Resetting bool           `json:"resetting" msgpack:"r"`
}

// Speed returns the magnitude of the ball's velocity.
func (b Ball) Speed() float64 {
	return physics.NewVec2(b.DX, b.DY).Magnitude()
}

// Paddle is the observable state of one paddle. X and Y are its top-left corner.
type Paddle struct {
	Side        string  `json:"side" msgpack:"side"`
	X           float64 `json:"x" msgpack:"x"`
	Y           float64 `json:"y" msgpack:"y"`
	Width       float64 `json:"width" msgpack:"w"`
	Height      float64 `json:"height" msgpack:"h"`
	ControlMode string  `json:"controlMode" msgpack:"mode"`
}

// Score counts goals. Player1 is the left paddle.
type Score struct {
	Player1 int `json:"player1" msgpack:"p1"`
	Player2 int `json:"player2" msgpack:"p2"`
}

// Points is the rally score earned by paddle hits.
type Points struct {
	Player1 int `json:"player1" msgpack:"p1"`
	Player2 int `json:"player2" msgpack:"p2"`
}

// SimulationState is everything a renderer needs to draw a frame.
type SimulationState struct {
	Status       Status    `json:"status" msgpack:"st"`
	Started      bool      `json:"started" msgpack:"started"`
	Paused       bool      `json:"paused" msgpack:"paused"`
	Over         bool      `json:"over" msgpack:"over"`
	Balls        []Ball    `json:"balls" msgpack:"balls"`
	Paddles      [2]Paddle `json:"paddles" msgpack:"paddles"`
	Score        Score     `json:"score" msgpack:"score"`
	Points       Points    `json:"points" msgpack:"points"`
	Winner       string    `json:"winner,omitempty" msgpack:"winner,omitempty"`
	WorldVersion uint64    `json:"worldVersion" msgpack:"ver"`
	Tick         uint64    `json:"tick" msgpack:"tick"`
	FPS          float64   `json:"fps" msgpack:"fps"`
	Width        float64   `json:"width" msgpack:"cw"`
	Height       float64   `json:"height" msgpack:"ch"`
}

// EventType names something that happened during a tick.
type EventType string

const (
	EventPaddleHit EventType = "paddle_hit"
	EventWallHit   EventType = "wall_hit"
	EventMiss      EventType = "miss"
	EventGameOver  EventType = "game_over"
	EventLagSpike  EventType = "lag_spike"
)

// Event is emitted by the simulation and drained by its runner.
type Event struct {
	Type   EventType      `json:"type"`
	Side   string         `json:"side,omitempty"`
	Ball   physics.BallID `json:"ball"`
	Points int            `json:"points,omitempty"`
	Speed  float64        `json:"speed,omitempty"`
	Score  Score          `json:"score"`
	FPS    float64        `json:"fps,omitempty"`
}
