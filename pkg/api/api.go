// Package api holds the JSON bodies exchanged with the face server's
// /api routes, shared by the server and its clients.
package api

import (
	"github.com/google/uuid"

	"github.com/teslashibe/go-reachy-face/pkg/engine"
	"github.com/teslashibe/go-reachy-face/pkg/expression"
)

// Status is returned by GET /api/status.
type Status struct {
	Engine       engine.Status `json:"engine"`
	Idle         bool          `json:"idle"`
	Expressions  int           `json:"expressions"`
	FrameClients int           `json:"frame_clients"`
	EventClients int           `json:"event_clients"`
}

// PlayRequest is the body of POST /api/expressions/:id. Nil fields keep
// the registered expression's values. Durations are in seconds.
type PlayRequest struct {
	Force              bool        `json:"force"`
	Duration           *float64    `json:"duration,omitempty"`
	TransitionDuration *float64    `json:"transition_duration,omitempty"`
	Interpolation      *string     `json:"interpolation,omitempty"`
	Sticky             *bool       `json:"sticky,omitempty"`
	Position           *[2]float64 `json:"position,omitempty"`
	Scale              *float64    `json:"scale,omitempty"`
}

// PlayResponse acknowledges a queued or forced expression.
type PlayResponse struct {
	RequestID  uuid.UUID       `json:"request_id"`
	Expression expression.Info `json:"expression"`
	Forced     bool            `json:"forced"`
}

// FollowRequest is the body of POST /api/follow. CX, CY and Area describe
// a tracked face in normalized camera coordinates.
type FollowRequest struct {
	CX         float64 `json:"cx"`
	CY         float64 `json:"cy"`
	Area       float64 `json:"area"`
	Expression string  `json:"expression,omitempty"`
	Force      bool    `json:"force"`
}

// Idle is the body of PUT /api/idle and the reply of GET /api/idle.
type Idle struct {
	Enabled bool `json:"enabled"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Error string `json:"error"`
}
