package expression

import "errors"

var (
	// ErrInvalidExpression wraps every construction-time validation failure.
	ErrInvalidExpression = errors.New("invalid expression")

	// ErrMissingID is returned when an expression has no identifier.
	ErrMissingID = errors.New("expression id is required")

	// ErrNoKeyframes is returned when an expression has no keyframes.
	ErrNoKeyframes = errors.New("expression has no keyframes")

	// ErrPointCount is returned when a keyframe does not have 24 points.
	ErrPointCount = errors.New("keyframe must have exactly 24 points")

	// ErrPointOutOfRange is returned when a keyframe point lies outside [0,1].
	ErrPointOutOfRange = errors.New("keyframe point outside the unit square")

	// ErrNegativeDuration is returned for negative or non-finite durations.
	ErrNegativeDuration = errors.New("duration must be non-negative")

	// ErrInvalidScale is returned when scale is not a positive finite number.
	ErrInvalidScale = errors.New("scale must be positive")

	// ErrInvalidPosition is returned when the position offset is not finite.
	ErrInvalidPosition = errors.New("position must be finite")

	// ErrInvalidSegment is returned when a segment interpolation override
	// targets a segment the expression does not have.
	ErrInvalidSegment = errors.New("segment index out of range")

	// ErrNotFound is returned when an expression is not registered.
	ErrNotFound = errors.New("expression not found")
)
