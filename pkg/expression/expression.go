// Package expression describes the animated eye poses shown on the face
// display.
//
// A Definition is immutable once built: one or more 24-point keyframes, the
// time it is held on screen, the time it takes to blend in, how its keyframes
// are interpolated, whether it sticks until replaced, and an optional
// position offset and scale. Invalid definitions are rejected by New, never
// at render time.
package expression

import (
	"fmt"
	"maps"
	"math"
	"time"

	"github.com/teslashibe/go-reachy-face/pkg/geom"
	"github.com/teslashibe/go-reachy-face/pkg/interp"
)

// Defaults applied by New before any Option.
const (
	DefaultDuration           = 1 * time.Second
	DefaultTransitionDuration = 200 * time.Millisecond
	DefaultInterpolation      = interp.ModeLinear
	DefaultScale              = 1.0
)

// SegmentOverride replaces the expression's interpolation between keyframe
// i and i+1.
type SegmentOverride struct {
	Name string
	Func interp.Func
}

// Definition is one animated facial pose.
type Definition struct {
	id          string
	label       string
	description string
	keyframes   []geom.Keyframe

	duration   time.Duration
	transition time.Duration
	mode       interp.Mode
	sticky     bool

	position geom.Point
	scale    float64

	segments map[int]SegmentOverride
}

// Info is the serializable summary of a Definition, carried by engine events.
// Durations are in seconds.
type Info struct {
	ID                 string  `json:"id"`
	Label              string  `json:"label"`
	Duration           float64 `json:"duration"`
	TransitionDuration float64 `json:"transition_duration"`
	Interpolation      string  `json:"interpolation"`
	Sticky             bool    `json:"sticky"`
}

// Option customizes a Definition during construction.
type Option func(*Definition)

// WithDescription sets a human-readable description.
func WithDescription(s string) Option {
	return func(d *Definition) { d.description = s }
}

// WithDuration sets how long the fully rendered pose is held.
func WithDuration(dur time.Duration) Option {
	return func(d *Definition) { d.duration = dur }
}

// WithTransition sets how long it takes to blend into this pose.
func WithTransition(dur time.Duration) Option {
	return func(d *Definition) { d.transition = dur }
}

// WithInterpolation sets the default keyframe interpolation.
func WithInterpolation(m interp.Mode) Option {
	return func(d *Definition) { d.mode = m }
}

// WithSticky marks the pose as persisting until explicitly replaced.
func WithSticky(sticky bool) Option {
	return func(d *Definition) { d.sticky = sticky }
}

// WithPosition offsets the pose in normalized screen units.
func WithPosition(x, y float64) Option {
	return func(d *Definition) { d.position = geom.Point{X: x, Y: y} }
}

// WithScale scales the pose around its centroid.
func WithScale(s float64) Option {
	return func(d *Definition) { d.scale = s }
}

// WithSegmentMode overrides the interpolation of one keyframe segment.
func WithSegmentMode(segment int, m interp.Mode) Option {
	return WithSegmentFunc(segment, m.String(), m.Func())
}

// WithSegmentFunc overrides one keyframe segment with a custom function.
func WithSegmentFunc(segment int, name string, fn interp.Func) Option {
	return func(d *Definition) {
		if d.segments == nil {
			d.segments = make(map[int]SegmentOverride)
		}
		d.segments[segment] = SegmentOverride{Name: name, Func: fn}
	}
}

// New builds and validates a Definition.
func New(id, label string, keyframes []geom.Keyframe, opts ...Option) (*Definition, error) {
	d := &Definition{
		id:         id,
		label:      label,
		keyframes:  append([]geom.Keyframe(nil), keyframes...),
		duration:   DefaultDuration,
		transition: DefaultTransitionDuration,
		mode:       DefaultInterpolation,
		scale:      DefaultScale,
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// With returns a copy of d with opts applied, validated like New.
func (d *Definition) With(opts ...Option) (*Definition, error) {
	cp := *d
	cp.segments = maps.Clone(d.segments)
	for _, opt := range opts {
		opt(&cp)
	}
	if err := cp.validate(); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (d *Definition) validate() error {
	if d.id == "" {
		return invalid(ErrMissingID, "")
	}
	if len(d.keyframes) == 0 {
		return invalid(ErrNoKeyframes, d.id)
	}
	for i, kf := range d.keyframes {
		for j, p := range kf {
			if !inUnit(p.X) || !inUnit(p.Y) {
				return invalid(ErrPointOutOfRange, fmt.Sprintf("%s: keyframe %d point %d (%v, %v)", d.id, i, j, p.X, p.Y))
			}
		}
	}
	if d.duration < 0 || d.transition < 0 {
		return invalid(ErrNegativeDuration, fmt.Sprintf("%s: duration=%v transition=%v", d.id, d.duration, d.transition))
	}
	if !(d.scale > 0) || math.IsInf(d.scale, 0) {
		return invalid(ErrInvalidScale, fmt.Sprintf("%s: scale=%v", d.id, d.scale))
	}
	if !finite(d.position.X) || !finite(d.position.Y) {
		return invalid(ErrInvalidPosition, d.id)
	}
	for seg, o := range d.segments {
		if seg < 0 || seg > len(d.keyframes)-2 || o.Func == nil {
			return invalid(ErrInvalidSegment, fmt.Sprintf("%s: segment %d with %d keyframes", d.id, seg, len(d.keyframes)))
		}
	}
	return nil
}

func invalid(reason error, detail string) error {
	if detail == "" {
		return fmt.Errorf("%w: %w", ErrInvalidExpression, reason)
	}
	return fmt.Errorf("%w: %w: %s", ErrInvalidExpression, reason, detail)
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// ID returns the expression identifier, e.g. "neutral".
func (d *Definition) ID() string { return d.id }

// Label returns the display name.
func (d *Definition) Label() string { return d.label }

// Description returns the free-form description, possibly empty.
func (d *Definition) Description() string { return d.description }

// Duration returns how long the rendered pose is held before it may be replaced.
func (d *Definition) Duration() time.Duration { return d.duration }

// TransitionDuration returns how long blending into this pose takes.
func (d *Definition) TransitionDuration() time.Duration { return d.transition }

// Interpolation returns the default interpolation mode.
func (d *Definition) Interpolation() interp.Mode { return d.mode }

// Sticky reports whether the pose is never auto-replaced by the fallback.
func (d *Definition) Sticky() bool { return d.sticky }

// Position returns the normalized position offset.
func (d *Definition) Position() geom.Point { return d.position }

// Scale returns the scale factor.
func (d *Definition) Scale() float64 { return d.scale }

// Keyframes returns a copy of the keyframes.
func (d *Definition) Keyframes() []geom.Keyframe {
	return append([]geom.Keyframe(nil), d.keyframes...)
}

// Info summarizes d for events and APIs.
func (d *Definition) Info() Info {
	return Info{
		ID:                 d.id,
		Label:              d.label,
		Duration:           d.duration.Seconds(),
		TransitionDuration: d.transition.Seconds(),
		Interpolation:      d.mode.String(),
		Sticky:             d.sticky,
	}
}

// Seconds converts fractional seconds, as used in expression files, to a Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
