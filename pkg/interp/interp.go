// Package interp provides the interpolation functions used to move between
// keyframes and to blend one expression into the next.
//
// Every function is pure: the same inputs always give the same keyframe.
package interp

import (
	"strings"

	"honnef.co/go/curve"

	"github.com/teslashibe/go-reachy-face/pkg/geom"
)

// Func interpolates from start to end at progress t in [0,1].
type Func func(start, end geom.Keyframe, t float64) geom.Keyframe

// Mode names a built-in interpolation.
type Mode int

const (
	// ModeLinear blends at constant speed.
	ModeLinear Mode = iota
	// ModeEaseIn starts slow and accelerates (t²).
	ModeEaseIn
	// ModeEaseOut starts fast and decelerates (1-(1-t)²).
	ModeEaseOut
	// ModeEaseInOut is smoothstep (t²(3-2t)).
	ModeEaseInOut
	// ModeCubicBezier is a cubic Bézier whose control points sit on the endpoints.
	ModeCubicBezier
)

// String returns the canonical name used in expression files and events.
func (m Mode) String() string {
	switch m {
	case ModeLinear:
		return "linear"
	case ModeEaseIn:
		return "ease-in"
	case ModeEaseOut:
		return "ease-out"
	case ModeEaseInOut:
		return "ease-in-out"
	case ModeCubicBezier:
		return "cubic-bezier"
	default:
		return "unknown"
	}
}

// Func returns the interpolation function for m. Unknown modes are linear.
func (m Mode) Func() Func {
	switch m {
	case ModeEaseIn:
		return EaseIn
	case ModeEaseOut:
		return EaseOut
	case ModeEaseInOut:
		return EaseInOut
	case ModeCubicBezier:
		return bezierOnEndpoints
	default:
		return Linear
	}
}

// Parse resolves a mode name. Underscores and case are ignored, so both
// "ease_in_out" and "Ease-In-Out" are accepted. The second result is false
// for unknown names, in which case ModeLinear is returned.
func Parse(name string) (Mode, bool) {
	n := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-"))
	switch n {
	case "linear", "":
		return ModeLinear, true
	case "ease-in":
		return ModeEaseIn, true
	case "ease-out":
		return ModeEaseOut, true
	case "ease-in-out", "smoothstep":
		return ModeEaseInOut, true
	case "cubic-bezier", "bezier":
		return ModeCubicBezier, true
	default:
		return ModeLinear, false
	}
}

// Lookup is Parse without the ok flag: unknown names degrade to linear.
func Lookup(name string) Func {
	m, _ := Parse(name)
	return m.Func()
}

// Linear blends componentwise: (1-t)*start + t*end.
func Linear(start, end geom.Keyframe, t float64) geom.Keyframe {
	return geom.Blend(start, end, t)
}

// EaseIn remaps t to t² before blending.
func EaseIn(start, end geom.Keyframe, t float64) geom.Keyframe {
	return geom.Blend(start, end, t*t)
}

// EaseOut remaps t to 1-(1-t)² before blending.
func EaseOut(start, end geom.Keyframe, t float64) geom.Keyframe {
	u := 1 - t
	return geom.Blend(start, end, 1-u*u)
}

// EaseInOut remaps t to t²(3-2t) before blending.
func EaseInOut(start, end geom.Keyframe, t float64) geom.Keyframe {
	return geom.Blend(start, end, t*t*(3-2*t))
}

// CubicBezier evaluates the cubic Bézier through start, p1, p2, end at t,
// independently for every point:
//
//	(1-t)³·start + 3(1-t)²t·p1 + 3(1-t)t²·p2 + t³·end
func CubicBezier(start, end, p1, p2 geom.Keyframe, t float64) geom.Keyframe {
	var out geom.Keyframe
	for i := range out {
		c := curve.CubicBez{
			P0: curve.Pt(start[i].X, start[i].Y),
			P1: curve.Pt(p1[i].X, p1[i].Y),
			P2: curve.Pt(p2[i].X, p2[i].Y),
			P3: curve.Pt(end[i].X, end[i].Y),
		}
		p := c.Eval(t)
		out[i] = geom.Point{X: p.X, Y: p.Y}
	}
	return out
}

// Bezier returns a Func that uses fixed control keyframes p1 and p2.
func Bezier(p1, p2 geom.Keyframe) Func {
	return func(start, end geom.Keyframe, t float64) geom.Keyframe {
		return CubicBezier(start, end, p1, p2, t)
	}
}

// bezierOnEndpoints uses p1=start and p2=end, which traces the smoothstep
// curve along the straight line between the keyframes.
func bezierOnEndpoints(start, end geom.Keyframe, t float64) geom.Keyframe {
	return CubicBezier(start, end, start, end, t)
}

// Clamp01 restricts t to [0,1].
func Clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
