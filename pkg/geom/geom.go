// Package geom holds the 2-D point types shared by the face engine.
//
// Coordinates are normalized to [0,1]x[0,1] until an expression is rendered
// to a screen, after which they are pixels.
package geom

import (
	"math"

	"honnef.co/go/curve"
)

// PointsPerEye is the number of outline points describing a single eye.
const PointsPerEye = 12

// PointCount is the number of points in every keyframe (two eyes).
const PointCount = 2 * PointsPerEye

// Point is a 2-D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

func (p Point) toCurve() curve.Point { return curve.Pt(p.X, p.Y) }

func (p Point) vec() curve.Vec2 { return curve.Vec(p.X, p.Y) }

func fromCurve(p curve.Point) Point { return Point{X: p.X, Y: p.Y} }

// Keyframe is one snapshot of both eye outlines.
// Indices [0,12) are the left eye polygon, [12,24) the right eye.
type Keyframe [PointCount]Point

// LeftEye returns the left eye outline.
func (k Keyframe) LeftEye() []Point {
	return k[:PointsPerEye]
}

// RightEye returns the right eye outline.
func (k Keyframe) RightEye() []Point {
	return k[PointsPerEye:]
}

// Box is an axis-aligned bounding box.
type Box struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Width returns the horizontal extent.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Within reports whether b lies inside [lo,hi] on both axes, with tolerance eps.
func (b Box) Within(lo, hi, eps float64) bool {
	return b.MinX >= lo-eps && b.MinY >= lo-eps && b.MaxX <= hi+eps && b.MaxY <= hi+eps
}

// Bounds returns the bounding box of the keyframe.
func (k Keyframe) Bounds() Box {
	r := pointRect(k[0])
	for _, p := range k[1:] {
		r = r.Union(pointRect(p))
	}
	return Box{MinX: r.X0, MinY: r.Y0, MaxX: r.X1, MaxY: r.Y1}
}

func pointRect(p Point) curve.Rect {
	return curve.Rect{X0: p.X, Y0: p.Y, X1: p.X, Y1: p.Y}
}

// Centroid returns the mean of all points.
func (k Keyframe) Centroid() Point {
	var c Point
	for _, p := range k {
		c.X += p.X
		c.Y += p.Y
	}
	c.X /= PointCount
	c.Y /= PointCount
	return c
}

// Transform applies aff to every point of k.
func (k Keyframe) Transform(aff curve.Affine) Keyframe {
	for i, p := range k {
		k[i] = fromCurve(p.toCurve().Transform(aff))
	}
	return k
}

// Translate returns k shifted by d.
func (k Keyframe) Translate(d Point) Keyframe {
	return k.Transform(curve.Translate(d.vec()))
}

// ScaleAbout scales k by s around center c.
func (k Keyframe) ScaleAbout(c Point, s float64) Keyframe {
	k = k.Transform(curve.Translate(curve.Vec(-c.X, -c.Y)))
	k = k.Transform(curve.Scale(s, s))
	return k.Transform(curve.Translate(c.vec()))
}

// ToScreen maps normalized coordinates to a width x height pixel space.
func (k Keyframe) ToScreen(width, height float64) Keyframe {
	return k.Transform(curve.Scale(width, height))
}

// Blend returns a*(1-t) + b*t componentwise.
func Blend(a, b Keyframe, t float64) Keyframe {
	var out Keyframe
	u := 1 - t
	for i := range out {
		out[i] = Point{
			X: a[i].X*u + b[i].X*t,
			Y: a[i].Y*u + b[i].Y*t,
		}
	}
	return out
}

// Equal reports whether a and b match within eps on every coordinate.
func Equal(a, b Keyframe, eps float64) bool {
	for i := range a {
		if math.Abs(a[i].X-b[i].X) > eps || math.Abs(a[i].Y-b[i].Y) > eps {
			return false
		}
	}
	return true
}

// FromPairs builds a keyframe from [x,y] pairs, as found in expression files.
// It reports false when the pair count is not PointCount or a pair is malformed.
func FromPairs(pairs [][]float64) (Keyframe, bool) {
	var k Keyframe
	if len(pairs) != PointCount {
		return k, false
	}
	for i, p := range pairs {
		if len(p) != 2 {
			return k, false
		}
		k[i] = Point{X: p[0], Y: p[1]}
	}
	return k, true
}

// Pairs is the inverse of FromPairs.
func (k Keyframe) Pairs() [][]float64 {
	out := make([][]float64, len(k))
	for i, p := range k {
		out[i] = []float64{p.X, p.Y}
	}
	return out
}
