package expression

import "github.com/teslashibe/go-reachy-face/pkg/geom"

// Normalize applies a position offset and a scale to a normalized keyframe
// while keeping the whole shape inside [0,1]x[0,1].
//
// The offset is applied first, then the shape is shifted back by the minimum
// amount needed to bring every edge on screen. Scaling happens around the
// centroid; the factor is reduced just enough for width and height to fit,
// which keeps the aspect ratio. Points are never dropped or clamped
// individually, so the eyes stay undistorted.
func Normalize(k geom.Keyframe, position geom.Point, scale float64) geom.Keyframe {
	k = k.Translate(position)
	k = k.Translate(containShift(k.Bounds()))

	if scale != 1 {
		b := k.Bounds()
		s := scale
		if w := b.Width(); w*s > 1 {
			s = 1 / w
		}
		if h := b.Height(); h*s > 1 {
			s = 1 / h
		}
		k = k.ScaleAbout(k.Centroid(), s)
		k = k.Translate(containShift(k.Bounds()))
	}

	return snapToUnit(k)
}

// containShift returns the smallest translation moving b inside the unit
// square. Each axis is solved on its own; a box wider than the screen is
// pinned to the low edge.
func containShift(b geom.Box) geom.Point {
	return geom.Point{
		X: axisShift(b.MinX, b.MaxX),
		Y: axisShift(b.MinY, b.MaxY),
	}
}

func axisShift(lo, hi float64) float64 {
	switch {
	case hi-lo >= 1:
		return -lo
	case lo < 0:
		return -lo
	case hi > 1:
		return 1 - hi
	default:
		return 0
	}
}

// snapToUnit removes floating error left over from the shifts above.
func snapToUnit(k geom.Keyframe) geom.Keyframe {
	for i, p := range k {
		k[i] = geom.Point{X: clamp01(p.X), Y: clamp01(p.Y)}
	}
	return k
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
