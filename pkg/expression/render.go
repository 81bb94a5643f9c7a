package expression

import (
	"math"

	"github.com/teslashibe/go-reachy-face/pkg/geom"
	"github.com/teslashibe/go-reachy-face/pkg/interp"
)

// Segment returns the keyframe segment and local progress for t in [0,1].
// With n keyframes the segment is min(floor(t*(n-1)), n-2) and local is
// t*(n-1) minus the segment. At t=1 this gives segment n-2 with local 1, so
// the last keyframe is reached; taking (t*(n-1)) mod 1 instead would wrap
// local to 0 and show keyframe n-2. Single-keyframe expressions always
// report segment 0 with local progress 0.
func (d *Definition) Segment(t float64) (segment int, local float64) {
	n := len(d.keyframes)
	if n < 2 {
		return 0, 0
	}
	pos := interp.Clamp01(t) * float64(n-1)
	segment = min(int(math.Floor(pos)), n-2)
	return segment, pos - float64(segment)
}

// segmentFunc returns the interpolator for one segment.
func (d *Definition) segmentFunc(segment int) interp.Func {
	if o, ok := d.segments[segment]; ok {
		return o.Func
	}
	return d.mode.Func()
}

// Normalized returns the pose at progress t through the keyframes, after
// position and scale correction, in [0,1] coordinates.
func (d *Definition) Normalized(t float64) geom.Keyframe {
	var k geom.Keyframe
	if len(d.keyframes) == 1 {
		k = d.keyframes[0]
	} else {
		seg, local := d.Segment(t)
		k = d.segmentFunc(seg)(d.keyframes[seg], d.keyframes[seg+1], local)
	}
	return Normalize(k, d.position, d.scale)
}

// RenderPoints returns the pose at progress t in pixel coordinates for a
// screen of the given size.
func (d *Definition) RenderPoints(t float64, screenW, screenH float64) geom.Keyframe {
	return d.Normalized(t).ToScreen(screenW, screenH)
}
