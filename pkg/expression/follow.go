package expression

// Face-follow tuning: offsets are damped to a quarter screen and the scale
// stays within a range that still reads as the same face.
const (
	followOffsetDamping = 4.0
	followMinScale      = 0.7
	followMaxScale      = 1.1
)

// FollowOffset maps a tracked face to a position offset and scale.
// cx and cy are the face center in normalized camera coordinates; area is
// the normalized bounding box area, used as a proxy for distance.
func FollowOffset(cx, cy, area float64) (x, y, scale float64) {
	x = clampRange((cx-0.5)*2, -1, 1) / followOffsetDamping
	y = clampRange((cy-0.5)*2, -1, 1) / followOffsetDamping
	scale = clampRange(1+(0.5-area), followMinScale, followMaxScale)
	return x, y, scale
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
