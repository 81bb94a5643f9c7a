package expression

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-reachy-face/pkg/geom"
	"github.com/teslashibe/go-reachy-face/pkg/interp"
)

// squareFile returns an expression file body with one square keyframe.
func squareFile(t *testing.T, id string, extra map[string]any) []byte {
	t.Helper()
	body := map[string]any{
		"id":        id,
		"keyframes": [][][]float64{square(0.2, 0.2, 0.3).Pairs()},
	}
	for k, v := range extra {
		body[k] = v
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return data
}

func TestParseJSON(t *testing.T) {
	data := squareFile(t, "wink", map[string]any{
		"label":               "Wink",
		"duration":            0.5,
		"transition_duration": 0,
		"interpolation":       "ease_in_out",
		"sticky":              true,
		"position":            []float64{0.1, -0.1},
		"scale":               0.8,
	})

	d, err := ParseJSON("fallback", data)
	require.NoError(t, err)

	assert.Equal(t, "wink", d.ID())
	assert.Equal(t, "Wink", d.Label())
	assert.Equal(t, 500*time.Millisecond, d.Duration())
	assert.Equal(t, time.Duration(0), d.TransitionDuration())
	assert.Equal(t, interp.ModeEaseInOut, d.Interpolation())
	assert.True(t, d.Sticky())
	assert.Equal(t, geom.Point{X: 0.1, Y: -0.1}, d.Position())
	assert.Equal(t, 0.8, d.Scale())
}

func TestParseJSON_Defaults(t *testing.T) {
	data := squareFile(t, "", nil)

	d, err := ParseJSON("fallback", data)
	require.NoError(t, err)

	assert.Equal(t, "fallback", d.ID())
	assert.Equal(t, "fallback", d.Label())
	assert.Equal(t, DefaultDuration, d.Duration())
	assert.Equal(t, DefaultTransitionDuration, d.TransitionDuration())
	assert.Equal(t, DefaultInterpolation, d.Interpolation())
}

func TestParseJSON_UnknownInterpolationFallsBackToLinear(t *testing.T) {
	data := squareFile(t, "x", map[string]any{"interpolation": "bouncy"})

	d, err := ParseJSON("x", data)
	require.NoError(t, err)
	assert.Equal(t, interp.ModeLinear, d.Interpolation())
}

func TestParseJSON_Errors(t *testing.T) {
	short := square(0.2, 0.2, 0.3).Pairs()[:23]

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"wrong point count", squareFile(t, "x", map[string]any{"keyframes": [][][]float64{short}}), ErrPointCount},
		{"empty keyframes", squareFile(t, "x", map[string]any{"keyframes": [][][]float64{}}), ErrNoKeyframes},
		{"bad position", squareFile(t, "x", map[string]any{"position": []float64{1}}), ErrInvalidPosition},
		{"negative duration", squareFile(t, "x", map[string]any{"duration": -1}), ErrNegativeDuration},
		{"bad segment", squareFile(t, "x", map[string]any{"segment_interpolation": map[string]string{"0": "ease-in"}}), ErrInvalidSegment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON("x", tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := ParseJSON("x", []byte("{"))
	assert.Error(t, err)
}

func TestParseYAML(t *testing.T) {
	src := must(t)(Happy()).File()
	src.ID = "happy2"
	src.SegmentInterpolation = nil
	data, err := yaml.Marshal(src)
	require.NoError(t, err)

	d, err := ParseYAML("ignored", data)
	require.NoError(t, err)
	assert.Equal(t, "happy2", d.ID())
	assert.Equal(t, "Happy", d.Label())
	assert.True(t, geom.Equal(d.Normalized(1), must(t)(Happy()).Normalized(1), 1e-12))
}

func TestDefinition_FileRoundTrip(t *testing.T) {
	d, err := New("x", "X", []geom.Keyframe{square(0.1, 0.1, 0.2), square(0.3, 0.3, 0.2)},
		WithInterpolation(interp.ModeEaseOut),
		WithSegmentMode(0, interp.ModeEaseIn),
		WithPosition(0.1, 0.2),
		WithScale(0.5))
	require.NoError(t, err)

	back, err := d.File().Definition()
	require.NoError(t, err)

	assert.Equal(t, d.Info(), back.Info())
	assert.Equal(t, d.Position(), back.Position())
	for _, tt := range []float64{0, 0.3, 0.7, 1} {
		assert.True(t, geom.Equal(d.Normalized(tt), back.Normalized(tt), 1e-12), "t=%v", tt)
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.json"), squareFile(t, "", nil), 0o644))

	yamlBody := "id: two\nlabel: Two\nkeyframes:\n  - [" +
		strings.TrimSuffix(strings.Repeat("[0.5, 0.5], ", geom.PointCount), ", ") + "]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.yml"), []byte(yamlBody), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644))

	defs, err := LoadDirectory(dir)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	ids := []string{defs[0].ID(), defs[1].ID()}
	assert.ElementsMatch(t, []string{"one", "two"}, ids)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))
	_, err = LoadDirectory(dir)
	assert.Error(t, err)
}

func TestEmbeddedPresets(t *testing.T) {
	ids, err := ListEmbedded()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{IDNeutral, IDHappy, IDSad, IDAngry, IDSurprised, IDSleepy, IDBlink}, ids)

	for _, id := range ids {
		d, err := Preset(id)
		require.NoError(t, err, id)
		for _, kf := range d.Keyframes() {
			assert.True(t, kf.Bounds().Within(0, 1, 0), id)
		}
	}

	n := must(t)(Neutral())
	assert.True(t, n.Sticky())
	assert.Equal(t, 200*time.Millisecond, n.TransitionDuration())

	b := must(t)(Blink())
	assert.Equal(t, 100*time.Millisecond, b.Duration())
	assert.Equal(t, 50*time.Millisecond, b.TransitionDuration())
	assert.Equal(t, interp.ModeEaseInOut, b.Interpolation())

	_, err = Preset("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPreset_ReturnsIndependentCopies(t *testing.T) {
	a := must(t)(Happy(WithSticky(true), WithScale(0.5)))
	b := must(t)(Happy())

	assert.True(t, a.Sticky())
	assert.False(t, b.Sticky())
	assert.Equal(t, 1.0, b.Scale())
}

func TestIsExpressionFile(t *testing.T) {
	assert.True(t, IsExpressionFile("a.json"))
	assert.True(t, IsExpressionFile("dir/a.YAML"))
	assert.True(t, IsExpressionFile("a.yml"))
	assert.False(t, IsExpressionFile("a.txt"))
	assert.False(t, IsExpressionFile("json"))
}

// must unwraps a constructor result inside a test.
func must(t *testing.T) func(*Definition, error) *Definition {
	return func(d *Definition, err error) *Definition {
		t.Helper()
		require.NoError(t, err)
		return d
	}
}
