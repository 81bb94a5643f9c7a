package expression

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-reachy-face/internal/log"
	"github.com/teslashibe/go-reachy-face/pkg/geom"
	"github.com/teslashibe/go-reachy-face/pkg/interp"
)

//go:embed data/*.json
var embeddedExpressions embed.FS

// File is the on-disk form of a Definition, shared by JSON and YAML.
// Durations are in seconds. Omitted fields take the package defaults.
type File struct {
	ID                   string         `json:"id" yaml:"id"`
	Label                string         `json:"label,omitempty" yaml:"label,omitempty"`
	Description          string         `json:"description,omitempty" yaml:"description,omitempty"`
	Duration             *float64       `json:"duration,omitempty" yaml:"duration,omitempty"`
	TransitionDuration   *float64       `json:"transition_duration,omitempty" yaml:"transition_duration,omitempty"`
	Interpolation        string         `json:"interpolation,omitempty" yaml:"interpolation,omitempty"`
	Sticky               bool           `json:"sticky,omitempty" yaml:"sticky,omitempty"`
	Position             []float64      `json:"position,omitempty" yaml:"position,omitempty"`
	Scale                *float64       `json:"scale,omitempty" yaml:"scale,omitempty"`
	SegmentInterpolation map[int]string `json:"segment_interpolation,omitempty" yaml:"segment_interpolation,omitempty"`
	Keyframes            [][][]float64  `json:"keyframes" yaml:"keyframes"`
}

// Definition converts f, rejecting malformed keyframes. Unknown
// interpolation names degrade to linear and are logged.
func (f File) Definition() (*Definition, error) {
	keyframes := make([]geom.Keyframe, 0, len(f.Keyframes))
	for i, pairs := range f.Keyframes {
		kf, ok := geom.FromPairs(pairs)
		if !ok {
			return nil, invalid(ErrPointCount, fmt.Sprintf("%s: keyframe %d has %d points", f.ID, i, len(pairs)))
		}
		keyframes = append(keyframes, kf)
	}

	label := f.Label
	if label == "" {
		label = f.ID
	}

	opts := []Option{
		WithDescription(f.Description),
		WithSticky(f.Sticky),
		WithInterpolation(parseMode(f.ID, f.Interpolation)),
	}
	if f.Duration != nil {
		opts = append(opts, WithDuration(Seconds(*f.Duration)))
	}
	if f.TransitionDuration != nil {
		opts = append(opts, WithTransition(Seconds(*f.TransitionDuration)))
	}
	if f.Scale != nil {
		opts = append(opts, WithScale(*f.Scale))
	}
	switch len(f.Position) {
	case 0:
	case 2:
		opts = append(opts, WithPosition(f.Position[0], f.Position[1]))
	default:
		return nil, invalid(ErrInvalidPosition, fmt.Sprintf("%s: position needs 2 values, got %d", f.ID, len(f.Position)))
	}
	for seg, name := range f.SegmentInterpolation {
		opts = append(opts, WithSegmentMode(seg, parseMode(f.ID, name)))
	}

	return New(f.ID, label, keyframes, opts...)
}

func parseMode(id, name string) interp.Mode {
	m, ok := interp.Parse(name)
	if !ok {
		log.Warn("unknown interpolation, using linear", "expression", id, "interpolation", name)
	}
	return m
}

// File returns the on-disk form of d. Custom segment functions are written
// by name.
func (d *Definition) File() File {
	dur := d.duration.Seconds()
	trans := d.transition.Seconds()
	scale := d.scale
	f := File{
		ID:                 d.id,
		Label:              d.label,
		Description:        d.description,
		Duration:           &dur,
		TransitionDuration: &trans,
		Interpolation:      d.mode.String(),
		Sticky:             d.sticky,
		Scale:              &scale,
	}
	if d.position != (geom.Point{}) {
		f.Position = []float64{d.position.X, d.position.Y}
	}
	if len(d.segments) > 0 {
		f.SegmentInterpolation = make(map[int]string, len(d.segments))
		for seg, o := range d.segments {
			f.SegmentInterpolation[seg] = o.Name
		}
	}
	for _, kf := range d.keyframes {
		f.Keyframes = append(f.Keyframes, kf.Pairs())
	}
	return f
}

// ParseJSON parses a JSON expression file. fallbackID is used when the file
// has no id.
func ParseJSON(fallbackID string, data []byte) (*Definition, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse expression JSON: %w", err)
	}
	if f.ID == "" {
		f.ID = fallbackID
	}
	return f.Definition()
}

// ParseYAML parses a YAML expression file. fallbackID is used when the file
// has no id.
func ParseYAML(fallbackID string, data []byte) (*Definition, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse expression YAML: %w", err)
	}
	if f.ID == "" {
		f.ID = fallbackID
	}
	return f.Definition()
}

// supportedExt lists the file extensions LoadDirectory picks up.
var supportedExt = []string{".json", ".yaml", ".yml"}

// IsExpressionFile reports whether path has an expression file extension.
func IsExpressionFile(path string) bool {
	return slices.Contains(supportedExt, strings.ToLower(filepath.Ext(path)))
}

// LoadFile loads an expression from a JSON or YAML file on disk.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read expression file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	switch ext {
	case ".json":
		return ParseJSON(name, data)
	case ".yaml", ".yml":
		return ParseYAML(name, data)
	default:
		return nil, fmt.Errorf("unsupported expression file %q", path)
	}
}

// LoadDirectory loads every expression file in dir.
func LoadDirectory(dir string) ([]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list expression files: %w", err)
	}

	var defs []*Definition
	for _, entry := range entries {
		if entry.IsDir() || !IsExpressionFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		def, err := LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadEmbedded loads a built-in expression by id.
func LoadEmbedded(id string) (*Definition, error) {
	data, err := embeddedExpressions.ReadFile("data/" + id + ".json")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ParseJSON(id, data)
}

// ListEmbedded returns the ids of all built-in expressions.
func ListEmbedded() ([]string, error) {
	entries, err := embeddedExpressions.ReadDir("data")
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded expressions: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}
	return ids, nil
}
