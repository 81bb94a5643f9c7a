package expression

import (
	"fmt"
	"sync"
)

// Built-in expression ids.
const (
	IDNeutral   = "neutral"
	IDHappy     = "happy"
	IDSad       = "sad"
	IDAngry     = "angry"
	IDSurprised = "surprised"
	IDSleepy    = "sleepy"
	IDBlink     = "blink"
)

var (
	presetsOnce sync.Once
	presets     map[string]*Definition
	presetsErr  error
)

func loadPresets() {
	ids, err := ListEmbedded()
	if err != nil {
		presetsErr = err
		return
	}
	presets = make(map[string]*Definition, len(ids))
	for _, id := range ids {
		def, err := LoadEmbedded(id)
		if err != nil {
			presetsErr = fmt.Errorf("failed to load built-in %q: %w", id, err)
			return
		}
		presets[id] = def
	}
}

// Preset returns a fresh copy of a built-in expression with opts applied.
func Preset(id string, opts ...Option) (*Definition, error) {
	presetsOnce.Do(loadPresets)
	if presetsErr != nil {
		return nil, presetsErr
	}
	base, ok := presets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return base.With(opts...)
}

// MustPreset is Preset for fixed option sets; it panics on error.
func MustPreset(id string, opts ...Option) *Definition {
	def, err := Preset(id, opts...)
	if err != nil {
		panic(err)
	}
	return def
}

// Neutral returns the resting pose. It is sticky unless opts say otherwise.
func Neutral(opts ...Option) (*Definition, error) { return Preset(IDNeutral, opts...) }

// Happy returns the smiling pose.
func Happy(opts ...Option) (*Definition, error) { return Preset(IDHappy, opts...) }

// Sad returns the drooping pose.
func Sad(opts ...Option) (*Definition, error) { return Preset(IDSad, opts...) }

// Angry returns the frowning pose.
func Angry(opts ...Option) (*Definition, error) { return Preset(IDAngry, opts...) }

// Surprised returns the wide-eyed pose.
func Surprised(opts ...Option) (*Definition, error) { return Preset(IDSurprised, opts...) }

// Sleepy returns the half-closed pose.
func Sleepy(opts ...Option) (*Definition, error) { return Preset(IDSleepy, opts...) }

// Blink returns the closed-eyes pose used by the idle scheduler.
func Blink(opts ...Option) (*Definition, error) { return Preset(IDBlink, opts...) }
