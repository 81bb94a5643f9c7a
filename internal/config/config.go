// Package config loads face engine settings from an optional YAML file and
// FACE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. FACE_SERVER_PORT.
const EnvPrefix = "FACE"

// Config is the full engine configuration.
type Config struct {
	Log            LogConfig         `mapstructure:"log"`
	Display        DisplayConfig     `mapstructure:"display"`
	Engine         EngineConfig      `mapstructure:"engine"`
	Idle           IdleConfig        `mapstructure:"idle"`
	Expressions    ExpressionsConfig `mapstructure:"expressions"`
	Server         ServerConfig      `mapstructure:"server"`
	AnimationSpeed float64           `mapstructure:"animation_speed"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json; empty follows GO_ENV
}

type DisplayConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
	FPS    int `mapstructure:"fps"`
}

type EngineConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	EventBuffer  int           `mapstructure:"event_buffer"`
}

type IdleConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	IntervalMin   time.Duration `mapstructure:"interval_min"`
	IntervalMax   time.Duration `mapstructure:"interval_max"`
	LookAroundMin time.Duration `mapstructure:"look_around_min"`
	LookAroundMax time.Duration `mapstructure:"look_around_max"`
}

type ExpressionsConfig struct {
	Dir   string `mapstructure:"dir"`   // extra expression files, optional
	Watch bool   `mapstructure:"watch"` // reload Dir on change
}

type ServerConfig struct {
	Port      string `mapstructure:"port"`
	StreamFPS int    `mapstructure:"stream_fps"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Display: DisplayConfig{
			Width:  1024,
			Height: 600,
			FPS:    120,
		},
		Engine: EngineConfig{
			PollInterval: 10 * time.Millisecond,
			EventBuffer:  64,
		},
		Idle: IdleConfig{
			Enabled:       true,
			IntervalMin:   4 * time.Second,
			IntervalMax:   6 * time.Second,
			LookAroundMin: 10 * time.Second,
			LookAroundMax: 15 * time.Second,
		},
		Server: ServerConfig{
			Port:      "8090",
			StreamFPS: 30,
		},
		AnimationSpeed: 1.0,
	}
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("display.width", cfg.Display.Width)
	v.SetDefault("display.height", cfg.Display.Height)
	v.SetDefault("display.fps", cfg.Display.FPS)
	v.SetDefault("engine.poll_interval", cfg.Engine.PollInterval)
	v.SetDefault("engine.event_buffer", cfg.Engine.EventBuffer)
	v.SetDefault("idle.enabled", cfg.Idle.Enabled)
	v.SetDefault("idle.interval_min", cfg.Idle.IntervalMin)
	v.SetDefault("idle.interval_max", cfg.Idle.IntervalMax)
	v.SetDefault("idle.look_around_min", cfg.Idle.LookAroundMin)
	v.SetDefault("idle.look_around_max", cfg.Idle.LookAroundMax)
	v.SetDefault("expressions.dir", cfg.Expressions.Dir)
	v.SetDefault("expressions.watch", cfg.Expressions.Watch)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.stream_fps", cfg.Server.StreamFPS)
	v.SetDefault("animation_speed", cfg.AnimationSpeed)
}

// Load reads configuration. If path is empty, face.yaml is looked up in the
// working directory and $HOME/.config/reachy-face; a missing file is not an
// error. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("face")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "reachy-face"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Display.Width <= 0 || c.Display.Height <= 0:
		return fmt.Errorf("display size must be positive, got %dx%d", c.Display.Width, c.Display.Height)
	case c.Display.FPS <= 0:
		return fmt.Errorf("display.fps must be positive, got %d", c.Display.FPS)
	case c.Engine.PollInterval <= 0:
		return fmt.Errorf("engine.poll_interval must be positive, got %v", c.Engine.PollInterval)
	case c.Idle.IntervalMin <= 0 || c.Idle.IntervalMax < c.Idle.IntervalMin:
		return fmt.Errorf("idle interval range [%v, %v] is invalid", c.Idle.IntervalMin, c.Idle.IntervalMax)
	case c.Idle.LookAroundMin <= 0 || c.Idle.LookAroundMax < c.Idle.LookAroundMin:
		return fmt.Errorf("idle look-around range [%v, %v] is invalid", c.Idle.LookAroundMin, c.Idle.LookAroundMax)
	case c.Server.StreamFPS <= 0:
		return fmt.Errorf("server.stream_fps must be positive, got %d", c.Server.StreamFPS)
	case !(c.AnimationSpeed > 0):
		return fmt.Errorf("animation_speed must be positive, got %v", c.AnimationSpeed)
	}
	return nil
}

// FrameInterval is the display refresh period.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Display.FPS)
}

// StreamInterval is the websocket frame push period.
func (c *Config) StreamInterval() time.Duration {
	return time.Second / time.Duration(c.Server.StreamFPS)
}
