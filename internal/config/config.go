package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Durations are stored as integer milliseconds in YAML and exposed as
// time.Duration through getters so callers never convert by hand.

// Jiggle tunes the shake-gesture recognizer used during drags.
type Jiggle struct {
	// MinDisplacement is the minimum pointer movement (logical units) per
	// poll for the sample to count as directional.
	MinDisplacement float64 `yaml:"min_displacement"`
	// ReversalDot is the dot-product threshold below which consecutive
	// directions count as a reversal.
	ReversalDot float64 `yaml:"reversal_dot"`
	// WindowMS is the time window reversals must fall into.
	WindowMS int `yaml:"window_ms"`
	// Reversals is the count required to fire the gesture.
	Reversals int `yaml:"reversals"`
	// RenotifyMS suppresses repeat notifications after a fire.
	RenotifyMS int `yaml:"renotify_ms"`
}

// Shelf tunes the surface dimensions per monitor.
type Shelf struct {
	AnchorWidth    float64 `yaml:"anchor_width"`
	AnchorHeight   float64 `yaml:"anchor_height"`
	ExpandedWidth  float64 `yaml:"expanded_width"`
	EnterPadX      float64 `yaml:"enter_pad_x"`
	EnterPadY      float64 `yaml:"enter_pad_y"`
	MinShelfHeight float64 `yaml:"min_shelf_height"`
}

// Config is the daemon configuration.
type Config struct {
	ExpandDelayMS      int `yaml:"expand_delay_ms"`
	CollapseDelayMS    int `yaml:"collapse_delay_ms"`
	GraceDelayMS       int `yaml:"grace_delay_ms"`
	PointerPollMS      int `yaml:"pointer_poll_ms"`
	DragPollMS         int `yaml:"drag_poll_ms"`
	HeightThrottleMS   int `yaml:"height_throttle_ms"`
	WatchdogIntervalMS int `yaml:"watchdog_interval_ms"`

	Jiggle Jiggle `yaml:"jiggle"`
	Shelf  Shelf  `yaml:"shelf"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// expandDelayFloor is the lowest useful expand delay; anything shorter
// makes the shelf pop on drive-by pointer crossings.
const expandDelayFloor = 150 * time.Millisecond

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	return &Config{
		ExpandDelayMS:      250,
		CollapseDelayMS:    100,
		GraceDelayMS:       150,
		PointerPollMS:      50,
		DragPollMS:         100,
		HeightThrottleMS:   50,
		WatchdogIntervalMS: 5000,
		Jiggle: Jiggle{
			MinDisplacement: 5,
			ReversalDot:     -0.3,
			WindowMS:        500,
			Reversals:       3,
			RenotifyMS:      1000,
		},
		Shelf: Shelf{
			AnchorWidth:    240,
			AnchorHeight:   32,
			ExpandedWidth:  600,
			EnterPadX:      20,
			EnterPadY:      8,
			MinShelfHeight: 96,
		},
		LogLevel: "info",
	}
}

// ExpandDelay returns the effective expand debounce. Negative values clamp
// to zero; positive values shorter than the UI floor are raised to it.
func (c *Config) ExpandDelay() time.Duration {
	d := time.Duration(c.ExpandDelayMS) * time.Millisecond
	if d <= 0 {
		return 0
	}
	if d < expandDelayFloor {
		return expandDelayFloor
	}
	return d
}

// CollapseDelay returns the effective collapse debounce.
func (c *Config) CollapseDelay() time.Duration {
	return clampMS(c.CollapseDelayMS)
}

// GraceDelay returns the click-outside grace window.
func (c *Config) GraceDelay() time.Duration {
	return clampMS(c.GraceDelayMS)
}

// PointerPoll returns the pointer sampling interval.
func (c *Config) PointerPoll() time.Duration {
	return intervalMS(c.PointerPollMS, 50*time.Millisecond)
}

// DragPoll returns the drag-session polling interval.
func (c *Config) DragPoll() time.Duration {
	return intervalMS(c.DragPollMS, 100*time.Millisecond)
}

// HeightThrottle returns the minimum spacing between applied frame updates.
func (c *Config) HeightThrottle() time.Duration {
	return intervalMS(c.HeightThrottleMS, 50*time.Millisecond)
}

// WatchdogInterval returns the reconciliation interval.
func (c *Config) WatchdogInterval() time.Duration {
	return intervalMS(c.WatchdogIntervalMS, 5*time.Second)
}

// JiggleWindow returns the reversal accumulation window.
func (c *Config) JiggleWindow() time.Duration {
	return intervalMS(c.Jiggle.WindowMS, 500*time.Millisecond)
}

// JiggleRenotify returns the post-fire suppression window.
func (c *Config) JiggleRenotify() time.Duration {
	return intervalMS(c.Jiggle.RenotifyMS, time.Second)
}

func clampMS(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func intervalMS(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

// Validate rejects configurations the controller cannot run with.
func (c *Config) Validate() error {
	if c.Jiggle.Reversals < 1 {
		return fmt.Errorf("jiggle.reversals must be >= 1, got %d", c.Jiggle.Reversals)
	}
	if c.Jiggle.ReversalDot < -1 || c.Jiggle.ReversalDot > 1 {
		return fmt.Errorf("jiggle.reversal_dot must be in [-1, 1], got %v", c.Jiggle.ReversalDot)
	}
	if c.Jiggle.MinDisplacement < 0 {
		return fmt.Errorf("jiggle.min_displacement must be >= 0, got %v", c.Jiggle.MinDisplacement)
	}
	if c.Shelf.AnchorWidth <= 0 || c.Shelf.ExpandedWidth <= 0 {
		return fmt.Errorf("shelf widths must be positive, got anchor=%v expanded=%v",
			c.Shelf.AnchorWidth, c.Shelf.ExpandedWidth)
	}
	if c.Shelf.ExpandedWidth < c.Shelf.AnchorWidth {
		return fmt.Errorf("shelf.expanded_width (%v) must be >= shelf.anchor_width (%v)",
			c.Shelf.ExpandedWidth, c.Shelf.AnchorWidth)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// DefaultConfigPath returns the standard config file location.
func DefaultConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "edgedock", "config.yaml"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "edgedock", "config.yaml"), nil
}

// Load reads the configuration from the standard location. A missing file
// yields the defaults.
func Load() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads and validates a config file, filling unset fields
// with defaults. A missing file is not an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Print writes the effective configuration as YAML.
func (c *Config) Print() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(out), nil
}
