// Package config loads tapedeck configuration from an optional YAML
// file. Every setting has a code-level default; CLI flags override
// loaded values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tapedeck/tapedeck/internal/screen"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "200ms" or "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Capture tunes the recorder's screenshot behavior.
type Capture struct {
	// Screenshots disables all context capture when false.
	Screenshots bool `yaml:"screenshots"`

	// RegionSize is the square captured around each click, in pixels.
	RegionSize int `yaml:"region_size"`

	// Timeout bounds a single screen grab.
	Timeout Duration `yaml:"timeout"`
}

// Playback tunes verification and pacing defaults. Per-recording
// settings and play flags take precedence.
type Playback struct {
	MatchThreshold float64  `yaml:"match_threshold"`
	MaxRetries     int      `yaml:"max_retries"`
	BackoffBase    Duration `yaml:"backoff_base"`
	BackoffMax     Duration `yaml:"backoff_max"`
	MaxActionDelay Duration `yaml:"max_action_delay"`
}

// Stability tunes the navigation-settling heuristic.
type Stability struct {
	PollInterval    Duration `yaml:"poll_interval"`
	StableCount     int      `yaml:"stable_count"`
	Timeout         Duration `yaml:"timeout"`
	MaxHashDistance int      `yaml:"max_hash_distance"`
}

// Abort tunes the cursor-in-corner abort gesture.
type Abort struct {
	// CornerSize is the side length of the top-left abort region.
	CornerSize int `yaml:"corner_size"`

	PollInterval Duration `yaml:"poll_interval"`
}

// Config is the full application configuration.
type Config struct {
	// StorageDir holds the database and screenshot artifacts.
	StorageDir string `yaml:"storage_dir"`

	// DatabasePath overrides the default location under StorageDir.
	DatabasePath string `yaml:"database_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Capture   Capture   `yaml:"capture"`
	Playback  Playback  `yaml:"playback"`
	Stability Stability `yaml:"stability"`
	Abort     Abort     `yaml:"abort"`
}

// Default returns the built-in configuration. StorageDir resolves
// under the user home directory when available.
func Default() *Config {
	dir := ".tapedeck"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".tapedeck")
	}
	return &Config{
		StorageDir: dir,
		LogLevel:   "info",
		Capture: Capture{
			Screenshots: true,
			RegionSize:  100,
			Timeout:     Duration(3 * time.Second),
		},
		Playback: Playback{
			MatchThreshold: 0.85,
			MaxRetries:     3,
			BackoffBase:    Duration(time.Second),
			BackoffMax:     Duration(30 * time.Second),
			MaxActionDelay: Duration(5 * time.Second),
		},
		Stability: Stability{
			PollInterval:    Duration(200 * time.Millisecond),
			StableCount:     3,
			Timeout:         Duration(30 * time.Second),
			MaxHashDistance: 2,
		},
		Abort: Abort{
			CornerSize:   10,
			PollInterval: Duration(100 * time.Millisecond),
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file
// is not an error when path is the default location; an explicitly
// requested file must exist.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	if c.Capture.RegionSize <= 0 {
		return fmt.Errorf("capture.region_size must be positive, got %d", c.Capture.RegionSize)
	}
	if c.Playback.MatchThreshold <= 0 || c.Playback.MatchThreshold > 1 {
		return fmt.Errorf("playback.match_threshold must be in (0, 1], got %g", c.Playback.MatchThreshold)
	}
	if c.Playback.MaxRetries < 1 {
		return fmt.Errorf("playback.max_retries must be at least 1, got %d", c.Playback.MaxRetries)
	}
	if c.Stability.StableCount < 1 {
		return fmt.Errorf("stability.stable_count must be at least 1, got %d", c.Stability.StableCount)
	}
	if c.Abort.CornerSize < 0 {
		return fmt.Errorf("abort.corner_size must not be negative, got %d", c.Abort.CornerSize)
	}
	return nil
}

// Database returns the SQLite path, honoring the explicit override.
func (c *Config) Database() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return filepath.Join(c.StorageDir, "tapedeck.db")
}

// ScreenshotDir is where capture artifacts are written.
func (c *Config) ScreenshotDir() string {
	return filepath.Join(c.StorageDir, "screenshots")
}

// StabilityParams converts the stability section for the screen service.
func (c *Config) StabilityParams() screen.StabilityParams {
	return screen.StabilityParams{
		PollInterval:    c.Stability.PollInterval.Std(),
		StableCount:     c.Stability.StableCount,
		Timeout:         c.Stability.Timeout.Std(),
		MaxHashDistance: c.Stability.MaxHashDistance,
	}
}

// AbortRegion is the top-left corner the cursor must enter to abort
// playback. A zero corner disables the gesture.
func (c *Config) AbortRegion() screen.Region {
	return screen.Region{X: 0, Y: 0, W: c.Abort.CornerSize, H: c.Abort.CornerSize}
}
