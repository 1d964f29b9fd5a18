package termcore

import "time"

// Config holds the configuration surface consumed by the render core.
// The surrounding application owns loading and persistence; the core only
// validates and reads these values.
type Config struct {
	// FontPath is the path to the font asset used for glyph rasterization.
	FontPath string

	// FontSize is the font size in pixels per em.
	// Default: 16
	FontSize float64

	// TargetFPS is the frame pacing target in frames per second.
	// Default: 60
	TargetFPS int

	// AtlasSize is the initial glyph atlas texture edge in pixels.
	// Must be a power of 2. Default: 1024
	AtlasSize int

	// AtlasMaxSize caps atlas growth during resize-and-retry recovery.
	// Must be a power of 2 and >= AtlasSize. Default: 4096
	AtlasMaxSize int

	// CollapseThreshold is the dirty-area fraction of the grid above which
	// the frame builder rebuilds the full grid instead of patching.
	// Range (0, 1]. Default: 0.5
	CollapseThreshold float64

	// InputQueueDepth is the capacity of the input event queue.
	// Default: 256
	InputQueueDepth int

	// MetricsCapacity is the frame-metrics ring buffer size.
	// Default: 240 (four seconds at 60 FPS)
	MetricsCapacity int

	// EffectPhaseMax bounds the random phase offset applied to each
	// effect instance. Default: 250ms
	EffectPhaseMax time.Duration

	// SurfaceLostRetries is how many consecutive surface reconstructions
	// are attempted before device loss becomes fatal. Default: 3
	SurfaceLostRetries int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		FontSize:           16,
		TargetFPS:          60,
		AtlasSize:          1024,
		AtlasMaxSize:       4096,
		CollapseThreshold:  0.5,
		InputQueueDepth:    256,
		MetricsCapacity:    240,
		EffectPhaseMax:     250 * time.Millisecond,
		SurfaceLostRetries: 3,
	}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "termcore: invalid config." + e.Field + ": " + e.Reason
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.FontSize <= 0 {
		return &ConfigError{Field: "FontSize", Reason: "must be positive"}
	}
	if c.TargetFPS < 1 {
		return &ConfigError{Field: "TargetFPS", Reason: "must be at least 1"}
	}
	if c.TargetFPS > 1000 {
		return &ConfigError{Field: "TargetFPS", Reason: "must be at most 1000"}
	}
	if c.AtlasSize < 64 {
		return &ConfigError{Field: "AtlasSize", Reason: "must be at least 64"}
	}
	if c.AtlasSize&(c.AtlasSize-1) != 0 {
		return &ConfigError{Field: "AtlasSize", Reason: "must be power of 2"}
	}
	if c.AtlasMaxSize < c.AtlasSize {
		return &ConfigError{Field: "AtlasMaxSize", Reason: "must be at least AtlasSize"}
	}
	if c.AtlasMaxSize&(c.AtlasMaxSize-1) != 0 {
		return &ConfigError{Field: "AtlasMaxSize", Reason: "must be power of 2"}
	}
	if c.CollapseThreshold <= 0 || c.CollapseThreshold > 1 {
		return &ConfigError{Field: "CollapseThreshold", Reason: "must be in (0, 1]"}
	}
	if c.InputQueueDepth < 1 {
		return &ConfigError{Field: "InputQueueDepth", Reason: "must be at least 1"}
	}
	if c.MetricsCapacity < 1 {
		return &ConfigError{Field: "MetricsCapacity", Reason: "must be at least 1"}
	}
	if c.EffectPhaseMax < 0 {
		return &ConfigError{Field: "EffectPhaseMax", Reason: "must be non-negative"}
	}
	if c.SurfaceLostRetries < 0 {
		return &ConfigError{Field: "SurfaceLostRetries", Reason: "must be non-negative"}
	}
	return nil
}

// FrameInterval returns the pacing interval derived from TargetFPS.
func (c *Config) FrameInterval() time.Duration {
	fps := c.TargetFPS
	if fps <= 0 {
		fps = 60
	}
	return time.Second / time.Duration(fps)
}
