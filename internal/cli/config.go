package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/strathmore/pipescore/pkg/cache"
	"github.com/strathmore/pipescore/pkg/layout"
	"github.com/strathmore/pipescore/pkg/score"
)

// =============================================================================
// Engine Configuration
// =============================================================================

// Config is the TOML engine configuration shared by the layout and
// serve commands. Every field is optional; zero values take engine
// defaults via ValidateAndSetDefaults.
type Config struct {
	// Workers bounds the parallel fan-out per layout level.
	Workers int `toml:"workers"`

	Cache   CacheConfig   `toml:"cache"`
	Scope   ScopeConfig   `toml:"scope"`
	Page    PageConfig    `toml:"page"`
	Backend BackendConfig `toml:"backend"`
}

// CacheConfig tunes the in-process entity cache.
type CacheConfig struct {
	Capacity int    `toml:"capacity"`
	TTL      string `toml:"ttl"` // Go duration string, e.g. "5m"

	ttl time.Duration
}

// ScopeConfig tunes dirty-scope escalation.
type ScopeConfig struct {
	SystemEscalation float64 `toml:"system_escalation"`
	PageEscalation   float64 `toml:"page_escalation"`
	ThrashLimit      int     `toml:"thrash_limit"`
}

// PageConfig sets document-level layout defaults applied when a score
// carries no settings of its own.
type PageConfig struct {
	PaperSize     string  `toml:"paper_size"`
	Orientation   string  `toml:"orientation"`
	SpacingFactor float64 `toml:"spacing_factor"`
	FontSize      float64 `toml:"font_size"`

	// AvoidTolerance is the avoid-policy overflow allowance as a
	// fraction of usable page height. Zero keeps the engine default.
	AvoidTolerance float64 `toml:"avoid_tolerance"`
}

// BackendConfig selects optional external backends for the serve
// command: a Redis result cache and a MongoDB score repository.
type BackendConfig struct {
	RedisAddr string `toml:"redis_addr"`
	MongoURI  string `toml:"mongo_uri"`
}

// LoadConfig reads a TOML config file. An empty path returns the zero
// config, which resolves entirely to defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		if err := cfg.ValidateAndSetDefaults(); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ValidateAndSetDefaults checks field values and applies engine
// defaults. It is idempotent.
func (c *Config) ValidateAndSetDefaults() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.Cache.Capacity < 0 {
		return fmt.Errorf("cache.capacity must not be negative")
	}
	if c.Cache.Capacity == 0 {
		c.Cache.Capacity = cache.DefaultCapacity
	}
	if c.Cache.TTL == "" {
		c.Cache.ttl = cache.DefaultTTL
	} else {
		d, err := time.ParseDuration(c.Cache.TTL)
		if err != nil {
			return fmt.Errorf("cache.ttl: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("cache.ttl must be positive")
		}
		c.Cache.ttl = d
	}
	if c.Scope.SystemEscalation < 0 || c.Scope.SystemEscalation > 1 {
		return fmt.Errorf("scope.system_escalation must be within [0, 1]")
	}
	if c.Scope.PageEscalation < 0 || c.Scope.PageEscalation > 1 {
		return fmt.Errorf("scope.page_escalation must be within [0, 1]")
	}
	// Paper size and orientation are case-insensitive in the config
	// file; the model's values are lowercase.
	c.Page.PaperSize = strings.ToLower(c.Page.PaperSize)
	switch c.Page.PaperSize {
	case "", string(score.PaperA4), string(score.PaperA3), string(score.PaperLetter), string(score.PaperLegal):
	default:
		return fmt.Errorf("page.paper_size: unknown size %q", c.Page.PaperSize)
	}
	c.Page.Orientation = strings.ToLower(c.Page.Orientation)
	switch c.Page.Orientation {
	case "", string(score.Portrait), string(score.Landscape):
	default:
		return fmt.Errorf("page.orientation: %q", c.Page.Orientation)
	}
	if c.Page.AvoidTolerance < 0 || c.Page.AvoidTolerance > 0.5 {
		return fmt.Errorf("page.avoid_tolerance must be within [0, 0.5]")
	}
	return nil
}

// EntityCache builds the configured in-process entity cache.
func (c *Config) EntityCache() *cache.LRUCache {
	return cache.NewLRUCache(
		cache.WithCapacity(c.Cache.Capacity),
		cache.WithTTL(c.Cache.ttl),
	)
}

// TrackerConfig converts the scope section to engine form.
func (c *Config) TrackerConfig() layout.TrackerConfig {
	return layout.TrackerConfig{
		SystemEscalation: c.Scope.SystemEscalation,
		PageEscalation:   c.Scope.PageEscalation,
		ThrashLimit:      c.Scope.ThrashLimit,
	}
}

// ApplySettings overlays the page section onto a document's settings
// where the document leaves them unset.
func (c *Config) ApplySettings(s score.DocumentLayoutSettings) score.DocumentLayoutSettings {
	if s.PaperSize == "" && c.Page.PaperSize != "" {
		s.PaperSize = score.PaperSize(c.Page.PaperSize)
	}
	if s.Orientation == "" && c.Page.Orientation != "" {
		s.Orientation = score.Orientation(c.Page.Orientation)
	}
	if s.SpacingFactor == 0 && c.Page.SpacingFactor != 0 {
		s.SpacingFactor = c.Page.SpacingFactor
	}
	if s.FontSize == 0 && c.Page.FontSize != 0 {
		s.FontSize = c.Page.FontSize
	}
	return s.WithDefaults()
}
