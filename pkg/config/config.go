// Package config provides configuration management for ecget. It handles
// loading, validating and writing the YAML configuration file and provides
// sensible defaults; credentials are deliberately not part of the
// configuration surface and are only ever taken from the environment or
// flags at run time.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/glorpus-work/ecget/pkg/catalog"
	"github.com/glorpus-work/ecget/pkg/errors"
	"github.com/glorpus-work/ecget/pkg/fsutil"
	"github.com/glorpus-work/ecget/pkg/model"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	// Search configuration
	Collection  string             `yaml:"collection"`
	Baseline    string             `yaml:"baseline"`
	Products    []string           `yaml:"products,omitempty"`
	OrbitColumn string             `yaml:"orbit_column,omitempty"`
	Radius      *RadiusConfig      `yaml:"radius,omitempty"`
	BoundingBox *BoundingBoxConfig `yaml:"bounding_box,omitempty"`

	// Download configuration
	DownloadDir string `yaml:"download_dir"`
	Override    bool   `yaml:"override"`
	Extract     bool   `yaml:"extract"`
	SummaryFile string `yaml:"summary_file,omitempty"`

	// General settings
	Settings Settings `yaml:"settings"`
}

// RadiusConfig is a circular spatial constraint around a fixed point.
type RadiusConfig struct {
	Meters    int     `yaml:"meters"`
	Latitude  float64 `yaml:"lat"`
	Longitude float64 `yaml:"lon"`
}

// BoundingBoxConfig is a rectangular spatial constraint (south, west,
// north, east).
type BoundingBoxConfig struct {
	South float64 `yaml:"south"`
	West  float64 `yaml:"west"`
	North float64 `yaml:"north"`
	East  float64 `yaml:"east"`
}

// Settings represents general application settings.
type Settings struct {
	CatalogURL string `yaml:"catalog_url,omitempty"`
	// HTTPTimeout bounds catalogue requests. DownloadTimeout bounds a whole
	// product download; zero means unbounded, since bundles can be large.
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	DownloadTimeout time.Duration `yaml:"download_timeout,omitempty"`
	MaxRetries      int           `yaml:"max_retries"`
	TimeTolerance   time.Duration `yaml:"time_tolerance"`
	LogLevel        string        `yaml:"log_level"` // error, warn, info, debug
}

// Default configuration values.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultMaxRetries bounds catalogue retries on transient errors.
	DefaultMaxRetries = 3

	// DefaultCollection is the archive partition searched when none is
	// configured.
	DefaultCollection = "EarthCAREL1InstChecked"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Collection:  DefaultCollection,
		Baseline:    model.BaselineAuto,
		DownloadDir: "downloads",
		Settings: Settings{
			CatalogURL:    catalog.DefaultCatalogURL,
			HTTPTimeout:   DefaultHTTPTimeout,
			MaxRetries:    DefaultMaxRetries,
			TimeTolerance: catalog.DefaultTolerance,
			LogLevel:      "info",
		},
	}
}

// LoadConfig loads configuration from a file, falling back to the defaults
// when the file does not exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes the configuration to a file.
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(errors.ErrConfigEncode, err.Error())
	}
	if err := os.MkdirAll(filepath.Dir(path), fsutil.DirModeDefault); err != nil {
		return errors.Wrapf(err, "failed to create config directory for %s", path)
	}
	return os.WriteFile(path, data, fsutil.FileModeDefault)
}

var baselineCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if err := catalog.ValidateCollection(c.Collection); err != nil {
		return errors.Wrap(errors.ErrConfigValidation, err.Error())
	}
	if c.Baseline != model.BaselineAuto && !baselineCodePattern.MatchString(c.Baseline) {
		return errors.Wrapf(errors.ErrConfigValidation, "baseline must be %q or a two-letter code, got %q", model.BaselineAuto, c.Baseline)
	}
	if c.Radius != nil && c.BoundingBox != nil {
		return errors.Wrap(errors.ErrConfigValidation, "radius and bounding_box are mutually exclusive")
	}
	if c.Settings.HTTPTimeout < 0 || c.Settings.DownloadTimeout < 0 {
		return errors.Wrap(errors.ErrConfigValidation, "timeouts cannot be negative")
	}
	if c.Settings.MaxRetries < 0 {
		return errors.Wrap(errors.ErrConfigValidation, "max_retries cannot be negative")
	}
	return nil
}

// Spatial converts the configured constraint into the model's filter type.
func (c *Config) Spatial() model.SpatialFilter {
	var filter model.SpatialFilter
	if c.Radius != nil {
		filter.Radius = &model.RadiusSearch{
			Meters:    c.Radius.Meters,
			Latitude:  c.Radius.Latitude,
			Longitude: c.Radius.Longitude,
		}
	}
	if c.BoundingBox != nil {
		filter.Box = &model.BoundingBox{
			South: c.BoundingBox.South,
			West:  c.BoundingBox.West,
			North: c.BoundingBox.North,
			East:  c.BoundingBox.East,
		}
	}
	return filter
}

// GetDefaultConfigPath returns the per-user config file location.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "cannot determine user config directory")
	}
	return filepath.Join(configDir, "ecget", "config.yaml"), nil
}
