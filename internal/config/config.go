package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/vishrutha-03/detectomr/internal/omr"
	"github.com/vishrutha-03/detectomr/internal/scoring"
	"github.com/vishrutha-03/detectomr/internal/sheet"
	"github.com/vishrutha-03/detectomr/internal/template"
)

// Defaults for settings that have no package default elsewhere.
const (
	DefaultTemplatesDir = "templates"
	DefaultOutputDir    = "results"
	DefaultLogLevel     = "info"
	DefaultMarkerPrefix = "SET"
)

// maxFileSize bounds the size of a config file.
const maxFileSize = 1 * 1024 * 1024

// Environment variables read by ApplyEnv.
const (
	EnvTemplatesDir    = "DETECTOMR_TEMPLATES_DIR"
	EnvDefaultTemplate = "DETECTOMR_DEFAULT_TEMPLATE"
	EnvOutputDir       = "DETECTOMR_OUTPUT_DIR"
	EnvWorkers         = "DETECTOMR_WORKERS"
	EnvLogLevel        = "DETECTOMR_LOG_LEVEL"
)

// Config is the root configuration. Nil fields take their defaults.
type Config struct {
	TemplatesDir    *string `json:"templates_dir,omitempty"`
	DefaultTemplate *string `json:"default_template,omitempty"`
	OutputDir       *string `json:"output_dir,omitempty"`
	Workers         *int    `json:"workers,omitempty"`
	LogLevel        *string `json:"log_level,omitempty"`

	// Sheet normalization
	TargetWidth   *int     `json:"target_width,omitempty"`
	TargetHeight  *int     `json:"target_height,omitempty"`
	MinAreaRatio  *float64 `json:"min_area_ratio,omitempty"`
	DetectMaxSide *int     `json:"detect_max_side,omitempty"`

	// Bubble classification
	LowThreshold  *float64 `json:"low_threshold,omitempty"`
	HighThreshold *float64 `json:"high_threshold,omitempty"`

	// Scoring
	PerSubjectMax *float64 `json:"per_subject_max,omitempty"`

	Marker *MarkerConfig `json:"marker,omitempty"`
}

// MarkerConfig selects the version marker decoders.
type MarkerConfig struct {
	QR *bool `json:"qr,omitempty"`
	// QRRegion is [x, y, w, h] in normalized sheet coordinates.
	QRRegion *template.BBox `json:"qr_region,omitempty"`
	Text     *bool          `json:"text,omitempty"`
	// TextRegion is [x, y, w, h] in normalized sheet coordinates.
	TextRegion *template.BBox `json:"text_region,omitempty"`
	Language   *string        `json:"language,omitempty"`
	Prefix     *string        `json:"prefix,omitempty"`
}

func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a JSON config file, applies the environment and validates the
// result. An empty path skips the file.
func Load(path, envFile string) (*Config, error) {
	cfg := Empty()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile loads a Config from a JSON file. The file must have a .json
// extension and be at most 1 MiB.
func LoadFile(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables already set are kept. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from DETECTOMR_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvTemplatesDir); v != "" {
		c.TemplatesDir = ptrString(v)
	}
	if v := os.Getenv(EnvDefaultTemplate); v != "" {
		c.DefaultTemplate = ptrString(v)
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		c.OutputDir = ptrString(v)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = ptrString(strings.ToLower(v))
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvWorkers, v, err)
		}
		c.Workers = ptrInt(n)
	}
	return nil
}

// Validate checks the ranges of the fields that are set.
func (c *Config) Validate() error {
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", *c.Workers)
	}
	if c.LogLevel != nil {
		switch *c.LogLevel {
		case "debug", "info":
		default:
			return fmt.Errorf("log_level must be debug or info, got %q", *c.LogLevel)
		}
	}
	if c.TargetWidth != nil && *c.TargetWidth < 1 {
		return fmt.Errorf("target_width must be positive, got %d", *c.TargetWidth)
	}
	if c.TargetHeight != nil && *c.TargetHeight < 1 {
		return fmt.Errorf("target_height must be positive, got %d", *c.TargetHeight)
	}
	if c.DetectMaxSide != nil && *c.DetectMaxSide < 1 {
		return fmt.Errorf("detect_max_side must be positive, got %d", *c.DetectMaxSide)
	}
	if c.MinAreaRatio != nil && (*c.MinAreaRatio <= 0 || *c.MinAreaRatio >= 1) {
		return fmt.Errorf("min_area_ratio must be between 0 and 1, got %f", *c.MinAreaRatio)
	}
	if err := c.Thresholds().Validate(); err != nil {
		return err
	}
	if c.PerSubjectMax != nil && *c.PerSubjectMax <= 0 {
		return fmt.Errorf("per_subject_max must be positive, got %f", *c.PerSubjectMax)
	}
	return nil
}

// GetTemplatesDir returns the template directory.
func (c *Config) GetTemplatesDir() string {
	if c.TemplatesDir == nil || *c.TemplatesDir == "" {
		return DefaultTemplatesDir
	}
	return *c.TemplatesDir
}

// GetDefaultTemplate returns the name of the fallback template, or "" to use
// the first template of the directory.
func (c *Config) GetDefaultTemplate() string {
	if c.DefaultTemplate == nil {
		return ""
	}
	return *c.DefaultTemplate
}

// GetOutputDir returns the result directory.
func (c *Config) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return DefaultOutputDir
	}
	return *c.OutputDir
}

// GetWorkers returns the number of parallel workers, by default the number
// of CPUs.
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return runtime.NumCPU()
	}
	return *c.Workers
}

// GetLogLevel returns "debug" or "info".
func (c *Config) GetLogLevel() string {
	if c.LogLevel == nil {
		return DefaultLogLevel
	}
	return *c.LogLevel
}

// Debug reports whether debug logging is enabled.
func (c *Config) Debug() bool {
	return c.GetLogLevel() == "debug"
}

// Sheet returns the normalizer configuration.
func (c *Config) Sheet() sheet.Config {
	cfg := sheet.DefaultConfig()
	if c.TargetWidth != nil {
		cfg.TargetWidth = *c.TargetWidth
	}
	if c.TargetHeight != nil {
		cfg.TargetHeight = *c.TargetHeight
	}
	if c.MinAreaRatio != nil {
		cfg.MinAreaRatio = *c.MinAreaRatio
	}
	if c.DetectMaxSide != nil {
		cfg.DetectMaxSide = *c.DetectMaxSide
	}
	return cfg
}

// Thresholds returns the classification thresholds.
func (c *Config) Thresholds() omr.Thresholds {
	th := omr.DefaultThresholds()
	if c.LowThreshold != nil {
		th.Low = *c.LowThreshold
	}
	if c.HighThreshold != nil {
		th.High = *c.HighThreshold
	}
	return th
}

// GetPerSubjectMax returns the score of a fully correct subject.
func (c *Config) GetPerSubjectMax() float64 {
	if c.PerSubjectMax == nil {
		return scoring.DefaultPerSubjectMax
	}
	return *c.PerSubjectMax
}

// MarkerQR reports whether QR markers are read, and where. On by default.
func (c *Config) MarkerQR() (bool, template.BBox) {
	if c.Marker == nil {
		return true, template.BBox{}
	}
	var region template.BBox
	if c.Marker.QRRegion != nil {
		region = *c.Marker.QRRegion
	}
	return c.Marker.QR == nil || *c.Marker.QR, region
}

// MarkerText returns the text marker settings. Off by default.
func (c *Config) MarkerText() (enabled bool, region template.BBox, language, prefix string) {
	prefix = DefaultMarkerPrefix
	if c.Marker == nil {
		return false, region, language, prefix
	}
	m := c.Marker
	if m.TextRegion != nil {
		region = *m.TextRegion
	}
	if m.Language != nil {
		language = *m.Language
	}
	if m.Prefix != nil {
		prefix = *m.Prefix
	}
	return m.Text != nil && *m.Text, region, language, prefix
}
