package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/imu.capture/internal/csvstore"
)

// Default values used when a field is omitted from every configuration source.
const (
	DefaultBaudRate       = 115200
	DefaultCaptureTimeout = 10 * time.Second
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultCommand        = "d"
	DefaultOutputPath     = "ArquivosDados/imu_data.csv"
	DefaultSchema         = "default"
	DefaultListen         = "localhost:8080"
)

// DefaultAssetsHost serves the echarts scripts for the viewer page.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// CaptureConfig holds everything the capture, persistence and rendering
// stages need. Pointer fields distinguish "unset" from zero values so that
// JSON files, environment variables and flags can be layered with Merge.
type CaptureConfig struct {
	// Serial capture
	Port           *string `json:"port,omitempty"`
	BaudRate       *int    `json:"baud_rate,omitempty"`
	CaptureTimeout *string `json:"capture_timeout,omitempty"` // duration string like "10s"
	PollInterval   *string `json:"poll_interval,omitempty"`   // duration string like "100ms"
	Command        *string `json:"command,omitempty"`

	// Persistence
	OutputPath *string `json:"output_path,omitempty"`
	Schema     *string `json:"schema,omitempty"`

	// Rendering
	PlotDir    *string `json:"plot_dir,omitempty"`
	Listen     *string `json:"listen,omitempty"`
	AssetsHost *string `json:"assets_host,omitempty"` // URL prefix for echarts.min.js

	// History
	DBPath *string `json:"db_path,omitempty"`
}

// Helper functions to create pointers
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyCaptureConfig returns a CaptureConfig with all fields set to nil.
func EmptyCaptureConfig() *CaptureConfig {
	return &CaptureConfig{}
}

// LoadCaptureConfig loads a CaptureConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to the defaults returned by the
// Get* methods.
func LoadCaptureConfig(path string) (*CaptureConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyCaptureConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Merge overlays every field set in other onto c. Later sources win.
func (c *CaptureConfig) Merge(other *CaptureConfig) {
	if other == nil {
		return
	}
	if other.Port != nil {
		c.Port = other.Port
	}
	if other.BaudRate != nil {
		c.BaudRate = other.BaudRate
	}
	if other.CaptureTimeout != nil {
		c.CaptureTimeout = other.CaptureTimeout
	}
	if other.PollInterval != nil {
		c.PollInterval = other.PollInterval
	}
	if other.Command != nil {
		c.Command = other.Command
	}
	if other.OutputPath != nil {
		c.OutputPath = other.OutputPath
	}
	if other.Schema != nil {
		c.Schema = other.Schema
	}
	if other.PlotDir != nil {
		c.PlotDir = other.PlotDir
	}
	if other.Listen != nil {
		c.Listen = other.Listen
	}
	if other.AssetsHost != nil {
		c.AssetsHost = other.AssetsHost
	}
	if other.DBPath != nil {
		c.DBPath = other.DBPath
	}
}

// Validate checks that the configuration values are valid.
func (c *CaptureConfig) Validate() error {
	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}

	if c.CaptureTimeout != nil && *c.CaptureTimeout != "" {
		d, err := time.ParseDuration(*c.CaptureTimeout)
		if err != nil {
			return fmt.Errorf("invalid capture_timeout '%s': %w", *c.CaptureTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("capture_timeout must be non-negative, got %s", d)
		}
	}

	if c.PollInterval != nil && *c.PollInterval != "" {
		d, err := time.ParseDuration(*c.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid poll_interval '%s': %w", *c.PollInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("poll_interval must be positive, got %s", d)
		}
	}

	if c.Command != nil && strings.TrimSpace(*c.Command) == "" {
		return fmt.Errorf("command must not be empty")
	}

	if c.OutputPath != nil && strings.TrimSpace(*c.OutputPath) == "" {
		return fmt.Errorf("output_path must not be empty")
	}

	if c.Schema != nil {
		if _, err := csvstore.SchemaByName(*c.Schema); err != nil {
			return err
		}
	}

	return nil
}

// GetPort returns the configured port, or "" to request auto-detection.
func (c *CaptureConfig) GetPort() string {
	if c.Port == nil {
		return ""
	}
	return strings.TrimSpace(*c.Port)
}

// GetBaudRate returns the baud_rate value or the default.
func (c *CaptureConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return DefaultBaudRate
	}
	return *c.BaudRate
}

// GetCaptureTimeout parses and returns the CaptureTimeout as a time.Duration.
func (c *CaptureConfig) GetCaptureTimeout() time.Duration {
	if c.CaptureTimeout == nil || *c.CaptureTimeout == "" {
		return DefaultCaptureTimeout
	}
	d, err := time.ParseDuration(*c.CaptureTimeout)
	if err != nil {
		return DefaultCaptureTimeout // default on parse error
	}
	return d
}

// GetPollInterval parses and returns the PollInterval as a time.Duration.
func (c *CaptureConfig) GetPollInterval() time.Duration {
	if c.PollInterval == nil || *c.PollInterval == "" {
		return DefaultPollInterval
	}
	d, err := time.ParseDuration(*c.PollInterval)
	if err != nil || d <= 0 {
		return DefaultPollInterval
	}
	return d
}

// GetCommand returns the trigger command or the default.
func (c *CaptureConfig) GetCommand() string {
	if c.Command == nil {
		return DefaultCommand
	}
	return *c.Command
}

// GetOutputPath returns the CSV output path or the default.
func (c *CaptureConfig) GetOutputPath() string {
	if c.OutputPath == nil {
		return DefaultOutputPath
	}
	return *c.OutputPath
}

// GetSchema resolves the configured schema preset.
func (c *CaptureConfig) GetSchema() csvstore.Schema {
	name := DefaultSchema
	if c.Schema != nil {
		name = *c.Schema
	}
	s, err := csvstore.SchemaByName(name)
	if err != nil {
		return csvstore.DefaultSchema
	}
	return s
}

// GetPlotDir returns the PNG output directory; "" disables PNG output.
func (c *CaptureConfig) GetPlotDir() string {
	if c.PlotDir == nil {
		return ""
	}
	return *c.PlotDir
}

// GetListen returns the viewer listen address or the default.
func (c *CaptureConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return DefaultListen
	}
	return *c.Listen
}

// GetAssetsHost returns the echarts asset prefix, always ending in "/", or
// the public default.
func (c *CaptureConfig) GetAssetsHost() string {
	if c.AssetsHost == nil || *c.AssetsHost == "" {
		return DefaultAssetsHost
	}
	if !strings.HasSuffix(*c.AssetsHost, "/") {
		return *c.AssetsHost + "/"
	}
	return *c.AssetsHost
}

// GetDBPath returns the history database path; "" disables history.
func (c *CaptureConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}
