// Package config provides XML-based configuration management for air-gapped deployment.
package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/bytes"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"PDFTextExtractor"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Extraction configuration
	Extraction ExtractionConfig `xml:"Extraction"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"` // all routes except uploads
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	UploadsDirectory string `xml:"UploadsDirectory"`
}

// ExtractionConfig contains the upload limit and engine settings.
// MaxFileSize has no default and must be set.
type ExtractionConfig struct {
	MaxFileSize    string `xml:"MaxFileSize"`
	Engine         string `xml:"Engine"`
	TimeoutSeconds int    `xml:"TimeoutSeconds"`
	TickIntervalMs int    `xml:"DemoTickIntervalMs"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	LogFormat            string `xml:"LogFormat"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
	WebSocketBufferSize  int    `xml:"WebSocketBufferSizeKB"`
}

// DefaultConfig returns the default configuration. The maximum file size
// is deliberately left empty.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			IdleTimeout:  120,
			BodyLimit:    "1M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
		},
		Extraction: ExtractionConfig{
			Engine:         "demo",
			TimeoutSeconds: 120,
			TickIntervalMs: 200,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			LogFormat:            "text",
			EnableRequestLogging: true,
			WebSocketBufferSize:  64,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &AppConfig{}
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- PDF Text Extractor Configuration -->\n<!-- This file is auto-generated on first run -->\n<!-- Extraction/MaxFileSize must be set before the server will start (e.g. 10MB) -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR override
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
	}

	if size := os.Getenv("MAX_FILE_SIZE"); size != "" {
		c.Extraction.MaxFileSize = size
	}
	if engine := os.Getenv("EXTRACTION_ENGINE"); engine != "" {
		c.Extraction.Engine = engine
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.UploadsDirectory) {
		c.Storage.UploadsDirectory = filepath.Join(configDir, c.Storage.UploadsDirectory)
	}
}

// Validate checks the settings the server cannot start without.
func (c *AppConfig) Validate() error {
	var errs []error

	if _, err := c.MaxFileSizeBytes(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Extraction.Engine) {
	case "demo", "pdf":
	default:
		errs = append(errs, fmt.Errorf("unknown extraction engine %q (want demo or pdf)", c.Extraction.Engine))
	}
	if c.Extraction.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("extraction timeout must not be negative (got %d)", c.Extraction.TimeoutSeconds))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Server.Port))
	}

	return errors.Join(errs...)
}

// MaxFileSizeBytes parses Extraction.MaxFileSize ("10MB", "5MiB", "1048576").
func (c *AppConfig) MaxFileSizeBytes() (int64, error) {
	raw := strings.TrimSpace(c.Extraction.MaxFileSize)
	if raw == "" {
		return 0, errors.New("Extraction/MaxFileSize is required (set it in the config file or MAX_FILE_SIZE)")
	}
	n, err := bytes.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid Extraction/MaxFileSize %q: %w", raw, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("Extraction/MaxFileSize must be positive (got %q)", raw)
	}
	return n, nil
}

// ExtractionTimeout returns the per-attempt timeout; zero disables it.
func (c *AppConfig) ExtractionTimeout() time.Duration {
	return time.Duration(c.Extraction.TimeoutSeconds) * time.Second
}

// TickInterval returns the demo engine's progress interval.
func (c *AppConfig) TickInterval() time.Duration {
	return time.Duration(c.Extraction.TickIntervalMs) * time.Millisecond
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
