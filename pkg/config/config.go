package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds the configuration for the orchestration and reporting
// pipeline.
type Config struct {
	// General settings
	ProjectName string
	StoreRoot   string
	ReportPath  string

	// Engine settings
	EngineCommand string
	EngineArgs    []string

	// Discovery settings
	TestFileSuffixes []string
	ExcludeDirs      []string

	// Analytics settings
	EnableAnalytics    bool
	FlakyTestDetection bool
	HistoryCap         int
	SlowestTestCount   int
	TrendWindowDays    int

	// Server settings
	Host string
	Port int

	// Logging
	LogLevel string
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		ProjectName:        getProjectName(),
		StoreRoot:          "test-report",
		ReportPath:         filepath.Join("test-report", "report.html"),
		EngineCommand:      "npx",
		EngineArgs:         []string{"super-pancake-run"},
		TestFileSuffixes:   []string{".test.js", ".test.mjs"},
		ExcludeDirs:        []string{"node_modules", "test-report"},
		EnableAnalytics:    true,
		FlakyTestDetection: true,
		HistoryCap:         20,
		SlowestTestCount:   5,
		TrendWindowDays:    30,
		Host:               "localhost",
		Port:               3000,
		LogLevel:           "info",
	}
}

// LoadConfig loads configuration from file or returns default
func LoadConfig() (*Config, error) {
	cfg := NewConfig()

	configPaths := []string{
		"super-pancake.yml",
		"super-pancake.yaml",
		"super-pancake.json",
		filepath.Join(".super-pancake", "config.yml"),
	}

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.LoadFromFile(path); err == nil {
				cfg.LoadFromEnv()
				return cfg, nil
			}
		}
	}

	// No config file found, load from env only
	cfg.LoadFromEnv()
	return cfg, nil
}

// LoadFromFile loads configuration from a file (YAML, JSON, or TOML)
func (c *Config) LoadFromFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return err
	}

	return v.Unmarshal(c)
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() {
	if root := os.Getenv("PANCAKE_STORE_ROOT"); root != "" {
		c.StoreRoot = root
	}

	if report := os.Getenv("PANCAKE_REPORT_PATH"); report != "" {
		c.ReportPath = report
	}

	if engine := os.Getenv("PANCAKE_ENGINE_COMMAND"); engine != "" {
		c.EngineCommand = engine
	}

	if level := os.Getenv("PANCAKE_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}

	if port := os.Getenv("PANCAKE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Port = p
		}
	}

	if analytics := os.Getenv("PANCAKE_ENABLE_ANALYTICS"); analytics == "false" {
		c.EnableAnalytics = false
	}
}

// ScreenshotsDir returns the directory holding captured screenshots.
func (c *Config) ScreenshotsDir() string {
	return filepath.Join(c.StoreRoot, "screenshots")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.StoreRoot == "" {
		return fmt.Errorf("store root must not be empty")
	}
	if c.EngineCommand == "" {
		return fmt.Errorf("engine command must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// getProjectName tries to get project name from current directory
func getProjectName() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "Super Pancake Project"
	}
	return filepath.Base(cwd)
}
