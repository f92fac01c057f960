// Package config loads runtime settings from built-in defaults, an optional
// YAML file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/polzovatel/web-research-mcp/internal/guard"
	"github.com/polzovatel/web-research-mcp/internal/research"
	"github.com/polzovatel/web-research-mcp/internal/retry"
	"github.com/polzovatel/web-research-mcp/internal/screenshot"
	"github.com/polzovatel/web-research-mcp/internal/session"
)

const (
	envConfig             = "RESEARCH_CONFIG"
	envHeadless           = "RESEARCH_HEADLESS"
	envInstall            = "RESEARCH_INSTALL_BROWSERS"
	envSearchURL          = "RESEARCH_SEARCH_URL"
	envNavTimeout         = "RESEARCH_NAV_TIMEOUT"
	envIdleTimeout        = "RESEARCH_IDLE_TIMEOUT"
	envSelectorTimeout    = "RESEARCH_SELECTOR_TIMEOUT"
	envRetryAttempts      = "RESEARCH_RETRY_ATTEMPTS"
	envRetryDelay         = "RESEARCH_RETRY_DELAY"
	envMaxScreenshotBytes = "RESEARCH_MAX_SCREENSHOT_BYTES"
	envHistoryCapacity    = "RESEARCH_HISTORY_CAPACITY"
	envScreenshotDir      = "RESEARCH_SCREENSHOT_DIR"
	envHTTPAddr           = "RESEARCH_HTTP_ADDR"
	envLogLevel           = "LOG_LEVEL"

	DefaultHTTPAddr = "127.0.0.1:8808"
)

type Config struct {
	Headless           bool          `yaml:"headless"`
	InstallBrowsers    bool          `yaml:"install_browsers"`
	SearchURL          string        `yaml:"search_url"`
	NavigationTimeout  time.Duration `yaml:"navigation_timeout"`
	IdleTimeout        time.Duration `yaml:"idle_timeout"`
	SelectorTimeout    time.Duration `yaml:"selector_timeout"`
	RetryAttempts      int           `yaml:"retry_attempts"`
	RetryDelay         time.Duration `yaml:"retry_delay"`
	MaxScreenshotBytes int           `yaml:"max_screenshot_bytes"`
	HistoryCapacity    int           `yaml:"history_capacity"`
	ScreenshotDir      string        `yaml:"screenshot_dir"`
	HTTPAddr           string        `yaml:"http_addr"`
	LogLevel           string        `yaml:"log_level"`
}

func Default() Config {
	return Config{
		Headless:           true,
		SearchURL:          research.DefaultSearchURL,
		NavigationTimeout:  guard.DefaultNavigationTimeout,
		IdleTimeout:        guard.DefaultIdleTimeout,
		SelectorTimeout:    research.DefaultSelectorTimeout,
		RetryAttempts:      retry.DefaultAttempts,
		RetryDelay:         retry.DefaultDelay,
		MaxScreenshotBytes: screenshot.DefaultMaxBytes,
		HistoryCapacity:    session.DefaultCapacity,
		HTTPAddr:           DefaultHTTPAddr,
		LogLevel:           "info",
	}
}

// Load builds the configuration. path names a YAML file; when empty the
// RESEARCH_CONFIG variable is consulted, and no file is read if both are
// empty.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = strings.TrimSpace(os.Getenv(envConfig))
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.Headless = parseBoolEnv(envHeadless, c.Headless)
	c.InstallBrowsers = parseBoolEnv(envInstall, c.InstallBrowsers)
	stringEnv(envSearchURL, &c.SearchURL)
	stringEnv(envScreenshotDir, &c.ScreenshotDir)
	stringEnv(envHTTPAddr, &c.HTTPAddr)
	stringEnv(envLogLevel, &c.LogLevel)

	return errors.Join(
		durationEnv(envNavTimeout, &c.NavigationTimeout),
		durationEnv(envIdleTimeout, &c.IdleTimeout),
		durationEnv(envSelectorTimeout, &c.SelectorTimeout),
		durationEnv(envRetryDelay, &c.RetryDelay),
		intEnv(envRetryAttempts, &c.RetryAttempts),
		intEnv(envMaxScreenshotBytes, &c.MaxScreenshotBytes),
		intEnv(envHistoryCapacity, &c.HistoryCapacity),
	)
}

// Validate rejects settings the research operations cannot run with.
func (c Config) Validate() error {
	var errs []error
	for name, d := range map[string]time.Duration{
		"navigation_timeout": c.NavigationTimeout,
		"idle_timeout":       c.IdleTimeout,
		"selector_timeout":   c.SelectorTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("retry_delay must not be negative, got %s", c.RetryDelay))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry_attempts must be at least 1, got %d", c.RetryAttempts))
	}
	if c.MaxScreenshotBytes < 1 {
		errs = append(errs, fmt.Errorf("max_screenshot_bytes must be at least 1, got %d", c.MaxScreenshotBytes))
	}
	if c.HistoryCapacity < 1 {
		errs = append(errs, fmt.Errorf("history_capacity must be at least 1, got %d", c.HistoryCapacity))
	}
	if err := research.ValidateURL(c.SearchURL); err != nil {
		errs = append(errs, fmt.Errorf("search_url: %w", err))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// Level is the parsed log level; unknown values fall back to info.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Research maps the settings onto the research manager's configuration.
func (c Config) Research() research.Config {
	return research.Config{
		SearchURL:       c.SearchURL,
		SelectorTimeout: c.SelectorTimeout,
		Guard: guard.Config{
			NavigationTimeout: c.NavigationTimeout,
			IdleTimeout:       c.IdleTimeout,
		},
		Retry:              retry.Policy{Attempts: c.RetryAttempts, Delay: c.RetryDelay},
		MaxScreenshotBytes: c.MaxScreenshotBytes,
		ScreenshotDir:      c.ScreenshotDir,
		HistoryCapacity:    c.HistoryCapacity,
	}
}

func parseBoolEnv(name string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(name))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func stringEnv(name string, dst *string) {
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		*dst = val
	}
}

func durationEnv(name string, dst *time.Duration) error {
	val := strings.TrimSpace(os.Getenv(name))
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

func intEnv(name string, dst *int) error {
	val := strings.TrimSpace(os.Getenv(name))
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}
