package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "research.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// clearEnv blanks every variable Load reads; blank counts as unset.
func clearEnv(t *testing.T) {
	for _, name := range []string{
		envConfig, envHeadless, envInstall, envSearchURL, envNavTimeout, envIdleTimeout,
		envSelectorTimeout, envRetryAttempts, envRetryDelay, envMaxScreenshotBytes,
		envHistoryCapacity, envScreenshotDir, envHTTPAddr, envLogLevel,
	} {
		t.Setenv(name, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 15*time.Second, cfg.NavigationTimeout)
	assert.Equal(t, 5*1024*1024, cfg.MaxScreenshotBytes)
	assert.Equal(t, 100, cfg.HistoryCapacity)
	assert.Equal(t, 3, cfg.RetryAttempts)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
headless: false
search_url: https://search.example
navigation_timeout: 20s
retry_attempts: 5
history_capacity: 10
log_level: debug
`)
	clearEnv(t)
	t.Setenv(envRetryAttempts, "2")
	t.Setenv(envIdleTimeout, "750ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Headless)
	assert.Equal(t, "https://search.example", cfg.SearchURL)
	assert.Equal(t, 20*time.Second, cfg.NavigationTimeout)
	assert.Equal(t, 750*time.Millisecond, cfg.IdleTimeout)
	assert.Equal(t, 2, cfg.RetryAttempts)
	assert.Equal(t, 10, cfg.HistoryCapacity)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
}

func TestLoad_ConfigFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envConfig, writeFile(t, "http_addr: 0.0.0.0:9000\n"))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.HTTPAddr)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "unknown_key: 1\n"))
	require.Error(t, err)

	t.Setenv(envNavTimeout, "soon")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), envNavTimeout)
}

func TestParseBoolEnv(t *testing.T) {
	for val, want := range map[string]bool{"1": true, "YES": true, "on": true, "0": false, "off": false, "maybe": true} {
		t.Setenv(envHeadless, val)
		assert.Equal(t, want, parseBoolEnv(envHeadless, true), val)
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())

	bad := Default()
	bad.RetryAttempts = 0
	bad.HistoryCapacity = 0
	bad.MaxScreenshotBytes = 0
	bad.SelectorTimeout = 0
	bad.SearchURL = "ftp://search.example"
	bad.LogLevel = "loud"
	err := bad.Validate()
	require.Error(t, err)
	for _, field := range []string{"retry_attempts", "history_capacity", "max_screenshot_bytes", "selector_timeout", "search_url", "log_level"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestResearch(t *testing.T) {
	cfg := Default()
	cfg.RetryDelay = 250 * time.Millisecond
	rc := cfg.Research()
	assert.Equal(t, cfg.SearchURL, rc.SearchURL)
	assert.Equal(t, cfg.NavigationTimeout, rc.Guard.NavigationTimeout)
	assert.Equal(t, 3, rc.Retry.Attempts)
	assert.Equal(t, 250*time.Millisecond, rc.Retry.Delay)
	assert.Equal(t, cfg.HistoryCapacity, rc.HistoryCapacity)
}
