package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// clearEnv blanks every variable LoadFromEnv reads so host settings don't leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"E621_URL", "DISPLAY_BROWSER", "E621_USER", "E621_PASS", "E621_DIR", "E621_CACHE",
		"PPTR_WAIT_UNTIL", "PPTR_WAIT_TIMEOUT", "E6POOLS_WORKERS", "E6POOLS_MAX_ATTEMPTS",
		"E6POOLS_COOLDOWN", "E6POOLS_NOTIFICATIONS_ENABLED", "E6POOLS_LOG_LEVEL", "E6POOLS_LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://e621.net", cfg.Site.URL)
	assert.Equal(t, 30, cfg.Site.PageSize)
	assert.Equal(t, "networkidle0", cfg.Browser.WaitUntil)
	assert.Equal(t, 5*time.Second, cfg.Browser.WaitTimeout)
	assert.Equal(t, 8, cfg.Browser.PollFactor)
	assert.Equal(t, 2, cfg.Browser.LoginAttempts)
	assert.Equal(t, 1800*time.Millisecond, cfg.Browser.LoginRetryDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Queue.PollInterval)
	assert.Equal(t, 75, cfg.Tools.Quality)
	assert.Equal(t, "7z", cfg.Tools.SevenZip)
	assert.NotEmpty(t, cfg.Paths.DestDir)
	assert.Equal(t, "cache", filepath.Base(cfg.Paths.CacheDir))
	assert.False(t, cfg.HasCredentials())

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("E621_URL", "https://example.net")
	t.Setenv("DISPLAY_BROWSER", "1")
	t.Setenv("E621_USER", "alice")
	t.Setenv("E621_PASS", "secret")
	t.Setenv("E621_DIR", "/tmp/pools")
	t.Setenv("E621_CACHE", "/tmp/cache")
	t.Setenv("PPTR_WAIT_UNTIL", "load")
	t.Setenv("PPTR_WAIT_TIMEOUT", "7000")
	t.Setenv("E6POOLS_WORKERS", "6")
	t.Setenv("E6POOLS_MAX_ATTEMPTS", "0")
	t.Setenv("E6POOLS_COOLDOWN", "3s")
	t.Setenv("E6POOLS_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "https://example.net", cfg.Site.URL)
	assert.True(t, cfg.Browser.Display)
	assert.True(t, cfg.HasCredentials())
	assert.Equal(t, "/tmp/pools", cfg.Paths.DestDir)
	assert.Equal(t, "/tmp/cache", cfg.Paths.CacheDir)
	assert.Equal(t, filepath.Join("/tmp/cache", "catalog.db"), cfg.CatalogPath())
	assert.Equal(t, "load", cfg.Browser.WaitUntil)
	assert.Equal(t, 7*time.Second, cfg.Browser.WaitTimeout)
	assert.Equal(t, 6, cfg.Queue.Workers)
	assert.Equal(t, 0, cfg.Browser.MaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.Browser.Cooldown)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PPTR_WAIT_TIMEOUT", "soon")
	t.Setenv("E6POOLS_COOLDOWN", "forever")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PPTR_WAIT_TIMEOUT")
	assert.Contains(t, err.Error(), "E6POOLS_COOLDOWN")
	assert.Equal(t, 5*time.Second, cfg.Browser.WaitTimeout)
}

func TestDisplayBrowserFalsy(t *testing.T) {
	for _, v := range []string{"0", "false", "OFF", "no"} {
		clearEnv(t)
		t.Setenv("DISPLAY_BROWSER", v)
		cfg := DefaultConfig()
		cfg.Browser.Display = true
		require.NoError(t, cfg.LoadFromEnv())
		assert.False(t, cfg.Browser.Display, v)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
site:
  url: https://mirror.example
  page_size: 50
browser:
  wait_timeout: 12s
  cooldown: 500ms
  max_attempts: 4
queue:
  workers: 2
  poll_interval: 250ms
tools:
  quality: 90
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "https://mirror.example", cfg.Site.URL)
	assert.Equal(t, 50, cfg.Site.PageSize)
	assert.Equal(t, 12*time.Second, cfg.Browser.WaitTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Browser.Cooldown)
	assert.Equal(t, 4, cfg.Browser.MaxAttempts)
	assert.Equal(t, 2, cfg.Queue.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Queue.PollInterval)
	assert.Equal(t, 90, cfg.Tools.Quality)
	// untouched keys keep defaults
	assert.Equal(t, "networkidle0", cfg.Browser.WaitUntil)

	t.Run("missing file", func(t *testing.T) {
		err := DefaultConfig().LoadFromFile(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("site: [unclosed"), 0644))
		assert.Error(t, DefaultConfig().LoadFromFile(bad))
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"relative url", func(c *Config) { c.Site.URL = "e621.net" }, "site url"},
		{"page size", func(c *Config) { c.Site.PageSize = 0 }, "page size"},
		{"timeout", func(c *Config) { c.Browser.WaitTimeout = 0 }, "wait timeout"},
		{"poll factor", func(c *Config) { c.Browser.PollFactor = 0 }, "poll factor"},
		{"attempts", func(c *Config) { c.Browser.MaxAttempts = -1 }, "max attempts"},
		{"login attempts", func(c *Config) { c.Browser.LoginAttempts = 0 }, "login attempts"},
		{"wait until", func(c *Config) { c.Browser.WaitUntil = "whenever" }, "wait condition"},
		{"half credentials", func(c *Config) { c.Credentials.Username = "bob" }, "together"},
		{"empty dest", func(c *Config) { c.Paths.DestDir = "" }, "destination"},
		{"workers", func(c *Config) { c.Queue.Workers = 0 }, "workers"},
		{"too many workers", func(c *Config) { c.Queue.Workers = 64 }, "exceed"},
		{"quality", func(c *Config) { c.Tools.Quality = 101 }, "quality"},
		{"missing tool", func(c *Config) { c.Tools.SevenZip = "" }, "7z"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"dest":          "/srv/pools",
		"cache":         "/srv/cache",
		"workers":       8,
		"display":       true,
		"max-attempts":  0,
		"account":       "alice",
		"notifications": false,
		"log-level":     "warn",
	})

	assert.Equal(t, "/srv/pools", cfg.Paths.DestDir)
	assert.Equal(t, "/srv/cache", cfg.Paths.CacheDir)
	assert.Equal(t, 8, cfg.Queue.Workers)
	assert.True(t, cfg.Browser.Display)
	assert.Equal(t, 0, cfg.Browser.MaxAttempts)
	assert.Equal(t, "alice", cfg.Credentials.Account)
	assert.False(t, cfg.Notifications.Enabled)
	assert.Equal(t, "warn", cfg.Logging.Level)

	t.Run("absent keys keep values", func(t *testing.T) {
		cfg := DefaultConfig()
		want := cfg.Queue.Workers
		cfg.MergeCommandLineFlags(map[string]interface{}{})
		assert.Equal(t, want, cfg.Queue.Workers)
	})
}

func TestSaveAndLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	original := DefaultConfig()
	original.Queue.Workers = 7
	original.Browser.Cooldown = 2 * time.Second
	require.NoError(t, original.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := Load(path, map[string]interface{}{"workers": 3})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Queue.Workers)
	assert.Equal(t, 2*time.Second, cfg.Browser.Cooldown)
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("E621_URL", "not a url")

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "site url")
}

func TestConfigSerialization(t *testing.T) {
	original := DefaultConfig()
	original.Credentials.Username = "carol"
	original.Browser.WaitTimeout = 9 * time.Second

	data, err := yaml.Marshal(original)
	require.NoError(t, err)

	var loaded Config
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, "carol", loaded.Credentials.Username)
	assert.Equal(t, 9*time.Second, loaded.Browser.WaitTimeout)
	assert.Equal(t, original.Queue, loaded.Queue)
}
