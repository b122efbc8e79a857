package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for a pool download run
type Config struct {
	// Remote site and client identification
	Site SiteConfig `yaml:"site" json:"site"`

	// Headless browser and navigation behaviour
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Site login
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`

	// Destination and cache locations
	Paths PathsConfig `yaml:"paths" json:"paths"`

	// Download/package worker queue
	Queue QueueConfig `yaml:"queue" json:"queue"`

	// External programs
	Tools ToolsConfig `yaml:"tools" json:"tools"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SiteConfig describes the pool site and how this client introduces itself.
type SiteConfig struct {
	URL           string `yaml:"url" json:"url"`
	ClientName    string `yaml:"client_name" json:"client_name"`
	ClientVersion string `yaml:"client_version" json:"client_version"`
	ClientAuthor  string `yaml:"client_author" json:"client_author"`
	PageSize      int    `yaml:"page_size" json:"page_size"`
}

// BrowserConfig holds navigation settings
type BrowserConfig struct {
	Display         bool          `yaml:"display" json:"display"`
	ExecPath        string        `yaml:"exec_path" json:"exec_path"`
	WaitUntil       string        `yaml:"wait_until" json:"wait_until"`
	WaitTimeout     time.Duration `yaml:"wait_timeout" json:"wait_timeout"`
	PollFactor      int           `yaml:"poll_factor" json:"poll_factor"`
	Cooldown        time.Duration `yaml:"cooldown" json:"cooldown"`
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts"`
	BackoffInitial  time.Duration `yaml:"backoff_initial" json:"backoff_initial"`
	BackoffMax      time.Duration `yaml:"backoff_max" json:"backoff_max"`
	LoginAttempts   int           `yaml:"login_attempts" json:"login_attempts"`
	LoginRetryDelay time.Duration `yaml:"login_retry_delay" json:"login_retry_delay"`
}

// CredentialsConfig holds site login credentials
type CredentialsConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Account  string `yaml:"account" json:"account"`
}

// PathsConfig holds output and cache locations
type PathsConfig struct {
	DestDir     string `yaml:"dest_dir" json:"dest_dir"`
	CacheDir    string `yaml:"cache_dir" json:"cache_dir"`
	CatalogFile string `yaml:"catalog_file" json:"catalog_file"`
}

// QueueConfig holds worker queue settings
type QueueConfig struct {
	Workers        int           `yaml:"workers" json:"workers"`
	LaunchInterval time.Duration `yaml:"launch_interval" json:"launch_interval"`
	PollInterval   time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// ToolsConfig names the external programs and their tunables
type ToolsConfig struct {
	Curl      string `yaml:"curl" json:"curl"`
	CWebP     string `yaml:"cwebp" json:"cwebp"`
	GIF2WebP  string `yaml:"gif2webp" json:"gif2webp"`
	SevenZip  string `yaml:"seven_zip" json:"seven_zip"`
	Quality   int    `yaml:"quality" json:"quality"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	OnComplete bool `yaml:"on_complete" json:"on_complete"`
	OnError    bool `yaml:"on_error" json:"on_error"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			URL:           "https://e621.net",
			ClientName:    "e6pools",
			ClientVersion: "1.0.0",
			ClientAuthor:  "e6pools contributors",
			PageSize:      30,
		},
		Browser: BrowserConfig{
			WaitUntil:       "networkidle0",
			WaitTimeout:     5 * time.Second,
			PollFactor:      8,
			Cooldown:        time.Second,
			MaxAttempts:     10,
			BackoffInitial:  time.Second,
			BackoffMax:      30 * time.Second,
			LoginAttempts:   2,
			LoginRetryDelay: 1800 * time.Millisecond,
		},
		Paths: PathsConfig{
			DestDir:  workingDir(),
			CacheDir: defaultCacheDir(),
		},
		Queue: QueueConfig{
			Workers:        4,
			LaunchInterval: 250 * time.Millisecond,
			PollInterval:   1500 * time.Millisecond,
		},
		Tools: ToolsConfig{
			Curl:     "curl",
			CWebP:    "cwebp",
			GIF2WebP: "gif2webp",
			SevenZip: "7z",
			Quality:  75,
		},
		Notifications: NotificationConfig{
			Enabled:    true,
			OnComplete: true,
			OnError:    true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func workingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// defaultCacheDir places the cache next to the executable.
func defaultCacheDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "cache"
	}
	return filepath.Join(filepath.Dir(exe), "cache")
}

// CatalogPath returns the run catalog location, defaulting into the cache.
func (c *Config) CatalogPath() string {
	if c.Paths.CatalogFile != "" {
		return c.Paths.CatalogFile
	}
	return filepath.Join(c.Paths.CacheDir, "catalog.db")
}

// HasCredentials reports whether a username and password are both set.
func (c *Config) HasCredentials() bool {
	return c.Credentials.Username != "" && c.Credentials.Password != ""
}

// LoadFromEnv loads configuration from environment variables. The E621_*,
// DISPLAY_BROWSER and PPTR_* names are kept so existing .env files work.
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("E621_URL"); v != "" {
		c.Site.URL = v
	}
	if v := os.Getenv("DISPLAY_BROWSER"); v != "" {
		c.Browser.Display = truthy(v)
	}
	if v := os.Getenv("E621_USER"); v != "" {
		c.Credentials.Username = v
	}
	if v := os.Getenv("E621_PASS"); v != "" {
		c.Credentials.Password = v
	}
	if v := os.Getenv("E621_DIR"); v != "" {
		c.Paths.DestDir = v
	}
	if v := os.Getenv("E621_CACHE"); v != "" {
		c.Paths.CacheDir = v
	}
	if v := os.Getenv("PPTR_WAIT_UNTIL"); v != "" {
		c.Browser.WaitUntil = v
	}
	if v := os.Getenv("PPTR_WAIT_TIMEOUT"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			errs = append(errs, fmt.Errorf("PPTR_WAIT_TIMEOUT: invalid milliseconds %q", v))
		} else {
			c.Browser.WaitTimeout = time.Duration(ms) * time.Millisecond
		}
	}

	if v := os.Getenv("E6POOLS_WORKERS"); v != "" {
		var val int
		fmt.Sscanf(v, "%d", &val)
		if val > 0 {
			c.Queue.Workers = val
		}
	}
	if v := os.Getenv("E6POOLS_MAX_ATTEMPTS"); v != "" {
		var val int
		if _, err := fmt.Sscanf(v, "%d", &val); err == nil && val >= 0 {
			c.Browser.MaxAttempts = val
		}
	}
	if v := os.Getenv("E6POOLS_COOLDOWN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("E6POOLS_COOLDOWN: %w", err))
		} else {
			c.Browser.Cooldown = d
		}
	}
	if v := os.Getenv("E6POOLS_NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = truthy(v)
	}
	if v := os.Getenv("E6POOLS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("E6POOLS_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("NO_COLOR"); v != "" {
		c.Logging.NoColor = true
	}

	return errors.Join(errs...)
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "no", "off":
		return false
	}
	return true
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".e6pools.yaml",
		".e6pools.yml",
		filepath.Join(home, ".config", "e6pools", "config.yaml"),
		filepath.Join(home, ".config", "e6pools", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Site.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("site url must be absolute, got %q", c.Site.URL))
	}
	if c.Site.PageSize < 1 || c.Site.PageSize > 320 {
		errs = append(errs, errors.New("page size must be between 1 and 320"))
	}

	if c.Browser.WaitTimeout <= 0 {
		errs = append(errs, errors.New("wait timeout must be positive"))
	}
	if c.Browser.PollFactor < 1 {
		errs = append(errs, errors.New("poll factor must be at least 1"))
	}
	if c.Browser.MaxAttempts < 0 {
		errs = append(errs, errors.New("max attempts cannot be negative"))
	}
	if c.Browser.LoginAttempts < 1 {
		errs = append(errs, errors.New("login attempts must be at least 1"))
	}
	if c.Browser.Cooldown < 0 {
		errs = append(errs, errors.New("cooldown cannot be negative"))
	}
	validWait := map[string]bool{
		"load": true, "domcontentloaded": true, "networkidle0": true, "networkidle2": true,
	}
	if !validWait[strings.ToLower(c.Browser.WaitUntil)] {
		errs = append(errs, fmt.Errorf("invalid wait condition %q", c.Browser.WaitUntil))
	}

	if (c.Credentials.Username == "") != (c.Credentials.Password == "") {
		errs = append(errs, errors.New("username and password must be set together"))
	}

	if c.Paths.DestDir == "" {
		errs = append(errs, errors.New("destination directory is required"))
	}
	if c.Paths.CacheDir == "" {
		errs = append(errs, errors.New("cache directory is required"))
	}

	if c.Queue.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Queue.Workers > 32 {
		errs = append(errs, errors.New("workers should not exceed 32"))
	}
	if c.Queue.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Queue.LaunchInterval < 0 {
		errs = append(errs, errors.New("launch interval cannot be negative"))
	}

	if c.Tools.Quality < 0 || c.Tools.Quality > 100 {
		errs = append(errs, errors.New("quality must be between 0 and 100"))
	}
	for name, bin := range map[string]string{
		"curl": c.Tools.Curl, "cwebp": c.Tools.CWebP, "gif2webp": c.Tools.GIF2WebP, "7z": c.Tools.SevenZip,
	} {
		if bin == "" {
			errs = append(errs, fmt.Errorf("%s command is required", name))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in flags are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if dest, ok := flags["dest"].(string); ok {
		c.Paths.DestDir = dest
	}
	if cache, ok := flags["cache"].(string); ok && cache != "" {
		c.Paths.CacheDir = cache
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Queue.Workers = workers
	}
	if display, ok := flags["display"].(bool); ok {
		c.Browser.Display = display
	}
	if attempts, ok := flags["max-attempts"].(int); ok && attempts >= 0 {
		c.Browser.MaxAttempts = attempts
	}
	if account, ok := flags["account"].(string); ok && account != "" {
		c.Credentials.Account = account
	}
	if enabled, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = enabled
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if noColor, ok := flags["no-color"].(bool); ok {
		c.Logging.NoColor = noColor
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".e6pools.env"))
	}

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
