// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Paths   PathsConfig   `mapstructure:"paths" yaml:"paths"`
	Lock    LockConfig    `mapstructure:"lock" yaml:"lock"`
	Chat    ChatConfig    `mapstructure:"chat" yaml:"chat"`
	Search  SearchConfig  `mapstructure:"search" yaml:"search"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the driven browser instance.
type BrowserConfig struct {
	// Engine selects the profile family: chrome, chromium, webkit or firefox.
	// Only the chromium family is drivable over CDP; the others exist as
	// profile namespaces for sessions attached via cdp_url.
	Engine            string        `mapstructure:"engine" yaml:"engine"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	CDPURL            string        `mapstructure:"cdp_url" yaml:"cdp_url"`
	UseUserProfile    bool          `mapstructure:"use_user_profile" yaml:"use_user_profile"`
	Instance          string        `mapstructure:"instance" yaml:"instance"`
	AutoInstance      bool          `mapstructure:"auto_instance" yaml:"auto_instance"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// SettleDelay is the fixed wait applied after navigation so the SPA can
	// render before the first probe.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	LoginWait   time.Duration `mapstructure:"login_wait" yaml:"login_wait"`
}

// PathsConfig describes the persisted-state layout on disk.
type PathsConfig struct {
	// DataDir is the root under which templates and instance profiles live.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	// LockFile is the host-wide mutex path shared by all sessions.
	LockFile string `mapstructure:"lock_file" yaml:"lock_file"`
	// BaseURL is the remote application root.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// TemplateDir returns the template profile directory for an engine.
func (p PathsConfig) TemplateDir(engine string) string {
	return filepath.Join(p.DataDir, engine+"_profile")
}

// InstancesDir returns the root of the per-instance profile tree.
func (p PathsConfig) InstancesDir() string {
	return filepath.Join(p.DataDir, "profiles")
}

// LockConfig tunes the host-wide lock acquisition.
type LockConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// ChatConfig tunes the generation completion detector. The stability
// thresholds and cadence are empirically tuned values carried over from field
// use; they are defaults, not derived constants.
type ChatConfig struct {
	MaxWait       time.Duration `mapstructure:"max_wait" yaml:"max_wait"`
	StartupWait   time.Duration `mapstructure:"startup_wait" yaml:"startup_wait"`
	Cadence       time.Duration `mapstructure:"cadence" yaml:"cadence"`
	StableLow     int           `mapstructure:"stable_low" yaml:"stable_low"`
	StableHigh    int           `mapstructure:"stable_high" yaml:"stable_high"`
	MinTextLength int           `mapstructure:"min_text_length" yaml:"min_text_length"`
	RecheckDelay  time.Duration `mapstructure:"recheck_delay" yaml:"recheck_delay"`
	// ExtensionDelay is the single extra wait granted when the settle
	// re-read still finds the text changing.
	ExtensionDelay time.Duration `mapstructure:"extension_delay" yaml:"extension_delay"`
}

// SearchConfig tunes the source-search workflow.
type SearchConfig struct {
	FastWait    time.Duration `mapstructure:"fast_wait" yaml:"fast_wait"`
	DeepWait    time.Duration `mapstructure:"deep_wait" yaml:"deep_wait"`
	Cadence     time.Duration `mapstructure:"cadence" yaml:"cadence"`
	AutoClear   bool          `mapstructure:"auto_clear" yaml:"auto_clear"`
	ResultLimit int           `mapstructure:"result_limit" yaml:"result_limit"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "nlm-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.engine", "chrome")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.auto_instance", true)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.navigation_timeout", "120s")
	v.SetDefault("browser.settle_delay", "5s")
	v.SetDefault("browser.login_wait", "10m")

	// -- Paths --
	v.SetDefault("paths.data_dir", "~/.nlm-cli")
	v.SetDefault("paths.lock_file", filepath.Join("/tmp", "nlm_global.lock"))
	v.SetDefault("paths.base_url", "https://notebooklm.google.com")

	// -- Lock --
	v.SetDefault("lock.timeout", "30s")
	v.SetDefault("lock.poll_interval", "2s")

	// -- Chat --
	v.SetDefault("chat.max_wait", "480s")
	v.SetDefault("chat.startup_wait", "60s")
	v.SetDefault("chat.cadence", "1s")
	v.SetDefault("chat.stable_low", 3)
	v.SetDefault("chat.stable_high", 5)
	v.SetDefault("chat.min_text_length", 50)
	v.SetDefault("chat.recheck_delay", "3s")
	v.SetDefault("chat.extension_delay", "5s")

	// -- Search --
	v.SetDefault("search.fast_wait", "1200s")
	v.SetDefault("search.deep_wait", "1800s")
	v.SetDefault("search.cadence", "1s")
	v.SetDefault("search.auto_clear", true)
	v.SetDefault("search.result_limit", 20)
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	if err := cfg.ResolvePaths(); err != nil {
		panic(fmt.Sprintf("failed to resolve default paths: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.ResolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ResolvePaths expands the home-relative data directory to an absolute path.
func (c *Config) ResolvePaths() error {
	expanded, err := homedir.Expand(c.Paths.DataDir)
	if err != nil {
		return fmt.Errorf("failed to expand data_dir %q: %w", c.Paths.DataDir, err)
	}
	c.Paths.DataDir = expanded
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Browser.Engine {
	case "chrome", "chromium", "webkit", "firefox":
	default:
		return fmt.Errorf("browser.engine must be one of chrome, chromium, webkit, firefox; got %q", c.Browser.Engine)
	}
	if c.Paths.LockFile == "" {
		return fmt.Errorf("paths.lock_file is required")
	}
	if c.Lock.Timeout <= 0 {
		return fmt.Errorf("lock.timeout must be a positive duration")
	}
	if c.Lock.PollInterval <= 0 {
		return fmt.Errorf("lock.poll_interval must be a positive duration")
	}
	if c.Chat.StableLow <= 0 || c.Chat.StableHigh < c.Chat.StableLow {
		return fmt.Errorf("chat stability thresholds must satisfy 0 < stable_low <= stable_high")
	}
	if c.Chat.Cadence <= 0 || c.Search.Cadence <= 0 {
		return fmt.Errorf("polling cadence must be a positive duration")
	}
	return nil
}
