// Package config loads the server configuration from a YAML file, with
// SLEEPPLUS_ environment overrides, and reloads it when the file changes.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/staryears/sleepplus/internal/engine"
	"github.com/staryears/sleepplus/internal/events"
	"github.com/staryears/sleepplus/internal/platform/logger"
)

const (
	envPrefix  = "SLEEPPLUS"
	configType = "yaml"
	fileMode   = 0o644
	dirMode    = 0o755

	keySleepPercentage   = "sleep-percentage"
	keyEnableTimeoutSkip = "enable-timeout-skip"
	keyTimeoutSeconds    = "timeout-seconds"
	keyResolveLatch      = "resolve-latch"
	keyServerAddr        = "server.addr"
	keyServerDatabase    = "server.database"
	keyServerTick        = "server.tick-interval"
	keyServerRetention   = "server.history-retention"
)

// DefaultPath is where serve looks for its config file.
const DefaultPath = "config.yml"

var (
	ErrInvalidThreshold    = errors.New("config: sleep-percentage must be in (0, 100]")
	ErrNegativeTimeout     = errors.New("config: timeout-seconds must not be negative")
	ErrInvalidTickInterval = errors.New("config: server.tick-interval must be positive")
	ErrInvalidRetention    = errors.New("config: server.history-retention must be positive")
)

// Config is the whole configuration file.
type Config struct {
	SleepPercentage   float64      `mapstructure:"sleep-percentage"`
	EnableTimeoutSkip bool         `mapstructure:"enable-timeout-skip"`
	TimeoutSeconds    int          `mapstructure:"timeout-seconds"`
	ResolveLatch      bool         `mapstructure:"resolve-latch"`
	Server            ServerConfig `mapstructure:"server"`
}

// ServerConfig holds the settings of the serve command.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// Database is the SQLite audit ledger path. Empty disables the ledger.
	Database     string        `mapstructure:"database"`
	TickInterval time.Duration `mapstructure:"tick-interval"`
	// HistoryRetention is how many events /api/history keeps in memory.
	HistoryRetention int `mapstructure:"history-retention"`
}

// Default returns the configuration written to a fresh config file.
func Default() Config {
	s := engine.DefaultSettings()
	return Config{
		SleepPercentage:   s.ThresholdPercentage,
		EnableTimeoutSkip: s.TimeoutEnabled,
		TimeoutSeconds:    int(s.Timeout / time.Second),
		ResolveLatch:      s.ResolveLatch,
		Server: ServerConfig{
			Addr:             ":8080",
			Database:         "data/sleepplus.db",
			TickInterval:     engine.DefaultTickInterval,
			HistoryRetention: events.DefaultRetention,
		},
	}
}

// Validate rejects values the engine cannot work with.
func (c Config) Validate() error {
	if math.IsNaN(c.SleepPercentage) || c.SleepPercentage <= 0 || c.SleepPercentage > 100 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, c.SleepPercentage)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeTimeout, c.TimeoutSeconds)
	}
	if c.Server.TickInterval <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidTickInterval, c.Server.TickInterval)
	}
	if c.Server.HistoryRetention <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidRetention, c.Server.HistoryRetention)
	}
	return nil
}

// Settings converts the file values to engine settings.
func (c Config) Settings() engine.Settings {
	return engine.Settings{
		ThresholdPercentage: c.SleepPercentage,
		TimeoutEnabled:      c.EnableTimeoutSkip,
		Timeout:             time.Duration(c.TimeoutSeconds) * time.Second,
		ResolveLatch:        c.ResolveLatch,
	}
}

// Loader reads one config file and watches it for changes.
type Loader struct {
	v      *viper.Viper
	path   string
	logger *logger.Logger

	watchOnce sync.Once
}

// NewLoader prepares a loader for path. An empty path means defaults and
// environment only.
func NewLoader(path string, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Discard()
	}
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(configType)
	}
	return &Loader{v: v, path: path, logger: log}
}

// Load is a shortcut for NewLoader(path, nil).Load().
func Load(path string) (Config, error) {
	return NewLoader(path, nil).Load()
}

// Load reads the config file, creating it with defaults when it is missing.
func (l *Loader) Load() (Config, error) {
	if l.path != "" {
		created, err := EnsureFile(l.path)
		if err != nil {
			return Config{}, err
		}
		if created {
			l.logger.Infof("Wrote default config to %s", l.path)
		}
		if err := l.v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", l.path, err)
		}
	}
	return l.decode()
}

// Read returns the effective config without touching the filesystem: a
// missing file falls back to defaults and environment.
func Read(path string) (Config, error) {
	l := NewLoader(path, nil)
	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			if err := l.v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("stat config %s: %w", path, err)
		}
	}
	return l.decode()
}

func (l *Loader) decode() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Watch calls onChange with every valid new version of the file. Invalid
// edits are logged and skipped. Only the first call has an effect.
func (l *Loader) Watch(onChange func(Config)) {
	if l.path == "" {
		return
	}
	l.watchOnce.Do(func() {
		l.v.OnConfigChange(func(e fsnotify.Event) {
			if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				return
			}
			cfg, err := l.decode()
			if err != nil {
				l.logger.Warnf("Ignoring config change in %s: %v", e.Name, err)
				return
			}
			l.logger.Infof("Reloaded config from %s", e.Name)
			onChange(cfg)
		})
		l.v.WatchConfig()
	})
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(keySleepPercentage, d.SleepPercentage)
	v.SetDefault(keyEnableTimeoutSkip, d.EnableTimeoutSkip)
	v.SetDefault(keyTimeoutSeconds, d.TimeoutSeconds)
	v.SetDefault(keyResolveLatch, d.ResolveLatch)
	v.SetDefault(keyServerAddr, d.Server.Addr)
	v.SetDefault(keyServerDatabase, d.Server.Database)
	v.SetDefault(keyServerTick, d.Server.TickInterval)
	v.SetDefault(keyServerRetention, d.Server.HistoryRetention)
}

// fileLayout is the on-disk shape of the config file.
type fileLayout struct {
	SleepPercentage   float64 `yaml:"sleep-percentage"`
	EnableTimeoutSkip bool    `yaml:"enable-timeout-skip"`
	TimeoutSeconds    int     `yaml:"timeout-seconds"`
	ResolveLatch      bool    `yaml:"resolve-latch"`
	Server            struct {
		Addr             string `yaml:"addr"`
		Database         string `yaml:"database"`
		TickInterval     string `yaml:"tick-interval"`
		HistoryRetention int    `yaml:"history-retention"`
	} `yaml:"server"`
}

// Marshal renders cfg as a config file.
func Marshal(cfg Config) ([]byte, error) {
	var f fileLayout
	f.SleepPercentage = cfg.SleepPercentage
	f.EnableTimeoutSkip = cfg.EnableTimeoutSkip
	f.TimeoutSeconds = cfg.TimeoutSeconds
	f.ResolveLatch = cfg.ResolveLatch
	f.Server.Addr = cfg.Server.Addr
	f.Server.Database = cfg.Server.Database
	f.Server.TickInterval = cfg.Server.TickInterval.String()
	f.Server.HistoryRetention = cfg.Server.HistoryRetention

	out, err := yaml.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}

// EnsureFile writes the default config to path unless a file is already there.
func EnsureFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config %s: %w", path, err)
	}
	return true, WriteFile(path, Default())
}

// WriteFile writes cfg to path, creating parent directories.
func WriteFile(path string, cfg Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, fileMode); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
