package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/offline"
)

// EnvPrefix prefixes environment overrides, e.g. AYURVEDA_SERVER_URL.
const EnvPrefix = "AYURVEDA"

// ProjectFile is the per-directory config file name.
const ProjectFile = ".ayurvedarc"

// Config holds all configurable client settings.
type Config struct {
	ServerURL      string   `json:"server_url"`
	CacheName      string   `json:"cache_name"`
	ShellURLs      []string `json:"shell_urls"`
	CacheDB        string   `json:"cache_db"`        // empty means <data dir>/cache.db
	RequestTimeout string   `json:"request_timeout"` // Go duration, e.g. "30s"
	LogLevel       string   `json:"log_level"`
	LogFile        string   `json:"log_file"` // empty means <data dir>/logs/ayurveda.log
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		ServerURL:      "http://localhost:5000",
		CacheName:      offline.DefaultName,
		ShellURLs:      append([]string(nil), offline.DefaultShell...),
		RequestTimeout: "30s",
		LogLevel:       "info",
	}
}

// Timeout parses RequestTimeout.
func (c Config) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid request_timeout %q: %w", c.RequestTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid request_timeout %q: must be positive", c.RequestTimeout)
	}
	return d, nil
}

// GlobalPath returns ~/.config/ayurveda-now/config.json.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ayurveda-now", "config.json"), nil
}

// LoadGlobal reads ~/.config/ayurveda-now/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return loadFile(path, true)
}

// LoadProject reads .ayurvedarc in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(ProjectFile, false)
}

// Load merges the global and project files and applies environment overrides.
func Load() (Config, error) {
	global, err := LoadGlobal()
	if err != nil {
		return Config{}, err
	}
	project, err := LoadProject()
	if err != nil {
		return Config{}, err
	}
	return ApplyEnv(Merge(global, project)), nil
}

func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	for _, src := range []*Config{global, project} {
		if src == nil {
			continue
		}
		overlay(&result, src)
	}
	return result
}

func overlay(dst, src *Config) {
	if src.ServerURL != "" {
		dst.ServerURL = src.ServerURL
	}
	if src.CacheName != "" {
		dst.CacheName = src.CacheName
	}
	if len(src.ShellURLs) > 0 {
		dst.ShellURLs = src.ShellURLs
	}
	if src.CacheDB != "" {
		dst.CacheDB = src.CacheDB
	}
	if src.RequestTimeout != "" {
		dst.RequestTimeout = src.RequestTimeout
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFile != "" {
		dst.LogFile = src.LogFile
	}
}

// ApplyEnv overrides cfg with AYURVEDA_* environment variables. Shell URLs
// are whitespace separated.
func ApplyEnv(cfg Config) Config {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range []string{"server_url", "cache_name", "shell_urls", "cache_db", "request_timeout", "log_level", "log_file"} {
		_ = v.BindEnv(key)
	}

	env := Config{
		ServerURL:      v.GetString("server_url"),
		CacheName:      v.GetString("cache_name"),
		CacheDB:        v.GetString("cache_db"),
		RequestTimeout: v.GetString("request_timeout"),
		LogLevel:       v.GetString("log_level"),
		LogFile:        v.GetString("log_file"),
	}
	if v.IsSet("shell_urls") {
		env.ShellURLs = strings.Fields(v.GetString("shell_urls"))
	}
	overlay(&cfg, &env)
	return cfg
}

// Watch reloads the config whenever the file at path changes and passes
// the merged result, project file and environment included, to onChange.
// The file must exist. Watching lasts for the life of the process.
func Watch(path string, logger *zap.Logger, onChange func(Config)) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("configuration file changed, reloading", zap.String("file", e.Name))
		global, err := loadFile(path, true)
		if err != nil {
			logger.Error("error reloading configuration", zap.Error(err))
			return
		}
		project, err := LoadProject()
		if err != nil {
			logger.Error("error reloading configuration", zap.Error(err))
			return
		}
		onChange(ApplyEnv(Merge(global, project)))
	})
	v.WatchConfig()
	return nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
