package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "ARENAEVO"

var ErrInvalidSettings = errors.New("invalid settings")

// Settings are the process wide options shared by every subcommand.
type Settings struct {
	Store        string `mapstructure:"store"`
	StoreDSN     string `mapstructure:"store_dsn"`
	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format"`
	LogFile      string `mapstructure:"log_file"`
	Workers      int    `mapstructure:"workers"`
	ArtifactsDir string `mapstructure:"artifacts_dir"`
	ScoreLog     string `mapstructure:"score_log"`
	ListenAddr   string `mapstructure:"listen_addr"`
}

func DefaultSettings() Settings {
	return Settings{
		Store:      "memory",
		LogLevel:   "info",
		LogFormat:  "console",
		Workers:    6,
		ListenAddr: ":8080",
	}
}

// LoadSettings reads defaults, then the optional config file at path, then
// ARENAEVO_* environment variables, later sources winning.
func LoadSettings(path string) (Settings, error) {
	v := viper.New()
	defaults := DefaultSettings()
	v.SetDefault("store", defaults.Store)
	v.SetDefault("store_dsn", defaults.StoreDSN)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_format", defaults.LogFormat)
	v.SetDefault("log_file", defaults.LogFile)
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("artifacts_dir", defaults.ArtifactsDir)
	v.SetDefault("score_log", defaults.ScoreLog)
	v.SetDefault("listen_addr", defaults.ListenAddr)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) Validate() error {
	if s.Workers < 1 {
		return fmt.Errorf("%w: workers must be > 0, got %d", ErrInvalidSettings, s.Workers)
	}
	switch s.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalidSettings, s.LogFormat)
	}
	return nil
}
