package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "HOMEKEEP"

type Config struct {
	DBPath   string       `mapstructure:"db_path"`
	Timezone string       `mapstructure:"timezone"`
	Server   ServerConfig `mapstructure:"server"`
	Engine   EngineConfig `mapstructure:"engine"`
	Log      LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// JWTKey enables bearer-token auth on /api when set.
	JWTKey string `mapstructure:"jwt_key"`
}

type EngineConfig struct {
	MaxRetries      int `mapstructure:"max_retries"`
	HistoryPageSize int `mapstructure:"history_page_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "")
	v.SetDefault("timezone", "Local")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.jwt_key", "")
	v.SetDefault("engine.max_retries", 3)
	v.SetDefault("engine.history_page_size", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load merges defaults, the YAML config file, a .env file in the working
// directory and HOMEKEEP_* environment variables, later sources winning.
// An explicit path must exist; the default path may be missing.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
			if explicit || !missing {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultPath is ~/.homekeep/config.yaml, or "" without a home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".homekeep", "config.yaml")
}

func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Engine.MaxRetries < 0 {
		return fmt.Errorf("engine.max_retries must not be negative")
	}
	if c.Engine.HistoryPageSize < 1 || c.Engine.HistoryPageSize > 100 {
		return fmt.Errorf("engine.history_page_size must be between 1 and 100")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Location is the time zone that decides which calendar day "today" is.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}
