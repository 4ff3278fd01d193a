/*
config.go - Process configuration

PURPOSE:
  Loads server, database, auth and logging settings. Values are layered:
  built-in defaults, then an optional config file, then LEDGER_* environment
  variables (a nested key like db.path becomes LEDGER_DB_PATH).

  cmd/server loads a .env file into the environment before calling Load, so
  local overrides can live next to the binary.

KEYS:
  server.port               HTTP port (default 8080)
  server.cors.allow_origins Allowed CORS origins
  server.scenarios          Mount /api/scenarios (development only)
  db.path                   SQLite path; ":memory:" for an ephemeral store
  auth.jwt_secret           HS256 secret for bearer tokens; empty disables JWT
  auth.dev_header           Header trusted as the actor id when set (dev only)
  log.level                 debug, info, warn, error
  log.format                json or console

SEE ALSO:
  - cmd/server/main.go: Consumer
  - logging/logging.go: Uses LogConfig
*/
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	DB     DBConfig     `mapstructure:"db"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	CORS CORSConfig `mapstructure:"cors"`

	// Scenarios mounts the demo scenario loader. Development only.
	Scenarios bool `mapstructure:"scenarios"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	DevHeader string `mapstructure:"dev_header"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "LEDGER"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("server.scenarios", false)
	v.SetDefault("db.path", "ledger.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.dev_header", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration. An empty path searches for config.yaml in the
// working directory and ./config; a missing file there is not an error,
// but an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// Origins from the environment arrive as one comma separated string.
	cfg.Server.CORS.AllowOrigins = splitList(strings.Join(cfg.Server.CORS.AllowOrigins, ","))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if strings.TrimSpace(c.DB.Path) == "" {
		return errors.New("db.path is required")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format %q must be json or console", c.Log.Format)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
