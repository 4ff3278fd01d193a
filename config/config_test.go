package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cost-ledger/config"
)

func TestLoad_Defaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "ledger.db", cfg.DB.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Auth.JWTSecret)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_FileThenEnv(t *testing.T) {
	// GIVEN: A config file setting port and db path
	// WHEN: An env var overrides the port
	// THEN: The env var wins and the file value is kept for the rest

	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
db:
  path: /tmp/ledger.db
log:
  format: console
`), 0o600))
	t.Setenv("LEDGER_SERVER_PORT", "9100")
	t.Setenv("LEDGER_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("LEDGER_SERVER_CORS_ALLOW_ORIGINS", "https://a.example, https://b.example")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "/tmp/ledger.db", cfg.DB.Path)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORS.AllowOrigins)
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			Server: config.ServerConfig{Port: 8080},
			DB:     config.DBConfig{Path: ":memory:"},
			Log:    config.LogConfig{Level: "info", Format: "json"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		ok     bool
	}{
		{"valid", func(*config.Config) {}, true},
		{"port zero", func(c *config.Config) { c.Server.Port = 0 }, false},
		{"port too high", func(c *config.Config) { c.Server.Port = 70000 }, false},
		{"empty db path", func(c *config.Config) { c.DB.Path = " " }, false},
		{"bad level", func(c *config.Config) { c.Log.Level = "loud" }, false},
		{"bad format", func(c *config.Config) { c.Log.Format = "xml" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
