package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("STATUSROOM_DATABASE__URL", "postgres://localhost/statusroom")
	t.Setenv("STATUSROOM_JWT__SECRET_KEY", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv(PathEnv, "")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 16, cfg.Realtime.SendBuffer)
	assert.Equal(t, 5*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, "postgres://localhost/statusroom", cfg.Database.URL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv(PathEnv, "")
	t.Setenv("STATUSROOM_DATABASE__MAX_OPEN_CONNS", "7")
	t.Setenv("STATUSROOM_REALTIME__PONG_TIMEOUT", "2m")
	t.Setenv("STATUSROOM_CORS__ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("STATUSROOM_REDIS__URL", "redis://localhost:6379/0")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Database.MaxOpenConns)
	assert.Equal(t, 2*time.Minute, cfg.Realtime.PongTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(`
server:
  port: "8181"
log:
  level: debug
  format: text
jwt:
  secret_key: from-file
`), 0o600)
	require.NoError(t, err)

	t.Setenv(PathEnv, path)
	t.Setenv("STATUSROOM_DATABASE__URL", "postgres://localhost/statusroom")
	t.Setenv("STATUSROOM_LOG__LEVEL", "warn")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, "from-file", cfg.JWT.SecretKey)
	assert.Equal(t, "warn", cfg.Log.Level, "environment wins over the file")
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	setRequired(t)
	t.Setenv(PathEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()

	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing database url", func(c *Config) { c.Database.URL = "" }, "database.url"},
		{"missing jwt secret", func(c *Config) { c.JWT.SecretKey = "" }, "jwt.secret_key"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"ping after pong", func(c *Config) { c.Realtime.PingInterval = 2 * c.Realtime.PongTimeout }, "ping_interval"},
		{"zero send buffer", func(c *Config) { c.Realtime.SendBuffer = 0 }, "send_buffer"},
		{"negative lock timeout", func(c *Config) { c.Database.LockTimeout = -time.Second }, "lock_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Database.URL = "postgres://localhost/statusroom"
			cfg.JWT.SecretKey = "secret"
			tt.mutate(&cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("valid", func(t *testing.T) {
		cfg := Default()
		cfg.Database.URL = "postgres://localhost/statusroom"
		cfg.JWT.SecretKey = "secret"
		assert.NoError(t, cfg.Validate())
	})
}
