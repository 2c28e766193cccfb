package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ".agentcore/agentcore.db", cfg.Database.Path)
	assert.Equal(t, 3, cfg.Mailer.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.Mailer.BaseDelay)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  path: /var/lib/agentcore/state.db
mailer:
  domain: agents.example.com
  max_attempts: 5
  base_delay: 250ms
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/agentcore/state.db", cfg.Database.Path)
	assert.Equal(t, "agents.example.com", cfg.Mailer.Domain)
	assert.Equal(t, 5, cfg.Mailer.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Mailer.BaseDelay)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  path: /from/file.db
mailer:
  domain: file.example.com
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("AGENTCORE_DATABASE_PATH", "/from/env.db")
	t.Setenv("AGENTCORE_MAILER_DOMAIN", "env.example.com")
	t.Setenv("AGENTCORE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env.db", cfg.Database.Path)
	assert.Equal(t, "env.example.com", cfg.Mailer.Domain)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestBareEnvVarsDoNotLeakIn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  path: /var/lib/agentcore/state.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// Common unprefixed variables must never be mistaken for overrides.
	t.Setenv("PATH", "/definitely/not/a/database")
	t.Setenv("DOMAIN", "stray.example.com")
	t.Setenv("LEVEL", "trace")
	t.Setenv("MAX_ATTEMPTS", "99")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/agentcore/state.db", cfg.Database.Path)
	assert.Equal(t, "localhost", cfg.Mailer.Domain)
	assert.Equal(t, 3, cfg.Mailer.MaxAttempts)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [not: a: mapping"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
