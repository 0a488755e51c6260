package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "../Master_Data_Sets", cfg.Data.Root)
	assert.Equal(t, 2*time.Hour, cfg.Sessions.IdleTTL)
	assert.Equal(t, 1.0, cfg.Reload.PerSecond)
	assert.Equal(t, 3, cfg.Reload.Burst)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vizlab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  gzip: false
data:
  root: /srv/data
  watch: true
  debounce: 250ms
sessions:
  idle_ttl: 30m
redis:
  addr: redis:6379
`), 0o644))

	t.Setenv("VIZLAB_DATA_ROOT", "/mnt/override")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("VIZLAB_WATCH", "not-a-bool")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.False(t, cfg.Server.Gzip)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "unset keys keep defaults")
	assert.Equal(t, "/mnt/override", cfg.Data.Root, "environment wins over file")
	assert.True(t, cfg.Data.Watch, "invalid bool in env is ignored")
	assert.Equal(t, 250*time.Millisecond, cfg.Data.Debounce)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.IdleTTL)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [\n"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Data.Root = ""
	cfg.Sessions.IdleTTL = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data.root")
	assert.Contains(t, err.Error(), "idle_ttl")

	assert.NoError(t, Default().Validate())
}
