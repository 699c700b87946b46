package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	assert := assert.New(t)
	cfg := Default()
	assert.NoError(cfg.Validate())
	assert.Equal(0, cfg.Engine.MaxErrors)
	assert.Equal(1000, cfg.Engine.MaxRecursion)
	assert.True(cfg.Cache.Enabled)
	assert.Equal(time.Minute, cfg.Cache.TTL)
}

func TestParse(t *testing.T) {
	assert := assert.New(t)

	cfg, err := Parse([]byte(`
engine:
  max_errors: 10
cache:
  ttl: 30s
  max_rows: 50
logging:
  level: debug
  format: json
`))
	require.NoError(t, err)
	assert.Equal(10, cfg.Engine.MaxErrors)
	assert.Equal(1000, cfg.Engine.MaxRecursion)
	assert.Equal(30*time.Second, cfg.Cache.TTL)
	assert.Equal(50, cfg.Cache.MaxRows)
	assert.True(cfg.Cache.Enabled)
	assert.Equal("debug", cfg.Logging.Level)
	assert.Equal("stderr", cfg.Logging.Output)
}

func TestValidate(t *testing.T) {
	assert := assert.New(t)

	one := func(doc string) {
		_, err := Parse([]byte(doc))
		assert.Error(err, doc)
	}

	one("engine:\n  max_errors: -1\n")
	one("engine:\n  max_recursion: 0\n")
	one("cache:\n  max_rows: -3\n")
	one("logging:\n  level: loud\n")
	one("logging:\n  format: xml\n")
	one("engine: [")
}

func TestLoad(t *testing.T) {
	assert := assert.New(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(Default(), cfg)

	cfg, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(Default(), cfg)

	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  enabled: false\n"), 0644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.False(cfg.Cache.Enabled)

	// the printed form loads back
	again, err := Parse([]byte(cfg.String()))
	require.NoError(t, err)
	assert.Equal(cfg, again)
}
