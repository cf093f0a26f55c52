package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.hcl"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigParsesAndBackfills(t *testing.T) {
	path := writeConfigFile(t, `
server {
  port = 9000
}

game {
  small_blind = 25
  big_blind   = 50
}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Address, "unset fields fall back to defaults")
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 25, cfg.Game.SmallBlind)
	assert.Equal(t, 50, cfg.Game.BigBlind)
	assert.Equal(t, 6, cfg.Game.MaxSeats)
	assert.Equal(t, 1000, cfg.Game.StartingStack)

	assert.Equal(t, "localhost:9000", cfg.Addr())
	assert.Equal(t, 5*time.Second, cfg.RestartDelay())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigRejectsMalformedHCL(t *testing.T) {
	path := writeConfigFile(t, `server { port = `)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"small blind zero", func(c *Config) { c.Game.SmallBlind = 0 }},
		{"big blind below small", func(c *Config) { c.Game.BigBlind = c.Game.SmallBlind }},
		{"one seat", func(c *Config) { c.Game.MaxSeats = 1 }},
		{"eleven seats", func(c *Config) { c.Game.MaxSeats = 11 }},
		{"shallow stack", func(c *Config) { c.Game.StartingStack = 50 }},
		{"no restart delay", func(c *Config) { c.Game.RestartDelaySeconds = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGameDefaults(t *testing.T) {
	cfg := DefaultConfig()
	g := cfg.GameDefaults()
	assert.Equal(t, cfg.Game.SmallBlind, g.SmallBlind)
	assert.Equal(t, cfg.Game.BigBlind, g.BigBlind)
	assert.Equal(t, cfg.Game.MaxSeats, g.MaxSeats)
	assert.Equal(t, cfg.Game.StartingStack, g.StartingStack)
}
