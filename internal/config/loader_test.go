package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_MissingFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mentara.json")
	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 5060, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.Agent.Provider)
	assert.NotEmpty(t, cfg.DataDir)
	assert.NotEmpty(t, cfg.Logging.File)
}

func TestLoader_ReadsFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mentara.json")
	body := `{
		"server": {"port": 9100},
		"simulation": {"max_turns": 4},
		"agent": {"provider": "anthropic", "api_key": "file-key"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Simulation.MaxTurns)
	assert.Equal(t, "anthropic", cfg.Agent.Provider)
	assert.Equal(t, "file-key", cfg.Agent.APIKey)

	// Values absent from the file keep their defaults.
	assert.Equal(t, 250, cfg.Delivery.PollIntervalMillis)
}

func TestLoader_APIKeyFromEnvironment(t *testing.T) {
	t.Setenv("MENTARA_API_KEY", "env-key")

	path := filepath.Join(t.TempDir(), "mentara.json")
	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Agent.APIKey)
}

func TestLoader_RejectsInvalidFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mentara.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server": {"port": -1}}`), 0600))

	_, err := NewLoader(path).Load()
	assert.Error(t, err)
}

func TestLoader_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mentara.json")
	loader := NewLoader(path)

	cfg := DefaultConfig()
	cfg.Server.Port = 9200
	cfg.Agent.Provider = "anthropic"
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 9200, loaded.Server.Port)
	assert.Equal(t, "anthropic", loaded.Agent.Provider)
}
