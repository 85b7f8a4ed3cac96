package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	eff, err := Load(nil, "test")
	require.NoError(t, err)
	assert.Equal(t, ModeCombined, eff.Mode)
	assert.Equal(t, 4747, eff.Port)
	assert.Equal(t, StoreSQLite, eff.Store)
	assert.Equal(t, "http://127.0.0.1:4747", eff.HTTPBase)
}

func TestLoad_FlagsOverrideDefaults(t *testing.T) {
	eff, err := Load([]string{"--port", "9000", "--mcp-only"}, "test")
	require.NoError(t, err)
	assert.Equal(t, 9000, eff.Port)
	assert.Equal(t, ModeACPOnly, eff.Mode)
}

func TestLoad_EnvOverridesDefaultsButNotFlags(t *testing.T) {
	t.Setenv("AGENTATION_STORE", "memory")
	t.Setenv("AGENTATION_PORT", "9100")

	eff, err := Load([]string{"--port", "9200"}, "test")
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, eff.Store)
	assert.Equal(t, 9200, eff.Port, "flag must win over env")
}

func TestLoad_WebhooksFromEnv(t *testing.T) {
	t.Setenv("AGENTATION_WEBHOOKS", "https://a.example, https://b.example")
	eff, err := Load(nil, "test")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, eff.WebhookURLs)
}

func TestLoad_ConfigFileLayering(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "agentation-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString("port: 8123\nstore: memory\nevent_retention_days: 3\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	eff, err := Load([]string{"--config", f.Name()}, "test")
	require.NoError(t, err)
	assert.Equal(t, 8123, eff.Port)
	assert.Equal(t, StoreMemory, eff.Store)
	assert.Equal(t, 3, eff.EventRetentionDays)
}
