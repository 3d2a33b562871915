package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LoShan17/loshan-chainflip-challenge/internal/tickmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]string{"-env-file", ""})
	require.NoError(t, err)

	assert.Equal(t, "ETH", cfg.BaseAsset)
	assert.Equal(t, "USDC", cfg.QuoteAsset)
	assert.Equal(t, "http://localhost:9944", cfg.HTTPURL)
	assert.Equal(t, "ws://localhost:9944", cfg.WSURL)
	assert.Equal(t, 3, cfg.RPCRetries)
	assert.Equal(t, 10*time.Second, cfg.RPCTimeout)
	assert.False(t, cfg.CheckInvariants)
	assert.False(t, cfg.RunMigration)
	assert.Equal(t, "scripts/schema.sql", cfg.SchemaPath)
	assert.Equal(t, 5, cfg.AlertAfterFailures)
}

func TestLoadYAMLThenFlags(t *testing.T) {
	path := writeFile(t, "config.yaml", `
base_asset: "btc"
quote_asset: "usdc"
http_url: "http://node:9944"
ws_url: "ws://node:9944"
rpc_retries: 5
rpc_timeout: 3s
check_invariants: true
asset_decimals:
  WBTC: 8
`)

	cfg, err := Load([]string{"-env-file", "", "-config", path, "-rpc-retries", "2", "-quote_asset", "usdt"})
	require.NoError(t, err)

	assert.Equal(t, "BTC", cfg.BaseAsset)
	assert.Equal(t, "USDT", cfg.QuoteAsset)
	assert.Equal(t, "http://node:9944", cfg.HTTPURL)
	assert.Equal(t, 2, cfg.RPCRetries)
	assert.Equal(t, 3*time.Second, cfg.RPCTimeout)
	assert.True(t, cfg.CheckInvariants)

	d, err := tickmath.Decimals("WBTC")
	require.NoError(t, err)
	assert.Equal(t, uint8(8), d)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("DB_CONN_STR", "postgres://u:p@db/book")
	envFile := writeFile(t, ".env", "CF_WS_URL=ws://from-dotenv:9944\n")
	t.Cleanup(func() { os.Unsetenv("CF_WS_URL") })

	cfg, err := Load([]string{"-env-file", envFile})
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db/book", cfg.DBConnStr)
	assert.Equal(t, "ws://from-dotenv:9944", cfg.WSURL)
}

func TestLoadAssetDecimalsFlag(t *testing.T) {
	cfg, err := Load([]string{"-env-file", "", "-asset-decimals", "arb:18,pepe:9", "-base_asset", "PEPE"})
	require.NoError(t, err)
	assert.Equal(t, uint8(9), cfg.AssetDecimals["PEPE"])
	assert.Equal(t, "PEPE", cfg.BaseAsset)

	_, err = Load([]string{"-env-file", "", "-asset-decimals", "arb"})
	assert.Error(t, err)
	_, err = Load([]string{"-env-file", "", "-asset-decimals", "arb:300"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "Same assets", modify: func(c *Config) { c.QuoteAsset = c.BaseAsset }},
		{name: "Unknown base", modify: func(c *Config) { c.BaseAsset = "NOPE" }},
		{name: "Unknown quote", modify: func(c *Config) { c.QuoteAsset = "NOPE" }},
		{name: "Missing asset", modify: func(c *Config) { c.BaseAsset = "" }},
		{name: "Missing ws url", modify: func(c *Config) { c.WSURL = "" }},
		{name: "No retries", modify: func(c *Config) { c.RPCRetries = 0 }},
		{name: "Migration without database", modify: func(c *Config) { c.RunMigration = true }},
	}

	assert.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsMissingConfigFile(t *testing.T) {
	_, err := Load([]string{"-env-file", "", "-config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}
