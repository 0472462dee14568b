package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_MatchesSpecBaseline(t *testing.T) {
	c := Default()
	assert.Equal(t, 5000, c.CacheTTLMs)
	assert.Equal(t, 30000, c.CandleCacheTTLMs)
	assert.Equal(t, 2000, c.OrderBookTTLMs)
	assert.Equal(t, 1000, c.PollingIntervalMs)
	assert.Equal(t, 2, c.MaxRetries)
	assert.Equal(t, "yahoo", c.PrimaryStockSource)
}

func TestLoad_NoPathReturnsDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().CacheTTLMs, c.CacheTTLMs)
}

func TestLoad_OverlaysYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("primaryStockSource: alpaca\nmaxRetries: 5\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "alpaca", c.PrimaryStockSource)
	assert.Equal(t, 5, c.MaxRetries)
}

func TestLoad_RejectsMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoad_EnvOverridesTakePrecedence(t *testing.T) {
	t.Setenv("ARENAFEED_PRIMARY_STOCK_SOURCE", "eodhd")
	t.Setenv("EODHD_API_KEY", "test-key")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "eodhd", c.PrimaryStockSource)
	assert.Equal(t, "test-key", c.Credentials.EODHDAPIKey)
}

func TestValidate_RejectsUnknownSource(t *testing.T) {
	c := Default()
	c.PrimaryStockSource = "not-a-source"
	assert.Error(t, c.Validate())
}

func TestValidate_RejectsNonPositiveTTL(t *testing.T) {
	c := Default()
	c.CacheTTLMs = 0
	assert.Error(t, c.Validate())
}

func TestDurationAccessors(t *testing.T) {
	c := Default()
	assert.Equal(t, c.CacheTTL().Milliseconds(), int64(c.CacheTTLMs))
	assert.Equal(t, c.PollingInterval().Milliseconds(), int64(c.PollingIntervalMs))
}

func TestArenaSymbolSet(t *testing.T) {
	c := Default()
	c.ArenaSymbols = []string{"AAPL", "BTC"}
	set := c.ArenaSymbolSet()
	assert.True(t, set["AAPL"])
	assert.True(t, set["BTC"])
	assert.False(t, set["MSFT"])
}

func TestDefaultBindings_CoversAllAssetTypes(t *testing.T) {
	bindings := DefaultBindings()
	seen := map[string]bool{}
	for _, b := range bindings {
		seen[string(b.AssetType)] = true
		assert.NotEmpty(t, b.Symbol)
		assert.NotEmpty(t, b.FallbackChain)
	}
	for _, assetType := range []string{"stock", "crypto", "forex", "commodity"} {
		assert.True(t, seen[assetType], "missing binding for asset type %s", assetType)
	}
}
