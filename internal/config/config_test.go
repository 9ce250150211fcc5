package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsOutOfBoundFilters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Filters.MinCombinedVolumeUSD = decimal.NewFromInt(-1)
	cfg.Filters.MaxIntraExchangeSpreadPct = decimal.NewFromInt(101)

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filters.min_combined_volume_usd")
	assert.Contains(t, err.Error(), "filters.max_intra_exchange_spread_pct")
}

func TestValidate_AcceptsJustInsideBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Filters.MinCombinedVolumeUSD = decimal.Zero
	cfg.Filters.MaxIntraExchangeSpreadPct = decimal.NewFromInt(100)
	cfg.Filters.MaxCrossExchangeSpreadPct = decimal.NewFromInt(100)
	cfg.Filters.MinNetAPRPercent = decimal.NewFromInt(-1000)
	cfg.Trading.HoldTimeHours = 1
	cfg.Performance.FetchTimeoutSeconds = 1

	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsInvalidTrading(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trading.MaxPositionSizeUSD = decimal.Zero
	cfg.Trading.HoldTimeHours = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trading.max_position_size_usd")
	assert.Contains(t, err.Error(), "trading.hold_time_hours")
}

func TestValidate_RejectsInvalidPerformanceAndDisplay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Performance.FetchTimeoutSeconds = 1000
	cfg.Performance.RateLimitDelayMs = -1
	cfg.Display.MaxOpportunitiesShown = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "performance.fetch_timeout_seconds")
	assert.Contains(t, err.Error(), "performance.rate_limit_delay_ms")
	assert.Contains(t, err.Error(), "display.max_opportunities_shown")
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "VERBOSE"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestValidate_LogLevelIsCaseInsensitive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "debug"
	assert.NoError(t, cfg.Validate())
}

func withCredentialEnv(t *testing.T) {
	t.Helper()
	t.Setenv("EXTENDED_API_KEY", "k")
	t.Setenv("EXTENDED_STARK_PUBLIC_KEY", "pub")
	t.Setenv("EXTENDED_STARK_PRIVATE_KEY", "priv")
	t.Setenv("EXTENDED_VAULT_ID", "1")
	t.Setenv("PACIFICA_WALLET", "wallet")
	t.Setenv("PACIFICA_PUBLIC_KEY", "pub")
	t.Setenv("PACIFICA_PRIVATE_KEY", "priv")
}

func TestLoadConfig_AppliesDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"trading":{"max_position_size_usd":"500","hold_time_hours":24}}`), 0o600))

	withCredentialEnv(t)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.True(t, cfg.Trading.MaxPositionSizeUSD.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, Secret("k"), cfg.Credentials.ExtendedAPIKey)
	assert.True(t, cfg.Filters.MinCombinedVolumeUSD.Equal(decimal.NewFromFloat(10_000_000)))
}

func TestLoadConfig_FailsWithoutCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required environment variables")
}

func TestLoadConfig_FailsOnInvalidPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"trading":{"hold_time_hours":0}}`), 0o600))

	withCredentialEnv(t)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestLoadCredentialsFromEnv_ListsEachMissingVar(t *testing.T) {
	_, err := LoadCredentialsFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXTENDED_API_KEY")
	assert.Contains(t, err.Error(), "PACIFICA_PRIVATE_KEY")
}

func TestLoadCredentialsFromEnv_PopulatesAllFields(t *testing.T) {
	withCredentialEnv(t)

	creds, err := LoadCredentialsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, Secret("k"), creds.ExtendedAPIKey)
	assert.Equal(t, "1", creds.ExtendedVaultID)
	assert.Equal(t, "wallet", creds.PacificaWallet)
}

func TestFetchTimeout_ConvertsSecondsToDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Performance.FetchTimeoutSeconds = 45
	assert.Equal(t, int64(45), int64(cfg.FetchTimeout().Seconds()))
}

func TestString_RedactsCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Credentials = Credentials{ExtendedAPIKey: Secret("super-secret")}

	assert.NotContains(t, cfg.String(), "super-secret")
}
