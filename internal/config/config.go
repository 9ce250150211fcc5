// Package config loads and validates the bot's policy parameters
// (component C7) from a JSON file, plus credentials from the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Filters holds the liquidity/spread/APR thresholds a candidate must clear
// to be ranked (SPEC_FULL.md §6).
type Filters struct {
	MinCombinedVolumeUSD      decimal.Decimal `json:"min_combined_volume_usd"`
	MaxIntraExchangeSpreadPct decimal.Decimal `json:"max_intra_exchange_spread_pct"`
	MaxCrossExchangeSpreadPct decimal.Decimal `json:"max_cross_exchange_spread_pct"`
	MinNetAPRPercent          decimal.Decimal `json:"min_net_apr_pct"`
}

// Trading holds sizing and rotation policy.
type Trading struct {
	MaxPositionSizeUSD decimal.Decimal `json:"max_position_size_usd"`
	HoldTimeHours      int             `json:"hold_time_hours"`
}

// Display holds operator-facing summary knobs; consumed by the status
// renderer (an external collaborator per SPEC_FULL.md §4.5 step 5) but
// validated here along with everything else.
type Display struct {
	MaxOpportunitiesShown  int  `json:"max_opportunities_shown"`
	ShowFilteredOutCount bool `json:"show_filtered_out_count"`
}

// Performance holds scan-level timing knobs.
type Performance struct {
	FetchTimeoutSeconds int `json:"fetch_timeout_seconds"`
	RateLimitDelayMs    int `json:"rate_limit_delay_ms"`
}

// Config is the full validated policy document (config.json).
type Config struct {
	Filters     Filters     `json:"filters"`
	Trading     Trading     `json:"trading"`
	Display     Display     `json:"display"`
	Performance Performance `json:"performance"`

	// LogLevel and MetricsPort are ambient bootstrap knobs, not named by
	// the distilled spec's config.json layout, but required by SPEC_FULL.md
	// §10's logging/metrics stack. They default when absent.
	LogLevel    string `json:"log_level"`
	MetricsPort int    `json:"metrics_port"`

	// Credentials is populated from the environment after the file loads,
	// never from config.json, so secrets never live on disk next to policy.
	Credentials Credentials `json:"-"`
}

// Credentials holds venue API keys and signing material resolved from
// environment variables (SPEC_FULL.md §6). LoadCredentialsFromEnv below
// populates it; LoadConfig attaches the result to Config.
type Credentials struct {
	ExtendedAPIKey          Secret
	ExtendedStarkPublicKey  Secret
	ExtendedStarkPrivateKey Secret
	ExtendedVaultID         string

	PacificaWallet     string
	PacificaPublicKey  Secret
	PacificaPrivateKey Secret
}

// ValidationError names the offending field so operators can fix config.json
// without needing to grep source for the bound being enforced.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q (value: %v): %s", e.Field, e.Value, e.Message)
}

// requiredEnvVars lists variables whose absence aborts startup
// (SPEC_FULL.md §6).
var requiredEnvVars = []string{
	"EXTENDED_API_KEY",
	"EXTENDED_STARK_PUBLIC_KEY",
	"EXTENDED_STARK_PRIVATE_KEY",
	"EXTENDED_VAULT_ID",
	"PACIFICA_WALLET",
	"PACIFICA_PUBLIC_KEY",
	"PACIFICA_PRIVATE_KEY",
}

// LoadCredentialsFromEnv reads the required environment variables and fails
// fast if any are missing.
func LoadCredentialsFromEnv() (Credentials, error) {
	values := make(map[string]string, len(requiredEnvVars))
	var missing []string
	for _, name := range requiredEnvVars {
		v := os.Getenv(name)
		if v == "" {
			missing = append(missing, name)
			continue
		}
		values[name] = v
	}
	if len(missing) > 0 {
		return Credentials{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return Credentials{
		ExtendedAPIKey:          Secret(values["EXTENDED_API_KEY"]),
		ExtendedStarkPublicKey:  Secret(values["EXTENDED_STARK_PUBLIC_KEY"]),
		ExtendedStarkPrivateKey: Secret(values["EXTENDED_STARK_PRIVATE_KEY"]),
		ExtendedVaultID:         values["EXTENDED_VAULT_ID"],
		PacificaWallet:          values["PACIFICA_WALLET"],
		PacificaPublicKey:       Secret(values["PACIFICA_PUBLIC_KEY"]),
		PacificaPrivateKey:      Secret(values["PACIFICA_PRIVATE_KEY"]),
	}, nil
}

// LoadConfig reads config.json from filename, validates it, and layers
// credentials resolved from the environment on top.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "INFO"
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	creds, err := LoadCredentialsFromEnv()
	if err != nil {
		return nil, err
	}
	cfg.Credentials = creds

	return cfg, nil
}

// Validate enforces the bounds in SPEC_FULL.md §3/§6, grounded directly on
// the original distillation's validate() (original_source/src/opportunity.rs).
func (c *Config) Validate() error {
	var errs []error

	if c.Filters.MinCombinedVolumeUSD.IsNegative() || c.Filters.MinCombinedVolumeUSD.GreaterThan(decimal.NewFromFloat(1e12)) {
		errs = append(errs, ValidationError{"filters.min_combined_volume_usd", c.Filters.MinCombinedVolumeUSD, "must be between 0 and 1e12"})
	}
	if c.Filters.MaxIntraExchangeSpreadPct.IsNegative() || c.Filters.MaxIntraExchangeSpreadPct.GreaterThan(decimal.NewFromInt(100)) {
		errs = append(errs, ValidationError{"filters.max_intra_exchange_spread_pct", c.Filters.MaxIntraExchangeSpreadPct, "must be between 0 and 100"})
	}
	if c.Filters.MaxCrossExchangeSpreadPct.IsNegative() || c.Filters.MaxCrossExchangeSpreadPct.GreaterThan(decimal.NewFromInt(100)) {
		errs = append(errs, ValidationError{"filters.max_cross_exchange_spread_pct", c.Filters.MaxCrossExchangeSpreadPct, "must be between 0 and 100"})
	}
	if c.Filters.MinNetAPRPercent.LessThan(decimal.NewFromInt(-1000)) || c.Filters.MinNetAPRPercent.GreaterThan(decimal.NewFromInt(100000)) {
		errs = append(errs, ValidationError{"filters.min_net_apr_pct", c.Filters.MinNetAPRPercent, "must be between -1000 and 100000"})
	}

	if c.Trading.MaxPositionSizeUSD.LessThanOrEqual(decimal.Zero) || c.Trading.MaxPositionSizeUSD.GreaterThan(decimal.NewFromFloat(1e7)) {
		errs = append(errs, ValidationError{"trading.max_position_size_usd", c.Trading.MaxPositionSizeUSD, "must be positive and at most 1e7"})
	}
	if c.Trading.HoldTimeHours < 1 || c.Trading.HoldTimeHours > 720 {
		errs = append(errs, ValidationError{"trading.hold_time_hours", c.Trading.HoldTimeHours, "must be between 1 and 720"})
	}

	if c.Performance.FetchTimeoutSeconds < 1 || c.Performance.FetchTimeoutSeconds > 600 {
		errs = append(errs, ValidationError{"performance.fetch_timeout_seconds", c.Performance.FetchTimeoutSeconds, "must be between 1 and 600"})
	}
	if c.Performance.RateLimitDelayMs < 0 {
		errs = append(errs, ValidationError{"performance.rate_limit_delay_ms", c.Performance.RateLimitDelayMs, "must not be negative"})
	}

	if c.Display.MaxOpportunitiesShown < 0 {
		errs = append(errs, ValidationError{"display.max_opportunities_shown", c.Display.MaxOpportunitiesShown, "must not be negative"})
	}

	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.LogLevel)) {
		errs = append(errs, ValidationError{"log_level", c.LogLevel, fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", "))})
	}

	return errors.Join(errs...)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// FetchTimeout is performance.fetch_timeout_seconds as a time.Duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Performance.FetchTimeoutSeconds) * time.Second
}

// String renders the config for logging; credentials are never part of the
// struct this marshals, so there is nothing here to mask.
func (c *Config) String() string {
	data, _ := json.Marshal(c)
	return string(data)
}

// DefaultConfig mirrors the original implementation's default_config(),
// used both as a starting point before unmarshalling config.json (so
// omitted fields keep sensible values) and directly in tests.
func DefaultConfig() *Config {
	return &Config{
		Filters: Filters{
			MinCombinedVolumeUSD:      decimal.NewFromFloat(10_000_000),
			MaxIntraExchangeSpreadPct: decimal.NewFromFloat(0.15),
			MaxCrossExchangeSpreadPct: decimal.NewFromFloat(0.25),
			MinNetAPRPercent:          decimal.NewFromFloat(5.0),
		},
		Trading: Trading{
			MaxPositionSizeUSD: decimal.NewFromFloat(1000.0),
			HoldTimeHours:      48,
		},
		Display: Display{
			MaxOpportunitiesShown: 10,
			ShowFilteredOutCount:  true,
		},
		Performance: Performance{
			FetchTimeoutSeconds: 30,
			RateLimitDelayMs:    100,
		},
		LogLevel:    "INFO",
		MetricsPort: 9090,
	}
}
