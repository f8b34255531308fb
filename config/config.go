// Package config loads the engine configuration: a yaml file for thresholds
// and tunables, environment variables for secrets and endpoints.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the validated, typed configuration.
type Config struct {
	HTTPAddr string
	DevMode  bool
	APIKey   string

	RedisAddr string
	RedisDB   int

	EVMRPCURL    string
	SimulatorURL string
	ScreenerURL  string

	CoinGeckoURL   string
	DefiLlamaURL   string
	DexScreenerURL string
	BinanceSymbols map[string]string
	BybitSymbols   map[string]string

	SourceTimeout       time.Duration
	ConsensusBudget     time.Duration
	ConsensusCacheTTL   time.Duration
	OutlierTolerancePct decimal.Decimal
	SpreadTolerancePct  decimal.Decimal
	MinQuorum           int

	HistoryMaxAge time.Duration
	HistoryWindow time.Duration

	AnomalyMaxDeviationPct decimal.Decimal
	AnomalyMinSamples      int

	MinPoolUSD      decimal.Decimal
	MinVolume24hUSD decimal.Decimal

	MaxBuyTaxPct     decimal.Decimal
	MaxSellTaxPct    decimal.Decimal
	MaxTopHoldersPct decimal.Decimal
	MinAgeDays       int

	TWAPMaxDeviationPct decimal.Decimal
	FeedMaxDeviationPct decimal.Decimal
	FeedStaleAfter      time.Duration
	Feeds               map[string]string
	ValueCapUSD         decimal.Decimal
	MinConfidence       float64
	AuditDir            string
}

// ConfigTmp mirrors the yaml file; decimals arrive as strings and are parsed
// during validation.
type ConfigTmp struct {
	HTTPAddr string `yaml:"http_addr,omitempty"`
	DevMode  bool   `yaml:"dev_mode,omitempty"`

	RedisDB int `yaml:"redis_db,omitempty"`

	CoinGeckoURL   string            `yaml:"coingecko_url,omitempty"`
	DefiLlamaURL   string            `yaml:"defillama_url,omitempty"`
	DexScreenerURL string            `yaml:"dexscreener_url,omitempty"`
	ScreenerURL    string            `yaml:"screener_url,omitempty"`
	BinanceSymbols map[string]string `yaml:"binance_symbols,omitempty"`
	BybitSymbols   map[string]string `yaml:"bybit_symbols,omitempty"`

	SourceTimeout          time.Duration `yaml:"source_timeout,omitempty"`
	ConsensusBudget        time.Duration `yaml:"consensus_budget,omitempty"`
	ConsensusCacheTTL      time.Duration `yaml:"consensus_cache_ttl,omitempty"`
	OutlierTolerancePctStr string        `yaml:"outlier_tolerance_pct,omitempty"`
	SpreadTolerancePctStr  string        `yaml:"spread_tolerance_pct,omitempty"`
	MinQuorum              int           `yaml:"min_quorum,omitempty"`

	HistoryMaxAge time.Duration `yaml:"history_max_age,omitempty"`
	HistoryWindow time.Duration `yaml:"history_window,omitempty"`

	AnomalyMaxDeviationPctStr string `yaml:"anomaly_max_deviation_pct,omitempty"`
	AnomalyMinSamples         int    `yaml:"anomaly_min_samples,omitempty"`

	MinPoolUSDStr      string `yaml:"min_pool_usd,omitempty"`
	MinVolume24hUSDStr string `yaml:"min_volume_24h_usd,omitempty"`

	MaxBuyTaxPctStr     string `yaml:"max_buy_tax_pct,omitempty"`
	MaxSellTaxPctStr    string `yaml:"max_sell_tax_pct,omitempty"`
	MaxTopHoldersPctStr string `yaml:"max_top_holders_pct,omitempty"`
	MinAgeDays          int    `yaml:"min_age_days,omitempty"`

	TWAPMaxDeviationPctStr string            `yaml:"twap_max_deviation_pct,omitempty"`
	FeedMaxDeviationPctStr string            `yaml:"feed_max_deviation_pct,omitempty"`
	FeedStaleAfter         time.Duration     `yaml:"feed_stale_after,omitempty"`
	Feeds                  map[string]string `yaml:"feeds,omitempty"`
	ValueCapUSDStr         string            `yaml:"value_cap_usd,omitempty"`
	MinConfidence          float64           `yaml:"min_confidence,omitempty"`
	AuditDir               string            `yaml:"audit_dir,omitempty"`
}

// Get loads the configuration from the yaml file at path, falling back to
// defaults for everything omitted. An empty path yields pure defaults.
// Secrets and endpoints come from the environment.
func Get(path string) (Config, error) {
	var tmp ConfigTmp
	if path != "" {
		f, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(f, &tmp); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		HTTPAddr: defaultStr(tmp.HTTPAddr, ":8090"),
		DevMode:  tmp.DevMode,
		APIKey:   os.Getenv("SWEEPGUARD_API_KEY"),

		RedisAddr: defaultStr(os.Getenv("REDIS_ADDR"), "localhost:6379"),
		RedisDB:   tmp.RedisDB,

		EVMRPCURL:    os.Getenv("EVM_RPC_URL"),
		SimulatorURL: os.Getenv("SIMULATOR_URL"),
		ScreenerURL:  tmp.ScreenerURL,

		CoinGeckoURL:   tmp.CoinGeckoURL,
		DefiLlamaURL:   tmp.DefiLlamaURL,
		DexScreenerURL: tmp.DexScreenerURL,
		BinanceSymbols: tmp.BinanceSymbols,
		BybitSymbols:   tmp.BybitSymbols,

		SourceTimeout:     defaultDur(tmp.SourceTimeout, 5*time.Second),
		ConsensusBudget:   defaultDur(tmp.ConsensusBudget, 8*time.Second),
		ConsensusCacheTTL: defaultDur(tmp.ConsensusCacheTTL, 60*time.Second),
		MinQuorum:         defaultInt(tmp.MinQuorum, 2),

		HistoryMaxAge: defaultDur(tmp.HistoryMaxAge, 7*24*time.Hour),
		HistoryWindow: defaultDur(tmp.HistoryWindow, 24*time.Hour),

		AnomalyMinSamples: defaultInt(tmp.AnomalyMinSamples, 3),
		MinAgeDays:        defaultInt(tmp.MinAgeDays, 7),

		FeedStaleAfter: defaultDur(tmp.FeedStaleAfter, time.Hour),
		Feeds:          tmp.Feeds,
		MinConfidence:  defaultFloat(tmp.MinConfidence, 0.5),
		AuditDir:       tmp.AuditDir,
	}

	var err error
	if cfg.OutlierTolerancePct, err = parseDecimal("outlier_tolerance_pct", tmp.OutlierTolerancePctStr, "10"); err != nil {
		return Config{}, err
	}
	if cfg.SpreadTolerancePct, err = parseDecimal("spread_tolerance_pct", tmp.SpreadTolerancePctStr, "5"); err != nil {
		return Config{}, err
	}
	if cfg.AnomalyMaxDeviationPct, err = parseDecimal("anomaly_max_deviation_pct", tmp.AnomalyMaxDeviationPctStr, "50"); err != nil {
		return Config{}, err
	}
	if cfg.MinPoolUSD, err = parseDecimal("min_pool_usd", tmp.MinPoolUSDStr, "10000"); err != nil {
		return Config{}, err
	}
	if cfg.MinVolume24hUSD, err = parseDecimal("min_volume_24h_usd", tmp.MinVolume24hUSDStr, "1000"); err != nil {
		return Config{}, err
	}
	if cfg.MaxBuyTaxPct, err = parseDecimal("max_buy_tax_pct", tmp.MaxBuyTaxPctStr, "10"); err != nil {
		return Config{}, err
	}
	if cfg.MaxSellTaxPct, err = parseDecimal("max_sell_tax_pct", tmp.MaxSellTaxPctStr, "10"); err != nil {
		return Config{}, err
	}
	if cfg.MaxTopHoldersPct, err = parseDecimal("max_top_holders_pct", tmp.MaxTopHoldersPctStr, "50"); err != nil {
		return Config{}, err
	}
	if cfg.TWAPMaxDeviationPct, err = parseDecimal("twap_max_deviation_pct", tmp.TWAPMaxDeviationPctStr, "20"); err != nil {
		return Config{}, err
	}
	if cfg.FeedMaxDeviationPct, err = parseDecimal("feed_max_deviation_pct", tmp.FeedMaxDeviationPctStr, "20"); err != nil {
		return Config{}, err
	}
	if cfg.ValueCapUSD, err = parseDecimal("value_cap_usd", tmp.ValueCapUSDStr, "50"); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.MinQuorum < 1 {
		return fmt.Errorf("min_quorum must be at least 1")
	}
	if c.SourceTimeout > c.ConsensusBudget {
		return fmt.Errorf("source_timeout must not exceed consensus_budget")
	}
	if !c.ValueCapUSD.IsPositive() {
		return fmt.Errorf("value_cap_usd must be positive")
	}
	if c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must not exceed 1")
	}
	if c.HistoryWindow > c.HistoryMaxAge {
		return fmt.Errorf("history_window must not exceed history_max_age")
	}
	return nil
}

func parseDecimal(name, value, fallback string) (decimal.Decimal, error) {
	if value == "" {
		value = fallback
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("incorrect '%s' param in yaml config (must be a decimal): %w", name, err)
	}
	return d, nil
}

func defaultStr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func defaultDur(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}

func defaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func defaultFloat(v, fallback float64) float64 {
	if v <= 0 {
		return fallback
	}
	return v
}
