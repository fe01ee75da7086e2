// Package config loads application wiring from YAML with environment
// overrides. Per-run thresholds live in pipeline.Config and are passed
// explicitly by the caller; this file covers endpoints and credentials.
package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv        = "DROPSCOUT_CONFIG"
	postgresDSNEnv       = "DROPSCOUT_POSTGRES_DSN"
	clickhouseDSNEnv     = "DROPSCOUT_CLICKHOUSE_DSN"
	redisAddrEnv         = "DROPSCOUT_REDIS_ADDR"
	affiliateAPIKeyEnv   = "DROPSCOUT_AFFILIATE_API_KEY"
	affiliateBaseURLEnv  = "DROPSCOUT_AFFILIATE_BASE_URL"
	bridgeBaseURLEnv     = "DROPSCOUT_BRIDGE_BASE_URL"
	bridgeAPIKeyEnv      = "DROPSCOUT_BRIDGE_API_KEY"
	lookupBaseURLEnv     = "DROPSCOUT_LOOKUP_BASE_URL"
	lookupAPIKeyEnv      = "DROPSCOUT_LOOKUP_API_KEY"
	notifyEndpointEnv    = "DROPSCOUT_NOTIFY_ENDPOINT"
	nativeSearchURLEnv   = "DROPSCOUT_NATIVE_SEARCH_URL"
	feeScheduleFileEnv   = "DROPSCOUT_FEE_SCHEDULES"
	metricsListenAddrEnv = "DROPSCOUT_METRICS_ADDR"
)

// Config holds application wiring shared across commands.
type Config struct {
	Storage     StorageConfig     `yaml:"storage"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Market      MarketConfig      `yaml:"market"`
	Notify      NotifyConfig      `yaml:"notify"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	// FeeScheduleFile points at a YAML file merged over the bundled
	// fee schedules. Empty means bundled defaults only.
	FeeScheduleFile string `yaml:"feeScheduleFile"`
}

// StorageConfig describes the persistence backends. Empty DSNs select the
// in-memory implementations.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgresDsn"`
	ClickHouseDSN string `yaml:"clickhouseDsn"`
	RedisAddr     string `yaml:"redisAddr"`
}

// AcquisitionConfig wires the strategy chain. A strategy with an empty
// base URL is disabled.
type AcquisitionConfig struct {
	Affiliate UpstreamConfig `yaml:"affiliate"`
	Bridge    UpstreamConfig `yaml:"bridge"`
	Native    NativeConfig   `yaml:"native"`
}

// UpstreamConfig is one HTTP upstream with bearer auth.
type UpstreamConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"`
}

// NativeConfig wires the headless-browser scraper.
type NativeConfig struct {
	SearchURL string        `yaml:"searchUrl"` // %s template for the query
	Timeout   time.Duration `yaml:"timeout"`
	Headless  *bool         `yaml:"headless"`
}

// MarketConfig wires the comp lookup service and its cache.
type MarketConfig struct {
	LookupBaseURL string        `yaml:"lookupBaseUrl"`
	LookupAPIKey  string        `yaml:"lookupApiKey"`
	LookupTimeout time.Duration `yaml:"lookupTimeout"`
	CacheTTL      time.Duration `yaml:"cacheTtl"`
}

// NotifyConfig wires progress event delivery. An empty endpoint keeps
// events on the structured log only.
type NotifyConfig struct {
	WebSocketEndpoint string `yaml:"websocketEndpoint"`
}

// MetricsConfig wires the optional Prometheus listener.
type MetricsConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(postgresDSNEnv); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv(clickhouseDSNEnv); v != "" {
		c.Storage.ClickHouseDSN = v
	}
	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Storage.RedisAddr = v
	}
	if v := os.Getenv(affiliateBaseURLEnv); v != "" {
		c.Acquisition.Affiliate.BaseURL = v
	}
	if v := os.Getenv(affiliateAPIKeyEnv); v != "" {
		c.Acquisition.Affiliate.APIKey = v
	}
	if v := os.Getenv(bridgeBaseURLEnv); v != "" {
		c.Acquisition.Bridge.BaseURL = v
	}
	if v := os.Getenv(bridgeAPIKeyEnv); v != "" {
		c.Acquisition.Bridge.APIKey = v
	}
	if v := os.Getenv(nativeSearchURLEnv); v != "" {
		c.Acquisition.Native.SearchURL = v
	}
	if v := os.Getenv(lookupBaseURLEnv); v != "" {
		c.Market.LookupBaseURL = v
	}
	if v := os.Getenv(lookupAPIKeyEnv); v != "" {
		c.Market.LookupAPIKey = v
	}
	if v := os.Getenv(notifyEndpointEnv); v != "" {
		c.Notify.WebSocketEndpoint = v
	}
	if v := os.Getenv(feeScheduleFileEnv); v != "" {
		c.FeeScheduleFile = v
	}
	if v := os.Getenv(metricsListenAddrEnv); v != "" {
		c.Metrics.ListenAddr = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Storage.PostgresDSN != "" {
		base.Storage.PostgresDSN = override.Storage.PostgresDSN
	}
	if override.Storage.ClickHouseDSN != "" {
		base.Storage.ClickHouseDSN = override.Storage.ClickHouseDSN
	}
	if override.Storage.RedisAddr != "" {
		base.Storage.RedisAddr = override.Storage.RedisAddr
	}

	if override.Acquisition.Affiliate.BaseURL != "" {
		base.Acquisition.Affiliate = override.Acquisition.Affiliate
	}
	if override.Acquisition.Bridge.BaseURL != "" {
		base.Acquisition.Bridge = override.Acquisition.Bridge
	}
	if override.Acquisition.Native.SearchURL != "" {
		base.Acquisition.Native = override.Acquisition.Native
	}

	if override.Market.LookupBaseURL != "" {
		base.Market.LookupBaseURL = override.Market.LookupBaseURL
	}
	if override.Market.LookupAPIKey != "" {
		base.Market.LookupAPIKey = override.Market.LookupAPIKey
	}
	if override.Market.LookupTimeout > 0 {
		base.Market.LookupTimeout = override.Market.LookupTimeout
	}
	if override.Market.CacheTTL > 0 {
		base.Market.CacheTTL = override.Market.CacheTTL
	}

	if override.Notify.WebSocketEndpoint != "" {
		base.Notify.WebSocketEndpoint = override.Notify.WebSocketEndpoint
	}
	if override.Metrics.ListenAddr != "" {
		base.Metrics.ListenAddr = override.Metrics.ListenAddr
	}
	if override.FeeScheduleFile != "" {
		base.FeeScheduleFile = override.FeeScheduleFile
	}
	return base
}

func defaultConfig() Config {
	return Config{
		Acquisition: AcquisitionConfig{
			Affiliate: UpstreamConfig{Timeout: 30 * time.Second},
			Bridge:    UpstreamConfig{Timeout: 45 * time.Second},
			Native:    NativeConfig{Timeout: 60 * time.Second},
		},
		Market: MarketConfig{
			LookupTimeout: 15 * time.Second,
			CacheTTL:      15 * time.Minute,
		},
	}
}
