package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration of the game server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Round    RoundConfig    `yaml:"round"`
	Prices   PricesConfig   `yaml:"prices"`
	Receipts ReceiptsConfig `yaml:"receipts"`
	Reward   RewardConfig   `yaml:"reward"`
	Admin    AdminConfig    `yaml:"admin"`
	Resolver ResolverConfig `yaml:"resolver"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Backend   string `yaml:"backend"` // sqlite | upstash
	DSN       string `yaml:"dsn"`     // sqlite file path, or ":memory:"
	RestURL   string `yaml:"rest_url"`
	RestToken string `yaml:"rest_token"`
}

// RoundConfig controls the betting round geometry.
type RoundConfig struct {
	DurationSeconds int `yaml:"duration_seconds"`
	LockSeconds     int `yaml:"lock_seconds"` // final no-bets window
}

// PricesConfig configures the settlement price feed.
type PricesConfig struct {
	BaseURL string            `yaml:"base_url"`
	Assets  map[string]string `yaml:"assets"` // bet symbol → feed id
}

// ReceiptsConfig configures the audit-receipt uploader. An empty node URL
// falls back to locally generated receipt ids.
type ReceiptsConfig struct {
	NodeURL    string `yaml:"node_url"`
	GatewayURL string `yaml:"gateway_url"`
}

// RewardConfig configures claim-signature issuance. Without a private key
// the reward endpoint is disabled.
type RewardConfig struct {
	PrivateKey      string `yaml:"private_key"`
	ContractAddress string `yaml:"contract_address"`
	ChainID         int64  `yaml:"chain_id"`
}

// AdminConfig holds the shared operator secret.
type AdminConfig struct {
	Token string `yaml:"token"`
}

// ResolverConfig controls the in-process settlement loop.
type ResolverConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LogConfig controls the log format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config file plus a .env file if present. Environment
// variables override the YAML for secrets and log settings.
func Load(path string) (*Config, error) {
	// load .env if present (missing file is fine)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// RoundDuration returns the round length as a time.Duration.
func (c *Config) RoundDuration() time.Duration {
	return time.Duration(c.Round.DurationSeconds) * time.Second
}

// LockWindow returns the no-bets window as a time.Duration.
func (c *Config) LockWindow() time.Duration {
	return time.Duration(c.Round.LockSeconds) * time.Second
}

// applyEnvOverrides pulls secrets and log settings from the environment.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KV_REST_API_URL"); v != "" {
		cfg.Store.RestURL = v
	}
	if v := os.Getenv("KV_REST_API_TOKEN"); v != "" {
		cfg.Store.RestToken = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.Admin.Token = v
	}
	if v := os.Getenv("REWARD_POOL_OWNER_KEY"); v != "" {
		cfg.Reward.PrivateKey = v
	}
	if v := os.Getenv("REWARD_POOL_ADDRESS"); v != "" {
		cfg.Reward.ContractAddress = v
	}
	if v := os.Getenv("REWARD_POOL_CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Reward.ChainID = id
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults fills in sensible values for anything left unset.
func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Store.Backend == "" {
		if cfg.Store.RestURL != "" {
			cfg.Store.Backend = "upstash"
		} else {
			cfg.Store.Backend = "sqlite"
		}
	}
	if cfg.Store.DSN == "" {
		cfg.Store.DSN = "iryspredict.db"
	}
	if cfg.Round.DurationSeconds <= 0 {
		cfg.Round.DurationSeconds = 300
	}
	if cfg.Round.LockSeconds <= 0 {
		cfg.Round.LockSeconds = 60
	}
	if cfg.Prices.BaseURL == "" {
		cfg.Prices.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if len(cfg.Prices.Assets) == 0 {
		cfg.Prices.Assets = map[string]string{
			"BTC": "bitcoin",
			"ETH": "ethereum",
		}
	}
	if cfg.Receipts.GatewayURL == "" {
		cfg.Receipts.GatewayURL = "https://gateway.irys.xyz"
	}
	if cfg.Reward.ChainID == 0 {
		cfg.Reward.ChainID = 1270
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func validate(cfg *Config) error {
	switch cfg.Store.Backend {
	case "sqlite":
	case "upstash":
		if cfg.Store.RestURL == "" || cfg.Store.RestToken == "" {
			return fmt.Errorf("upstash backend requires rest_url and rest_token (or KV_REST_API_URL / KV_REST_API_TOKEN)")
		}
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if cfg.Round.LockSeconds >= cfg.Round.DurationSeconds {
		return fmt.Errorf("round lock_seconds (%d) must be shorter than duration_seconds (%d)",
			cfg.Round.LockSeconds, cfg.Round.DurationSeconds)
	}
	if cfg.Reward.PrivateKey != "" && cfg.Reward.ContractAddress == "" {
		return fmt.Errorf("reward private key set but contract_address missing")
	}
	return nil
}
