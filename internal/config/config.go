package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/metaproph3t/futarchy-ui/internal/programs"
	"github.com/metaproph3t/futarchy-ui/internal/units"
)

type Config struct {
	// RPC settings
	RPCUrl         string
	Commitment     string
	ConfirmTimeout time.Duration

	// Wallet; empty runs read-only (reads and simulations for a given wallet)
	WalletPrivateKey string

	// Programs; empty falls back to the mainnet deployments
	AutocratProgramID         string
	ConditionalVaultProgramID string
	OpenbookProgramID         string
	OpenbookTwapProgramID     string

	// Assets
	BaseSymbol    string
	QuoteSymbol   string
	AssetDecimals string

	// Redis settings; empty address disables the snapshot cache and events
	RedisAddr string
	CacheTTL  time.Duration

	// ClickHouse settings; empty address disables the activity store
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// API
	APIAddr string
	APIKey  string
	DevMode bool

	RefreshInterval time.Duration
}

func Load() *Config {
	return &Config{
		// RPC
		RPCUrl:         getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		Commitment:     getEnv("WALLET_COMMITMENT", "confirmed"),
		ConfirmTimeout: getDurationEnv("CONFIRM_TIMEOUT", 60*time.Second),

		WalletPrivateKey: getEnv("WALLET_PRIVATE_KEY", ""),

		// Programs
		AutocratProgramID:         getEnv("AUTOCRAT_PROGRAM_ID", ""),
		ConditionalVaultProgramID: getEnv("CONDITIONAL_VAULT_PROGRAM_ID", ""),
		OpenbookProgramID:         getEnv("OPENBOOK_PROGRAM_ID", ""),
		OpenbookTwapProgramID:     getEnv("OPENBOOK_TWAP_PROGRAM_ID", ""),

		// Assets
		BaseSymbol:    getEnv("BASE_SYMBOL", "META"),
		QuoteSymbol:   getEnv("QUOTE_SYMBOL", "USDC"),
		AssetDecimals: getEnv("ASSET_DECIMALS", "META:9,USDC:6"),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", ""),
		CacheTTL:  getDurationEnv("CACHE_TTL", 15*time.Second),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "futarchy"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 5),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 2*time.Second),

		// API
		APIAddr: getEnv("API_ADDR", ":8080"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		RefreshInterval: getDurationEnv("REFRESH_INTERVAL", 30*time.Second),
	}
}

// Validate checks the settings that would otherwise fail deep inside a
// request.
func (c *Config) Validate() error {
	var errs []error

	if c.RPCUrl == "" {
		errs = append(errs, errors.New("SOLANA_RPC_URL is required"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("MAX_RETRIES must be >= 0"))
	}
	if c.ConfirmTimeout <= 0 {
		errs = append(errs, errors.New("CONFIRM_TIMEOUT must be positive"))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, errors.New("REFRESH_INTERVAL must be positive"))
	}

	if _, err := c.ProgramIDs(); err != nil {
		errs = append(errs, err)
	}

	table, err := c.Units()
	if err != nil {
		errs = append(errs, fmt.Errorf("ASSET_DECIMALS: %w", err))
	} else {
		for _, sym := range []string{c.BaseSymbol, c.QuoteSymbol} {
			if _, err := table.Lookup(sym); err != nil {
				errs = append(errs, fmt.Errorf("BASE_SYMBOL/QUOTE_SYMBOL: %w", err))
			}
		}
	}
	if c.BaseSymbol == c.QuoteSymbol {
		errs = append(errs, errors.New("BASE_SYMBOL and QUOTE_SYMBOL must differ"))
	}

	if c.ClickHouseAddr != "" && c.ClickHouseDatabase == "" {
		errs = append(errs, errors.New("CLICKHOUSE_DATABASE is required when CLICKHOUSE_ADDR is set"))
	}

	return errors.Join(errs...)
}

// ProgramIDs parses the configured program addresses.
func (c *Config) ProgramIDs() (programs.ProgramIDs, error) {
	return programs.ParseProgramIDs(
		c.AutocratProgramID,
		c.ConditionalVaultProgramID,
		c.OpenbookProgramID,
		c.OpenbookTwapProgramID,
	)
}

// Units builds the asset table from ASSET_DECIMALS.
func (c *Config) Units() (*units.Table, error) {
	return units.ParseTable(c.AssetDecimals)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
