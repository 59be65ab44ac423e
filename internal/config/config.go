package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "WrapMint"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultTokenName      = "Wrapped Value"
	defaultTokenSymbol    = "WVAL"
	defaultInitialRate    = "1000000000000000000"
	defaultRateKey        = "rate:current"
	defaultVaultAccount   = "vault:main"
	// defaultDecimalsOffset keeps the empty-vault share-price defense on
	// unless a deployment explicitly opts out with DECIMALS_OFFSET=0.
	defaultDecimalsOffset = 3

	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Rate source kinds.
const (
	RateSourceStatic = "static"
	RateSourceRedis  = "redis"
)

// Vault accounting strategies.
const (
	AccountingSelfTracked = "self-tracked"
	AccountingPassThrough = "pass-through"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	TokenName   string
	TokenSymbol string
	// InitialRate seeds the ledger's cached exchange rate, scaled by 10^18.
	InitialRate *big.Int
	// RateSource selects where rebases read the rate from: "static" or "redis".
	RateSource string
	// RateKey is the Redis key holding the published rate.
	RateKey string

	// DecimalsOffset is the vault's virtual-liquidity exponent.
	DecimalsOffset uint
	// VaultAccounting selects "self-tracked" or "pass-through" asset tracking.
	VaultAccounting string
	// VaultAccount is the vault's own account on the ledger.
	VaultAccount string
	// MaxDepositCap optionally caps single deposits in value units. Nil means
	// unlimited.
	MaxDepositCap *big.Int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
		TokenName:       getEnv("TOKEN_NAME", defaultTokenName),
		TokenSymbol:     getEnv("TOKEN_SYMBOL", defaultTokenSymbol),
		RateSource:      strings.ToLower(getEnv("RATE_SOURCE", RateSourceStatic)),
		RateKey:         getEnv("RATE_KEY", defaultRateKey),
		DecimalsOffset:  defaultDecimalsOffset,
		VaultAccounting: strings.ToLower(getEnv("VAULT_ACCOUNTING", AccountingSelfTracked)),
		VaultAccount:    getEnv("VAULT_ACCOUNT", defaultVaultAccount),
	}

	rawRate := getEnv("INITIAL_RATE", defaultInitialRate)
	rate, ok := new(big.Int).SetString(rawRate, 10)
	if !ok || rate.Sign() <= 0 {
		return Config{}, fmt.Errorf("invalid INITIAL_RATE %q: must be a positive decimal string", rawRate)
	}
	cfg.InitialRate = rate

	if raw := os.Getenv("MAX_DEPOSIT"); raw != "" {
		ceiling, ok := new(big.Int).SetString(raw, 10)
		if !ok || ceiling.Sign() < 0 {
			return Config{}, fmt.Errorf("invalid MAX_DEPOSIT %q: must be a non-negative decimal string", raw)
		}
		cfg.MaxDepositCap = ceiling
	}

	if raw := os.Getenv("DECIMALS_OFFSET"); raw != "" {
		offset, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DECIMALS_OFFSET: %w", err)
		}
		cfg.DecimalsOffset = uint(offset)
	}

	switch cfg.RateSource {
	case RateSourceStatic, RateSourceRedis:
	default:
		return Config{}, fmt.Errorf("invalid RATE_SOURCE %q: want %q or %q", cfg.RateSource, RateSourceStatic, RateSourceRedis)
	}

	switch cfg.VaultAccounting {
	case AccountingSelfTracked, AccountingPassThrough:
	default:
		return Config{}, fmt.Errorf("invalid VAULT_ACCOUNTING %q: want %q or %q", cfg.VaultAccounting, AccountingSelfTracked, AccountingPassThrough)
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(idemTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}
	if cfg.RateSource == RateSourceRedis && cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set when RATE_SOURCE=redis")
	}

	return cfg, nil
}

// IsDev reports whether the configured environment is a development one.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
