package config

import "testing"

func clearWrapperEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "DATABASE_URL", "REDIS_URL", "TOKEN_NAME", "TOKEN_SYMBOL",
		"INITIAL_RATE", "RATE_SOURCE", "RATE_KEY", "DECIMALS_OFFSET",
		"VAULT_ACCOUNTING", "VAULT_ACCOUNT", "MAX_DEPOSIT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearWrapperEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DecimalsOffset != 3 {
		t.Fatalf("expected decimals offset 3 by default, got %d", cfg.DecimalsOffset)
	}
	if cfg.RateSource != RateSourceStatic {
		t.Fatalf("expected static rate source by default, got %q", cfg.RateSource)
	}
	if cfg.VaultAccounting != AccountingSelfTracked {
		t.Fatalf("expected self-tracked accounting by default, got %q", cfg.VaultAccounting)
	}
	if cfg.InitialRate.String() != "1000000000000000000" {
		t.Fatalf("expected unit initial rate, got %s", cfg.InitialRate)
	}
	if cfg.MaxDepositCap != nil {
		t.Fatalf("expected unlimited deposits by default, got cap %s", cfg.MaxDepositCap)
	}
}

func TestLoadDecimalsOffsetExplicitZero(t *testing.T) {
	clearWrapperEnv(t)
	t.Setenv("DECIMALS_OFFSET", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DecimalsOffset != 0 {
		t.Fatalf("explicit zero offset must be honored, got %d", cfg.DecimalsOffset)
	}
}

func TestLoadRejectsNonPositiveInitialRate(t *testing.T) {
	clearWrapperEnv(t)
	t.Setenv("INITIAL_RATE", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected zero initial rate to be rejected")
	}
}

func TestLoadRequiresBackendsOutsideDev(t *testing.T) {
	clearWrapperEnv(t)
	t.Setenv("APP_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("expected missing DATABASE_URL to fail in production")
	}
}
