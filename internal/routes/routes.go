package routes

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wrapmint/wrapmint/internal/asset"
	"github.com/wrapmint/wrapmint/internal/config"
	"github.com/wrapmint/wrapmint/internal/middleware"
	"github.com/wrapmint/wrapmint/internal/notification"
	"github.com/wrapmint/wrapmint/internal/rate"
	"github.com/wrapmint/wrapmint/internal/signer"
	"github.com/wrapmint/wrapmint/internal/token"
	"github.com/wrapmint/wrapmint/internal/vault"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	// Reserve stands in for the external base-asset ledger. Nil selects the
	// in-memory simulator.
	Reserve asset.Reserve
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Backing stores
	var tokenStore token.Store
	var vaultStore vault.Store
	if d.DB != nil {
		tokenStore = token.NewPostgresStore(d.DB)
		vaultStore = vault.NewPostgresStore(d.DB)
	} else {
		tokenStore = token.NewMemoryStore()
		vaultStore = vault.NewMemoryStore()
	}

	reserve := d.Reserve
	if reserve == nil {
		reserve = asset.NewInMemory()
	}

	var rates rate.Source
	if d.Cfg.RateSource == config.RateSourceRedis {
		rates = rate.NewRedisSource(d.Cache, d.Cfg.RateKey)
	} else {
		rates = rate.NewStatic(d.Cfg.InitialRate)
	}

	// Services and handlers
	notifier := notification.NewLoggerNotifier(d.Logger)
	ledger, err := token.NewService(context.Background(), tokenStore, reserve, rates, signer.Ed25519{}, notifier, token.Metadata{
		Name:   d.Cfg.TokenName,
		Symbol: d.Cfg.TokenSymbol,
	})
	if err != nil {
		return fmt.Errorf("build ledger: %w", err)
	}

	var accounting vault.Accounting
	if d.Cfg.VaultAccounting == config.AccountingPassThrough {
		accounting = vault.NewPassThrough(ledger, d.Cfg.VaultAccount)
	} else {
		accounting = vault.NewSelfTracked(vaultStore, ledger)
	}

	var maxDeposit func(string) *big.Int
	if ceiling := d.Cfg.MaxDepositCap; ceiling != nil {
		maxDeposit = func(string) *big.Int { return new(big.Int).Set(ceiling) }
	}

	vaultSvc, err := vault.NewService(vaultStore, ledger, accounting, notifier, vault.Config{
		Account:        d.Cfg.VaultAccount,
		DecimalsOffset: d.Cfg.DecimalsOffset,
		MaxDeposit:     maxDeposit,
	})
	if err != nil {
		return fmt.Errorf("build vault: %w", err)
	}

	tokenHandler := token.NewHandler(ledger)
	vaultHandler := vault.NewHandler(vaultSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	permitLimiter := middleware.PermitRateLimit(d.Cache, 10)
	RegisterTokenRoutes(api, tokenHandler, permitLimiter)
	RegisterVaultRoutes(api, vaultHandler)

	return nil
}
