package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wrapmint/wrapmint/internal/token"
)

// RegisterTokenRoutes wires the rebasing value-token endpoints. The permit
// endpoint carries its own rate limiter because it accepts unauthenticated
// signed payloads.
func RegisterTokenRoutes(router fiber.Router, h *token.Handler, permitLimiter fiber.Handler) {
	grp := router.Group("/token")

	grp.Get("/balance/:account", h.Balance)
	grp.Get("/supply", h.Supply)
	grp.Get("/rate", h.Rate)
	grp.Get("/allowance", h.Allowance)
	grp.Get("/nonce/:account", h.Nonce)

	grp.Post("/rebase", h.Rebase)
	grp.Post("/transfer", h.Transfer)
	grp.Post("/transfer-from", h.TransferFrom)
	grp.Post("/approve", h.Approve)
	grp.Post("/permit", permitLimiter, h.Permit)
	grp.Post("/mint", h.Mint)
	grp.Post("/burn", h.Burn)
	grp.Post("/burn-all", h.BurnAll)
}
