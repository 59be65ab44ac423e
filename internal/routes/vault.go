package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wrapmint/wrapmint/internal/vault"
)

// RegisterVaultRoutes wires the share-vault endpoints.
func RegisterVaultRoutes(router fiber.Router, h *vault.Handler) {
	grp := router.Group("/vault")

	grp.Get("/state", h.State)
	grp.Get("/preview/:op", h.Preview)
	grp.Get("/max/:op", h.Max)
	grp.Get("/shares/:account", h.Shares)

	grp.Post("/deposit", h.Deposit)
	grp.Post("/withdraw", h.Withdraw)
	grp.Post("/redeem", h.Redeem)
	grp.Post("/shares/transfer", h.ShareTransfer)
	grp.Post("/shares/approve", h.ShareApprove)
}
