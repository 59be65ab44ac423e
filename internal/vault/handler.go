package vault

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the vault HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a vault HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() < 0 {
		return nil, errors.New("amount must be a non-negative decimal string")
	}
	return amount, nil
}

func statusFor(err error) int {
	var maxErr *ExceededMaxError
	switch {
	case errors.As(err, &maxErr),
		errors.Is(err, ErrInsufficientShares),
		errors.Is(err, ErrInsufficientAllowance),
		errors.Is(err, ErrZeroShares),
		errors.Is(err, ErrZeroAssets):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// State reports the vault's aggregate accounting figures.
func (h *Handler) State(c *fiber.Ctx) error {
	ctx := c.UserContext()
	totalShares, err := h.service.TotalShares(ctx)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	totalAssets, err := h.service.TotalAssets(ctx)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account":      h.service.Account(),
		"total_shares": totalShares.String(),
		"total_assets": totalAssets.String(),
	})
}

// Preview quotes one of the four conversion previews without mutating state.
func (h *Handler) Preview(c *fiber.Ctx) error {
	amount, err := parseAmount(c.Query("amount"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	ctx := c.UserContext()
	var out *big.Int
	switch op := c.Params("op"); op {
	case "deposit":
		out, err = h.service.PreviewDeposit(ctx, amount)
	case "mint":
		out, err = h.service.PreviewMint(ctx, amount)
	case "withdraw":
		out, err = h.service.PreviewWithdraw(ctx, amount)
	case "redeem":
		out, err = h.service.PreviewRedeem(ctx, amount)
	default:
		return fiber.NewError(http.StatusNotFound, "unknown preview "+op)
	}
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"result": out.String()})
}

// Max reports the policy ceiling for an operation and owner.
func (h *Handler) Max(c *fiber.Ctx) error {
	ctx := c.UserContext()
	owner := c.Query("owner")

	var (
		out *big.Int
		err error
	)
	switch op := c.Params("op"); op {
	case "deposit":
		out = h.service.MaxDeposit(owner)
		if out == nil {
			return c.Status(http.StatusOK).JSON(fiber.Map{"max": "unlimited"})
		}
	case "mint":
		out = h.service.MaxMint(owner)
	case "withdraw":
		out, err = h.service.MaxWithdraw(ctx, owner)
	case "redeem":
		out, err = h.service.MaxRedeem(ctx, owner)
	default:
		return fiber.NewError(http.StatusNotFound, "unknown max "+op)
	}
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"max": out.String()})
}

// Shares reports an account's share balance.
func (h *Handler) Shares(c *fiber.Ctx) error {
	account := c.Params("account")
	shares, err := h.service.ShareBalanceOf(c.UserContext(), account)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"account": account, "shares": shares.String()})
}

type depositRequest struct {
	Caller   string `json:"caller"`
	Amount   string `json:"amount"`
	Receiver string `json:"receiver"`
}

// Deposit wraps value units into shares.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	shares, err := h.service.Deposit(c.UserContext(), req.Caller, amount, req.Receiver)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"shares": shares.String()})
}

type withdrawRequest struct {
	Caller   string `json:"caller"`
	Amount   string `json:"amount"`
	Receiver string `json:"receiver"`
	Owner    string `json:"owner"`
}

// Withdraw releases an exact value amount, burning the owner's shares.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	shares, err := h.service.Withdraw(c.UserContext(), req.Caller, amount, req.Receiver, req.Owner)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"shares_burned": shares.String()})
}

type redeemRequest struct {
	Caller   string `json:"caller"`
	Shares   string `json:"shares"`
	Receiver string `json:"receiver"`
	Owner    string `json:"owner"`
}

// Redeem burns an exact share quantity for its asset equivalent.
func (h *Handler) Redeem(c *fiber.Ctx) error {
	var req redeemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	shares, err := parseAmount(req.Shares)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := h.service.Redeem(c.UserContext(), req.Caller, shares, req.Receiver, req.Owner)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"assets": amount.String()})
}

type shareTransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Shares string `json:"shares"`
}

// ShareTransfer moves shares between accounts.
func (h *Handler) ShareTransfer(c *fiber.Ctx) error {
	var req shareTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	shares, err := parseAmount(req.Shares)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.ShareTransfer(c.UserContext(), req.From, req.To, shares); err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}

type shareApproveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Shares  string `json:"shares"`
}

// ShareApprove sets a share allowance.
func (h *Handler) ShareApprove(c *fiber.Ctx) error {
	var req shareApproveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	shares, err := parseAmount(req.Shares)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.ShareApprove(c.UserContext(), req.Owner, req.Spender, shares); err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}
