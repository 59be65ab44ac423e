package token

import (
	"encoding/hex"
	"errors"
	"math/big"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the value-token HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a token HTTP handler.
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
	switch {
	case errors.Is(err, ErrInsufficientBalance), errors.Is(err, ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrExpiredAuthorization), errors.Is(err, ErrInvalidAuthorization):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidRate):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// Balance returns the derived value-unit balance for an account.
func (h *Handler) Balance(c *fiber.Ctx) error {
	account := c.Params("account")
	balance, err := h.service.BalanceOf(c.UserContext(), account)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	baseUnits, err := h.service.BaseUnitsOf(c.UserContext(), account)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account":    account,
		"balance":    balance.String(),
		"base_units": baseUnits.String(),
	})
}

// Supply returns total supply in both unit systems.
func (h *Handler) Supply(c *fiber.Ctx) error {
	supply, err := h.service.TotalSupply(c.UserContext())
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	totalBase, err := h.service.TotalBaseUnits(c.UserContext())
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"total_supply":     supply.String(),
		"total_base_units": totalBase.String(),
	})
}

// Rate returns the cached exchange rate.
func (h *Handler) Rate(c *fiber.Ctx) error {
	meta := h.service.Metadata()
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"name":             meta.Name,
		"symbol":           meta.Symbol,
		"rate":             h.service.Rate().String(),
		"domain_separator": hex.EncodeToString(h.service.DomainSeparator()),
	})
}

// Rebase refreshes the cached rate from the rate source.
func (h *Handler) Rebase(c *fiber.Ctx) error {
	rate, err := h.service.Rebase(c.UserContext())
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"rate": rate.String()})
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Transfer moves value units between accounts.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	moved, baseMoved, err := h.service.Transfer(c.UserContext(), req.From, req.To, amount)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"moved":      moved.String(),
		"base_moved": baseMoved.String(),
	})
}

type transferFromRequest struct {
	Spender string `json:"spender"`
	From    string `json:"from"`
	To      string `json:"to"`
	Amount  string `json:"amount"`
}

// TransferFrom moves value units on behalf of an owner.
func (h *Handler) TransferFrom(c *fiber.Ctx) error {
	var req transferFromRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	moved, baseMoved, err := h.service.TransferFrom(c.UserContext(), req.Spender, req.From, req.To, amount)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"moved":      moved.String(),
		"base_moved": baseMoved.String(),
	})
}

type approveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

// Approve sets an allowance.
func (h *Handler) Approve(c *fiber.Ctx) error {
	var req approveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.Approve(c.UserContext(), req.Owner, req.Spender, amount); err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}

// Allowance reports the remaining allowance for an owner/spender pair.
func (h *Handler) Allowance(c *fiber.Ctx) error {
	owner := c.Query("owner")
	spender := c.Query("spender")
	allowed, err := h.service.Allowance(c.UserContext(), owner, spender)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"owner":     owner,
		"spender":   spender,
		"allowance": allowed.String(),
	})
}

// Nonce reports the permit nonce for an account.
func (h *Handler) Nonce(c *fiber.Ctx) error {
	account := c.Params("account")
	nonce, err := h.service.Nonce(c.UserContext(), account)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"account": account, "nonce": nonce})
}

type permitRequest struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Value     string `json:"value"`
	Deadline  int64  `json:"deadline"`
	Signature string `json:"signature"`
}

// Permit applies a signature-based approval.
func (h *Handler) Permit(c *fiber.Ctx) error {
	var req permitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	value, err := parseAmount(req.Value)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	sig, err := hex.DecodeString(req.Signature)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "signature must be hex encoded")
	}
	input := PermitInput{
		Owner:     req.Owner,
		Spender:   req.Spender,
		Value:     value,
		Deadline:  req.Deadline,
		Signature: sig,
	}
	if err := h.service.Permit(c.UserContext(), input); err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}

type mintRequest struct {
	Account    string `json:"account"`
	BaseAmount string `json:"base_amount"`
}

// Mint wraps base asset into value units.
func (h *Handler) Mint(c *fiber.Ctx) error {
	var req mintRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	baseAmount, err := parseAmount(req.BaseAmount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	minted, err := h.service.Mint(c.UserContext(), req.Account, baseAmount)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"minted": minted.String()})
}

type burnRequest struct {
	Owner    string `json:"owner"`
	Amount   string `json:"amount"`
	Receiver string `json:"receiver"`
}

// Burn unwraps value units back into base asset.
func (h *Handler) Burn(c *fiber.Ctx) error {
	var req burnRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	baseOut, err := h.service.Burn(c.UserContext(), req.Owner, amount, req.Receiver)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"base_released": baseOut.String(),
		"value_burned":  amount.String(),
	})
}

// BurnAll unwraps the owner's entire balance, leaving no dust behind.
func (h *Handler) BurnAll(c *fiber.Ctx) error {
	var req burnRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	baseOut, value, err := h.service.BurnAll(c.UserContext(), req.Owner, req.Receiver)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"base_released": baseOut.String(),
		"value_burned":  value.String(),
	})
}
