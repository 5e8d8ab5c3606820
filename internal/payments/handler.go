package payments

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/vault-pay/vault_pay/internal/ledger"
	"github.com/vault-pay/vault_pay/internal/wallet"
)

// Handler exposes the money-movement endpoints over the wallet service.
type Handler struct {
	wallets *wallet.Service
}

// NewHandler constructs a payments handler.
func NewHandler(wallets *wallet.Service) *Handler {
	return &Handler{wallets: wallets}
}

type movementRequest struct {
	WalletID    string          `json:"wallet_id"`
	ToWalletID  string          `json:"to_wallet_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type transactionResponse struct {
	TransactionID string          `json:"transaction_id"`
	Kind          string          `json:"kind"`
	FromWallet    string          `json:"from_wallet,omitempty"`
	ToWallet      string          `json:"to_wallet,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Description   string          `json:"description"`
	Timestamp     time.Time       `json:"timestamp"`
}

func toTransactionResponse(tx ledger.Transaction) transactionResponse {
	return transactionResponse{
		TransactionID: tx.ID,
		Kind:          tx.Kind,
		FromWallet:    tx.FromWallet,
		ToWallet:      tx.ToWallet,
		Amount:        tx.Amount,
		Status:        tx.Status,
		Description:   tx.Description,
		Timestamp:     tx.Timestamp,
	}
}

// Deposit credits a wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req movementRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.wallets.Deposit(c.UserContext(), req.WalletID, req.Amount, req.Description)
	if err != nil {
		return movementError(err)
	}
	return c.Status(http.StatusCreated).JSON(toTransactionResponse(tx))
}

// Withdraw debits a wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req movementRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.wallets.Withdraw(c.UserContext(), req.WalletID, req.Amount, req.Description)
	if err != nil {
		return movementError(err)
	}
	return c.Status(http.StatusCreated).JSON(toTransactionResponse(tx))
}

// Transfer moves funds between two wallets.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req movementRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.wallets.Transfer(c.UserContext(), req.WalletID, req.ToWalletID, req.Amount, req.Description)
	if err != nil {
		return movementError(err)
	}
	return c.Status(http.StatusCreated).JSON(toTransactionResponse(tx))
}

// Get returns a single transaction record.
func (h *Handler) Get(c *fiber.Ctx) error {
	tx, err := h.wallets.GetTransaction(c.UserContext(), c.Params("transactionId"))
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toTransactionResponse(tx))
}

// History returns the wallet's transaction history, both legs merged in
// timestamp order.
func (h *Handler) History(c *fiber.Ctx) error {
	txs, err := h.wallets.WalletTransactions(c.UserContext(), c.Params("walletId"))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	result := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		result = append(result, toTransactionResponse(tx))
	}
	return c.Status(http.StatusOK).JSON(result)
}

// movementError maps service failures onto transport status codes. Retryable
// conditions (lost version races) surface as 409 so clients can distinguish
// them from terminal rejections.
func movementError(err error) error {
	switch {
	case errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, wallet.ErrSameWalletTransfer),
		errors.Is(err, wallet.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrWalletNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrDuplicateTransaction),
		errors.Is(err, wallet.ErrConcurrencyExhausted):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
