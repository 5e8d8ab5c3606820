package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vault-pay/vault_pay/internal/payments"
)

// RegisterTransactionRoutes wires the money-movement endpoints.
func RegisterTransactionRoutes(r fiber.Router, h *payments.Handler) {
	r.Post("/transactions/deposit", h.Deposit)
	r.Post("/transactions/withdraw", h.Withdraw)
	r.Post("/transactions/transfer", h.Transfer)
	r.Get("/transactions/:transactionId", h.Get)
}
