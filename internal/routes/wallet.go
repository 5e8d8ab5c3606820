package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vault-pay/vault_pay/internal/payments"
	"github.com/vault-pay/vault_pay/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, p *payments.Handler) {
	r.Post("/wallets", h.Create)
	r.Get("/wallets/owner/:ownerId", h.ByOwner)
	r.Get("/wallets/:walletId", h.Get)
	r.Get("/wallets/:walletId/balance", h.Balance)
	r.Get("/wallets/:walletId/transactions", p.History)
}
