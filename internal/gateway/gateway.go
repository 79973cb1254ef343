package gateway

import (
	"context"
	"fmt"

	"tutorslot/internal/config"

	"github.com/rs/zerolog"
)

// Order is a payment order registered at the gateway. Amount is in minor units.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Gateway is the remote payment processor. Network failures surface as
// models.ErrGatewayUnavailable, never as a failed verification.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error)
	VerifySignature(ctx context.Context, orderID, paymentID, signature string) (bool, error)
	PublicKey() string
}

// New builds the gateway selected by cfg.Provider.
func New(cfg config.PaymentConfig, logger *zerolog.Logger) (Gateway, error) {
	switch cfg.Provider {
	case "razorpay":
		return NewRazorpay(cfg, logger), nil
	case "fake":
		return NewFake(cfg.KeySecret), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}
