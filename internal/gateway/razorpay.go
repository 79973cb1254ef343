package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tutorslot/internal/config"
	"tutorslot/internal/logging"
	"tutorslot/internal/models"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/rs/zerolog"
)

// Razorpay creates orders through the Razorpay SDK and checks checkout signatures locally.
type Razorpay struct {
	keyID     string
	keySecret string
	client    *razorpay.Client
	logger    *zerolog.Logger
}

func NewRazorpay(cfg config.PaymentConfig, logger *zerolog.Logger) *Razorpay {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
	if baseURL := strings.TrimRight(cfg.BaseURL, "/"); baseURL != "" {
		client.Order.Request.BaseURL = baseURL
	}
	client.Order.Request.HTTPClient.Timeout = timeout

	return &Razorpay{
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		client:    client,
		logger:    logging.Component(logger, "razorpay"),
	}
}

func (r *Razorpay) PublicKey() string {
	return r.keyID
}

type orderResult struct {
	body map[string]interface{}
	err  error
}

// CreateOrder registers an order. The SDK call is not cancellable, so a canceled ctx only
// stops the wait; the request itself is bounded by the client timeout.
func (r *Razorpay) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("create order: %v: %w", err, models.ErrGatewayUnavailable)
	}

	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}

	start := time.Now()
	done := make(chan orderResult, 1)
	go func() {
		body, err := r.client.Order.Create(data, nil)
		done <- orderResult{body: body, err: err}
	}()

	var res orderResult
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, fmt.Errorf("create order: %v: %w", ctx.Err(), models.ErrGatewayUnavailable)
	}

	if res.err != nil {
		r.logger.Error().Err(res.err).Str("receipt", receipt).Dur("duration", time.Since(start)).Msg("order request failed")
		return nil, fmt.Errorf("create order: %v: %w", res.err, models.ErrGatewayUnavailable)
	}
	r.logger.Debug().Dur("duration", time.Since(start)).Str("receipt", receipt).Msg("order created")

	order := orderFromResponse(res.body)
	if order.ID == "" {
		return nil, fmt.Errorf("create order: empty order id: %w", models.ErrGatewayUnavailable)
	}
	return order, nil
}

// VerifySignature checks the checkout signature, hex(HMAC-SHA256(secret, orderID|paymentID)).
func (r *Razorpay) VerifySignature(_ context.Context, orderID, paymentID, signature string) (bool, error) {
	return verify(r.keySecret, orderID, paymentID, signature), nil
}

func orderFromResponse(body map[string]interface{}) *Order {
	order := &Order{}
	order.ID, _ = body["id"].(string)
	order.Currency, _ = body["currency"].(string)
	order.Receipt, _ = body["receipt"].(string)
	order.Status, _ = body["status"].(string)
	if amount, ok := body["amount"].(float64); ok {
		order.Amount = int64(amount)
	}
	return order
}
