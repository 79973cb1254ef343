package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Fake is an in-process gateway for development and tests. Orders are numbered
// sequentially and signatures use the same HMAC scheme as Razorpay.
type Fake struct {
	secret string
	seq    atomic.Int64

	mu     sync.Mutex
	orders map[string]Order
	err    error
}

func NewFake(secret string) *Fake {
	if secret == "" {
		secret = "fake_secret"
	}
	return &Fake{secret: secret, orders: make(map[string]Order)}
}

func (f *Fake) PublicKey() string {
	return "fake_key"
}

// Secret returns the key that signs payments for this gateway.
func (f *Fake) Secret() string {
	return f.secret
}

// FailWith makes every later call return err. Pass nil to recover.
func (f *Fake) FailWith(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *Fake) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	order := Order{
		ID:       fmt.Sprintf("order_fake_%d", f.seq.Add(1)),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}
	f.orders[order.ID] = order
	return &order, nil
}

func (f *Fake) VerifySignature(_ context.Context, orderID, paymentID, signature string) (bool, error) {
	f.mu.Lock()
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	return verify(f.secret, orderID, paymentID, signature), nil
}

// Orders returns the orders created so far.
func (f *Fake) Orders() []Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Order, 0, len(f.orders))
	for _, o := range f.orders {
		out = append(out, o)
	}
	return out
}
