package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tutorslot/internal/config"
	"tutorslot/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRazorpay(url string) *Razorpay {
	logger := zerolog.Nop()
	return NewRazorpay(config.PaymentConfig{
		Provider:  "razorpay",
		KeyID:     "rzp_test_key",
		KeySecret: "secret",
		BaseURL:   url,
		Timeout:   time.Second,
	}, &logger)
}

func TestRazorpayCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/orders"), r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "secret", pass)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 50000, req["amount"])
		assert.Equal(t, "INR", req["currency"])
		assert.Equal(t, "booking_7", req["receipt"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Order{ID: "order_abc", Amount: 50000, Currency: "INR", Receipt: "booking_7", Status: "created"})
	}))
	defer srv.Close()

	order, err := newTestRazorpay(srv.URL).CreateOrder(context.Background(), 50000, "INR", "booking_7")
	require.NoError(t, err)
	assert.Equal(t, "order_abc", order.ID)
	assert.Equal(t, int64(50000), order.Amount)
	assert.Equal(t, "booking_7", order.Receipt)
	assert.Equal(t, "created", order.Status)
}

func TestRazorpayCreateOrderErrors(t *testing.T) {
	t.Run("ServerError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := newTestRazorpay(srv.URL).CreateOrder(context.Background(), 100, "INR", "booking_1")
		assert.ErrorIs(t, err, models.ErrGatewayUnavailable)
	})

	t.Run("Rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
		}))
		defer srv.Close()

		_, err := newTestRazorpay(srv.URL).CreateOrder(context.Background(), 1, "INR", "booking_1")
		assert.ErrorIs(t, err, models.ErrGatewayUnavailable)
	})

	t.Run("EmptyOrderID", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"amount":100}`))
		}))
		defer srv.Close()

		_, err := newTestRazorpay(srv.URL).CreateOrder(context.Background(), 100, "INR", "booking_1")
		assert.ErrorIs(t, err, models.ErrGatewayUnavailable)
	})

	t.Run("Unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := newTestRazorpay(url).CreateOrder(context.Background(), 100, "INR", "booking_1")
		assert.ErrorIs(t, err, models.ErrGatewayUnavailable)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			<-release
		}))
		defer srv.Close()
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := newTestRazorpay(srv.URL).CreateOrder(ctx, 100, "INR", "booking_1")
		assert.ErrorIs(t, err, models.ErrGatewayUnavailable)
	})
}

func TestVerifySignature(t *testing.T) {
	gw := newTestRazorpay("http://unused")
	sig := Sign("secret", "order_1", "pay_1")

	ok, err := gw.VerifySignature(context.Background(), "order_1", "pay_1", sig)
	require.NoError(t, err)
	assert.True(t, ok)

	for name, tc := range map[string][3]string{
		"WrongPayment": {"order_1", "pay_2", sig},
		"WrongOrder":   {"order_2", "pay_1", sig},
		"Forged":       {"order_1", "pay_1", "deadbeef"},
		"Empty":        {"order_1", "pay_1", ""},
	} {
		t.Run(name, func(t *testing.T) {
			ok, err := gw.VerifySignature(context.Background(), tc[0], tc[1], tc[2])
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestNew(t *testing.T) {
	logger := zerolog.Nop()

	gw, err := New(config.PaymentConfig{Provider: "fake"}, &logger)
	require.NoError(t, err)
	assert.IsType(t, &Fake{}, gw)

	gw, err = New(config.PaymentConfig{Provider: "razorpay", KeyID: "k", KeySecret: "s"}, &logger)
	require.NoError(t, err)
	assert.Equal(t, "k", gw.PublicKey())

	_, err = New(config.PaymentConfig{Provider: "stripe"}, &logger)
	assert.Error(t, err)
}

func TestFakeGateway(t *testing.T) {
	f := NewFake("")
	ctx := context.Background()

	o1, err := f.CreateOrder(ctx, 100, "INR", "booking_1")
	require.NoError(t, err)
	o2, err := f.CreateOrder(ctx, 200, "INR", "booking_2")
	require.NoError(t, err)
	assert.NotEqual(t, o1.ID, o2.ID)
	assert.Len(t, f.Orders(), 2)

	ok, err := f.VerifySignature(ctx, o1.ID, "pay_1", Sign(f.Secret(), o1.ID, "pay_1"))
	require.NoError(t, err)
	assert.True(t, ok)

	f.FailWith(models.ErrGatewayUnavailable)
	_, err = f.CreateOrder(ctx, 100, "INR", "booking_3")
	assert.ErrorIs(t, err, models.ErrGatewayUnavailable)
	_, err = f.VerifySignature(ctx, o1.ID, "pay_1", "x")
	assert.ErrorIs(t, err, models.ErrGatewayUnavailable)
}
