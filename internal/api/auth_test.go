package api

import (
	"context"
	"net/http"
	"testing"

	"tutorslot/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func authConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true},
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			APIKeys: []config.APIClientKey{
				{Key: "reader-key", Name: "dashboard", Permissions: []string{"read"}},
				{Key: "full-key", Name: "app"},
			},
		},
	}
}

func TestHTTPAuth(t *testing.T) {
	env := newAPIEnv(t, nil, func(cfg *config.APIConfig) {
		*cfg = authConfig()
	})

	t.Run("MissingKey", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/api/v1/teachers/T1/slots", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.JSONEq(t, `{"error":"missing api key header"}`, string(body))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodGet, "/api/v1/teachers/T1/slots", nil, "X-Api-Key", "nope")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("ReadPermission", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodGet, "/api/v1/teachers/T1/slots", nil, "X-Api-Key", "reader-key")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = env.do(t, http.MethodPost, "/api/v1/slots", map[string]any{
			"teacherId": "T1", "date": futureDate, "startTime": "10:00", "endTime": "11:00",
		}, "X-Api-Key", "reader-key")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("EmptyPermissionsAllowAll", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodPost, "/api/v1/slots", map[string]any{
			"teacherId": "T1", "date": futureDate, "startTime": "10:00", "endTime": "11:00",
		}, "X-Api-Key", "full-key")
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("HealthIsPublic", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodGet, "/healthz", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestHTTPRateLimit(t *testing.T) {
	env := newAPIEnv(t, nil, func(cfg *config.APIConfig) {
		cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 1}
	})

	resp, _ := env.do(t, http.MethodGet, "/api/v1/teachers/T1/slots", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/v1/teachers/T1/slots", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, string(body))

	// a different key gets its own bucket
	resp, _ = env.do(t, http.MethodGet, "/api/v1/teachers/T1/slots", nil, "X-Api-Key", "other")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequiredPermissionHTTP(t *testing.T) {
	tests := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/api/v1/students/A/bookings", permRead},
		{http.MethodPost, "/api/v1/slots", permWriteSlots},
		{http.MethodPost, "/api/v1/bookings/1/cancel", permWriteBookings},
		{http.MethodPost, "/api/v1/payments/verify", permWritePayments},
		{http.MethodPut, "/api/v1/parties/teacher/T1", permWriteParties},
		{http.MethodDelete, "/api/v1/other", ""},
	}
	for _, tt := range tests {
		r, err := http.NewRequest(tt.method, tt.path, nil)
		require.NoError(t, err)
		assert.Equal(t, tt.want, requiredPermissionHTTP(r), tt.path)
	}
}

func TestAuthInterceptor(t *testing.T) {
	cfg := authConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 100, Burst: 200}

	interceptor := NewAuthInterceptor(&cfg).Unary()
	handler := func(_ context.Context, req any) (any, error) {
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/tutorslot.Reservations/Anything"}

	t.Run("Success", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "full-key"))
		resp, err := interceptor(ctx, "req", info, handler)
		assert.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})

	t.Run("MissingMetadata", func(t *testing.T) {
		_, err := interceptor(context.Background(), "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "invalid"))
		_, err := interceptor(ctx, "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("HealthBypassesAuth", func(t *testing.T) {
		healthInfo := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
		resp, err := interceptor(context.Background(), "req", healthInfo, handler)
		assert.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})

	t.Run("RateLimited", func(t *testing.T) {
		limited := authConfig()
		limited.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 1}
		intercept := NewAuthInterceptor(&limited).Unary()
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "full-key"))

		_, err := intercept(ctx, "req", info, handler)
		require.NoError(t, err)
		_, err = intercept(ctx, "req", info, handler)
		assert.Equal(t, codes.ResourceExhausted, status.Code(err))
	})
}

func TestChainUnaryInterceptors(t *testing.T) {
	var order []string
	mk := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			order = append(order, name)
			return handler(ctx, req)
		}
	}

	chained := ChainUnaryInterceptors(mk("first"), mk("second"))
	resp, err := chained(context.Background(), "req", &grpc.UnaryServerInfo{}, func(_ context.Context, req any) (any, error) {
		order = append(order, "handler")
		return req, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "req", resp)
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}
