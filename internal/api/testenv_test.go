package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"tutorslot/internal/config"
	"tutorslot/internal/database"
	"tutorslot/internal/domain"
	"tutorslot/internal/events"
	"tutorslot/internal/gateway"
	"tutorslot/internal/models"
	"tutorslot/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const futureDate = "2099-01-15"

type apiEnv struct {
	db  *database.DB
	hub *events.Hub
	gw  *gateway.Fake
	svc *service.ReservationService
	srv *HTTPServer
	ts  *httptest.Server
}

type envOption func(*config.APIConfig)

func newAPIEnv(t *testing.T, actions domain.RateLimiter, opts ...envOption) *apiEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "api.db")}, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hub := events.NewHub(16, &logger)
	t.Cleanup(hub.Close)

	gw := gateway.NewFake("")
	svc := service.NewReservationService(db, hub, gw, nil, config.BookingConfig{Currency: "INR", Timezone: "UTC"}, &logger)

	cfg := config.APIConfig{Enabled: true, HTTP: config.APIHTTPConfig{Enabled: true}}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv := NewHTTPServer(cfg, svc, hub, actions, &logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	for _, p := range []models.Party{
		{ID: "T1", Kind: models.PartyTeacher, Name: "Asha"},
		{ID: "A", Kind: models.PartyStudent, Name: "Ravi"},
		{ID: "B", Kind: models.PartyStudent, Name: "Meera"},
	} {
		require.NoError(t, db.UpsertParty(t.Context(), &p))
	}

	return &apiEnv{db: db, hub: hub, gw: gw, svc: svc, srv: srv, ts: ts}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any, headers ...string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func (e *apiEnv) createSlot(t *testing.T, start, end string) models.Slot {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/v1/slots", map[string]any{
		"teacherId": "T1", "date": futureDate, "startTime": start, "endTime": end,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	return decode[models.Slot](t, body)
}

func (e *apiEnv) book(t *testing.T, slotID int64, studentID string) models.Booking {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{"slotId": slotID, "studentId": studentID})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	return decode[models.Booking](t, body)
}
