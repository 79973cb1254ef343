package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tutorslot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupMockServer(t *testing.T) (*http.ServeMux, *LedgerSheet) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	return mux, newLedgerSheet(srv, "ledger_tid")
}

func sampleBooking() *models.Booking {
	return &models.Booking{
		ID:        7,
		SlotID:    3,
		TeacherID: "T1",
		StudentID: "A",
		Status:    models.StatusConfirmed,
		Paid:      true,
		CreatedAt: time.Date(2030, 1, 10, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2030, 1, 10, 9, 5, 0, 0, time.UTC),
	}
}

func TestBookingRowValues(t *testing.T) {
	row := bookingRowValues(sampleBooking())
	assert.Equal(t, []interface{}{
		int64(7), int64(3), "T1", "A", "confirmed", true, "2030-01-10 09:00:00", "2030-01-10 09:05:00",
	}, row)
	assert.Len(t, row, len(ledgerHeaders))
}

func TestRowFromRange(t *testing.T) {
	row, ok := rowFromRange("Bookings!A7:H7")
	assert.True(t, ok)
	assert.Equal(t, 7, row)

	row, ok = rowFromRange("'Bookings'!A12")
	assert.True(t, ok)
	assert.Equal(t, 12, row)

	_, ok = rowFromRange("A7:H7")
	assert.False(t, ok)
	_, ok = rowFromRange("Bookings!A:A")
	assert.False(t, ok)
}

func TestWarmUpCacheAndFind(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/ledger_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"ID"}, {"123"}, {}, {"456"}},
		})
	})

	require.NoError(t, s.WarmUpCache(context.Background()))

	row, err := s.FindBookingRow(context.Background(), 456)
	require.NoError(t, err)
	assert.Equal(t, 4, row)

	_, err = s.FindBookingRow(context.Background(), 999)
	assert.ErrorIs(t, err, errRowNotFound)
}

func TestUpsertBookingAppendsNewRow(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/ledger_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	appended := false
	mux.HandleFunc("/v4/spreadsheets/ledger_tid/values/Bookings!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		appended = true
		assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{
			Updates: &sheets.UpdateValuesResponse{UpdatedRange: "Bookings!A2:H2"},
		})
	})

	require.NoError(t, s.UpsertBooking(context.Background(), sampleBooking()))
	assert.True(t, appended)

	row, ok := s.getCachedRow(7)
	assert.True(t, ok)
	assert.Equal(t, 2, row)
}

func TestUpsertBookingUpdatesExistingRow(t *testing.T) {
	mux, s := setupMockServer(t)
	s.setCachedRow(7, 5)

	updated := false
	mux.HandleFunc("/v4/spreadsheets/ledger_tid/values/Bookings!A5:H5", func(w http.ResponseWriter, r *http.Request) {
		updated = true
		assert.Equal(t, http.MethodPut, r.Method)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	require.NoError(t, s.UpsertBooking(context.Background(), sampleBooking()))
	assert.True(t, updated)

	assert.Error(t, s.UpsertBooking(context.Background(), nil))
}

func TestUpdateBookingStatus(t *testing.T) {
	mux, s := setupMockServer(t)
	s.setCachedRow(7, 3)

	mux.HandleFunc("/v4/spreadsheets/ledger_tid/values:batchUpdate", func(w http.ResponseWriter, r *http.Request) {
		var req sheets.BatchUpdateValuesRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if !assert.Len(t, req.Data, 2) {
			return
		}
		assert.Equal(t, "Bookings!E3", req.Data[0].Range)
		assert.Equal(t, "Bookings!H3", req.Data[1].Range)
		_ = json.NewEncoder(w).Encode(sheets.BatchUpdateValuesResponse{})
	})

	require.NoError(t, s.UpdateBookingStatus(context.Background(), 7, models.StatusCanceled))
}

func TestNewLedgerSheetMissingCredentials(t *testing.T) {
	_, err := NewLedgerSheet(context.Background(), "/nonexistent/creds.json", "x")
	assert.Error(t, err)
}
