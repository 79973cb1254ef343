package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"tutorslot/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	bookingsRange   = "Bookings!A:A"
	timestampLayout = "2006-01-02 15:04:05"
)

var errRowNotFound = errors.New("booking row not found")

var ledgerHeaders = []interface{}{"ID", "Slot ID", "Teacher ID", "Student ID", "Status", "Paid", "Created At", "Updated At"}

// LedgerSheet mirrors bookings into a spreadsheet, one row per booking keyed by id in column A.
type LedgerSheet struct {
	service       *sheets.Service
	spreadsheetID string
	rowCache      map[int64]int
	cacheMu       sync.RWMutex
}

// NewLedgerSheet authenticates with a service account key file.
func NewLedgerSheet(ctx context.Context, credentialsFile, spreadsheetID string) (*LedgerSheet, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return newLedgerSheet(srv, spreadsheetID), nil
}

func newLedgerSheet(srv *sheets.Service, spreadsheetID string) *LedgerSheet {
	return &LedgerSheet{
		service:       srv,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[int64]int),
	}
}

// TestConnection reads the header cell of the ledger.
func (s *LedgerSheet) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, "Bookings!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// EnsureHeader writes the column titles into row 1.
func (s *LedgerSheet) EnsureHeader(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, "Bookings!A1:H1", &sheets.ValueRange{
		Values: [][]interface{}{ledgerHeaders},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// WarmUpCache rebuilds the booking id to row index from column A.
func (s *LedgerSheet) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, bookingsRange).Context(ctx).Do()
	if err != nil {
		return err
	}

	cache := make(map[int64]int, len(resp.Values))
	for i, row := range resp.Values {
		if id := rowID(row); id > 0 {
			cache[id] = i + 1
		}
	}

	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

// UpsertBooking rewrites the booking's row or appends a new one.
func (s *LedgerSheet) UpsertBooking(ctx context.Context, booking *models.Booking) error {
	if booking == nil {
		return errors.New("booking is nil")
	}

	rowIdx, err := s.FindBookingRow(ctx, booking.ID)
	if errors.Is(err, errRowNotFound) {
		return s.appendBooking(ctx, booking)
	}
	if err != nil {
		return err
	}

	rangeData := fmt.Sprintf("Bookings!A%d:H%d", rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
		Values: [][]interface{}{bookingRowValues(booking)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s *LedgerSheet) appendBooking(ctx context.Context, booking *models.Booking) error {
	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, bookingsRange, &sheets.ValueRange{
		Values: [][]interface{}{bookingRowValues(booking)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return err
	}

	if resp != nil && resp.Updates != nil {
		if row, ok := rowFromRange(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(booking.ID, row)
		}
	}
	return nil
}

// UpdateBookingStatus touches only the status and updated-at cells of an existing row.
func (s *LedgerSheet) UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error {
	rowIdx, err := s.FindBookingRow(ctx, bookingID)
	if err != nil {
		return err
	}

	_, err = s.service.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data: []*sheets.ValueRange{
			{Range: fmt.Sprintf("Bookings!E%d", rowIdx), Values: [][]interface{}{{status}}},
			{Range: fmt.Sprintf("Bookings!H%d", rowIdx), Values: [][]interface{}{{time.Now().UTC().Format(timestampLayout)}}},
		},
	}).Context(ctx).Do()
	return err
}

// FindBookingRow returns the 1-based row holding bookingID.
func (s *LedgerSheet) FindBookingRow(ctx context.Context, bookingID int64) (int, error) {
	if bookingID == 0 {
		return 0, errors.New("booking id is required")
	}
	if row, ok := s.getCachedRow(bookingID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, bookingsRange).Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if rowID(row) == bookingID {
			s.setCachedRow(bookingID, i+1)
			return i + 1, nil
		}
	}
	return 0, errRowNotFound
}

func (s *LedgerSheet) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *LedgerSheet) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func rowID(row []interface{}) int64 {
	if len(row) == 0 {
		return 0
	}
	switch v := row[0].(type) {
	case float64:
		return int64(v)
	case string:
		id, _ := strconv.ParseInt(v, 10, 64)
		return id
	}
	return 0
}

// rowFromRange extracts the row number from an A1 range such as "Bookings!A7:H7".
func rowFromRange(a1 string) (int, bool) {
	_, cells, ok := strings.Cut(a1, "!")
	if !ok {
		return 0, false
	}
	first, _, _ := strings.Cut(cells, ":")
	row, err := strconv.Atoi(strings.TrimLeftFunc(first, unicode.IsLetter))
	if err != nil || row <= 0 {
		return 0, false
	}
	return row, true
}

func bookingRowValues(booking *models.Booking) []interface{} {
	return []interface{}{
		booking.ID,
		booking.SlotID,
		booking.TeacherID,
		booking.StudentID,
		booking.Status,
		booking.Paid,
		booking.CreatedAt.UTC().Format(timestampLayout),
		booking.UpdatedAt.UTC().Format(timestampLayout),
	}
}
