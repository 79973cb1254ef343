package models

import "time"

// PaymentIntent tracks settlement of a booking fee at the gateway.
// Amount is stored in minor units (paise for INR).
type PaymentIntent struct {
	OrderID   string    `json:"orderId"`
	BookingID int64     `json:"bookingId"`
	PaymentID string    `json:"paymentId,omitempty"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Receipt   string    `json:"receipt"`
	Status    string    `json:"status"` // created, paid, failed
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsPaid reports whether the intent reached its terminal paid state.
func (p *PaymentIntent) IsPaid() bool {
	return p.Status == PaymentPaid
}
