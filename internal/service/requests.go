package service

type CreateSlotRequest struct {
	TeacherID string `json:"teacherId" validate:"required,max=128"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime   string `json:"endTime" validate:"required,datetime=15:04"`
}

type ReserveRequest struct {
	SlotID    int64  `json:"slotId" validate:"required,gt=0"`
	StudentID string `json:"studentId" validate:"required,max=128"`
}

// CreateOrderRequest carries the fee in major units (rupees for INR).
type CreateOrderRequest struct {
	BookingID int64   `json:"bookingId" validate:"required,gt=0"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Currency  string  `json:"currency" validate:"omitempty,len=3,alpha"`
}

// OrderResponse is handed to the client to open the gateway checkout. Amount is in minor units.
type OrderResponse struct {
	OrderID          string `json:"orderId"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	GatewayPublicKey string `json:"gatewayPublicKey"`
}

type VerifyPaymentRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	PaymentID string `json:"paymentId" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type FailPaymentRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

type UpsertPartyRequest struct {
	ID      string `json:"id" validate:"required,max=128"`
	Kind    string `json:"kind" validate:"required,oneof=teacher student"`
	Name    string `json:"name" validate:"required,max=256"`
	Details string `json:"details" validate:"max=256"`
}
