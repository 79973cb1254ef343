package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCanceled  = "canceled"
)

const (
	PaymentCreated = "created"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
)

const (
	PartyTeacher = "teacher"
	PartyStudent = "student"
)

const (
	SyncStatusPending   = "pending"
	SyncStatusRetry     = "retry"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

const (
	// DefaultCurrency is used when an order request omits the currency.
	DefaultCurrency = "INR"

	// MinorUnitsPerMajor converts rupees to paise.
	MinorUnitsPerMajor = 100

	// DefaultHubBuffer is the per-subscriber event buffer.
	DefaultHubBuffer = 32
)
