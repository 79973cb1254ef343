package models

import "errors"

var (
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("not found")
	ErrAlreadyReserved        = errors.New("slot already reserved")
	ErrAlreadyBooked          = errors.New("slot already booked")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrSignatureInvalid       = errors.New("invalid payment signature")
	ErrGatewayUnavailable     = errors.New("payment gateway unavailable")
)

// Messages delivered to clients verbatim.
const (
	MsgSlotAlreadyBooked = "Slot is already booked"
	MsgPaymentSuccessful = "Payment successful"
	MsgInvalidSignature  = "Invalid signature"
	MsgInvalidJSON       = "Invalid JSON data"
)
