package events

import (
	"tutorslot/internal/models"
)

const (
	TypeSlotUpdate    = "slot_update"
	TypeBookingUpdate = "booking_update"
	TypeError         = "error"
)

// Event is the frame pushed to a party's channel. Exactly one of Slot, Booking
// or Message is set, depending on Type.
type Event struct {
	Type    string          `json:"type"`
	Slot    *models.Slot    `json:"slot,omitempty"`
	Booking *models.Booking `json:"booking,omitempty"`
	Message string          `json:"message,omitempty"`
}

func SlotUpdate(slot *models.Slot) Event {
	return Event{Type: TypeSlotUpdate, Slot: slot}
}

func BookingUpdate(booking *models.Booking) Event {
	return Event{Type: TypeBookingUpdate, Booking: booking}
}

func Error(message string) Event {
	return Event{Type: TypeError, Message: message}
}
