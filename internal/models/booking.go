package models

import "time"

// Booking links a claimed slot to a student. Status moves independently of payment.
type Booking struct {
	ID        int64     `json:"id"`
	SlotID    int64     `json:"slotId"`
	StudentID string    `json:"studentId"`
	TeacherID string    `json:"teacherId"`
	Status    string    `json:"status"` // pending, confirmed, canceled
	Paid      bool      `json:"paid"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Filled by listing projections only.
	Slot        *Slot  `json:"slot,omitempty"`
	TeacherName string `json:"teacherName,omitempty"`
}

// IsActive reports whether the booking still holds its slot.
func (b *Booking) IsActive() bool {
	return b.Status != StatusCanceled
}

var bookingTransitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCanceled},
	StatusConfirmed: {StatusCanceled},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
