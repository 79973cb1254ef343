package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Slot is a teacher-published time window. Reserved is flipped only by claim/release.
type Slot struct {
	ID        int64     `json:"id"`
	TeacherID string    `json:"teacherId"`
	Date      string    `json:"date"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	Reserved  bool      `json:"reserved"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks that all fields are present, well formed and that the window is not empty.
func (s *Slot) Validate() error {
	s.TeacherID = strings.TrimSpace(s.TeacherID)
	s.Date = strings.TrimSpace(s.Date)
	s.StartTime = strings.TrimSpace(s.StartTime)
	s.EndTime = strings.TrimSpace(s.EndTime)

	if s.TeacherID == "" || s.Date == "" || s.StartTime == "" || s.EndTime == "" {
		return fmt.Errorf("%w: missing required fields: teacherId, date, startTime or endTime", ErrValidation)
	}
	if _, err := time.Parse(DateLayout, s.Date); err != nil {
		return fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", ErrValidation, s.Date)
	}

	start, err := time.Parse(TimeLayout, s.StartTime)
	if err != nil {
		return fmt.Errorf("%w: invalid start time %q, expected HH:MM", ErrValidation, s.StartTime)
	}
	end, err := time.Parse(TimeLayout, s.EndTime)
	if err != nil {
		return fmt.Errorf("%w: invalid end time %q, expected HH:MM", ErrValidation, s.EndTime)
	}
	if !end.After(start) {
		return fmt.Errorf("%w: end time must be after start time", ErrValidation)
	}
	return nil
}

// StartsAt returns the slot start in the given location.
func (s *Slot) StartsAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, s.Date+" "+s.StartTime, loc)
}
