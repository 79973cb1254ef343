package models

import "time"

// Party is a teacher or a student known by an opaque external id
// issued by the identity provider.
type Party struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Details   string    `json:"details,omitempty"` // subject for teachers, grade for students
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p *Party) IsTeacher() bool { return p.Kind == PartyTeacher }

func (p *Party) IsStudent() bool { return p.Kind == PartyStudent }
