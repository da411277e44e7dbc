package models

import "time"

// Section is a parish chapter that runs its own vigil turn.
type Section struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Parish     string    `db:"parish" json:"parish"`
	TurnNumber int       `db:"turn_number" json:"turn_number"`
	Patron     string    `db:"patron" json:"patron"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// SectionFilter narrows section listings.
type SectionFilter struct {
	Active *bool
}
