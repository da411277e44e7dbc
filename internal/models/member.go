package models

import (
	"database/sql/driver"
	"time"
)

// MemberType describes how a person joined the organization.
type MemberType string

const (
	MemberTypeMember    MemberType = "member"
	MemberTypeAspirant  MemberType = "aspirant"
	MemberTypeFirstTime MemberType = "first_time"
)

// Valid reports whether t is a known member type.
func (t MemberType) Valid() bool {
	switch t {
	case MemberTypeMember, MemberTypeAspirant, MemberTypeFirstTime:
		return true
	}
	return false
}

// MemberClass is the membership status of an adorer.
type MemberClass string

const (
	MemberClassAspirant   MemberClass = "aspirant"
	MemberClassTrial      MemberClass = "trial"
	MemberClassActive     MemberClass = "active"
	MemberClassHonorary   MemberClass = "honorary"
	MemberClassDischarged MemberClass = "discharged"
	MemberClassInactive   MemberClass = "inactive"
)

// Valid reports whether c is a known class.
func (c MemberClass) Valid() bool {
	switch c {
	case MemberClassAspirant, MemberClassTrial, MemberClassActive, MemberClassHonorary, MemberClassDischarged, MemberClassInactive:
		return true
	}
	return false
}

// OnRoster reports whether members of this class are expected at vigils.
func (c MemberClass) OnRoster() bool {
	switch c {
	case MemberClassAspirant, MemberClassTrial, MemberClassActive, MemberClassHonorary:
		return true
	case MemberClassDischarged, MemberClassInactive:
		return false
	}
	return false
}

// StatusChange is one entry of a member's status history.
type StatusChange struct {
	PreviousStatus MemberClass `json:"previous_status"`
	NewStatus      MemberClass `json:"new_status"`
	Date           time.Time   `json:"date"`
	Reason         string      `json:"reason,omitempty"`
	AuthorizedBy   string      `json:"authorized_by,omitempty"`
}

// StatusHistory is persisted as a JSONB array and only ever grows.
type StatusHistory []StatusChange

// Value marshals the history.
func (h StatusHistory) Value() (driver.Value, error) {
	if h == nil {
		h = StatusHistory{}
	}
	return jsonValue([]StatusChange(h), "status history")
}

// Scan unmarshals the history.
func (h *StatusHistory) Scan(value interface{}) error {
	*h = StatusHistory{}
	return scanJSON(value, (*[]StatusChange)(h), "status history")
}

// Member is an adorer registered in a section.
type Member struct {
	ID             string        `db:"id" json:"id"`
	FullName       string        `db:"full_name" json:"full_name"`
	SectionID      *string       `db:"section_id" json:"section_id,omitempty"`
	Type           MemberType    `db:"member_type" json:"type"`
	Class          MemberClass   `db:"member_class" json:"class"`
	VigilOrder     *int          `db:"vigil_order" json:"vigil_order,omitempty"`
	Phone          *string       `db:"phone" json:"phone,omitempty"`
	Email          *string       `db:"email" json:"email,omitempty"`
	Address        *string       `db:"address" json:"address,omitempty"`
	JoinDate       time.Time     `db:"join_date" json:"join_date"`
	TrialDate      *time.Time    `db:"trial_date" json:"trial_date,omitempty"`
	ActivationDate *time.Time    `db:"activation_date" json:"activation_date,omitempty"`
	PresentedBy    *string       `db:"presented_by" json:"presented_by,omitempty"`
	Badges         StringList    `db:"badges" json:"badges"`
	StatusHistory  StatusHistory `db:"status_history" json:"status_history"`
	Notes          *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// ApplyStatus moves the member to a new class and appends the matching history entry.
func (m *Member) ApplyStatus(next MemberClass, at time.Time, reason, authorizedBy string) {
	m.StatusHistory = append(m.StatusHistory, StatusChange{
		PreviousStatus: m.Class,
		NewStatus:      next,
		Date:           at,
		Reason:         reason,
		AuthorizedBy:   authorizedBy,
	})
	m.Class = next
	switch next {
	case MemberClassTrial:
		if m.TrialDate == nil {
			m.TrialDate = &at
		}
	case MemberClassActive:
		if m.ActivationDate == nil {
			m.ActivationDate = &at
		}
	case MemberClassAspirant, MemberClassHonorary, MemberClassDischarged, MemberClassInactive:
	}
}

// MemberFilter captures filtering criteria for listing members.
type MemberFilter struct {
	SectionID string
	Class     *MemberClass
	Type      *MemberType
	Search    string
	Page      int
	PageSize  int
}
