package dto

import "time"

// CreateVigilRequest schedules a vigil.
type CreateVigilRequest struct {
	SectionID  *string   `json:"section_id" validate:"omitempty,uuid"`
	Parish     string    `json:"parish" validate:"max=160"`
	TurnNumber int       `json:"turn_number" validate:"required,min=1"`
	StartsAt   time.Time `json:"starts_at" validate:"required"`
	EndsAt     time.Time `json:"ends_at" validate:"required"`
	Officiant  string    `json:"officiant" validate:"required,max=160"`
	Chaplain   *string   `json:"chaplain" validate:"omitempty,max=160"`
	Notes      *string   `json:"notes"`
}

// VigilQuery carries list filters from the query string.
type VigilQuery struct {
	SectionID string     `form:"section_id" binding:"omitempty,uuid"`
	State     string     `form:"state"`
	From      *time.Time `form:"from" time_format:"2006-01-02"`
	To        *time.Time `form:"to" time_format:"2006-01-02"`
	Page      int        `form:"page"`
	PageSize  int        `form:"page_size"`
}

// TransitionRequest moves a vigil to another state.
type TransitionRequest struct {
	State   string `json:"state" validate:"required,oneof=in_progress cancelled"`
	Version int    `json:"version"`
}

// AddAttendeeRequest adds one member to the attendance list.
type AddAttendeeRequest struct {
	MemberID string `json:"member_id" validate:"required,uuid"`
	Version  int    `json:"version"`
}

// SetAttendanceRequest marks a member present or absent.
type SetAttendanceRequest struct {
	Present *bool `json:"present" validate:"required"`
	Version int   `json:"version"`
}

// SetFinanceRequest overwrites a member's money for the vigil. Missing amounts are zero.
type SetFinanceRequest struct {
	MonthlyFee    float64 `json:"monthly_fee" validate:"min=0"`
	OverdueFee    float64 `json:"overdue_fee" validate:"min=0"`
	ExtraDonation float64 `json:"extra_donation" validate:"min=0"`
	Version       int     `json:"version"`
}

// GuardSlotRequest describes a slot when creating a block.
type GuardSlotRequest struct {
	Start string `json:"start" validate:"required,clock"`
	End   string `json:"end" validate:"required,clock"`
}

// AddGuardBlockRequest creates a guard block with its slots.
type AddGuardBlockRequest struct {
	Label   string             `json:"label" validate:"required,max=80"`
	Slots   []GuardSlotRequest `json:"slots" validate:"required,min=1,dive"`
	Version int                `json:"version"`
}

// SplitGuardBlockRequest divides every slot of a block into equal parts.
type SplitGuardBlockRequest struct {
	Parts   int `json:"parts" validate:"required,min=2,max=6"`
	Version int `json:"version"`
}

// GuardAssignmentRequest places or removes a member in a choir of a slot.
type GuardAssignmentRequest struct {
	BlockID  string `json:"block_id" validate:"required,uuid"`
	SlotID   string `json:"slot_id" validate:"required,uuid"`
	Choir    string `json:"choir" validate:"required,oneof=first second"`
	MemberID string `json:"member_id" validate:"required,uuid"`
	Version  int    `json:"version"`
}

// SpecialRoleRequest gives or takes a special role.
type SpecialRoleRequest struct {
	Role     string `json:"role" validate:"required,oneof=torch_bearer mass_helper"`
	MemberID string `json:"member_id" validate:"required,uuid"`
	Version  int    `json:"version"`
}
