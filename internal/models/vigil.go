package models

import (
	"database/sql/driver"
	"time"
)

// VigilState is the lifecycle state of a vigil.
type VigilState string

const (
	VigilStateScheduled  VigilState = "scheduled"
	VigilStateInProgress VigilState = "in_progress"
	VigilStateFinished   VigilState = "finished"
	VigilStateCancelled  VigilState = "cancelled"
)

// Valid reports whether s is a known state.
func (s VigilState) Valid() bool {
	switch s {
	case VigilStateScheduled, VigilStateInProgress, VigilStateFinished, VigilStateCancelled:
		return true
	}
	return false
}

// Terminal reports whether the vigil can no longer be edited.
func (s VigilState) Terminal() bool {
	switch s {
	case VigilStateFinished, VigilStateCancelled:
		return true
	case VigilStateScheduled, VigilStateInProgress:
		return false
	}
	return false
}

// CanTransition reports whether a manual transition from s to next is allowed.
// Finished is only reached by generating the minute.
func (s VigilState) CanTransition(next VigilState) bool {
	switch s {
	case VigilStateScheduled:
		return next == VigilStateInProgress || next == VigilStateCancelled
	case VigilStateInProgress:
		return next == VigilStateCancelled
	case VigilStateFinished, VigilStateCancelled:
		return false
	}
	return false
}

// Finance is the money a member handed in during a vigil.
type Finance struct {
	MonthlyFee    float64 `json:"monthly_fee" validate:"min=0"`
	OverdueFee    float64 `json:"overdue_fee" validate:"min=0"`
	ExtraDonation float64 `json:"extra_donation" validate:"min=0"`
}

// Total sums the three amounts.
func (f Finance) Total() float64 {
	return f.MonthlyFee + f.OverdueFee + f.ExtraDonation
}

// AttendanceEntry records one member at one vigil.
type AttendanceEntry struct {
	MemberID     string  `json:"member_id"`
	Present      bool    `json:"present"`
	ArrivalOrder *int    `json:"arrival_order,omitempty"`
	Finance      Finance `json:"finance"`
}

// Attendance is the embedded attendance list. A member id appears at most once.
type Attendance []AttendanceEntry

// Value marshals the list.
func (a Attendance) Value() (driver.Value, error) {
	if a == nil {
		a = Attendance{}
	}
	return jsonValue([]AttendanceEntry(a), "attendance")
}

// Scan unmarshals the list.
func (a *Attendance) Scan(value interface{}) error {
	*a = Attendance{}
	return scanJSON(value, (*[]AttendanceEntry)(a), "attendance")
}

// Index returns the position of memberID or -1.
func (a Attendance) Index(memberID string) int {
	for i := range a {
		if a[i].MemberID == memberID {
			return i
		}
	}
	return -1
}

// NextArrivalOrder returns one past the highest arrival order recorded.
func (a Attendance) NextArrivalOrder() int {
	max := 0
	for _, entry := range a {
		if entry.ArrivalOrder != nil && *entry.ArrivalOrder > max {
			max = *entry.ArrivalOrder
		}
	}
	return max + 1
}

// Choir identifies one of the two kneeling rows of a guard slot.
type Choir string

const (
	ChoirFirst  Choir = "first"
	ChoirSecond Choir = "second"
)

// Valid reports whether c is a known choir.
func (c Choir) Valid() bool {
	return c == ChoirFirst || c == ChoirSecond
}

// GuardSlot is a time window inside a guard block with its two choirs.
type GuardSlot struct {
	ID          string     `json:"id"`
	Start       string     `json:"start"`
	End         string     `json:"end"`
	FirstChoir  StringList `json:"first_choir"`
	SecondChoir StringList `json:"second_choir"`
}

// Choir returns a pointer to the member list for c.
func (s *GuardSlot) Choir(c Choir) *StringList {
	switch c {
	case ChoirFirst:
		return &s.FirstChoir
	case ChoirSecond:
		return &s.SecondChoir
	}
	return nil
}

// Has reports whether memberID is in either choir.
func (s *GuardSlot) Has(memberID string) bool {
	return s.FirstChoir.Contains(memberID) || s.SecondChoir.Contains(memberID)
}

// GuardBlock groups slots under a label such as "De 10 a 11".
type GuardBlock struct {
	ID    string      `json:"id"`
	Label string      `json:"label"`
	Slots []GuardSlot `json:"slots"`
}

// GuardBlocks is the embedded guard schedule.
type GuardBlocks []GuardBlock

// Value marshals the schedule.
func (g GuardBlocks) Value() (driver.Value, error) {
	if g == nil {
		g = GuardBlocks{}
	}
	return jsonValue([]GuardBlock(g), "guard blocks")
}

// Scan unmarshals the schedule.
func (g *GuardBlocks) Scan(value interface{}) error {
	*g = GuardBlocks{}
	return scanJSON(value, (*[]GuardBlock)(g), "guard blocks")
}

// Block returns the block with the given id.
func (g GuardBlocks) Block(id string) (*GuardBlock, bool) {
	for i := range g {
		if g[i].ID == id {
			return &g[i], true
		}
	}
	return nil, false
}

// Slot returns the slot with the given id inside the block.
func (b *GuardBlock) Slot(id string) (*GuardSlot, bool) {
	for i := range b.Slots {
		if b.Slots[i].ID == id {
			return &b.Slots[i], true
		}
	}
	return nil, false
}

// Assigned reports whether memberID sits in any slot of any block.
func (g GuardBlocks) Assigned(memberID string) bool {
	for i := range g {
		for j := range g[i].Slots {
			if g[i].Slots[j].Has(memberID) {
				return true
			}
		}
	}
	return false
}

// SpecialRole names a liturgical duty outside the guard schedule.
type SpecialRole string

const (
	SpecialRoleTorchBearer SpecialRole = "torch_bearer"
	SpecialRoleMassHelper  SpecialRole = "mass_helper"
)

// Valid reports whether r is a known role.
func (r SpecialRole) Valid() bool {
	return r == SpecialRoleTorchBearer || r == SpecialRoleMassHelper
}

// SpecialRoles lists members holding each special role.
type SpecialRoles struct {
	TorchBearers StringList `json:"torch_bearers"`
	MassHelpers  StringList `json:"mass_helpers"`
}

// Value marshals the roles.
func (r SpecialRoles) Value() (driver.Value, error) {
	if r.TorchBearers == nil {
		r.TorchBearers = StringList{}
	}
	if r.MassHelpers == nil {
		r.MassHelpers = StringList{}
	}
	return jsonValue(r, "special roles")
}

// Scan unmarshals the roles.
func (r *SpecialRoles) Scan(value interface{}) error {
	*r = SpecialRoles{TorchBearers: StringList{}, MassHelpers: StringList{}}
	return scanJSON(value, r, "special roles")
}

// List returns a pointer to the member list for role.
func (r *SpecialRoles) List(role SpecialRole) *StringList {
	switch role {
	case SpecialRoleTorchBearer:
		return &r.TorchBearers
	case SpecialRoleMassHelper:
		return &r.MassHelpers
	}
	return nil
}

// Has reports whether memberID holds any special role.
func (r SpecialRoles) Has(memberID string) bool {
	return r.TorchBearers.Contains(memberID) || r.MassHelpers.Contains(memberID)
}

// Vigil is one overnight adoration event with its embedded collections.
type Vigil struct {
	ID           string       `db:"id" json:"id"`
	SectionID    *string      `db:"section_id" json:"section_id,omitempty"`
	Parish       string       `db:"parish" json:"parish"`
	TurnNumber   int          `db:"turn_number" json:"turn_number"`
	StartsAt     time.Time    `db:"starts_at" json:"starts_at"`
	EndsAt       time.Time    `db:"ends_at" json:"ends_at"`
	Officiant    string       `db:"officiant" json:"officiant"`
	Chaplain     *string      `db:"chaplain" json:"chaplain,omitempty"`
	State        VigilState   `db:"state" json:"state"`
	Attendance   Attendance   `db:"attendance" json:"attendance"`
	GuardBlocks  GuardBlocks  `db:"guard_blocks" json:"guard_blocks"`
	SpecialRoles SpecialRoles `db:"special_roles" json:"special_roles"`
	Notes        *string      `db:"notes" json:"notes,omitempty"`
	MinuteID     *string      `db:"minute_id" json:"minute_id,omitempty"`
	Version      int          `db:"version" json:"version"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// VigilFilter captures filtering criteria for listing vigils.
type VigilFilter struct {
	SectionID string
	State     *VigilState
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}
