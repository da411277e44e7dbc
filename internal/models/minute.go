package models

import (
	"database/sql/driver"
	"strings"
	"time"
)

// MinuteSchedule holds the clock times of the vigil ceremonies.
type MinuteSchedule struct {
	MeetingStart string `json:"meeting_start" validate:"required,clock"`
	OrderRead    string `json:"order_read,omitempty" validate:"omitempty,clock"`
	Exposition   string `json:"exposition,omitempty" validate:"omitempty,clock"`
	Reservation  string `json:"reservation,omitempty" validate:"omitempty,clock"`
	Mass         string `json:"mass,omitempty" validate:"omitempty,clock"`
}

// Value marshals the schedule.
func (s MinuteSchedule) Value() (driver.Value, error) { return jsonValue(s, "minute schedule") }

// Scan unmarshals the schedule.
func (s *MinuteSchedule) Scan(value interface{}) error {
	*s = MinuteSchedule{}
	return scanJSON(value, s, "minute schedule")
}

// MinuteReadings lists what was read at the meeting.
type MinuteReadings struct {
	Circulars      string `json:"circulars,omitempty"`
	Correspondence string `json:"correspondence,omitempty"`
}

// Value marshals the readings.
func (r MinuteReadings) Value() (driver.Value, error) { return jsonValue(r, "minute readings") }

// Scan unmarshals the readings.
func (r *MinuteReadings) Scan(value interface{}) error {
	*r = MinuteReadings{}
	return scanJSON(value, r, "minute readings")
}

// TrialVigil is a candidate attending a trial vigil.
type TrialVigil struct {
	Name        string `json:"name" validate:"required"`
	Address     string `json:"address,omitempty"`
	PresentedBy string `json:"presented_by,omitempty"`
}

// MembershipRequest is a request to become active or honorary.
type MembershipRequest struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address,omitempty"`
}

// AddressChange records a new address for a member.
type AddressChange struct {
	MemberID   *string `json:"member_id,omitempty" validate:"omitempty,uuid"`
	NewAddress string  `json:"new_address" validate:"required"`
}

// Discharge records a member leaving the organization.
type Discharge struct {
	MemberID *string `json:"member_id,omitempty" validate:"omitempty,uuid"`
	Cause    string  `json:"cause" validate:"required"`
}

// BadgeRequest records a member requesting a distinction badge.
type BadgeRequest struct {
	MemberID    *string    `json:"member_id,omitempty" validate:"omitempty,uuid"`
	RequestedAt *time.Time `json:"requested_at,omitempty"`
}

// MinuteMovements are the administrative movements reported in the minute.
type MinuteMovements struct {
	TrialVigils      []TrialVigil        `json:"trial_vigils" validate:"dive"`
	ActiveRequests   []MembershipRequest `json:"active_requests" validate:"dive"`
	HonoraryRequests []MembershipRequest `json:"honorary_requests" validate:"dive"`
	AddressChanges   []AddressChange     `json:"address_changes" validate:"dive"`
	Discharges       []Discharge         `json:"discharges" validate:"dive"`
	Badges           []BadgeRequest      `json:"badges" validate:"dive"`
}

// Value marshals the movements.
func (m MinuteMovements) Value() (driver.Value, error) { return jsonValue(m, "minute movements") }

// Scan unmarshals the movements.
func (m *MinuteMovements) Scan(value interface{}) error {
	*m = MinuteMovements{}
	return scanJSON(value, m, "minute movements")
}

// ExtraordinaryAttendee is a guest adorer from another section.
type ExtraordinaryAttendee struct {
	Name          string `json:"name" validate:"required"`
	SectionTurn   string `json:"section_turn,omitempty"`
	Authorization string `json:"authorization,omitempty"`
}

// AttendanceStats is the frozen attendance snapshot of the minute.
type AttendanceStats struct {
	Active              int                     `json:"active"`
	Trial               int                     `json:"trial"`
	Communions          int                     `json:"communions"`
	Aspirants           int                     `json:"aspirants"`
	Extraordinary       int                     `json:"extraordinary"`
	ExtraordinaryDetail []ExtraordinaryAttendee `json:"extraordinary_detail"`
}

// TotalAttendance counts the section's own adorers.
func (a AttendanceStats) TotalAttendance() int {
	return a.Active + a.Trial + a.Aspirants
}

// Value marshals the stats.
func (a AttendanceStats) Value() (driver.Value, error) { return jsonValue(a, "attendance stats") }

// Scan unmarshals the stats.
func (a *AttendanceStats) Scan(value interface{}) error {
	*a = AttendanceStats{}
	return scanJSON(value, a, "attendance stats")
}

// OtherConcept is an additional income line.
type OtherConcept struct {
	Concept string  `json:"concept" validate:"required"`
	Amount  float64 `json:"amount" validate:"min=0"`
}

// FinanceSummary is the frozen money snapshot of the minute.
type FinanceSummary struct {
	MonthlyReceipts float64        `json:"monthly_receipts"`
	OverdueReceipts float64        `json:"overdue_receipts"`
	Seeds           float64        `json:"seeds"`
	Honoraria       float64        `json:"honoraria"`
	Others          []OtherConcept `json:"others"`
	Total           float64        `json:"total"`
}

// Compute returns the sum of every line, rounded to cents.
func (f FinanceSummary) Compute() float64 {
	total := f.MonthlyReceipts + f.OverdueReceipts + f.Seeds + f.Honoraria
	for _, other := range f.Others {
		total += other.Amount
	}
	return RoundCents(total)
}

// Value marshals the summary.
func (f FinanceSummary) Value() (driver.Value, error) { return jsonValue(f, "finance summary") }

// Scan unmarshals the summary.
func (f *FinanceSummary) Scan(value interface{}) error {
	*f = FinanceSummary{}
	return scanJSON(value, f, "finance summary")
}

// HonorariumDetail is money handed in by an honorary member.
type HonorariumDetail struct {
	Name    string  `json:"name" validate:"required"`
	Concept string  `json:"concept,omitempty"`
	Amount  float64 `json:"amount" validate:"min=0"`
}

// HonorariaDetail is persisted as a JSONB array.
type HonorariaDetail []HonorariumDetail

// Value marshals the details.
func (h HonorariaDetail) Value() (driver.Value, error) {
	if h == nil {
		h = HonorariaDetail{}
	}
	return jsonValue([]HonorariumDetail(h), "honoraria detail")
}

// Scan unmarshals the details.
func (h *HonorariaDetail) Scan(value interface{}) error {
	*h = HonorariaDetail{}
	return scanJSON(value, (*[]HonorariumDetail)(h), "honoraria detail")
}

// Signatures of the three officers that close a minute. Each holds the id of the signing member.
type Signatures struct {
	ShiftChief string `json:"shift_chief,omitempty" validate:"omitempty,uuid"`
	Secretary  string `json:"secretary,omitempty" validate:"omitempty,uuid"`
	Treasurer  string `json:"treasurer,omitempty" validate:"omitempty,uuid"`
}

// Refs maps each signed field to its member id.
func (s Signatures) Refs() map[string]string {
	refs := make(map[string]string, 3)
	for field, id := range map[string]string{"shift_chief": s.ShiftChief, "secretary": s.Secretary, "treasurer": s.Treasurer} {
		if id = strings.TrimSpace(id); id != "" {
			refs[field] = id
		}
	}
	return refs
}

// Complete reports whether every officer has signed.
func (s Signatures) Complete() bool {
	return strings.TrimSpace(s.ShiftChief) != "" && strings.TrimSpace(s.Secretary) != "" && strings.TrimSpace(s.Treasurer) != ""
}

// Value marshals the signatures.
func (s Signatures) Value() (driver.Value, error) { return jsonValue(s, "signatures") }

// Scan unmarshals the signatures.
func (s *Signatures) Scan(value interface{}) error {
	*s = Signatures{}
	return scanJSON(value, s, "signatures")
}

// Minute is the formal record (acta) closing a vigil.
type Minute struct {
	ID              string          `db:"id" json:"id"`
	VigilID         string          `db:"vigil_id" json:"vigil_id"`
	SectionID       *string         `db:"section_id" json:"section_id,omitempty"`
	Schedule        MinuteSchedule  `db:"schedule" json:"schedule"`
	Readings        MinuteReadings  `db:"readings" json:"readings"`
	Movements       MinuteMovements `db:"movements" json:"movements"`
	OtherBusiness   *string         `db:"other_business" json:"other_business,omitempty"`
	AttendanceStats AttendanceStats `db:"attendance_stats" json:"attendance_stats"`
	Finance         FinanceSummary  `db:"finance" json:"finance"`
	HonorariaDetail HonorariaDetail `db:"honoraria_detail" json:"honoraria_detail"`
	Signatures      Signatures      `db:"signatures" json:"signatures"`
	Version         int             `db:"version" json:"version"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Complete reports whether the minute is signed by all officers.
func (m *Minute) Complete() bool {
	return m.Signatures.Complete()
}

// MinuteFilter narrows minute listings.
type MinuteFilter struct {
	SectionID string
	Page      int
	PageSize  int
}
