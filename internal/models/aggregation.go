package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RoundCents rounds an amount to two decimals.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// FinanceTotals are the per-field and overall money sums of a vigil.
type FinanceTotals struct {
	MonthlyFees    float64 `json:"monthly_fees"`
	OverdueFees    float64 `json:"overdue_fees"`
	ExtraDonations float64 `json:"extra_donations"`
	Total          float64 `json:"total"`
}

// TotalPresent counts attendance entries marked present.
func (v *Vigil) TotalPresent() int {
	n := 0
	for _, entry := range v.Attendance {
		if entry.Present {
			n++
		}
	}
	return n
}

// FinanceTotals sums every attendance entry, present or not.
func (v *Vigil) FinanceTotals() FinanceTotals {
	var t FinanceTotals
	for _, entry := range v.Attendance {
		t.MonthlyFees += entry.Finance.MonthlyFee
		t.OverdueFees += entry.Finance.OverdueFee
		t.ExtraDonations += entry.Finance.ExtraDonation
	}
	t.Total = RoundCents(t.MonthlyFees + t.OverdueFees + t.ExtraDonations)
	t.MonthlyFees = RoundCents(t.MonthlyFees)
	t.OverdueFees = RoundCents(t.OverdueFees)
	t.ExtraDonations = RoundCents(t.ExtraDonations)
	return t
}

// TotalMoneyCollected is the grand total of all finance entries rounded to cents.
func (v *Vigil) TotalMoneyCollected() float64 {
	return v.FinanceTotals().Total
}

// DurationHours is the span between start and end in hours.
func (v *Vigil) DurationHours() float64 {
	return v.EndsAt.Sub(v.StartsAt).Hours()
}

// ParseClock parses "H:MM" or "HH:MM" into hour and minute.
func ParseClock(raw string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 || len(parts[1]) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 {
		return 0, 0, fmt.Errorf("invalid clock %q", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return h, m, nil
}

// SlotDurationMinutes resolves the slot times against the vigil date. An end earlier than the start
// belongs to the following day.
func (v *Vigil) SlotDurationMinutes(slot GuardSlot) (int, error) {
	sh, sm, err := ParseClock(slot.Start)
	if err != nil {
		return 0, err
	}
	eh, em, err := ParseClock(slot.End)
	if err != nil {
		return 0, err
	}
	day := v.StartsAt
	start := time.Date(day.Year(), day.Month(), day.Day(), sh, sm, 0, 0, day.Location())
	end := time.Date(day.Year(), day.Month(), day.Day(), eh, em, 0, 0, day.Location())
	if end.Before(start) {
		end = end.Add(24 * time.Hour)
	}
	return int(end.Sub(start).Minutes()), nil
}

// SlotSummary describes one guard slot in a vigil summary.
type SlotSummary struct {
	BlockID         string `json:"block_id"`
	BlockLabel      string `json:"block_label"`
	SlotID          string `json:"slot_id"`
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
	Guards          int    `json:"guards"`
}

// VigilSummary bundles every derived value of a vigil.
type VigilSummary struct {
	VigilID        string        `json:"vigil_id"`
	State          VigilState    `json:"state"`
	TotalAttendees int           `json:"total_attendees"`
	TotalPresent   int           `json:"total_present"`
	Finance        FinanceTotals `json:"finance"`
	DurationHours  float64       `json:"duration_hours"`
	Slots          []SlotSummary `json:"slots"`
}

// Summary computes the derived values of the vigil.
func (v *Vigil) Summary() (VigilSummary, error) {
	summary := VigilSummary{
		VigilID:        v.ID,
		State:          v.State,
		TotalAttendees: len(v.Attendance),
		TotalPresent:   v.TotalPresent(),
		Finance:        v.FinanceTotals(),
		DurationHours:  v.DurationHours(),
		Slots:          []SlotSummary{},
	}
	for _, block := range v.GuardBlocks {
		for _, slot := range block.Slots {
			minutes, err := v.SlotDurationMinutes(slot)
			if err != nil {
				return VigilSummary{}, fmt.Errorf("slot %s: %w", slot.ID, err)
			}
			summary.Slots = append(summary.Slots, SlotSummary{
				BlockID:         block.ID,
				BlockLabel:      block.Label,
				SlotID:          slot.ID,
				Start:           slot.Start,
				End:             slot.End,
				DurationMinutes: minutes,
				Guards:          len(slot.FirstChoir) + len(slot.SecondChoir),
			})
		}
	}
	return summary, nil
}
