package dto

import "github.com/noah-isme/vigilia-api/internal/models"

// GenerateMinuteRequest carries what the officers write down; attendance and money come from the vigil.
type GenerateMinuteRequest struct {
	Schedule            models.MinuteSchedule          `json:"schedule"`
	Readings            models.MinuteReadings          `json:"readings"`
	Movements           models.MinuteMovements         `json:"movements"`
	OtherBusiness       *string                        `json:"other_business"`
	Communions          int                            `json:"communions" validate:"min=0"`
	ExtraordinaryDetail []models.ExtraordinaryAttendee `json:"extraordinary_detail" validate:"dive"`
	HonorariaDetail     []models.HonorariumDetail      `json:"honoraria_detail" validate:"dive"`
	OtherConcepts       []models.OtherConcept          `json:"other_concepts" validate:"dive"`
	Signatures          models.Signatures              `json:"signatures"`
	VigilVersion        int                            `json:"vigil_version"`
}

// SignMinuteRequest records officer signatures as member ids. Empty fields keep the stored value.
type SignMinuteRequest struct {
	ShiftChief string `json:"shift_chief" validate:"omitempty,uuid"`
	Secretary  string `json:"secretary" validate:"omitempty,uuid"`
	Treasurer  string `json:"treasurer" validate:"omitempty,uuid"`
	Version    int    `json:"version"`
}

// MinuteQuery carries list filters from the query string.
type MinuteQuery struct {
	SectionID string `form:"section_id" binding:"omitempty,uuid"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
}

// ExportResponse points at a rendered file.
type ExportResponse struct {
	Format    string `json:"format"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}
