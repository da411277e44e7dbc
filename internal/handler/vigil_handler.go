package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vigilia-api/internal/dto"
	"github.com/noah-isme/vigilia-api/internal/middleware"
	"github.com/noah-isme/vigilia-api/internal/models"
	appErrors "github.com/noah-isme/vigilia-api/pkg/errors"
	"github.com/noah-isme/vigilia-api/pkg/response"
)

type vigilService interface {
	List(ctx context.Context, query dto.VigilQuery) ([]models.Vigil, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Vigil, error)
	Summary(ctx context.Context, id string) (*models.VigilSummary, error)
	Create(ctx context.Context, req dto.CreateVigilRequest) (*models.Vigil, error)
	Transition(ctx context.Context, id string, req dto.TransitionRequest, actor models.Actor) (*models.Vigil, error)
	SeedAttendance(ctx context.Context, id string, version int) (*models.Vigil, error)
	AddAttendee(ctx context.Context, id string, req dto.AddAttendeeRequest) (*models.Vigil, error)
	SetAttendance(ctx context.Context, id, memberID string, req dto.SetAttendanceRequest) (*models.Vigil, error)
	ToggleAttendance(ctx context.Context, id, memberID string, version int) (*models.Vigil, error)
	SetFinance(ctx context.Context, id, memberID string, req dto.SetFinanceRequest) (*models.Vigil, error)
	AddGuardBlock(ctx context.Context, id string, req dto.AddGuardBlockRequest) (*models.Vigil, error)
	SplitGuardBlock(ctx context.Context, id, blockID string, req dto.SplitGuardBlockRequest) (*models.Vigil, error)
	AssignGuard(ctx context.Context, id string, req dto.GuardAssignmentRequest) (*models.Vigil, error)
	UnassignGuard(ctx context.Context, id string, req dto.GuardAssignmentRequest) (*models.Vigil, error)
	AssignSpecialRole(ctx context.Context, id string, req dto.SpecialRoleRequest) (*models.Vigil, error)
	UnassignSpecialRole(ctx context.Context, id string, req dto.SpecialRoleRequest) (*models.Vigil, error)
	AvailableMembers(ctx context.Context, id string) ([]string, error)
}

// versionBody reads the optional version of bodyless mutations.
type versionBody struct {
	Version int `json:"version"`
}

// VigilHandler exposes vigil documents and their embedded collections.
type VigilHandler struct {
	service vigilService
}

// NewVigilHandler builds a new handler.
func NewVigilHandler(service vigilService) *VigilHandler {
	return &VigilHandler{service: service}
}

func (h *VigilHandler) respond(c *gin.Context, status int, vigil *models.Vigil, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.ETag(c, vigil.Version)
	response.JSON(c, status, vigil, nil)
}

// List godoc
// @Summary List vigils
// @Tags Vigils
// @Produce json
// @Param section_id query string false "Section ID"
// @Param state query string false "State"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /vigils [get]
func (h *VigilHandler) List(c *gin.Context) {
	var query dto.VigilQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	vigils, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vigils, pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get vigil
// @Tags Vigils
// @Produce json
// @Param id path string true "Vigil ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /vigils/{id} [get]
func (h *VigilHandler) Get(c *gin.Context) {
	vigil, err := h.service.Get(c.Request.Context(), c.Param("id"))
	h.respond(c, http.StatusOK, vigil, err)
}

// Summary godoc
// @Summary Vigil totals
// @Description Present count, money collected, vigil duration and guard slot durations
// @Tags Vigils
// @Produce json
// @Param id path string true "Vigil ID"
// @Success 200 {object} response.Envelope
// @Router /vigils/{id}/summary [get]
func (h *VigilHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Create godoc
// @Summary Schedule vigil
// @Tags Vigils
// @Accept json
// @Produce json
// @Param payload body dto.CreateVigilRequest true "Vigil payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /vigils [post]
func (h *VigilHandler) Create(c *gin.Context) {
	var req dto.CreateVigilRequest
	if !bindJSON(c, &req, "invalid vigil payload") {
		return
	}
	vigil, err := h.service.Create(c.Request.Context(), req)
	h.respond(c, http.StatusCreated, vigil, err)
}

// Transition godoc
// @Summary Change vigil state
// @Tags Vigils
// @Accept json
// @Produce json
// @Param id path string true "Vigil ID"
// @Param If-Match header string false "Expected version"
// @Param payload body dto.TransitionRequest true "Target state"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vigils/{id}/state [post]
func (h *VigilHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequest
	if !bindJSON(c, &req, "invalid transition payload") {
		return
	}
	req.Version = expectedVersion(c, req.Version)
	vigil, err := h.service.Transition(c.Request.Context(), c.Param("id"), req, middleware.Actor(c))
	h.respond(c, http.StatusOK, vigil, err)
}

// SeedAttendance godoc
// @Summary Seed attendance from the section roster
// @Tags Vigils
// @Produce json
// @Param id path string true "Vigil ID"
// @Param If-Match header string false "Expected version"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /vigils/{id}/attendance/seed [post]
func (h *VigilHandler) SeedAttendance(c *gin.Context) {
	var body versionBody
	if !bindOptionalJSON(c, &body, "invalid payload") {
		return
	}
	vigil, err := h.service.SeedAttendance(c.Request.Context(), c.Param("id"), expectedVersion(c, body.Version))
	h.respond(c, http.StatusOK, vigil, err)
}

// AddAttendee godoc
// @Summary Add attendee
// @Tags Vigils
// @Accept json
// @Produce json
// @Param id path string true "Vigil ID"
// @Param payload body dto.AddAttendeeRequest true "Member"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vigils/{id}/attendance [post]
func (h *VigilHandler) AddAttendee(c *gin.Context) {
	var req dto.AddAttendeeRequest
	if !bindJSON(c, &req, "invalid attendance payload") {
		return
	}
	req.Version = expectedVersion(c, req.Version)
	vigil, err := h.service.AddAttendee(c.Request.Context(), c.Param("id"), req)
	h.respond(c, http.StatusOK, vigil, err)
}

// SetAttendance godoc
// @Summary Mark member present or absent
// @Description Members without an attendance entry leave the vigil unchanged
// @Tags Vigils
// @Accept json
// @Produce json
// @Param id path string true "Vigil ID"
// @Param memberId path string true "Member ID"
// @Param payload body dto.SetAttendanceRequest true "Presence"
// @Success 200 {object} response.Envelope
// @Router /vigils/{id}/attendance/{memberId} [put]
func (h *VigilHandler) SetAttendance(c *gin.Context) {
	var req dto.SetAttendanceRequest
	if !bindJSON(c, &req, "invalid attendance payload") {
		return
	}
	req.Version = expectedVersion(c, req.Version)
	vigil, err := h.service.SetAttendance(c.Request.Context(), c.Param("id"), c.Param("memberId"), req)
	h.respond(c, http.StatusOK, vigil, err)
}

// ToggleAttendance godoc
// @Summary Toggle member presence
// @Tags Vigils
// @Produce json
// @Param id path string true "Vigil ID"
// @Param memberId path string true "Member ID"
// @Success 200 {object} response.Envelope
// @Router /vigils/{id}/attendance/{memberId}/toggle [post]
func (h *VigilHandler) ToggleAttendance(c *gin.Context) {
	var body versionBody
	if !bindOptionalJSON(c, &body, "invalid payload") {
		return
	}
	vigil, err := h.service.ToggleAttendance(c.Request.Context(), c.Param("id"), c.Param("memberId"), expectedVersion(c, body.Version))
	h.respond(c, http.StatusOK, vigil, err)
}

// SetFinance godoc
// @Summary Record member money
// @Tags Vigils
// @Accept json
// @Produce json
// @Param id path string true "Vigil ID"
// @Param memberId path string true "Member ID"
// @Param payload body dto.SetFinanceRequest true "Amounts"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /vigils/{id}/attendance/{memberId}/finance [put]
func (h *VigilHandler) SetFinance(c *gin.Context) {
	var req dto.SetFinanceRequest
	if !bindJSON(c, &req, "invalid finance payload") {
		return
	}
	req.Version = expectedVersion(c, req.Version)
	vigil, err := h.service.SetFinance(c.Request.Context(), c.Param("id"), c.Param("memberId"), req)
	h.respond(c, http.StatusOK, vigil, err)
}

// AddGuardBlock godoc
// @Summary Add guard block
// @Tags Guards
// @Accept json
// @Produce json
// @Param id path string true "Vigil ID"
// @Param payload body dto.AddGuardBlockRequest true "Block"
// @Success 200 {object} response.Envelope
// @Router /vigils/{id}/guards/blocks [post]
func (h *VigilHandler) AddGuardBlock(c *gin.Context) {
	var req dto.AddGuardBlockRequest
	if !bindJSON(c, &req, "invalid guard block payload") {
		return
	}
	req.Version = expectedVersion(c, req.Version)
	vigil, err := h.service.AddGuardBlock(c.Request.Context(), c.Param("id"), req)
	h.respond(c, http.StatusOK, vigil, err)
}

// SplitGuardBlock godoc
// @Summary Split guard block
// @Tags Guards
// @Accept json
// @Produce json
// @Param id path string true "Vigil ID"
// @Param blockId path string true "Block ID"
// @Param payload body dto.SplitGuardBlockRequest true "Parts"
// @Success 200 {object} response.Envelope
// @Router /vigils/{id}/guards/blocks/{blockId}/split [post]
func (h *VigilHandler) SplitGuardBlock(c *gin.Context) {
	var req dto.SplitGuardBlockRequest
	if !bindJSON(c, &req, "invalid split payload") {
		return
	}
	req.Version = expectedVersion(c, req.Version)
	vigil, err := h.service.SplitGuardBlock(c.Request.Context(), c.Param("id"), c.Param("blockId"), req)
	h.respond(c, http.StatusOK, vigil, err)
}

// AssignGuard godoc
// @Summary Assign guard
// @Tags Guards
// @Accept json
// @Produce json
// @Param id path string true "Vigil ID"
// @Param payload body dto.GuardAssignmentRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vigils/{id}/guards/assignments [post]
func (h *VigilHandler) AssignGuard(c *gin.Context) {
	var req dto.GuardAssignmentRequest
	if !bindJSON(c, &req, "invalid guard assignment") {
		return
	}
	req.Version = expectedVersion(c, req.Version)
	vigil, err := h.service.AssignGuard(c.Request.Context(), c.Param("id"), req)
	h.respond(c, http.StatusOK, vigil, err)
}

// UnassignGuard godoc
// @Summary Remove guard
// @Tags Guards
// @Accept json
// @Produce json
// @Param id path string true "Vigil ID"
// @Param payload body dto.GuardAssignmentRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Router /vigils/{id}/guards/assignments [delete]
func (h *VigilHandler) UnassignGuard(c *gin.Context) {
	var req dto.GuardAssignmentRequest
	if !bindJSON(c, &req, "invalid guard assignment") {
		return
	}
	req.Version = expectedVersion(c, req.Version)
	vigil, err := h.service.UnassignGuard(c.Request.Context(), c.Param("id"), req)
	h.respond(c, http.StatusOK, vigil, err)
}

// AvailableMembers godoc
// @Summary Members without guard or role
// @Tags Guards
// @Produce json
// @Param id path string true "Vigil ID"
// @Success 200 {object} response.Envelope
// @Router /vigils/{id}/guards/available [get]
func (h *VigilHandler) AvailableMembers(c *gin.Context) {
	ids, err := h.service.AvailableMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ids, nil)
}

// AssignSpecialRole godoc
// @Summary Assign special role
// @Tags Guards
// @Accept json
// @Produce json
// @Param id path string true "Vigil ID"
// @Param payload body dto.SpecialRoleRequest true "Role"
// @Success 200 {object} response.Envelope
// @Router /vigils/{id}/roles [post]
func (h *VigilHandler) AssignSpecialRole(c *gin.Context) {
	var req dto.SpecialRoleRequest
	if !bindJSON(c, &req, "invalid special role payload") {
		return
	}
	req.Version = expectedVersion(c, req.Version)
	vigil, err := h.service.AssignSpecialRole(c.Request.Context(), c.Param("id"), req)
	h.respond(c, http.StatusOK, vigil, err)
}

// UnassignSpecialRole godoc
// @Summary Remove special role
// @Tags Guards
// @Accept json
// @Produce json
// @Param id path string true "Vigil ID"
// @Param payload body dto.SpecialRoleRequest true "Role"
// @Success 200 {object} response.Envelope
// @Router /vigils/{id}/roles [delete]
func (h *VigilHandler) UnassignSpecialRole(c *gin.Context) {
	var req dto.SpecialRoleRequest
	if !bindJSON(c, &req, "invalid special role payload") {
		return
	}
	req.Version = expectedVersion(c, req.Version)
	vigil, err := h.service.UnassignSpecialRole(c.Request.Context(), c.Param("id"), req)
	h.respond(c, http.StatusOK, vigil, err)
}
