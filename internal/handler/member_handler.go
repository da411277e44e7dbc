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

type memberService interface {
	List(ctx context.Context, query dto.MemberQuery) ([]models.Member, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Member, error)
	Create(ctx context.Context, req dto.CreateMemberRequest) (*models.Member, error)
	Update(ctx context.Context, id string, req dto.UpdateMemberRequest, actor models.Actor) (*models.Member, error)
	ChangeStatus(ctx context.Context, id string, req dto.ChangeStatusRequest, actor models.Actor) (*models.Member, error)
}

// MemberHandler exposes the member registry.
type MemberHandler struct {
	service memberService
}

// NewMemberHandler builds a new handler.
func NewMemberHandler(service memberService) *MemberHandler {
	return &MemberHandler{service: service}
}

// List godoc
// @Summary List members
// @Tags Members
// @Produce json
// @Param section_id query string false "Section ID"
// @Param class query string false "Member class"
// @Param type query string false "Member type"
// @Param q query string false "Name search"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /members [get]
func (h *MemberHandler) List(c *gin.Context) {
	var query dto.MemberQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	members, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get member
// @Tags Members
// @Produce json
// @Param id path string true "Member ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /members/{id} [get]
func (h *MemberHandler) Get(c *gin.Context) {
	member, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, member, nil)
}

// Create godoc
// @Summary Register member
// @Tags Members
// @Accept json
// @Produce json
// @Param payload body dto.CreateMemberRequest true "Member payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /members [post]
func (h *MemberHandler) Create(c *gin.Context) {
	var req dto.CreateMemberRequest
	if !bindJSON(c, &req, "invalid member payload") {
		return
	}
	member, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, member)
}

// Update godoc
// @Summary Update member
// @Tags Members
// @Accept json
// @Produce json
// @Param id path string true "Member ID"
// @Param payload body dto.UpdateMemberRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /members/{id} [put]
func (h *MemberHandler) Update(c *gin.Context) {
	var req dto.UpdateMemberRequest
	if !bindJSON(c, &req, "invalid member payload") {
		return
	}
	member, err := h.service.Update(c.Request.Context(), c.Param("id"), req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, member, nil)
}

// ChangeStatus godoc
// @Summary Change member class
// @Description Moves the member to another class and appends the status history. Discharge is a status change.
// @Tags Members
// @Accept json
// @Produce json
// @Param id path string true "Member ID"
// @Param payload body dto.ChangeStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /members/{id}/status [post]
func (h *MemberHandler) ChangeStatus(c *gin.Context) {
	var req dto.ChangeStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}
	member, err := h.service.ChangeStatus(c.Request.Context(), c.Param("id"), req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, member, nil)
}
