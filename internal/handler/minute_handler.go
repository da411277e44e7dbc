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

type minuteService interface {
	Generate(ctx context.Context, vigilID string, req dto.GenerateMinuteRequest, actor models.Actor) (*models.Minute, error)
	Fetch(ctx context.Context, id string) (*models.Minute, bool, error)
	GetByVigil(ctx context.Context, vigilID string) (*models.Minute, error)
	List(ctx context.Context, query dto.MinuteQuery) ([]models.Minute, *models.Pagination, error)
	Sign(ctx context.Context, id string, req dto.SignMinuteRequest, actor models.Actor) (*models.Minute, error)
}

// MinuteHandler exposes actas.
type MinuteHandler struct {
	service minuteService
}

// NewMinuteHandler builds a new handler.
func NewMinuteHandler(service minuteService) *MinuteHandler {
	return &MinuteHandler{service: service}
}

// Generate godoc
// @Summary Generate the minute of a vigil
// @Description Snapshots attendance and money, applies member movements and finishes the vigil
// @Tags Minutes
// @Accept json
// @Produce json
// @Param id path string true "Vigil ID"
// @Param If-Match header string false "Expected vigil version"
// @Param payload body dto.GenerateMinuteRequest true "Minute payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vigils/{id}/minute [post]
func (h *MinuteHandler) Generate(c *gin.Context) {
	var req dto.GenerateMinuteRequest
	if !bindJSON(c, &req, "invalid minute payload") {
		return
	}
	req.VigilVersion = expectedVersion(c, req.VigilVersion)
	minute, err := h.service.Generate(c.Request.Context(), c.Param("id"), req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.ETag(c, minute.Version)
	response.Created(c, minute)
}

// GetByVigil godoc
// @Summary Get the minute of a vigil
// @Tags Minutes
// @Produce json
// @Param id path string true "Vigil ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /vigils/{id}/minute [get]
func (h *MinuteHandler) GetByVigil(c *gin.Context) {
	minute, err := h.service.GetByVigil(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.ETag(c, minute.Version)
	response.JSON(c, http.StatusOK, minute, nil)
}

// List godoc
// @Summary List minutes
// @Tags Minutes
// @Produce json
// @Param section_id query string false "Section ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /minutes [get]
func (h *MinuteHandler) List(c *gin.Context) {
	var query dto.MinuteQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	minutes, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, minutes, pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get minute
// @Tags Minutes
// @Produce json
// @Param id path string true "Minute ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /minutes/{id} [get]
func (h *MinuteHandler) Get(c *gin.Context) {
	minute, hit, err := h.service.Fetch(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.ETag(c, minute.Version)
	response.JSON(c, http.StatusOK, minute, nil, middleware.ExtractMeta(c))
}

// Sign godoc
// @Summary Sign minute
// @Tags Minutes
// @Accept json
// @Produce json
// @Param id path string true "Minute ID"
// @Param If-Match header string false "Expected version"
// @Param payload body dto.SignMinuteRequest true "Signatures"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /minutes/{id}/signatures [put]
func (h *MinuteHandler) Sign(c *gin.Context) {
	var req dto.SignMinuteRequest
	if !bindJSON(c, &req, "invalid signatures payload") {
		return
	}
	req.Version = expectedVersion(c, req.Version)
	minute, err := h.service.Sign(c.Request.Context(), c.Param("id"), req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.ETag(c, minute.Version)
	response.JSON(c, http.StatusOK, minute, nil)
}
