package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vigilia-api/internal/dto"
	"github.com/noah-isme/vigilia-api/internal/service"
	"github.com/noah-isme/vigilia-api/pkg/response"
)

type exportService interface {
	MinutePDF(ctx context.Context, minuteID string) (*service.ExportResult, error)
	AttendanceCSV(ctx context.Context, vigilID string) ([]byte, string, error)
	Open(token string) (*os.File, string, error)
}

// ExportHandler serves rendered actas and attendance lists.
type ExportHandler struct {
	service exportService
}

// NewExportHandler builds a new handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// MinutePDF godoc
// @Summary Render minute as PDF
// @Description Requires the three officer signatures
// @Tags Exports
// @Produce json
// @Param id path string true "Minute ID"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /minutes/{id}/export [post]
func (h *ExportHandler) MinutePDF(c *gin.Context) {
	result, err := h.service.MinutePDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ExportResponse{
		Format:    result.Format,
		URL:       result.URL,
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// AttendanceCSV godoc
// @Summary Download attendance list
// @Tags Exports
// @Produce text/csv
// @Param id path string true "Vigil ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /vigils/{id}/attendance/export [get]
func (h *ExportHandler) AttendanceCSV(c *gin.Context) {
	payload, filename, err := h.service.AttendanceCSV(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", payload)
}

// Download godoc
// @Summary Download a rendered file through its signed link
// @Tags Exports
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, name, err := h.service.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), file)
}
