package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vigilia-api/internal/dto"
	"github.com/noah-isme/vigilia-api/internal/models"
)

type sectionServiceMock struct {
	active  *bool
	updated dto.SectionRequest
}

func (m *sectionServiceMock) List(ctx context.Context, activeOnly *bool) ([]models.Section, error) {
	m.active = activeOnly
	return []models.Section{{ID: "s1", Name: "San José", TurnNumber: 3, Active: true}}, nil
}

func (m *sectionServiceMock) Get(ctx context.Context, id string) (*models.Section, error) {
	return &models.Section{ID: id}, nil
}

func (m *sectionServiceMock) Create(ctx context.Context, req dto.SectionRequest) (*models.Section, error) {
	return &models.Section{ID: "s2", Name: req.Name, TurnNumber: req.TurnNumber}, nil
}

func (m *sectionServiceMock) Update(ctx context.Context, id string, req dto.SectionRequest) (*models.Section, error) {
	m.updated = req
	return &models.Section{ID: id, Name: req.Name}, nil
}

func newSectionRouter(svc sectionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSectionHandler(svc)
	r := gin.New()
	r.GET("/sections", h.List)
	r.POST("/sections", h.Create)
	r.GET("/sections/:id", h.Get)
	r.PUT("/sections/:id", h.Update)
	return r
}

func TestSectionHandlerListActiveFilter(t *testing.T) {
	svc := &sectionServiceMock{}
	r := newSectionRouter(svc)

	w := serve(r, http.MethodGet, "/sections?active=true", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.active)
	assert.True(t, *svc.active)

	serve(r, http.MethodGet, "/sections?active=maybe", "", nil)
	assert.Nil(t, svc.active)
}

func TestSectionHandlerCreateAndUpdate(t *testing.T) {
	svc := &sectionServiceMock{}
	r := newSectionRouter(svc)

	w := serve(r, http.MethodPost, "/sections", `{"name":"San José","parish":"Santa María","turn_number":3}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"turn_number":3`)

	w = serve(r, http.MethodPut, "/sections/s1", `{"name":"San Pedro","parish":"Santa María","turn_number":4}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "San Pedro", svc.updated.Name)
}
