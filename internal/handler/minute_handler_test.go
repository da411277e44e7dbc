package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vigilia-api/internal/dto"
	"github.com/noah-isme/vigilia-api/internal/middleware"
	"github.com/noah-isme/vigilia-api/internal/models"
	appErrors "github.com/noah-isme/vigilia-api/pkg/errors"
)

type minuteServiceMock struct {
	minute      *models.Minute
	err         error
	hit         bool
	lastGen     dto.GenerateMinuteRequest
	lastSign    dto.SignMinuteRequest
	lastActor   models.Actor
	lastVigilID string
}

func (m *minuteServiceMock) Generate(ctx context.Context, vigilID string, req dto.GenerateMinuteRequest, actor models.Actor) (*models.Minute, error) {
	m.lastVigilID = vigilID
	m.lastGen = req
	m.lastActor = actor
	return m.minute, m.err
}

func (m *minuteServiceMock) Fetch(ctx context.Context, id string) (*models.Minute, bool, error) {
	return m.minute, m.hit, m.err
}

func (m *minuteServiceMock) GetByVigil(ctx context.Context, vigilID string) (*models.Minute, error) {
	m.lastVigilID = vigilID
	return m.minute, m.err
}

func (m *minuteServiceMock) List(ctx context.Context, query dto.MinuteQuery) ([]models.Minute, *models.Pagination, error) {
	return []models.Minute{}, &models.Pagination{Page: 1, PageSize: 20}, m.err
}

func (m *minuteServiceMock) Sign(ctx context.Context, id string, req dto.SignMinuteRequest, actor models.Actor) (*models.Minute, error) {
	m.lastSign = req
	return m.minute, m.err
}

func newMinuteRouter(svc minuteService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewMinuteHandler(svc)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1"})
		c.Next()
	})
	r.POST("/vigils/:id/minute", h.Generate)
	r.GET("/vigils/:id/minute", h.GetByVigil)
	r.GET("/minutes", h.List)
	r.GET("/minutes/:id", h.Get)
	r.PUT("/minutes/:id/signatures", h.Sign)
	return r
}

func TestMinuteHandlerGenerate(t *testing.T) {
	svc := &minuteServiceMock{minute: &models.Minute{ID: "min-1", VigilID: "v1", Version: 1}}
	body := `{"communions":12,"schedule":{"meeting_start":"21:30"}}`
	w := serve(newMinuteRouter(svc), http.MethodPost, "/vigils/v1/minute", body, map[string]string{"If-Match": `"7"`})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "v1", svc.lastVigilID)
	assert.Equal(t, 7, svc.lastGen.VigilVersion)
	assert.Equal(t, 12, svc.lastGen.Communions)
	assert.Equal(t, "u-1", svc.lastActor.UserID)
	assert.Equal(t, `"1"`, w.Header().Get("ETag"))
}

func TestMinuteHandlerGenerateExisting(t *testing.T) {
	svc := &minuteServiceMock{err: appErrors.Clone(appErrors.ErrMinuteExists, "exists")}
	w := serve(newMinuteRouter(svc), http.MethodPost, "/vigils/v1/minute", `{}`, nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestMinuteHandlerSign(t *testing.T) {
	svc := &minuteServiceMock{minute: &models.Minute{ID: "min-1", Version: 3}}
	w := serve(newMinuteRouter(svc), http.MethodPut, "/minutes/min-1/signatures", `{"secretary":"5b0c2a0e-8a4e-4c55-9e7d-0000000000c2","version":2}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5b0c2a0e-8a4e-4c55-9e7d-0000000000c2", svc.lastSign.Secretary)
	assert.Equal(t, 2, svc.lastSign.Version)
	assert.Equal(t, `"3"`, w.Header().Get("ETag"))
}

func TestMinuteHandlerGetNotFound(t *testing.T) {
	svc := &minuteServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "minute not found")}
	w := serve(newMinuteRouter(svc), http.MethodGet, "/minutes/missing", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMinuteHandlerGetReportsCacheHit(t *testing.T) {
	svc := &minuteServiceMock{minute: &models.Minute{ID: "min-1", Version: 2}, hit: true}
	r := newMinuteRouter(svc)
	w := serve(r, http.MethodGet, "/minutes/min-1", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cache_hit":true`)
}

func TestMinuteHandlerList(t *testing.T) {
	w := serve(newMinuteRouter(&minuteServiceMock{}), http.MethodGet, "/minutes?page=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pagination"`)
}
