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
	appErrors "github.com/noah-isme/vigilia-api/pkg/errors"
)

type memberServiceMock struct {
	query     dto.MemberQuery
	created   dto.CreateMemberRequest
	status    dto.ChangeStatusRequest
	statusErr error
}

func (m *memberServiceMock) List(ctx context.Context, query dto.MemberQuery) ([]models.Member, *models.Pagination, error) {
	m.query = query
	return []models.Member{{ID: "m1", FullName: "Ana Ruiz", Class: models.MemberClassActive}},
		&models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *memberServiceMock) Get(ctx context.Context, id string) (*models.Member, error) {
	if id != "m1" {
		return nil, appErrors.ErrNotFound
	}
	return &models.Member{ID: id, FullName: "Ana Ruiz"}, nil
}

func (m *memberServiceMock) Create(ctx context.Context, req dto.CreateMemberRequest) (*models.Member, error) {
	m.created = req
	return &models.Member{ID: "m2", FullName: req.FullName, Class: models.MemberClassActive}, nil
}

func (m *memberServiceMock) Update(ctx context.Context, id string, req dto.UpdateMemberRequest, actor models.Actor) (*models.Member, error) {
	return &models.Member{ID: id}, nil
}

func (m *memberServiceMock) ChangeStatus(ctx context.Context, id string, req dto.ChangeStatusRequest, actor models.Actor) (*models.Member, error) {
	m.status = req
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return &models.Member{ID: id, Class: models.MemberClass(req.Class)}, nil
}

func newMemberRouter(svc memberService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewMemberHandler(svc)
	r := gin.New()
	r.GET("/members", h.List)
	r.POST("/members", h.Create)
	r.GET("/members/:id", h.Get)
	r.PUT("/members/:id", h.Update)
	r.POST("/members/:id/status", h.ChangeStatus)
	return r
}

func TestMemberHandlerListBindsFilters(t *testing.T) {
	svc := &memberServiceMock{}
	w := serve(newMemberRouter(svc), http.MethodGet, "/members?class=trial&q=ana&page=2", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.MemberQuery{Class: "trial", Search: "ana", Page: 2}, svc.query)
	assert.Contains(t, w.Body.String(), `"total_count":1`)
}

func TestMemberHandlerListRejectsMalformedSectionFilter(t *testing.T) {
	svc := &memberServiceMock{}
	w := serve(newMemberRouter(svc), http.MethodGet, "/members?section_id=sec-1", "", nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
	assert.Empty(t, svc.query.SectionID)

	w = serve(newMemberRouter(svc), http.MethodGet, "/members?section_id=5b0c2a0e-8a4e-4c55-9e7d-000000000001", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5b0c2a0e-8a4e-4c55-9e7d-000000000001", svc.query.SectionID)
}

func TestMemberHandlerCreate(t *testing.T) {
	svc := &memberServiceMock{}
	w := serve(newMemberRouter(svc), http.MethodPost, "/members", `{"full_name":"Luis Gómez"}`, nil)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Luis Gómez", svc.created.FullName)
}

func TestMemberHandlerCreateRejectsMalformedBody(t *testing.T) {
	w := serve(newMemberRouter(&memberServiceMock{}), http.MethodPost, "/members", `{"full_name":`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrValidation.Code)
}

func TestMemberHandlerGetNotFound(t *testing.T) {
	w := serve(newMemberRouter(&memberServiceMock{}), http.MethodGet, "/members/missing", "", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMemberHandlerChangeStatus(t *testing.T) {
	svc := &memberServiceMock{}
	w := serve(newMemberRouter(svc), http.MethodPost, "/members/m1/status",
		`{"class":"discharged","reason":"moved away","authorized_by":"Presidente"}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "discharged", svc.status.Class)
	assert.Equal(t, "moved away", svc.status.Reason)
	assert.Contains(t, w.Body.String(), `"class":"discharged"`)
}

func TestMemberHandlerChangeStatusSameClass(t *testing.T) {
	svc := &memberServiceMock{statusErr: appErrors.Clone(appErrors.ErrValidation, "member already has that class")}
	w := serve(newMemberRouter(svc), http.MethodPost, "/members/m1/status", `{"class":"active"}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "member already has that class")
}
