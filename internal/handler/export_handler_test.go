package handler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vigilia-api/internal/service"
	appErrors "github.com/noah-isme/vigilia-api/pkg/errors"
)

type exportServiceMock struct {
	result  *service.ExportResult
	err     error
	csv     []byte
	path    string
	opened  string
	openErr error
}

func (m *exportServiceMock) MinutePDF(ctx context.Context, minuteID string) (*service.ExportResult, error) {
	return m.result, m.err
}

func (m *exportServiceMock) AttendanceCSV(ctx context.Context, vigilID string) ([]byte, string, error) {
	return m.csv, "asistencia_turno3_20240504.csv", m.err
}

func (m *exportServiceMock) Open(token string) (*os.File, string, error) {
	m.opened = token
	if m.openErr != nil {
		return nil, "", m.openErr
	}
	f, err := os.Open(m.path)
	return f, filepath.Base(m.path), err
}

func newExportRouter(svc exportService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewExportHandler(svc)
	r := gin.New()
	r.POST("/minutes/:id/export", h.MinutePDF)
	r.GET("/vigils/:id/attendance/export", h.AttendanceCSV)
	r.GET("/exports/:token", h.Download)
	return r
}

func TestExportHandlerMinutePDF(t *testing.T) {
	expires := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	svc := &exportServiceMock{result: &service.ExportResult{Format: "pdf", URL: "/api/v1/exports/tok", ExpiresAt: expires}}
	w := serve(newExportRouter(svc), http.MethodPost, "/minutes/min-1/export", "", nil)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"url":"/api/v1/exports/tok"`)
	assert.Contains(t, w.Body.String(), "2024-05-06T10:00:00Z")
}

func TestExportHandlerMinutePDFUnsigned(t *testing.T) {
	svc := &exportServiceMock{err: appErrors.Clone(appErrors.ErrPreconditionFailed, "unsigned")}
	w := serve(newExportRouter(svc), http.MethodPost, "/minutes/min-1/export", "", nil)
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestExportHandlerAttendanceCSV(t *testing.T) {
	svc := &exportServiceMock{csv: []byte("Adorador,Clase\n")}
	w := serve(newExportRouter(svc), http.MethodGet, "/vigils/v1/attendance/export", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "asistencia_turno3_20240504.csv")
	assert.Equal(t, "Adorador,Clase\n", w.Body.String())
}

func TestExportHandlerDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acta_min-1.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.3"), 0o600))

	svc := &exportServiceMock{path: path}
	w := serve(newExportRouter(svc), http.MethodGet, "/exports/tok", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok", svc.opened)
	assert.Equal(t, "%PDF-1.3", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "acta_min-1.pdf")
}

func TestExportHandlerDownloadExpired(t *testing.T) {
	svc := &exportServiceMock{openErr: appErrors.Clone(appErrors.ErrNotFound, "download link expired")}
	w := serve(newExportRouter(svc), http.MethodGet, "/exports/tok", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := PingFunc(func(ctx context.Context) error { return nil })
	down := PingFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	r := gin.New()
	r.GET("/ready", NewMetricsHandler(nil, map[string]Pinger{"database": ok, "redis": nil}).Ready)
	w := serve(r, http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "redis")

	r = gin.New()
	r.GET("/ready", NewMetricsHandler(nil, map[string]Pinger{"database": ok, "redis": down}).Ready)
	w = serve(r, http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
