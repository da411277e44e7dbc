package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/vigilia-api/internal/models"
	appErrors "github.com/noah-isme/vigilia-api/pkg/errors"
	"github.com/noah-isme/vigilia-api/pkg/export"
	"github.com/noah-isme/vigilia-api/pkg/storage"
)

type minuteStub map[string]*models.Minute

func (m minuteStub) Get(ctx context.Context, id string) (*models.Minute, error) {
	if minute, ok := m[id]; ok {
		return minute, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "minute not found")
}

type vigilStub map[string]*models.Vigil

func (v vigilStub) Get(ctx context.Context, id string) (*models.Vigil, error) {
	if vigil, ok := v[id]; ok {
		return vigil, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "vigil not found")
}

type memberStub map[string]models.Member

func (m memberStub) Lookup(ctx context.Context, ids []string) (map[string]models.Member, error) {
	return m, nil
}

// recordingPDF keeps the last document it rendered.
type recordingPDF struct {
	doc export.Document
}

func (r *recordingPDF) Render(doc export.Document) ([]byte, error) {
	r.doc = doc
	return export.NewPDFExporter().Render(doc)
}

const (
	chiefID     = "5b0c2a0e-8a4e-4c55-9e7d-0000000000c1"
	secretaryID = "5b0c2a0e-8a4e-4c55-9e7d-0000000000c2"
	treasurerID = "5b0c2a0e-8a4e-4c55-9e7d-0000000000c3"
)

func newExportServiceForTest(t *testing.T, minutes minuteStub) *ExportService {
	t.Helper()
	return newExportServiceWithPDF(t, minutes, nil)
}

func newExportServiceWithPDF(t *testing.T, minutes minuteStub, pdf pdfRenderer) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	one := 1
	vigils := vigilStub{"v1": {
		ID: "v1", Parish: "San Ginés", TurnNumber: 3,
		StartsAt: time.Date(2024, 5, 4, 22, 0, 0, 0, time.UTC),
		Attendance: models.Attendance{
			{MemberID: "m1", Present: true, ArrivalOrder: &one, Finance: models.Finance{MonthlyFee: 10, OverdueFee: 5}},
			{MemberID: "m2"},
		},
	}}
	members := memberStub{
		"m1":        {ID: "m1", FullName: "José Pérez", Class: models.MemberClassActive},
		chiefID:     {ID: chiefID, FullName: "Luis Gómez"},
		secretaryID: {ID: secretaryID, FullName: "Ana Ruiz"},
	}
	return NewExportService(minutes, vigils, members, store, signer, ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop(), NewMetricsService(), nil, pdf)
}

func signedMinute() *models.Minute {
	return &models.Minute{
		ID:              "minute-1",
		VigilID:         "v1",
		Schedule:        models.MinuteSchedule{MeetingStart: "21:30"},
		AttendanceStats: models.AttendanceStats{Active: 1},
		Finance:         models.FinanceSummary{MonthlyReceipts: 10, OverdueReceipts: 5, Total: 15},
		HonorariaDetail: models.HonorariaDetail{{Name: "Don Pedro", Amount: 0}},
		Signatures:      models.Signatures{ShiftChief: chiefID, Secretary: secretaryID, Treasurer: treasurerID},
	}
}

func TestExportServiceMinutePDFAndDownload(t *testing.T) {
	pdf := &recordingPDF{}
	svc := newExportServiceWithPDF(t, minuteStub{"minute-1": signedMinute()}, pdf)

	result, err := svc.MinutePDF(context.Background(), "minute-1")
	require.NoError(t, err)
	assert.Equal(t, "pdf", result.Format)
	assert.Equal(t, []export.Line{
		{Label: "Jefe de turno", Value: "Luis Gómez"},
		{Label: "Secretario", Value: "Ana Ruiz"},
		{Label: "Tesorero", Value: treasurerID},
	}, pdf.doc.Footer)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/exports/"))

	file, name, err := svc.Open(result.Token)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.True(t, strings.HasSuffix(name, ".pdf"))
}

func TestExportServiceMinutePDFRequiresSignatures(t *testing.T) {
	minute := signedMinute()
	minute.Signatures.Treasurer = ""
	svc := newExportServiceForTest(t, minuteStub{"minute-1": minute})

	_, err := svc.MinutePDF(context.Background(), "minute-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
}

func TestExportServiceOpenRejectsBadToken(t *testing.T) {
	svc := newExportServiceForTest(t, minuteStub{})

	_, _, err := svc.Open("nope")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestExportServiceAttendanceCSV(t *testing.T) {
	svc := newExportServiceForTest(t, minuteStub{})

	data, filename, err := svc.AttendanceCSV(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, "asistencia_turno3_20240504.csv", filename)
	content := string(data)
	assert.Contains(t, content, "José Pérez,active,si,1,10.00,5.00,0.00,15.00")
	assert.Contains(t, content, "m2,,no,,0.00,0.00,0.00,0.00")
	assert.Contains(t, content, "TOTAL,,1,,10.00,5.00,0.00,15.00")
}
