package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/vigilia-api/internal/models"
	appErrors "github.com/noah-isme/vigilia-api/pkg/errors"
	"github.com/noah-isme/vigilia-api/pkg/export"
	"github.com/noah-isme/vigilia-api/pkg/storage"
)

type fileStorage interface {
	Save(relPath string, data []byte) (string, error)
	Open(relPath string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type minuteReader interface {
	Get(ctx context.Context, id string) (*models.Minute, error)
}

type vigilReader interface {
	Get(ctx context.Context, id string) (*models.Vigil, error)
}

type memberLookup interface {
	Lookup(ctx context.Context, ids []string) (map[string]models.Member, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	RetainFor time.Duration
}

// ExportResult describes a stored export reachable through a signed link.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       string
	ExpiresAt    time.Time
}

// ExportService renders actas to PDF and vigil attendance to CSV.
type ExportService struct {
	minutes minuteReader
	vigils  vigilReader
	members memberLookup
	storage fileStorage
	signer  *storage.SignedURLSigner
	csv     csvRenderer
	pdf     pdfRenderer
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the default exporters.
func NewExportService(minutes minuteReader, vigils vigilReader, members memberLookup, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, metrics *MetricsService, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetainFor <= 0 {
		cfg.RetainFor = 7 * 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter(true)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		minutes: minutes,
		vigils:  vigils,
		members: members,
		storage: store,
		signer:  signer,
		csv:     csv,
		pdf:     pdf,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// MinutePDF renders a fully signed minute and returns a signed download link.
func (s *ExportService) MinutePDF(ctx context.Context, minuteID string) (*ExportResult, error) {
	minute, err := s.minutes.Get(ctx, minuteID)
	if err != nil {
		return nil, err
	}
	if !minute.Complete() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "minute must be signed by the shift chief, secretary and treasurer")
	}
	vigil, err := s.vigils.Get(ctx, minute.VigilID)
	if err != nil {
		return nil, err
	}
	refs := minute.Signatures.Refs()
	ids := make([]string, 0, len(refs))
	for _, id := range refs {
		ids = append(ids, id)
	}
	signers, err := s.members.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	payload, err := s.pdf.Render(minuteDocument(minute, vigil, signers))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render minute")
	}
	relPath := fmt.Sprintf("minutes/acta_%s_%s.pdf", sanitizeFilename(minute.ID), s.now().Format("20060102_150405"))
	return s.store(minute.ID, relPath, "pdf", payload)
}

// AttendanceCSV renders the attendance list of a vigil and returns the bytes with a download name.
func (s *ExportService) AttendanceCSV(ctx context.Context, vigilID string) ([]byte, string, error) {
	vigil, err := s.vigils.Get(ctx, vigilID)
	if err != nil {
		return nil, "", err
	}
	ids := make([]string, 0, len(vigil.Attendance))
	for _, entry := range vigil.Attendance {
		ids = append(ids, entry.MemberID)
	}
	names := map[string]models.Member{}
	if len(ids) > 0 {
		if names, err = s.members.Lookup(ctx, ids); err != nil {
			return nil, "", err
		}
	}
	payload, err := s.csv.Render(attendanceDataset(vigil, names))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render attendance")
	}
	s.metrics.RecordExport("csv")
	filename := fmt.Sprintf("asistencia_turno%d_%s.csv", vigil.TurnNumber, vigil.StartsAt.Format("20060102"))
	return payload, filename, nil
}

// Open resolves a signed token to the stored file.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "download link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "download link invalid")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file not found")
	}
	name := relPath
	if idx := strings.LastIndex(relPath, "/"); idx >= 0 {
		name = relPath[idx+1:]
	}
	return file, name, nil
}

// Cleanup removes stored exports older than ttl, or the configured retention when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.RetainFor
	}
	deleted, err := s.storage.CleanupOlderThan(ttl)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export cleanup finished", zap.Int("deleted", len(deleted)), zap.Duration("older_than", ttl))
	return deleted, nil
}

func (s *ExportService) store(resourceID, relPath, format string, payload []byte) (*ExportResult, error) {
	rel, err := s.storage.Save(relPath, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(resourceID, rel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.metrics.RecordExport(format)
	return &ExportResult{
		RelativePath: rel,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func attendanceDataset(vigil *models.Vigil, members map[string]models.Member) export.Dataset {
	rows := make([][]string, 0, len(vigil.Attendance))
	for _, entry := range vigil.Attendance {
		member := members[entry.MemberID]
		name := member.FullName
		if name == "" {
			name = entry.MemberID
		}
		present, order := "no", ""
		if entry.Present {
			present = "si"
		}
		if entry.ArrivalOrder != nil {
			order = strconv.Itoa(*entry.ArrivalOrder)
		}
		rows = append(rows, []string{
			name,
			string(member.Class),
			present,
			order,
			money(entry.Finance.MonthlyFee),
			money(entry.Finance.OverdueFee),
			money(entry.Finance.ExtraDonation),
			money(models.RoundCents(entry.Finance.Total())),
		})
	}
	totals := vigil.FinanceTotals()
	rows = append(rows, []string{"TOTAL", "", strconv.Itoa(vigil.TotalPresent()), "", money(totals.MonthlyFees), money(totals.OverdueFees), money(totals.ExtraDonations), money(totals.Total)})
	return export.Dataset{
		Headers: []string{"Adorador", "Clase", "Presente", "Orden de llegada", "Mensualidad", "Atrasos", "Donativo", "Total"},
		Rows:    rows,
	}
}

func minuteDocument(minute *models.Minute, vigil *models.Vigil, signers map[string]models.Member) export.Document {
	stats := minute.AttendanceStats
	schedule := []export.Line{{Label: "Inicio de la reunion", Value: minute.Schedule.MeetingStart}}
	for _, l := range []export.Line{
		{Label: "Lectura del orden", Value: minute.Schedule.OrderRead},
		{Label: "Exposicion", Value: minute.Schedule.Exposition},
		{Label: "Reserva", Value: minute.Schedule.Reservation},
		{Label: "Misa", Value: minute.Schedule.Mass},
	} {
		if l.Value != "" {
			schedule = append(schedule, l)
		}
	}

	sections := []export.Section{
		{Heading: "Horario", Lines: schedule},
		{Heading: "Asistencia", Lines: []export.Line{
			{Label: "Activos", Value: strconv.Itoa(stats.Active)},
			{Label: "De prueba", Value: strconv.Itoa(stats.Trial)},
			{Label: "Aspirantes", Value: strconv.Itoa(stats.Aspirants)},
			{Label: "Total", Value: strconv.Itoa(stats.TotalAttendance())},
			{Label: "Comuniones", Value: strconv.Itoa(stats.Communions)},
			{Label: "Extraordinarios", Value: strconv.Itoa(stats.Extraordinary)},
		}},
	}
	if minute.Readings.Circulars != "" || minute.Readings.Correspondence != "" {
		sections = append(sections, export.Section{Heading: "Lecturas", Lines: []export.Line{
			{Label: "Circulares", Value: minute.Readings.Circulars},
			{Label: "Correspondencia", Value: minute.Readings.Correspondence},
		}})
	}
	if movements := movementLines(minute.Movements); len(movements) > 0 {
		sections = append(sections, export.Section{Heading: "Movimientos", Lines: movements})
	}

	finance := []export.Line{
		{Label: "Mensualidades", Value: money(minute.Finance.MonthlyReceipts)},
		{Label: "Atrasos", Value: money(minute.Finance.OverdueReceipts)},
		{Label: "Semillas", Value: money(minute.Finance.Seeds)},
		{Label: "Honorarios", Value: money(minute.Finance.Honoraria)},
	}
	for _, other := range minute.Finance.Others {
		finance = append(finance, export.Line{Label: other.Concept, Value: money(other.Amount)})
	}
	finance = append(finance, export.Line{Label: "TOTAL", Value: money(minute.Finance.Total)})
	financeSection := export.Section{Heading: "Tesoreria", Lines: finance}
	if len(minute.HonorariaDetail) > 0 {
		table := export.Dataset{Headers: []string{"Nombre", "Concepto", "Importe"}}
		for _, h := range minute.HonorariaDetail {
			table.Rows = append(table.Rows, []string{h.Name, h.Concept, money(h.Amount)})
		}
		financeSection.Table = &table
	}
	sections = append(sections, financeSection)
	if minute.OtherBusiness != nil && *minute.OtherBusiness != "" {
		sections = append(sections, export.Section{Heading: "Ruegos y preguntas", Text: *minute.OtherBusiness})
	}

	return export.Document{
		Title:    "Acta de Vigilia",
		Subtitle: fmt.Sprintf("%s - Turno %d - %s", vigil.Parish, vigil.TurnNumber, vigil.StartsAt.Format("02/01/2006")),
		Sections: sections,
		Footer: []export.Line{
			{Label: "Jefe de turno", Value: signerName(signers, minute.Signatures.ShiftChief)},
			{Label: "Secretario", Value: signerName(signers, minute.Signatures.Secretary)},
			{Label: "Tesorero", Value: signerName(signers, minute.Signatures.Treasurer)},
		},
	}
}

// signerName prints the member's name, or the raw id when the member is gone.
func signerName(signers map[string]models.Member, id string) string {
	if member, ok := signers[id]; ok && member.FullName != "" {
		return member.FullName
	}
	return id
}

func movementLines(m models.MinuteMovements) []export.Line {
	var lines []export.Line
	for _, t := range m.TrialVigils {
		lines = append(lines, export.Line{Label: "Vigilia de prueba", Value: t.Name})
	}
	for _, r := range m.ActiveRequests {
		lines = append(lines, export.Line{Label: "Solicitud de activo", Value: r.Name})
	}
	for _, r := range m.HonoraryRequests {
		lines = append(lines, export.Line{Label: "Solicitud de honorario", Value: r.Name})
	}
	for _, c := range m.AddressChanges {
		lines = append(lines, export.Line{Label: "Cambio de domicilio", Value: c.NewAddress})
	}
	for _, d := range m.Discharges {
		lines = append(lines, export.Line{Label: "Baja", Value: d.Cause})
	}
	if n := len(m.Badges); n > 0 {
		lines = append(lines, export.Line{Label: "Solicitudes de distintivo", Value: strconv.Itoa(n)})
	}
	return lines
}
