package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/vigilia-api/internal/dto"
	"github.com/noah-isme/vigilia-api/internal/models"
	"github.com/noah-isme/vigilia-api/internal/repository"
	appErrors "github.com/noah-isme/vigilia-api/pkg/errors"
	"github.com/noah-isme/vigilia-api/pkg/jobs"
	"github.com/noah-isme/vigilia-api/pkg/middleware/requestid"
)

type minuteRepository interface {
	FindByID(ctx context.Context, id string) (*models.Minute, error)
	FindByVigilID(ctx context.Context, vigilID string) (*models.Minute, error)
	List(ctx context.Context, filter models.MinuteFilter) ([]models.Minute, int, error)
	CreateForVigil(ctx context.Context, vigilID string, build repository.MinuteBuilder) (*models.Minute, *models.Vigil, error)
	UpdateSignatures(ctx context.Context, minute *models.Minute) error
}

type memberDirectory interface {
	Lookup(ctx context.Context, ids []string) (map[string]models.Member, error)
	Discharge(ctx context.Context, id, cause string, actor models.Actor) error
	ChangeAddress(ctx context.Context, id, address string) error
}

type jobQueue interface {
	Enqueue(ctx context.Context, job jobs.Job) error
}

// Job kinds handled by HandleMovement.
const (
	MovementDischarge     = "member.discharge"
	MovementAddressChange = "member.address_change"
)

// MovementTask is the payload of a member movement job.
type MovementTask struct {
	MinuteID  string
	MemberID  string
	Cause     string
	Address   string
	Actor     models.Actor
	RequestID string
}

// MinuteService generates and signs the acta that closes a vigil.
type MinuteService struct {
	repo      minuteRepository
	members   memberDirectory
	cache     *CacheService
	audit     auditRepository
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	cacheTTL  time.Duration
	movements jobQueue
}

// NewMinuteService constructs the service.
func NewMinuteService(repo minuteRepository, members memberDirectory, cache *CacheService, audit auditRepository, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, cacheTTL time.Duration) *MinuteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &MinuteService{repo: repo, members: members, cache: cache, audit: audit, validator: validate, logger: logger, metrics: metrics, cacheTTL: cacheTTL}
}

// UseMovementQueue hands member movements to a background queue instead of applying them inline.
func (s *MinuteService) UseMovementQueue(q jobQueue) {
	s.movements = q
}

// Generate freezes the vigil into a minute and finishes the vigil in the same transaction.
func (s *MinuteService) Generate(ctx context.Context, vigilID string, req dto.GenerateMinuteRequest, actor models.Actor) (*models.Minute, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid minute payload")
	}
	if err := s.checkSigners(ctx, req.Signatures, "signatures."); err != nil {
		return nil, err
	}

	minute, vigil, err := s.repo.CreateForVigil(ctx, vigilID, func(v *models.Vigil) (*models.Minute, error) {
		if v.State.Terminal() {
			return nil, appErrors.Clone(appErrors.ErrFinalized, "vigil is "+string(v.State))
		}
		if req.VigilVersion != 0 && req.VigilVersion != v.Version {
			s.metrics.RecordVersionConflict(models.ResourceVigil)
			return nil, appErrors.Clone(appErrors.ErrVersionConflict, "vigil was modified by another request; reload and retry")
		}
		stats, err := s.attendanceStats(ctx, v, req)
		if err != nil {
			return nil, err
		}
		return buildMinute(v, req, stats), nil
	})
	if err != nil {
		var appErr *appErrors.Error
		switch {
		case errors.As(err, &appErr):
			return nil, err
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrMinuteExists, "a minute already exists for this vigil")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vigil not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate minute")
	}

	s.metrics.RecordMinuteGenerated()
	s.logger.Info("minute generated", zap.String("minute_id", minute.ID), zap.String("vigil_id", vigil.ID), zap.Float64("total", minute.Finance.Total))
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionMinuteGenerate, models.ResourceMinute, minute.ID, nil,
		map[string]interface{}{"vigil_id": vigil.ID, "total": minute.Finance.Total})
	s.applyMovements(ctx, minute.ID, minute.Movements, actor)
	_ = s.cache.Set(ctx, minuteCacheKey(minute.ID), minute, s.cacheTTL)
	return minute, nil
}

func (s *MinuteService) attendanceStats(ctx context.Context, v *models.Vigil, req dto.GenerateMinuteRequest) (models.AttendanceStats, error) {
	stats := models.AttendanceStats{
		Communions:          req.Communions,
		Extraordinary:       len(req.ExtraordinaryDetail),
		ExtraordinaryDetail: req.ExtraordinaryDetail,
	}
	if stats.ExtraordinaryDetail == nil {
		stats.ExtraordinaryDetail = []models.ExtraordinaryAttendee{}
	}
	present := make([]string, 0, len(v.Attendance))
	for _, entry := range v.Attendance {
		if entry.Present {
			present = append(present, entry.MemberID)
		}
	}
	if len(present) == 0 {
		return stats, nil
	}
	members, err := s.members.Lookup(ctx, present)
	if err != nil {
		return stats, err
	}
	for _, id := range present {
		switch members[id].Class {
		case models.MemberClassActive:
			stats.Active++
		case models.MemberClassTrial:
			stats.Trial++
		case models.MemberClassAspirant:
			stats.Aspirants++
		case models.MemberClassHonorary, models.MemberClassDischarged, models.MemberClassInactive:
		}
	}
	return stats, nil
}

func buildMinute(v *models.Vigil, req dto.GenerateMinuteRequest, stats models.AttendanceStats) *models.Minute {
	totals := v.FinanceTotals()
	honoraria := models.HonorariaDetail(req.HonorariaDetail)
	if honoraria == nil {
		honoraria = models.HonorariaDetail{}
	}
	var honorariaSum float64
	for _, h := range honoraria {
		honorariaSum += h.Amount
	}
	others := req.OtherConcepts
	if others == nil {
		others = []models.OtherConcept{}
	}
	finance := models.FinanceSummary{
		MonthlyReceipts: totals.MonthlyFees,
		OverdueReceipts: totals.OverdueFees,
		Seeds:           totals.ExtraDonations,
		Honoraria:       models.RoundCents(honorariaSum),
		Others:          others,
	}
	finance.Total = finance.Compute()

	return &models.Minute{
		SectionID:       v.SectionID,
		Schedule:        req.Schedule,
		Readings:        req.Readings,
		Movements:       req.Movements,
		OtherBusiness:   req.OtherBusiness,
		AttendanceStats: stats,
		Finance:         finance,
		HonorariaDetail: honoraria,
		Signatures:      req.Signatures,
	}
}

// applyMovements updates members referenced by discharges and address changes. Failures are logged.
func (s *MinuteService) applyMovements(ctx context.Context, minuteID string, movements models.MinuteMovements, actor models.Actor) {
	reqID := requestid.FromContext(ctx)
	var queued []jobs.Job
	for _, d := range movements.Discharges {
		if d.MemberID != nil {
			queued = append(queued, jobs.Job{Kind: MovementDischarge, Payload: MovementTask{MinuteID: minuteID, MemberID: *d.MemberID, Cause: d.Cause, Actor: actor, RequestID: reqID}})
		}
	}
	for _, c := range movements.AddressChanges {
		if c.MemberID != nil {
			queued = append(queued, jobs.Job{Kind: MovementAddressChange, Payload: MovementTask{MinuteID: minuteID, MemberID: *c.MemberID, Address: c.NewAddress, Actor: actor, RequestID: reqID}})
		}
	}

	for i, job := range queued {
		job.ID = fmt.Sprintf("%s/%d", minuteID, i)
		if s.movements != nil {
			err := s.movements.Enqueue(ctx, job)
			if err == nil {
				continue
			}
			s.logger.Warn("movement queue unavailable, applying inline", zap.String("job_id", job.ID), zap.Error(err))
		}
		if err := s.HandleMovement(ctx, job); err != nil {
			s.logger.Warn("failed to apply member movement from minute", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// HandleMovement applies one member movement. It is the handler of the movement queue.
func (s *MinuteService) HandleMovement(ctx context.Context, job jobs.Job) error {
	task, ok := job.Payload.(MovementTask)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Kind)
	}
	var err error
	switch job.Kind {
	case MovementDischarge:
		err = s.members.Discharge(ctx, task.MemberID, task.Cause, task.Actor)
	case MovementAddressChange:
		err = s.members.ChangeAddress(ctx, task.MemberID, task.Address)
	default:
		return fmt.Errorf("unknown movement kind %q", job.Kind)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Status < 500 {
		// Client errors are final.
		s.logger.Warn("member movement rejected",
			zap.String("job_id", job.ID),
			zap.String("member_id", task.MemberID),
			zap.String("request_id", task.RequestID),
			zap.Error(err))
		return nil
	}
	return err
}

// Get returns a minute, served from cache when possible.
func (s *MinuteService) Get(ctx context.Context, id string) (*models.Minute, error) {
	minute, _, err := s.Fetch(ctx, id)
	return minute, err
}

// Fetch is Get that also reports whether the cache answered.
func (s *MinuteService) Fetch(ctx context.Context, id string) (*models.Minute, bool, error) {
	var cached models.Minute
	if hit, _ := s.cache.Get(ctx, minuteCacheKey(id), &cached); hit {
		return &cached, true, nil
	}
	minute, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "minute not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load minute")
	}
	_ = s.cache.Set(ctx, minuteCacheKey(id), minute, s.cacheTTL)
	return minute, false, nil
}

// GetByVigil returns the minute of a vigil.
func (s *MinuteService) GetByVigil(ctx context.Context, vigilID string) (*models.Minute, error) {
	minute, err := s.repo.FindByVigilID(ctx, vigilID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "minute not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load minute")
	}
	return minute, nil
}

// List returns minutes with pagination metadata, newest first.
func (s *MinuteService) List(ctx context.Context, query dto.MinuteQuery) ([]models.Minute, *models.Pagination, error) {
	filter := models.MinuteFilter{SectionID: query.SectionID}
	filter.Page, filter.PageSize = models.NormalizePage(query.Page, query.PageSize)
	minutes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list minutes")
	}
	if minutes == nil {
		minutes = []models.Minute{}
	}
	return minutes, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Sign records officer signatures. Blank fields keep what is stored.
func (s *MinuteService) Sign(ctx context.Context, id string, req dto.SignMinuteRequest, actor models.Actor) (*models.Minute, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid signatures payload")
	}
	if err := s.checkSigners(ctx, models.Signatures{ShiftChief: req.ShiftChief, Secretary: req.Secretary, Treasurer: req.Treasurer}, ""); err != nil {
		return nil, err
	}
	minute, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "minute not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load minute")
	}
	if req.Version != 0 && req.Version != minute.Version {
		s.metrics.RecordVersionConflict(models.ResourceMinute)
		return nil, appErrors.Clone(appErrors.ErrVersionConflict, "minute was modified by another request; reload and retry")
	}
	before := minute.Signatures
	if v := strings.TrimSpace(req.ShiftChief); v != "" {
		minute.Signatures.ShiftChief = v
	}
	if v := strings.TrimSpace(req.Secretary); v != "" {
		minute.Signatures.Secretary = v
	}
	if v := strings.TrimSpace(req.Treasurer); v != "" {
		minute.Signatures.Treasurer = v
	}
	if minute.Signatures == before {
		return minute, nil
	}
	if err := s.repo.UpdateSignatures(ctx, minute); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleVersion):
			s.metrics.RecordVersionConflict(models.ResourceMinute)
			return nil, appErrors.Clone(appErrors.ErrVersionConflict, "minute was modified by another request; reload and retry")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "minute not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign minute")
	}
	_ = s.cache.Delete(ctx, minuteCacheKey(minute.ID))
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionMinuteSign, models.ResourceMinute, minute.ID, before, minute.Signatures)
	return minute, nil
}

// checkSigners rejects signatures that reference members who do not exist.
func (s *MinuteService) checkSigners(ctx context.Context, signatures models.Signatures, fieldPrefix string) error {
	refs := signatures.Refs()
	if len(refs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(refs))
	for _, id := range refs {
		ids = append(ids, id)
	}
	found, err := s.members.Lookup(ctx, ids)
	if err != nil {
		return err
	}
	details := map[string]string{}
	for field, id := range refs {
		if _, ok := found[id]; !ok {
			details[fieldPrefix+field] = "unknown member"
		}
	}
	if len(details) > 0 {
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid signatures payload"), details)
	}
	return nil
}
