package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/vigilia-api/internal/dto"
	"github.com/noah-isme/vigilia-api/internal/models"
	"github.com/noah-isme/vigilia-api/internal/repository"
	appErrors "github.com/noah-isme/vigilia-api/pkg/errors"
)

type vigilRepository interface {
	List(ctx context.Context, filter models.VigilFilter) ([]models.Vigil, int, error)
	FindByID(ctx context.Context, id string) (*models.Vigil, error)
	Create(ctx context.Context, vigil *models.Vigil) error
	Update(ctx context.Context, vigil *models.Vigil) error
}

type rosterSource interface {
	Roster(ctx context.Context, sectionID string) ([]models.Member, error)
}

// VigilConfig tunes guard scheduling.
type VigilConfig struct {
	GuardSingleAssignment bool
}

// VigilService edits vigil documents. Every mutation is checked against the stored version.
type VigilService struct {
	repo      vigilRepository
	roster    rosterSource
	audit     auditRepository
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	config    VigilConfig
}

// errUnchanged makes mutate return the stored document without saving.
var errUnchanged = errors.New("vigil unchanged")

// NewVigilService constructs the service.
func NewVigilService(repo vigilRepository, roster rosterSource, audit auditRepository, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, config VigilConfig) *VigilService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &VigilService{repo: repo, roster: roster, audit: audit, validator: validate, logger: logger, metrics: metrics, config: config}
}

// List returns vigils with pagination metadata.
func (s *VigilService) List(ctx context.Context, query dto.VigilQuery) ([]models.Vigil, *models.Pagination, error) {
	filter := models.VigilFilter{SectionID: query.SectionID, From: query.From, To: query.To}
	if query.State != "" {
		state := models.VigilState(query.State)
		if !state.Valid() {
			return nil, nil, invalidField("invalid vigil filter", "state", "unknown vigil state")
		}
		filter.State = &state
	}
	filter.Page, filter.PageSize = models.NormalizePage(query.Page, query.PageSize)
	vigils, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list vigils")
	}
	if vigils == nil {
		vigils = []models.Vigil{}
	}
	return vigils, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns the vigil document.
func (s *VigilService) Get(ctx context.Context, id string) (*models.Vigil, error) {
	vigil, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vigil not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load vigil")
	}
	return vigil, nil
}

// Summary computes the aggregation values of a vigil.
func (s *VigilService) Summary(ctx context.Context, id string) (*models.VigilSummary, error) {
	vigil, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	summary, err := vigil.Summary()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize vigil")
	}
	return &summary, nil
}

// Create schedules a vigil with empty collections.
func (s *VigilService) Create(ctx context.Context, req dto.CreateVigilRequest) (*models.Vigil, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid vigil payload")
	}
	if req.EndsAt.Before(req.StartsAt) {
		return nil, invalidField("invalid vigil payload", "ends_at", "must not be before starts_at")
	}
	vigil := &models.Vigil{
		SectionID:    req.SectionID,
		Parish:       strings.TrimSpace(req.Parish),
		TurnNumber:   req.TurnNumber,
		StartsAt:     req.StartsAt.UTC(),
		EndsAt:       req.EndsAt.UTC(),
		Officiant:    strings.TrimSpace(req.Officiant),
		Chaplain:     req.Chaplain,
		State:        models.VigilStateScheduled,
		Attendance:   models.Attendance{},
		GuardBlocks:  models.GuardBlocks{},
		SpecialRoles: models.SpecialRoles{TorchBearers: models.StringList{}, MassHelpers: models.StringList{}},
		Notes:        req.Notes,
	}
	if err := s.repo.Create(ctx, vigil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create vigil")
	}
	return vigil, nil
}

// Transition moves the vigil to in_progress or cancelled.
func (s *VigilService) Transition(ctx context.Context, id string, req dto.TransitionRequest, actor models.Actor) (*models.Vigil, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid transition payload")
	}
	next := models.VigilState(req.State)
	var previous models.VigilState
	vigil, err := s.mutate(ctx, id, req.Version, func(v *models.Vigil) error {
		if !v.State.CanTransition(next) {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot move vigil from %s to %s", v.State, next))
		}
		previous = v.State
		v.State = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionVigilState, models.ResourceVigil, vigil.ID,
		map[string]string{"state": string(previous)}, map[string]string{"state": string(next)})
	return vigil, nil
}

// SeedAttendance adds an absent entry for every roster member of the vigil's section not yet listed.
func (s *VigilService) SeedAttendance(ctx context.Context, id string, version int) (*models.Vigil, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.SectionID == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "vigil has no section to seed from")
	}
	members, err := s.roster.Roster(ctx, *current.SectionID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, version, func(v *models.Vigil) error {
		added := 0
		for _, m := range members {
			if v.Attendance.Index(m.ID) >= 0 {
				continue
			}
			v.Attendance = append(v.Attendance, models.AttendanceEntry{MemberID: m.ID})
			added++
		}
		if added == 0 {
			return errUnchanged
		}
		return nil
	})
}

// AddAttendee appends a single attendance entry. A member already listed is a conflict.
func (s *VigilService) AddAttendee(ctx context.Context, id string, req dto.AddAttendeeRequest) (*models.Vigil, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid attendance payload")
	}
	return s.mutate(ctx, id, req.Version, func(v *models.Vigil) error {
		if v.Attendance.Index(req.MemberID) >= 0 {
			return appErrors.Clone(appErrors.ErrConflict, "member already in attendance")
		}
		v.Attendance = append(v.Attendance, models.AttendanceEntry{MemberID: req.MemberID})
		return nil
	})
}

// SetAttendance marks the member present or absent. A member without an entry leaves the vigil unchanged.
func (s *VigilService) SetAttendance(ctx context.Context, id, memberID string, req dto.SetAttendanceRequest) (*models.Vigil, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid attendance payload")
	}
	return s.mutate(ctx, id, req.Version, func(v *models.Vigil) error {
		idx := v.Attendance.Index(memberID)
		if idx < 0 || v.Attendance[idx].Present == *req.Present {
			return errUnchanged
		}
		setPresent(v.Attendance, idx, *req.Present)
		return nil
	})
}

// ToggleAttendance flips the present flag of the member.
func (s *VigilService) ToggleAttendance(ctx context.Context, id, memberID string, version int) (*models.Vigil, error) {
	return s.mutate(ctx, id, version, func(v *models.Vigil) error {
		idx := v.Attendance.Index(memberID)
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "member not in attendance")
		}
		setPresent(v.Attendance, idx, !v.Attendance[idx].Present)
		return nil
	})
}

func setPresent(attendance models.Attendance, idx int, present bool) {
	if present {
		order := attendance.NextArrivalOrder()
		attendance[idx].ArrivalOrder = &order
	} else {
		attendance[idx].ArrivalOrder = nil
	}
	attendance[idx].Present = present
}

// SetFinance overwrites the money the member handed in.
func (s *VigilService) SetFinance(ctx context.Context, id, memberID string, req dto.SetFinanceRequest) (*models.Vigil, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid finance payload")
	}
	return s.mutate(ctx, id, req.Version, func(v *models.Vigil) error {
		idx := v.Attendance.Index(memberID)
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "member not in attendance")
		}
		v.Attendance[idx].Finance = models.Finance{
			MonthlyFee:    models.RoundCents(req.MonthlyFee),
			OverdueFee:    models.RoundCents(req.OverdueFee),
			ExtraDonation: models.RoundCents(req.ExtraDonation),
		}
		return nil
	})
}

// AddGuardBlock appends a block with empty choirs.
func (s *VigilService) AddGuardBlock(ctx context.Context, id string, req dto.AddGuardBlockRequest) (*models.Vigil, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid guard block payload")
	}
	block := models.GuardBlock{ID: uuid.NewString(), Label: strings.TrimSpace(req.Label), Slots: make([]models.GuardSlot, 0, len(req.Slots))}
	for _, slot := range req.Slots {
		block.Slots = append(block.Slots, newSlot(slot.Start, slot.End))
	}
	return s.mutate(ctx, id, req.Version, func(v *models.Vigil) error {
		v.GuardBlocks = append(v.GuardBlocks, block)
		return nil
	})
}

// SplitGuardBlock divides every slot of an unassigned block into equal consecutive parts.
// Leftover minutes go to the last part.
func (s *VigilService) SplitGuardBlock(ctx context.Context, id, blockID string, req dto.SplitGuardBlockRequest) (*models.Vigil, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid split payload")
	}
	return s.mutate(ctx, id, req.Version, func(v *models.Vigil) error {
		block, ok := v.GuardBlocks.Block(blockID)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "guard block not found")
		}
		slots := make([]models.GuardSlot, 0, len(block.Slots)*req.Parts)
		for _, slot := range block.Slots {
			if len(slot.FirstChoir)+len(slot.SecondChoir) > 0 {
				return appErrors.Clone(appErrors.ErrConflict, "unassign guards before splitting the block")
			}
			total, err := v.SlotDurationMinutes(slot)
			if err != nil {
				return invalidField("invalid guard block", "slots", err.Error())
			}
			if total < req.Parts {
				return invalidField("invalid split payload", "parts", "slot is too short to split")
			}
			h, m, _ := models.ParseClock(slot.Start)
			start := h*60 + m
			step := total / req.Parts
			for i := 0; i < req.Parts; i++ {
				from := start + i*step
				to := from + step
				if i == req.Parts-1 {
					to = start + total
				}
				slots = append(slots, newSlot(formatClock(from), formatClock(to)))
			}
		}
		block.Slots = slots
		return nil
	})
}

func newSlot(start, end string) models.GuardSlot {
	return models.GuardSlot{ID: uuid.NewString(), Start: start, End: end, FirstChoir: models.StringList{}, SecondChoir: models.StringList{}}
}

func formatClock(minutes int) string {
	minutes %= 24 * 60
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// AssignGuard places an attending member in a choir of a slot.
func (s *VigilService) AssignGuard(ctx context.Context, id string, req dto.GuardAssignmentRequest) (*models.Vigil, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid guard assignment")
	}
	return s.mutate(ctx, id, req.Version, func(v *models.Vigil) error {
		slot, err := findSlot(v, req.BlockID, req.SlotID)
		if err != nil {
			return err
		}
		if v.Attendance.Index(req.MemberID) < 0 {
			return invalidField("invalid guard assignment", "member_id", "member is not in the vigil attendance")
		}
		choir := slot.Choir(models.Choir(req.Choir))
		if choir.Contains(req.MemberID) {
			return appErrors.Clone(appErrors.ErrConflict, "member already in this choir")
		}
		if s.config.GuardSingleAssignment && v.GuardBlocks.Assigned(req.MemberID) {
			return appErrors.Clone(appErrors.ErrConflict, "member already holds a guard slot")
		}
		*choir = append(*choir, req.MemberID)
		return nil
	})
}

// UnassignGuard removes a member from a choir of a slot.
func (s *VigilService) UnassignGuard(ctx context.Context, id string, req dto.GuardAssignmentRequest) (*models.Vigil, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid guard assignment")
	}
	return s.mutate(ctx, id, req.Version, func(v *models.Vigil) error {
		slot, err := findSlot(v, req.BlockID, req.SlotID)
		if err != nil {
			return err
		}
		choir := slot.Choir(models.Choir(req.Choir))
		if !choir.Contains(req.MemberID) {
			return errUnchanged
		}
		*choir = choir.Without(req.MemberID)
		return nil
	})
}

func findSlot(v *models.Vigil, blockID, slotID string) (*models.GuardSlot, error) {
	block, ok := v.GuardBlocks.Block(blockID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "guard block not found")
	}
	slot, ok := block.Slot(slotID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "guard slot not found")
	}
	return slot, nil
}

// AssignSpecialRole gives an attending member a special role.
func (s *VigilService) AssignSpecialRole(ctx context.Context, id string, req dto.SpecialRoleRequest) (*models.Vigil, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid special role payload")
	}
	return s.mutate(ctx, id, req.Version, func(v *models.Vigil) error {
		if v.Attendance.Index(req.MemberID) < 0 {
			return invalidField("invalid special role payload", "member_id", "member is not in the vigil attendance")
		}
		list := v.SpecialRoles.List(models.SpecialRole(req.Role))
		if list.Contains(req.MemberID) {
			return appErrors.Clone(appErrors.ErrConflict, "member already holds this role")
		}
		*list = append(*list, req.MemberID)
		return nil
	})
}

// UnassignSpecialRole takes a special role away.
func (s *VigilService) UnassignSpecialRole(ctx context.Context, id string, req dto.SpecialRoleRequest) (*models.Vigil, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid special role payload")
	}
	return s.mutate(ctx, id, req.Version, func(v *models.Vigil) error {
		list := v.SpecialRoles.List(models.SpecialRole(req.Role))
		if !list.Contains(req.MemberID) {
			return errUnchanged
		}
		*list = list.Without(req.MemberID)
		return nil
	})
}

// AvailableMembers lists attendance members holding neither a guard slot nor a special role.
func (s *VigilService) AvailableMembers(ctx context.Context, id string) ([]string, error) {
	vigil, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	available := make([]string, 0, len(vigil.Attendance))
	for _, entry := range vigil.Attendance {
		if vigil.GuardBlocks.Assigned(entry.MemberID) || vigil.SpecialRoles.Has(entry.MemberID) {
			continue
		}
		available = append(available, entry.MemberID)
	}
	return available, nil
}

// mutate loads the vigil, applies fn and saves it. A zero expected version means the stored one.
func (s *VigilService) mutate(ctx context.Context, id string, expected int, fn func(v *models.Vigil) error) (*models.Vigil, error) {
	start := time.Now()
	vigil, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if vigil.State.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrFinalized, fmt.Sprintf("vigil is %s", vigil.State))
	}
	if expected != 0 && expected != vigil.Version {
		return nil, s.versionConflict()
	}
	if err := fn(vigil); err != nil {
		if errors.Is(err, errUnchanged) {
			return vigil, nil
		}
		return nil, err
	}
	if err := s.repo.Update(ctx, vigil); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleVersion):
			return nil, s.versionConflict()
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vigil not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update vigil")
	}
	s.logger.Debug("vigil updated", zap.String("vigil_id", vigil.ID), zap.Int("version", vigil.Version), zap.Duration("took", time.Since(start)))
	return vigil, nil
}

func (s *VigilService) versionConflict() error {
	s.metrics.RecordVersionConflict(models.ResourceVigil)
	return appErrors.Clone(appErrors.ErrVersionConflict, "vigil was modified by another request; reload and retry")
}
