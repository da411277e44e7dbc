package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/vigilia-api/internal/dto"
	"github.com/noah-isme/vigilia-api/internal/models"
	appErrors "github.com/noah-isme/vigilia-api/pkg/errors"
)

type memberRepository interface {
	List(ctx context.Context, filter models.MemberFilter) ([]models.Member, int, error)
	ListRoster(ctx context.Context, sectionID string) ([]models.Member, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Member, error)
	FindByID(ctx context.Context, id string) (*models.Member, error)
	Create(ctx context.Context, member *models.Member) error
	Update(ctx context.Context, member *models.Member) error
}

// MemberService manages the member registry. Members are never deleted; discharge is a status change.
type MemberService struct {
	repo      memberRepository
	audit     auditRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewMemberService constructs the service.
func NewMemberService(repo memberRepository, audit auditRepository, validate *validator.Validate, logger *zap.Logger) *MemberService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &MemberService{repo: repo, audit: audit, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// List returns members with pagination metadata.
func (s *MemberService) List(ctx context.Context, query dto.MemberQuery) ([]models.Member, *models.Pagination, error) {
	filter := models.MemberFilter{SectionID: query.SectionID, Search: strings.TrimSpace(query.Search)}
	if query.Class != "" {
		class := models.MemberClass(query.Class)
		if !class.Valid() {
			return nil, nil, invalidField("invalid member filter", "class", "unknown member class")
		}
		filter.Class = &class
	}
	if query.Type != "" {
		memberType := models.MemberType(query.Type)
		if !memberType.Valid() {
			return nil, nil, invalidField("invalid member filter", "type", "unknown member type")
		}
		filter.Type = &memberType
	}
	filter.Page, filter.PageSize = models.NormalizePage(query.Page, query.PageSize)

	members, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list members")
	}
	if members == nil {
		members = []models.Member{}
	}
	return members, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a member by id.
func (s *MemberService) Get(ctx context.Context, id string) (*models.Member, error) {
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load member")
	}
	return member, nil
}

// Create registers a member. Class defaults to active and type to member.
func (s *MemberService) Create(ctx context.Context, req dto.CreateMemberRequest) (*models.Member, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid member payload")
	}
	member := &models.Member{
		FullName:      strings.TrimSpace(req.FullName),
		SectionID:     req.SectionID,
		Type:          models.MemberTypeMember,
		Class:         models.MemberClassActive,
		VigilOrder:    req.VigilOrder,
		Phone:         req.Phone,
		Email:         req.Email,
		Address:       req.Address,
		PresentedBy:   req.PresentedBy,
		Badges:        models.StringList(req.Badges),
		StatusHistory: models.StatusHistory{},
		Notes:         req.Notes,
	}
	if member.Badges == nil {
		member.Badges = models.StringList{}
	}
	if req.Type != "" {
		member.Type = models.MemberType(req.Type)
	}
	if req.Class != "" {
		member.Class = models.MemberClass(req.Class)
	}
	now := s.now()
	member.JoinDate = now
	if req.JoinDate != nil {
		member.JoinDate = req.JoinDate.UTC()
	}
	switch member.Class {
	case models.MemberClassTrial:
		member.TrialDate = &member.JoinDate
	case models.MemberClassActive:
		member.ActivationDate = &member.JoinDate
	case models.MemberClassAspirant, models.MemberClassHonorary, models.MemberClassDischarged, models.MemberClassInactive:
	}

	if err := s.repo.Create(ctx, member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create member")
	}
	return member, nil
}

// Update applies the provided fields. A class change appends a status history entry.
func (s *MemberService) Update(ctx context.Context, id string, req dto.UpdateMemberRequest, actor models.Actor) (*models.Member, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid member payload")
	}
	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := member.Class

	if req.FullName != nil {
		member.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.SectionID != nil {
		member.SectionID = req.SectionID
	}
	if req.Type != nil {
		member.Type = models.MemberType(*req.Type)
	}
	if req.VigilOrder != nil {
		member.VigilOrder = req.VigilOrder
	}
	if req.Phone != nil {
		member.Phone = req.Phone
	}
	if req.Email != nil {
		member.Email = req.Email
	}
	if req.Address != nil {
		member.Address = req.Address
	}
	if req.JoinDate != nil {
		joined := req.JoinDate.UTC()
		member.JoinDate = joined
	}
	if req.PresentedBy != nil {
		member.PresentedBy = req.PresentedBy
	}
	if req.Badges != nil {
		member.Badges = models.StringList(req.Badges)
	}
	if req.Notes != nil {
		member.Notes = req.Notes
	}
	if req.Class != nil && models.MemberClass(*req.Class) != member.Class {
		member.ApplyStatus(models.MemberClass(*req.Class), s.now(), req.Reason, req.AuthorizedBy)
	}

	if err := s.save(ctx, member); err != nil {
		return nil, err
	}
	if member.Class != previous {
		s.auditStatus(ctx, actor, member, previous)
	}
	return member, nil
}

// ChangeStatus moves the member to another class and records the transition.
func (s *MemberService) ChangeStatus(ctx context.Context, id string, req dto.ChangeStatusRequest, actor models.Actor) (*models.Member, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid status payload")
	}
	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next := models.MemberClass(req.Class)
	if next == member.Class {
		return nil, invalidField("invalid status payload", "class", "member already has this class")
	}
	previous := member.Class
	member.ApplyStatus(next, s.now(), strings.TrimSpace(req.Reason), strings.TrimSpace(req.AuthorizedBy))
	if err := s.save(ctx, member); err != nil {
		return nil, err
	}
	s.auditStatus(ctx, actor, member, previous)
	return member, nil
}

// Discharge marks a member as discharged, skipping members already discharged.
func (s *MemberService) Discharge(ctx context.Context, id, cause string, actor models.Actor) error {
	member, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if member.Class == models.MemberClassDischarged {
		return nil
	}
	previous := member.Class
	member.ApplyStatus(models.MemberClassDischarged, s.now(), cause, "")
	if err := s.save(ctx, member); err != nil {
		return err
	}
	s.auditStatus(ctx, actor, member, previous)
	return nil
}

// ChangeAddress stores a new address for the member.
func (s *MemberService) ChangeAddress(ctx context.Context, id, address string) error {
	member, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	address = strings.TrimSpace(address)
	member.Address = &address
	return s.save(ctx, member)
}

// Roster returns the members of a section expected at its vigils.
func (s *MemberService) Roster(ctx context.Context, sectionID string) ([]models.Member, error) {
	members, err := s.repo.ListRoster(ctx, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section roster")
	}
	return members, nil
}

// Lookup returns the members with the given ids keyed by id. Unknown ids are skipped.
func (s *MemberService) Lookup(ctx context.Context, ids []string) (map[string]models.Member, error) {
	members, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load members")
	}
	byID := make(map[string]models.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}
	return byID, nil
}

func (s *MemberService) save(ctx context.Context, member *models.Member) error {
	if err := s.repo.Update(ctx, member); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "member not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update member")
	}
	return nil
}

func (s *MemberService) auditStatus(ctx context.Context, actor models.Actor, member *models.Member, previous models.MemberClass) {
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionMemberStatus, models.ResourceMember, member.ID,
		map[string]string{"class": string(previous)}, map[string]string{"class": string(member.Class)})
}
