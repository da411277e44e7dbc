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

type sectionRepository interface {
	List(ctx context.Context, filter models.SectionFilter) ([]models.Section, error)
	FindByID(ctx context.Context, id string) (*models.Section, error)
	Create(ctx context.Context, section *models.Section) error
	Update(ctx context.Context, section *models.Section) error
}

// SectionService manages parish sections. Lists are cached when Redis is enabled.
type SectionService struct {
	repo      sectionRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewSectionService constructs the service.
func NewSectionService(repo sectionRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *SectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &SectionService{repo: repo, cache: cache, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

// List returns sections, optionally only the active ones.
func (s *SectionService) List(ctx context.Context, activeOnly *bool) ([]models.Section, error) {
	key := sectionListCacheKey(activeOnly)
	var cached []models.Section
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	sections, err := s.repo.List(ctx, models.SectionFilter{Active: activeOnly})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	if sections == nil {
		sections = []models.Section{}
	}
	_ = s.cache.Set(ctx, key, sections, s.cacheTTL)
	return sections, nil
}

// Get returns a section by id.
func (s *SectionService) Get(ctx context.Context, id string) (*models.Section, error) {
	section, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return section, nil
}

// Create registers a section.
func (s *SectionService) Create(ctx context.Context, req dto.SectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid section payload")
	}
	section := &models.Section{
		Name:       strings.TrimSpace(req.Name),
		Parish:     strings.TrimSpace(req.Parish),
		TurnNumber: req.TurnNumber,
		Patron:     strings.TrimSpace(req.Patron),
		Active:     req.Active == nil || *req.Active,
	}
	if err := s.repo.Create(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}
	s.invalidate(ctx)
	return section, nil
}

// Update replaces the section fields.
func (s *SectionService) Update(ctx context.Context, id string, req dto.SectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid section payload")
	}
	section, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	section.Name = strings.TrimSpace(req.Name)
	section.Parish = strings.TrimSpace(req.Parish)
	section.TurnNumber = req.TurnNumber
	section.Patron = strings.TrimSpace(req.Patron)
	if req.Active != nil {
		section.Active = *req.Active
	}
	if err := s.repo.Update(ctx, section); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update section")
	}
	s.invalidate(ctx)
	return section, nil
}

func (s *SectionService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cachePrefixSections+"*"); err != nil {
		s.logger.Warn("failed to invalidate section cache", zap.Error(err))
	}
}
