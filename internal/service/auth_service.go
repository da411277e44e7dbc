package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/vigilia-api/internal/models"
	"github.com/noah-isme/vigilia-api/internal/repository"
	appErrors "github.com/noah-isme/vigilia-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	Secret     string
	SessionTTL time.Duration
	Issuer     string
	BcryptCost int
}

// AuthService provides registration, login and session lookups.
type AuthService struct {
	repo      authUserRepository
	audit     auditRepository
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	config    AuthConfig

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, audit auditRepository, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = 7 * 24 * time.Hour
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{repo: repo, audit: audit, validator: validate, logger: logger, metrics: metrics, config: config}
}

// Register creates an account and opens a session for it.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.SessionResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordAuthAttempt("register", "invalid")
		return nil, validationError(err, "invalid registration payload")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{Email: req.Email, Name: req.Name, PasswordHash: string(hash)}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.metrics.RecordAuthAttempt("register", "duplicate")
			return nil, appErrors.Clone(appErrors.ErrEmailTaken, "Email already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthAttempt("register", "success")
	recordAudit(ctx, s.audit, s.logger, models.Actor{UserID: user.ID, IP: req.IP, UserAgent: req.UserAgent},
		models.AuditActionRegister, models.ResourceAuth, user.ID, nil, map[string]string{"email": user.Email})
	return session, nil
}

// Login verifies credentials. Unknown emails and wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.SessionResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordAuthAttempt("login", "invalid")
		return nil, validationError(err, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(req.Password))
			return nil, s.loginFailed(ctx, req, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, s.loginFailed(ctx, req, user.ID)
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	} else {
		user.LastLogin = &now
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthAttempt("login", "success")
	recordAudit(ctx, s.audit, s.logger, models.Actor{UserID: user.ID, IP: req.IP, UserAgent: req.UserAgent},
		models.AuditActionLogin, models.ResourceAuth, user.ID, nil, map[string]string{"status": "success"})
	return session, nil
}

func (s *AuthService) loginFailed(ctx context.Context, req models.LoginRequest, userID string) error {
	s.metrics.RecordAuthAttempt("login", "failure")
	recordAudit(ctx, s.audit, s.logger, models.Actor{UserID: userID, IP: req.IP, UserAgent: req.UserAgent},
		models.AuditActionLoginFailed, models.ResourceAuth, userID, nil, map[string]string{"status": "failure"})
	return appErrors.Clone(appErrors.ErrInvalidCredentials, "Invalid email or password")
}

// Logout records the event. Sessions are stateless so the token simply stops being sent once the cookie is cleared.
func (s *AuthService) Logout(ctx context.Context, actor models.Actor) {
	if actor.UserID == "" {
		return
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionLogout, models.ResourceAuth, actor.UserID, nil, map[string]string{"status": "logout"})
}

// Session validates the token and reloads the user it belongs to.
func (s *AuthService) Session(ctx context.Context, token string) (*models.SessionResponse, error) {
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Not authenticated")
	}
	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Not authenticated")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return &models.SessionResponse{User: user.Info(), ExpiresAt: claims.ExpiresAt, Token: token}, nil
}

// ValidateToken parses and validates a session token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "Not authenticated")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Not authenticated")
	}

	return claims, nil
}

func (s *AuthService) issue(user *models.User) (*models.SessionResponse, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.SessionTTL)
	claims := &models.JWTClaims{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		ExpiresAt: expiresAt,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign session token")
	}
	return &models.SessionResponse{User: user.Info(), ExpiresAt: expiresAt, Token: signed}, nil
}

// fallbackDummyHash is a valid cost-10 bcrypt hash, compared against when the configured cost cannot produce one.
const fallbackDummyHash = "$2a$10$XajjQvNhvvRt5GSeFk1xFeyqRrsxkhBkUiQeg0dt.wU1qD4aFDcga"

// dummy returns a hash to compare unknown emails against so they cost as much as a wrong password.
func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.config.BcryptCost)
		if err != nil {
			s.logger.Warn("failed to prepare dummy hash, using fallback", zap.Error(err))
			hash = []byte(fallbackDummyHash)
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
