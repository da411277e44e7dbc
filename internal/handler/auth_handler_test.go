package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vigilia-api/internal/models"
	appErrors "github.com/noah-isme/vigilia-api/pkg/errors"
)

type authServiceMock struct {
	session     *models.SessionResponse
	err         error
	loggedOut   *models.Actor
	lastToken   string
	lastRequest models.LoginRequest
}

func (m *authServiceMock) Register(ctx context.Context, req models.RegisterRequest) (*models.SessionResponse, error) {
	return m.session, m.err
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.SessionResponse, error) {
	m.lastRequest = req
	return m.session, m.err
}

func (m *authServiceMock) Logout(ctx context.Context, actor models.Actor) {
	m.loggedOut = &actor
}

func (m *authServiceMock) Session(ctx context.Context, token string) (*models.SessionResponse, error) {
	m.lastToken = token
	return m.session, m.err
}

func (m *authServiceMock) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.ErrUnauthorized
	}
	return &models.JWTClaims{UserID: "u-1"}, nil
}

func newAuthRouter(svc authService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(svc, CookieConfig{Name: "session", MaxAge: 7 * 24 * time.Hour})
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/session", h.Session)
	return r
}

func sessionCookie(w interface{ Result() *http.Response }) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	return nil
}

func TestAuthHandlerLoginSetsCookie(t *testing.T) {
	svc := &authServiceMock{session: &models.SessionResponse{User: models.UserInfo{ID: "u-1", Email: "a@b.co"}, Token: "jwt"}}
	w := serve(newAuthRouter(svc), http.MethodPost, "/auth/login", `{"email":"a@b.co","password":"secret"}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	assert.Equal(t, "jwt", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 7*24*3600, cookie.MaxAge)
	assert.NotContains(t, w.Body.String(), "jwt\"")
	assert.Equal(t, "a@b.co", svc.lastRequest.Email)
}

func TestAuthHandlerLoginRejected(t *testing.T) {
	svc := &authServiceMock{err: appErrors.Clone(appErrors.ErrUnauthorized, "Invalid credentials")}
	w := serve(newAuthRouter(svc), http.MethodPost, "/auth/login", `{"email":"a@b.co","password":"bad"}`, nil)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, sessionCookie(w))
}

func TestAuthHandlerRegisterCreated(t *testing.T) {
	svc := &authServiceMock{session: &models.SessionResponse{User: models.UserInfo{ID: "u-2"}, Token: "jwt"}}
	w := serve(newAuthRouter(svc), http.MethodPost, "/auth/register", `{"email":"n@b.co","password":"Secret123","name":"New"}`, nil)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, sessionCookie(w))
}

func TestAuthHandlerLogoutClearsCookie(t *testing.T) {
	svc := &authServiceMock{}
	w := serve(newAuthRouter(svc), http.MethodPost, "/auth/logout", "", map[string]string{"Cookie": "session=good"})

	require.Equal(t, http.StatusOK, w.Code)
	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
	require.NotNil(t, svc.loggedOut)
	assert.Equal(t, "u-1", svc.loggedOut.UserID)
}

func TestAuthHandlerSession(t *testing.T) {
	svc := &authServiceMock{session: &models.SessionResponse{User: models.UserInfo{ID: "u-1"}}}
	r := newAuthRouter(svc)

	w := serve(r, http.MethodGet, "/auth/session", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/auth/session", "", map[string]string{"Cookie": "session=good"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "good", svc.lastToken)
}
