package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/crm-orders-api/internal/models"
	appErrors "github.com/noah-isme/crm-orders-api/pkg/errors"
)

type mockAuthRepo struct {
	users         map[string]models.User
	refreshTokens map[string]models.RefreshToken
	auditActions  []string
	lastLogin     map[string]time.Time
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		users:         make(map[string]models.User),
		refreshTokens: make(map[string]models.RefreshToken),
		lastLogin:     make(map[string]time.Time),
	}
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLogin[id] = ts
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	u := m.users[id]
	u.PasswordHash = passwordHash
	m.users[id] = u
	return nil
}

func (m *mockAuthRepo) SetActive(ctx context.Context, id string, active bool) error {
	u := m.users[id]
	u.Active = active
	m.users[id] = u
	return nil
}


func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = *token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.refreshTokens[token]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for k, t := range m.refreshTokens {
		if t.ID == id {
			t.Revoked = true
			m.refreshTokens[k] = t
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditActions = append(m.auditActions, log.Action)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:     "test-secret",
		AccessTokenExpiry:     time.Hour,
		RefreshTokenExpiry:    24 * time.Hour,
		ActivationTokenExpiry: 48 * time.Hour,
		Issuer:                "crm-orders-api",
	}
}

func seedUser(repo *mockAuthRepo, id, email, password string, active bool) {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	repo.users[id] = models.User{
		ID:           id,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    "Kate",
		LastName:     "Lane",
		Role:         models.RoleManager,
		Active:       active,
	}
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "u1", "kate@example.com", "secret123", true)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "kate@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "u1", res.User.ID)
	assert.Contains(t, repo.auditActions, models.AuditActionLogin)
	assert.Contains(t, repo.lastLogin, "u1")

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleManager, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "u1", "kate@example.com", "secret123", true)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "kate@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Status, appErrors.FromError(err).Status)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "u1", "kate@example.com", "secret123", false)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "kate@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Status, appErrors.FromError(err).Status)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "u1", "kate@example.com", "secret123", true)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "kate@example.com", Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// the spent token cannot be replayed
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Status, appErrors.FromError(err).Status)
}

func TestAuthServiceLogoutRejectsForeignToken(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "u1", "kate@example.com", "secret123", true)
	seedUser(repo, "u2", "john@example.com", "secret123", true)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "kate@example.com", Password: "secret123"})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), login.RefreshToken, "u2", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)
}

func TestAuthServiceActivationFlow(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "u1", "kate@example.com", "placeholder", false)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	token, err := svc.ActivationToken(context.Background(), "u1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	err = svc.Activate(context.Background(), token, models.ActivateRequest{Password: "brand-new-pass"})
	require.NoError(t, err)
	assert.True(t, repo.users["u1"].Active)
	assert.Contains(t, repo.auditActions, models.AuditActionUserActivate)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "kate@example.com", Password: "brand-new-pass"})
	require.NoError(t, err)
}

func TestAuthServiceActivationTokenForActiveUser(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "u1", "kate@example.com", "secret123", true)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.ActivationToken(context.Background(), "u1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErr.Status)
	assert.Equal(t, "user is already active", appErr.Message)
}

func TestAuthServiceActivateRejectsShortPassword(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "u1", "kate@example.com", "placeholder", false)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	token, err := svc.ActivationToken(context.Background(), "u1")
	require.NoError(t, err)

	err = svc.Activate(context.Background(), token, models.ActivateRequest{Password: "short"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
	assert.False(t, repo.users["u1"].Active)
}

func TestAuthServiceActivateRejectsAccessToken(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, "u1", "kate@example.com", "secret123", true)
	seedUser(repo, "u2", "john@example.com", "placeholder", false)
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "kate@example.com", Password: "secret123"})
	require.NoError(t, err)

	// an access token is not an activation token even though both are signed
	err = svc.Activate(context.Background(), login.AccessToken, models.ActivateRequest{Password: "brand-new-pass"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Status, appErrors.FromError(err).Status)
}
