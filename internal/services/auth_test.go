package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campustransit/transit-server/internal/apperrors"
	"github.com/campustransit/transit-server/internal/models"
	"github.com/campustransit/transit-server/internal/store"
)

func newAuthService() (*AuthService, store.UserStore) {
	users := store.MemoryUsers{Memory: store.NewMemory()}
	return NewAuthService(users, "test-secret", zap.NewNop().Sugar()), users
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService()

	user, err := svc.Register(ctx, &models.RegisterRequest{
		Name:          "Priya N",
		Email:         "Priya@Campus.edu",
		Password:      "hunter22",
		Identifier:    "21CS042",
		RouteNo:       "S1",
		BoardingPoint: "Porur",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, "priya@campus.edu", user.Email)
	assert.NotEqual(t, "hunter22", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter22")))

	resp, err := svc.Login(ctx, "priya@campus.edu", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, user.ID, resp.User.ID)

	id, err := svc.Authenticate(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)
	assert.Equal(t, models.RoleStudent, id.Role)
	assert.Equal(t, "Priya N", id.Name)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService()

	_, err := svc.Register(ctx, &models.RegisterRequest{Email: "x@y.z"})
	var ve *apperrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "name")
	assert.Contains(t, ve.Fields, "password")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService()

	req := &models.RegisterRequest{Name: "A", Email: "a@campus.edu", Password: "pw123456"}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEmail)
}

func TestRegisterRefusesElevatedRoles(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService()

	for _, role := range []models.Role{models.RoleAdmin, models.RoleDriver} {
		_, err := svc.Register(ctx, &models.RegisterRequest{
			Name: "A", Email: "a@campus.edu", Password: "pw123456", Role: role,
		})
		assert.ErrorIs(t, err, apperrors.ErrForbidden, "role %s", role)
	}
}

func TestLoginUniformFailureMessage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService()

	_, err := svc.Register(ctx, &models.RegisterRequest{Name: "A", Email: "a@campus.edu", Password: "pw123456"})
	require.NoError(t, err)

	_, unknownErr := svc.Login(ctx, "nobody@campus.edu", "pw123456")
	_, wrongErr := svc.Login(ctx, "a@campus.edu", "wrong-password")

	assert.ErrorIs(t, unknownErr, apperrors.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, apperrors.ErrInvalidCredentials)
	// Identical message either way, so accounts cannot be enumerated.
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	svc, _ := newAuthService()

	_, err := svc.Authenticate("")
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	_, err = svc.Authenticate("not.a.token")
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	// Token signed with a different secret must not verify.
	other := NewAuthService(store.MemoryUsers{Memory: store.NewMemory()}, "other-secret", zap.NewNop().Sugar())
	token, err := other.IssueToken(&models.User{ID: newID(), Name: "X", Role: models.RoleStudent})
	require.NoError(t, err)
	_, err = svc.Authenticate(token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestAuthorize(t *testing.T) {
	assert.NoError(t, Authorize(nil, models.RoleStudent))
	assert.NoError(t, Authorize([]models.Role{models.RoleAdmin, models.RoleDriver}, models.RoleDriver))
	assert.ErrorIs(t, Authorize([]models.Role{models.RoleAdmin}, models.RoleStudent), apperrors.ErrForbidden)
	// Exact match only, no hierarchy: admin is not implicitly a driver.
	assert.ErrorIs(t, Authorize([]models.Role{models.RoleDriver}, models.RoleAdmin), apperrors.ErrForbidden)
}
