// Package services contains business logic layers.
// Services are called by handlers and interact with the stores.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campustransit/transit-server/internal/apperrors"
	"github.com/campustransit/transit-server/internal/models"
	"github.com/campustransit/transit-server/internal/store"
)

const (
	bcryptCost = 10
	tokenTTL   = 24 * time.Hour
)

// Identity is the resolved caller: who is making the request and as what.
type Identity struct {
	UserID uuid.UUID
	Role   models.Role
	Name   string
}

// IsAdmin reports whether the identity carries the admin role.
func (id Identity) IsAdmin() bool { return id.Role == models.RoleAdmin }

// Claims is the JWT payload carried by bearer tokens.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// AuthService handles registration, login and token verification.
type AuthService struct {
	users  store.UserStore
	secret []byte
	logger *zap.SugaredLogger
}

// NewAuthService creates a new auth service.
func NewAuthService(users store.UserStore, jwtSecret string, logger *zap.SugaredLogger) *AuthService {
	return &AuthService{users: users, secret: []byte(jwtSecret), logger: logger}
}

// Register creates a new user account with a bcrypt-hashed password.
// The public endpoint only ever creates students: elevated roles are
// assigned through the admin user CRUD.
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	var missing []string
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(req.Email) == "" {
		missing = append(missing, "email")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, apperrors.Validation(missing...)
	}
	if req.Role != "" && req.Role != models.RoleStudent {
		return nil, fmt.Errorf("%w: role %q cannot be self-assigned", apperrors.ErrForbidden, req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(req.Name),
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:  string(hash),
		Role:          models.RoleStudent,
		Identifier:    req.Identifier,
		RouteNo:       req.RouteNo,
		BoardingPoint: req.BoardingPoint,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.users.Insert(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Infow("User registered", "id", user.ID, "role", user.Role)
	return user, nil
}

// Login verifies credentials and issues a bearer token. The failure is the
// same whether the email is unknown or the password is wrong, so callers
// cannot enumerate accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &models.LoginResponse{Token: token, User: user}, nil
}

// IssueToken signs a session token for the given user.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID: user.ID.String(),
		Role:   string(user.Role),
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Authenticate verifies a bearer token and resolves it to an identity.
func (s *AuthService) Authenticate(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, apperrors.ErrUnauthenticated
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, apperrors.ErrUnauthenticated
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return Identity{}, apperrors.ErrUnauthenticated
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Identity{}, apperrors.ErrUnauthenticated
	}
	role := models.Role(claims.Role)
	if !models.ValidRole(role) {
		return Identity{}, apperrors.ErrUnauthenticated
	}
	return Identity{UserID: userID, Role: role, Name: claims.Name}, nil
}

// Authorize checks the caller's role against an allow-list. An empty list
// allows every authenticated caller. The check is exact-match, not
// hierarchical.
func Authorize(required []models.Role, actual models.Role) error {
	if len(required) == 0 {
		return nil
	}
	for _, r := range required {
		if r == actual {
			return nil
		}
	}
	return apperrors.ErrForbidden
}
