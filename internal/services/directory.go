package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campustransit/transit-server/internal/apperrors"
	"github.com/campustransit/transit-server/internal/models"
	"github.com/campustransit/transit-server/internal/store"
)

// DirectoryService serves the read-mostly reference data (routes, buses,
// users) and the admin CRUD over it. Fixture seeding is check-then-insert:
// a concurrent cold start can double-seed, which is benign for fixture
// data since upserts are keyed.
type DirectoryService struct {
	directory store.DirectoryStore
	users     store.UserStore
	logger    *zap.SugaredLogger

	seedOnce sync.Once
}

// NewDirectoryService creates a new directory service.
func NewDirectoryService(directory store.DirectoryStore, users store.UserStore, logger *zap.SugaredLogger) *DirectoryService {
	return &DirectoryService{directory: directory, users: users, logger: logger}
}

// ensureSeeded applies the route/bus fixtures if the directory is empty.
func (s *DirectoryService) ensureSeeded(ctx context.Context) {
	s.seedOnce.Do(func() {
		count, err := s.directory.CountRoutes(ctx)
		if err != nil {
			s.logger.Errorw("Seed check failed", "error", err)
			return
		}
		if count > 0 {
			return
		}
		for i := range seedRoutes {
			if err := s.directory.UpsertRoute(ctx, &seedRoutes[i]); err != nil {
				s.logger.Errorw("Seed route failed", "route", seedRoutes[i].Name, "error", err)
			}
		}
		for i := range seedBuses {
			if err := s.directory.UpsertBus(ctx, &seedBuses[i]); err != nil {
				s.logger.Errorw("Seed bus failed", "bus", seedBuses[i].BusNo, "error", err)
			}
		}
		s.logger.Infow("Directory seeded", "routes", len(seedRoutes), "buses", len(seedBuses))
	})
}

// Routes returns all routes, seeding fixtures on first use.
func (s *DirectoryService) Routes(ctx context.Context) ([]models.BusRoute, error) {
	s.ensureSeeded(ctx)
	return s.directory.Routes(ctx)
}

// Buses returns all buses, seeding fixtures on first use.
func (s *DirectoryService) Buses(ctx context.Context) ([]models.Bus, error) {
	s.ensureSeeded(ctx)
	return s.directory.Buses(ctx)
}

// UpsertRoute creates or replaces a route. Admin only.
func (s *DirectoryService) UpsertRoute(ctx context.Context, actor Identity, route *models.BusRoute) error {
	if err := Authorize([]models.Role{models.RoleAdmin}, actor.Role); err != nil {
		return err
	}
	if strings.TrimSpace(route.Name) == "" {
		return apperrors.Validation("name")
	}
	return s.directory.UpsertRoute(ctx, route)
}

// UpsertBus creates or replaces a bus. Admin only.
func (s *DirectoryService) UpsertBus(ctx context.Context, actor Identity, bus *models.Bus) error {
	if err := Authorize([]models.Role{models.RoleAdmin}, actor.Role); err != nil {
		return err
	}
	if strings.TrimSpace(bus.BusNo) == "" {
		return apperrors.Validation("busNo")
	}
	if bus.Status == "" {
		bus.Status = models.BusIdle
	}
	return s.directory.UpsertBus(ctx, bus)
}

// Users returns all users. Password hashes never serialize outward, but
// callers still receive copies only.
func (s *DirectoryService) Users(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

// UserPatch is the whitelisted mutable surface of a user record. The
// password is only re-hashed when supplied.
type UserPatch struct {
	Name          *string      `json:"name,omitempty"`
	Email         *string      `json:"email,omitempty"`
	Password      *string      `json:"password,omitempty"`
	Role          *models.Role `json:"role,omitempty"`
	Identifier    *string      `json:"identifier,omitempty"`
	RouteNo       *string      `json:"routeNo,omitempty"`
	BoardingPoint *string      `json:"boardingPoint,omitempty"`
}

// UpdateUser applies an admin patch to a user record.
func (s *DirectoryService) UpdateUser(ctx context.Context, actor Identity, id uuid.UUID, patch *UserPatch) (*models.User, error) {
	if err := Authorize([]models.Role{models.RoleAdmin}, actor.Role); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*patch.Email))
	}
	if patch.Role != nil {
		if !models.ValidRole(*patch.Role) {
			return nil, apperrors.Validation("role")
		}
		user.Role = *patch.Role
	}
	if patch.Identifier != nil {
		user.Identifier = *patch.Identifier
	}
	if patch.RouteNo != nil {
		user.RouteNo = *patch.RouteNo
	}
	if patch.BoardingPoint != nil {
		user.BoardingPoint = *patch.BoardingPoint
	}
	if patch.Password != nil && *patch.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Infow("User updated", "id", id, "by", actor.UserID)
	return user, nil
}

// DeleteUser removes an account. Admin only, and never the acting admin's
// own account.
func (s *DirectoryService) DeleteUser(ctx context.Context, actor Identity, id uuid.UUID) error {
	if err := Authorize([]models.Role{models.RoleAdmin}, actor.Role); err != nil {
		return err
	}
	if id == actor.UserID {
		return fmt.Errorf("%w: cannot delete own account", apperrors.ErrForbidden)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Infow("User deleted", "id", id, "by", actor.UserID)
	return nil
}

// ImportUsers bulk-creates accounts with partial-success semantics: one
// bad row never aborts the batch. Each failure is reported with the row's
// identifier (email, falling back to name).
func (s *DirectoryService) ImportUsers(ctx context.Context, actor Identity, rows []models.ImportUserRow) (*models.ImportResult, error) {
	if err := Authorize([]models.Role{models.RoleAdmin}, actor.Role); err != nil {
		return nil, err
	}
	result := &models.ImportResult{Failures: []models.ImportFailure{}}
	for _, row := range rows {
		ident := row.Email
		if ident == "" {
			ident = row.Name
		}
		if err := s.importRow(ctx, row); err != nil {
			result.Failures = append(result.Failures, models.ImportFailure{
				Identifier: ident,
				Reason:     apperrors.MapToHTTP(err).Message,
			})
			continue
		}
		result.Imported++
	}
	s.logger.Infow("Users imported", "imported", result.Imported, "failed", len(result.Failures), "by", actor.UserID)
	return result, nil
}

func (s *DirectoryService) importRow(ctx context.Context, row models.ImportUserRow) error {
	var missing []string
	if strings.TrimSpace(row.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(row.Email) == "" {
		missing = append(missing, "email")
	}
	if row.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return apperrors.Validation(missing...)
	}
	role := row.Role
	if role == "" {
		role = models.RoleStudent
	}
	if !models.ValidRole(role) {
		return apperrors.Validation("role")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(row.Password), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(row.Name),
		Email:         strings.ToLower(strings.TrimSpace(row.Email)),
		PasswordHash:  string(hash),
		Role:          role,
		Identifier:    row.Identifier,
		RouteNo:       row.RouteNo,
		BoardingPoint: row.BoardingPoint,
		CreatedAt:     time.Now().UTC(),
	}
	return s.users.Insert(ctx, user)
}

// RouteExists reports whether the directory knows the given route name.
func (s *DirectoryService) RouteExists(ctx context.Context, name string) bool {
	s.ensureSeeded(ctx)
	_, err := s.directory.GetRoute(ctx, name)
	return !errors.Is(err, apperrors.ErrNotFound) && err == nil
}
