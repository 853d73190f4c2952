// Package store defines the persistence interfaces for reports, users and
// directory reference data, with PostgreSQL and in-memory implementations.
//
// All report mutation goes through ReportStore.Update, an atomic
// read-modify-write: the mutator sees the current document and either
// returns the error that aborts the write or mutates in place. Concurrent
// updates to the same report are serialized at single-document granularity.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/campustransit/transit-server/internal/models"
)

// ReportFilter selects reports by exact-match predicates. Zero values
// match everything.
type ReportFilter struct {
	Kind     models.ReportKind
	Status   string
	Route    string
	AuthorID uuid.UUID // restrict to this author when non-zero
}

// Mutator transforms a report in place during an atomic update. Returning
// an error aborts the update without writing.
type Mutator func(*models.Report) error

// ReportStore persists reports.
type ReportStore interface {
	Insert(ctx context.Context, r *models.Report) error
	Get(ctx context.Context, id uuid.UUID) (*models.Report, error)
	// Update applies fn to the current document under a per-document lock
	// and persists the result. Returns apperrors.ErrNotFound for unknown
	// ids; a mutator error is returned unchanged and nothing is written.
	Update(ctx context.Context, id uuid.UUID, fn Mutator) (*models.Report, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns matching reports ordered by submittedOn descending,
	// ties broken by creation sequence ascending.
	List(ctx context.Context, f ReportFilter) ([]models.Report, error)
}

// UserStore persists user accounts. Insert returns
// apperrors.ErrDuplicateEmail when the email is already taken.
type UserStore interface {
	Insert(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// DirectoryStore persists bus and route reference data.
type DirectoryStore interface {
	Routes(ctx context.Context) ([]models.BusRoute, error)
	GetRoute(ctx context.Context, name string) (*models.BusRoute, error)
	UpsertRoute(ctx context.Context, r *models.BusRoute) error
	Buses(ctx context.Context) ([]models.Bus, error)
	UpsertBus(ctx context.Context, b *models.Bus) error
	CountRoutes(ctx context.Context) (int64, error)
}
