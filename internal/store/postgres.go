package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campustransit/transit-server/internal/apperrors"
	"github.com/campustransit/transit-server/internal/models"
)

const pgUniqueViolation = "23505"

// PostgresReports implements ReportStore on a pgx pool. Attachments,
// details, resolution and conversation live in JSONB columns; the seq
// column is a bigserial used only for the listing tie-break.
type PostgresReports struct {
	db *pgxpool.Pool
}

// NewPostgresReports creates a report store over the given pool.
func NewPostgresReports(db *pgxpool.Pool) *PostgresReports {
	return &PostgresReports{db: db}
}

const reportColumns = `id, seq, kind, author_id, author_name, route, bus_no,
	issue_category, item, description, details, attachments, status,
	submitted_on, resolution, conversation`

func scanReport(row pgx.Row) (*models.Report, error) {
	var (
		r                         models.Report
		details, resolution       []byte
		attachments, conversation []byte
	)
	err := row.Scan(&r.ID, &r.Seq, &r.Kind, &r.AuthorID, &r.AuthorName,
		&r.Route, &r.BusNo, &r.IssueCategory, &r.Item, &r.Description,
		&details, &attachments, &r.Status, &r.SubmittedOn, &resolution,
		&conversation)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &r.Details); err != nil {
			return nil, fmt.Errorf("decode details: %w", err)
		}
	}
	if len(resolution) > 0 {
		if err := json.Unmarshal(resolution, &r.Resolution); err != nil {
			return nil, fmt.Errorf("decode resolution: %w", err)
		}
	}
	if err := json.Unmarshal(attachments, &r.Attachments); err != nil {
		return nil, fmt.Errorf("decode attachments: %w", err)
	}
	if err := json.Unmarshal(conversation, &r.Conversation); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	return &r, nil
}

func reportJSON(r *models.Report) (details, attachments, resolution, conversation []byte, err error) {
	if r.Details != nil {
		if details, err = json.Marshal(r.Details); err != nil {
			return
		}
	}
	if r.Resolution != nil {
		if resolution, err = json.Marshal(r.Resolution); err != nil {
			return
		}
	}
	if r.Attachments == nil {
		r.Attachments = []models.AttachmentRef{}
	}
	if attachments, err = json.Marshal(r.Attachments); err != nil {
		return
	}
	if r.Conversation == nil {
		r.Conversation = []models.ConversationEntry{}
	}
	conversation, err = json.Marshal(r.Conversation)
	return
}

func (s *PostgresReports) Insert(ctx context.Context, r *models.Report) error {
	details, attachments, resolution, conversation, err := reportJSON(r)
	if err != nil {
		return apperrors.StoreFailure("encode report", err)
	}
	query := `
		INSERT INTO reports (id, kind, author_id, author_name, route, bus_no,
			issue_category, item, description, details, attachments, status,
			submitted_on, resolution, conversation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING seq
	`
	err = s.db.QueryRow(ctx, query,
		r.ID, r.Kind, r.AuthorID, r.AuthorName, r.Route, r.BusNo,
		r.IssueCategory, r.Item, r.Description, details, attachments,
		r.Status, r.SubmittedOn, resolution, conversation,
	).Scan(&r.Seq)
	if err != nil {
		return apperrors.StoreFailure("insert report", err)
	}
	return nil
}

func (s *PostgresReports) Get(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	r, err := scanReport(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.StoreFailure("get report", err)
	}
	return r, nil
}

// Update performs the atomic read-modify-write: the row is locked with
// SELECT ... FOR UPDATE so a concurrent updater validates against the value
// it reads at its own turn, never a stale one.
func (s *PostgresReports) Update(ctx context.Context, id uuid.UUID, fn Mutator) (*models.Report, error) {
	var updated *models.Report
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1 FOR UPDATE`
		r, err := scanReport(tx.QueryRow(ctx, query, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return apperrors.StoreFailure("lock report", err)
		}
		if err := fn(r); err != nil {
			return err
		}
		details, attachments, resolution, conversation, err := reportJSON(r)
		if err != nil {
			return apperrors.StoreFailure("encode report", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE reports SET route = $2, bus_no = $3, issue_category = $4,
				item = $5, description = $6, details = $7, attachments = $8,
				status = $9, resolution = $10, conversation = $11
			WHERE id = $1`,
			id, r.Route, r.BusNo, r.IssueCategory, r.Item, r.Description,
			details, attachments, r.Status, resolution, conversation,
		)
		if err != nil {
			return apperrors.StoreFailure("update report", err)
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresReports) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return apperrors.StoreFailure("delete report", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *PostgresReports) List(ctx context.Context, f ReportFilter) ([]models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports
		WHERE ($1 = '' OR kind = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR route = $3)
		  AND ($4::uuid IS NULL OR author_id = $4)
		ORDER BY submitted_on DESC, seq ASC`

	var author *uuid.UUID
	if f.AuthorID != uuid.Nil {
		author = &f.AuthorID
	}
	rows, err := s.db.Query(ctx, query, string(f.Kind), f.Status, f.Route, author)
	if err != nil {
		return nil, apperrors.StoreFailure("list reports", err)
	}
	defer rows.Close()

	var out []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, apperrors.StoreFailure("scan report", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StoreFailure("list reports", err)
	}
	return out, nil
}

// PostgresUsers implements UserStore.
type PostgresUsers struct {
	db *pgxpool.Pool
}

// NewPostgresUsers creates a user store over the given pool.
func NewPostgresUsers(db *pgxpool.Pool) *PostgresUsers {
	return &PostgresUsers{db: db}
}

const userColumns = `id, name, email, password_hash, role, identifier, route_no, boarding_point, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&u.Identifier, &u.RouteNo, &u.BoardingPoint, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresUsers) Insert(ctx context.Context, u *models.User) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, identifier, route_no, boarding_point, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Identifier,
		u.RouteNo, u.BoardingPoint, u.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return apperrors.ErrDuplicateEmail
	}
	if err != nil {
		return apperrors.StoreFailure("insert user", err)
	}
	return nil
}

func (s *PostgresUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.StoreFailure("get user", err)
	}
	return u, nil
}

func (s *PostgresUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.StoreFailure("get user by email", err)
	}
	return u, nil
}

func (s *PostgresUsers) List(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, apperrors.StoreFailure("list users", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.StoreFailure("scan user", err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StoreFailure("list users", err)
	}
	return out, nil
}

func (s *PostgresUsers) Update(ctx context.Context, u *models.User) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET name = $2, email = $3, password_hash = $4, role = $5,
			identifier = $6, route_no = $7, boarding_point = $8
		WHERE id = $1`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Identifier,
		u.RouteNo, u.BoardingPoint,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return apperrors.ErrDuplicateEmail
	}
	if err != nil {
		return apperrors.StoreFailure("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *PostgresUsers) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return apperrors.StoreFailure("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// PostgresDirectory implements DirectoryStore.
type PostgresDirectory struct {
	db *pgxpool.Pool
}

// NewPostgresDirectory creates a directory store over the given pool.
func NewPostgresDirectory(db *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (s *PostgresDirectory) Routes(ctx context.Context) ([]models.BusRoute, error) {
	rows, err := s.db.Query(ctx, `SELECT name, stops, capacity, buses FROM routes ORDER BY name`)
	if err != nil {
		return nil, apperrors.StoreFailure("list routes", err)
	}
	defer rows.Close()

	var out []models.BusRoute
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, apperrors.StoreFailure("scan route", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StoreFailure("list routes", err)
	}
	return out, nil
}

func scanRoute(row pgx.Row) (*models.BusRoute, error) {
	var (
		r            models.BusRoute
		stops, buses []byte
	)
	if err := row.Scan(&r.Name, &stops, &r.Capacity, &buses); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stops, &r.Stops); err != nil {
		return nil, fmt.Errorf("decode stops: %w", err)
	}
	if err := json.Unmarshal(buses, &r.Buses); err != nil {
		return nil, fmt.Errorf("decode buses: %w", err)
	}
	return &r, nil
}

func (s *PostgresDirectory) GetRoute(ctx context.Context, name string) (*models.BusRoute, error) {
	r, err := scanRoute(s.db.QueryRow(ctx, `SELECT name, stops, capacity, buses FROM routes WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.StoreFailure("get route", err)
	}
	return r, nil
}

func (s *PostgresDirectory) UpsertRoute(ctx context.Context, r *models.BusRoute) error {
	if r.Stops == nil {
		r.Stops = map[string]string{}
	}
	if r.Buses == nil {
		r.Buses = []string{}
	}
	stops, err := json.Marshal(r.Stops)
	if err != nil {
		return apperrors.StoreFailure("encode stops", err)
	}
	buses, err := json.Marshal(r.Buses)
	if err != nil {
		return apperrors.StoreFailure("encode buses", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO routes (name, stops, capacity, buses)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
			SET stops = EXCLUDED.stops, capacity = EXCLUDED.capacity, buses = EXCLUDED.buses`,
		r.Name, stops, r.Capacity, buses,
	)
	if err != nil {
		return apperrors.StoreFailure("upsert route", err)
	}
	return nil
}

func (s *PostgresDirectory) Buses(ctx context.Context) ([]models.Bus, error) {
	rows, err := s.db.Query(ctx, `SELECT bus_no, route, capacity, driver, status FROM buses ORDER BY bus_no`)
	if err != nil {
		return nil, apperrors.StoreFailure("list buses", err)
	}
	defer rows.Close()

	var out []models.Bus
	for rows.Next() {
		var b models.Bus
		if err := rows.Scan(&b.BusNo, &b.Route, &b.Capacity, &b.Driver, &b.Status); err != nil {
			return nil, apperrors.StoreFailure("scan bus", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StoreFailure("list buses", err)
	}
	return out, nil
}

func (s *PostgresDirectory) UpsertBus(ctx context.Context, b *models.Bus) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO buses (bus_no, route, capacity, driver, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (bus_no) DO UPDATE
			SET route = EXCLUDED.route, capacity = EXCLUDED.capacity,
			    driver = EXCLUDED.driver, status = EXCLUDED.status`,
		b.BusNo, b.Route, b.Capacity, b.Driver, b.Status,
	)
	if err != nil {
		return apperrors.StoreFailure("upsert bus", err)
	}
	return nil
}

func (s *PostgresDirectory) CountRoutes(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM routes`).Scan(&count); err != nil {
		return 0, apperrors.StoreFailure("count routes", err)
	}
	return count, nil
}
