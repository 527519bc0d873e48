// Package sqlite implements the storage interfaces on top of a single
// database file, suitable for the bundled deployment where state lives
// on a mounted volume.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/jobboardhq/jobboard/internal/app/domain/application"
	"github.com/jobboardhq/jobboard/internal/app/domain/job"
	"github.com/jobboardhq/jobboard/internal/app/domain/user"
	"github.com/jobboardhq/jobboard/internal/app/storage"
	"github.com/jobboardhq/jobboard/internal/app/storage/sqlite/migrations"
)

// Store implements the storage interfaces backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens or creates the database file at path and applies pending
// schema migrations. The parent directory must already exist.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// The _pragma parameters apply to every pooled connection;
	// foreign_keys in particular is per-connection state.
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("prepare migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("prepare migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Name, u.Email, u.Password, u.Role, toMillis(u.CreatedAt), toMillis(u.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "users.id") {
				return user.User{}, fmt.Errorf("user %s already exists: %w", u.ID, storage.ErrConflict)
			}
			return user.User{}, fmt.Errorf("email %s already registered: %w", u.Email, storage.ErrConflict)
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}

	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET name = ?, email = ?, password = ?, role = ?, updated_at = ?
		WHERE id = ?
	`, u.Name, u.Email, u.Password, u.Role, toMillis(u.UpdatedAt), u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, fmt.Errorf("email %s already registered: %w", u.Email, storage.ErrConflict)
		}
		return user.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, fmt.Errorf("user %s not found: %w", u.ID, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password, role, created_at, updated_at
		FROM users
		WHERE id = ?
	`, id)

	u, err := scanUser(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, fmt.Errorf("user %s not found: %w", id, storage.ErrNotFound)
	}
	return u, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password, role, created_at, updated_at
		FROM users
		WHERE email = ?
	`, email)

	u, err := scanUser(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, fmt.Errorf("user with email %s not found: %w", email, storage.ErrNotFound)
	}
	return u, err
}

func (s *Store) ListUsers(ctx context.Context, p storage.ListParams) ([]user.User, int64, error) {
	p = p.Normalize()

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, password, role, created_at, updated_at
		FROM users
		ORDER BY created_at, id
		LIMIT ? OFFSET ?
	`, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, u)
	}
	return result, total, rows.Err()
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	var jobs int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE employer_id = ?`, id).Scan(&jobs); err != nil {
		return err
	}
	if jobs > 0 {
		return fmt.Errorf("user %s still has job postings: %w", id, storage.ErrConflict)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("user %s still has job postings: %w", id, storage.ErrConflict)
		}
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("user %s not found: %w", id, storage.ErrNotFound)
	}
	return nil
}

// --- JobStore ---------------------------------------------------------------

func (s *Store) CreateJob(ctx context.Context, j job.Job) (job.Job, error) {
	if err := s.requireUser(ctx, j.EmployerID); err != nil {
		return job.Job{}, fmt.Errorf("employer %s not found: %w", j.EmployerID, storage.ErrNotFound)
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	j.PostedAt = now
	j.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, employer_id, title, description, location, salary, employment_type, posted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.EmployerID, j.Title, j.Description, j.Location, toNullString(j.Salary), j.EmploymentType, toMillis(j.PostedAt), toMillis(j.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return job.Job{}, fmt.Errorf("job %s already exists: %w", j.ID, storage.ErrConflict)
		}
		return job.Job{}, err
	}
	return j, nil
}

func (s *Store) UpdateJob(ctx context.Context, j job.Job) (job.Job, error) {
	existing, err := s.GetJob(ctx, j.ID)
	if err != nil {
		return job.Job{}, err
	}

	j.EmployerID = existing.EmployerID
	j.PostedAt = existing.PostedAt
	j.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET title = ?, description = ?, location = ?, salary = ?, employment_type = ?, updated_at = ?
		WHERE id = ?
	`, j.Title, j.Description, j.Location, toNullString(j.Salary), j.EmploymentType, toMillis(j.UpdatedAt), j.ID)
	if err != nil {
		return job.Job{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return job.Job{}, fmt.Errorf("job %s not found: %w", j.ID, storage.ErrNotFound)
	}
	return j, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (job.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, employer_id, title, description, location, salary, employment_type, posted_at, updated_at
		FROM jobs
		WHERE id = ?
	`, id)

	j, err := scanJob(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return job.Job{}, fmt.Errorf("job %s not found: %w", id, storage.ErrNotFound)
	}
	return j, err
}

func (s *Store) ListJobs(ctx context.Context, employerID string, p storage.ListParams) ([]job.Job, int64, error) {
	p = p.Normalize()

	var total int64
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM jobs WHERE (? = '' OR employer_id = ?)
	`, employerID, employerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employer_id, title, description, location, salary, employment_type, posted_at, updated_at
		FROM jobs
		WHERE (? = '' OR employer_id = ?)
		ORDER BY posted_at, id
		LIMIT ? OFFSET ?
	`, employerID, employerID, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []job.Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, j)
	}
	return result, total, rows.Err()
}

func (s *Store) DeleteJob(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("job %s not found: %w", id, storage.ErrNotFound)
	}
	return nil
}

// --- ApplicationStore -------------------------------------------------------

func (s *Store) CreateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	if err := s.requireUser(ctx, app.JobSeekerID); err != nil {
		return application.Application{}, fmt.Errorf("user %s not found: %w", app.JobSeekerID, storage.ErrNotFound)
	}
	if _, err := s.GetJob(ctx, app.JobID); err != nil {
		return application.Application{}, err
	}

	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.Status == "" {
		app.Status = application.StatusPending
	}
	app.AppliedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (id, job_seeker_id, job_id, cover_letter, resume, status, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, app.ID, app.JobSeekerID, app.JobID, toNullString(app.CoverLetter), toNullString(app.Resume), app.Status, toMillis(app.AppliedAt))
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "applications.id") {
				return application.Application{}, fmt.Errorf("application %s already exists: %w", app.ID, storage.ErrConflict)
			}
			return application.Application{}, fmt.Errorf("user %s already applied to job %s: %w", app.JobSeekerID, app.JobID, storage.ErrConflict)
		}
		return application.Application{}, err
	}
	return app, nil
}

func (s *Store) UpdateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	existing, err := s.GetApplication(ctx, app.ID)
	if err != nil {
		return application.Application{}, err
	}

	app.JobSeekerID = existing.JobSeekerID
	app.JobID = existing.JobID
	app.AppliedAt = existing.AppliedAt

	result, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET cover_letter = ?, resume = ?, status = ?
		WHERE id = ?
	`, toNullString(app.CoverLetter), toNullString(app.Resume), app.Status, app.ID)
	if err != nil {
		return application.Application{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return application.Application{}, fmt.Errorf("application %s not found: %w", app.ID, storage.ErrNotFound)
	}
	return app, nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (application.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, job_seeker_id, job_id, cover_letter, resume, status, applied_at
		FROM applications
		WHERE id = ?
	`, id)

	app, err := scanApplication(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return application.Application{}, fmt.Errorf("application %s not found: %w", id, storage.ErrNotFound)
	}
	return app, err
}

func (s *Store) ListApplications(ctx context.Context, f storage.ApplicationFilter, p storage.ListParams) ([]application.Application, int64, error) {
	p = p.Normalize()

	const where = `
		WHERE (? = '' OR job_seeker_id = ?)
		  AND (? = '' OR job_id = ?)
		  AND (? = '' OR job_id IN (SELECT id FROM jobs WHERE employer_id = ?))
	`
	args := []any{f.JobSeekerID, f.JobSeekerID, f.JobID, f.JobID, f.EmployerID, f.EmployerID}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_seeker_id, job_id, cover_letter, resume, status, applied_at
		FROM applications`+where+`
		ORDER BY applied_at, id
		LIMIT ? OFFSET ?
	`, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []application.Application
	for rows.Next() {
		app, err := scanApplication(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, app)
	}
	return result, total, rows.Err()
}

func (s *Store) DeleteApplication(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("application %s not found: %w", id, storage.ErrNotFound)
	}
	return nil
}

// --- Maintenance ------------------------------------------------------------

func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	var st storage.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM jobs),
			(SELECT COUNT(*) FROM applications)
	`).Scan(&st.Users, &st.Jobs, &st.Applications)
	return st, err
}

// Ping verifies the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Maintain refreshes planner statistics and compacts the WAL. Invoked
// periodically by the maintenance service.
func (s *Store) Maintain(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `ANALYZE`); err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Backend names the storage engine.
func (s *Store) Backend() string { return "sqlite" }

// Helpers --------------------------------------------------------------------

func (s *Store) requireUser(ctx context.Context, id string) error {
	var found int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

func scanUser(scan func(...any) error) (user.User, error) {
	var (
		u         user.User
		createdAt int64
		updatedAt int64
	)
	if err := scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Role, &createdAt, &updatedAt); err != nil {
		return user.User{}, err
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func scanJob(scan func(...any) error) (job.Job, error) {
	var (
		j         job.Job
		salary    sql.NullString
		postedAt  int64
		updatedAt int64
	)
	if err := scan(&j.ID, &j.EmployerID, &j.Title, &j.Description, &j.Location, &salary, &j.EmploymentType, &postedAt, &updatedAt); err != nil {
		return job.Job{}, err
	}
	j.Salary = salary.String
	j.PostedAt = fromMillis(postedAt)
	j.UpdatedAt = fromMillis(updatedAt)
	return j, nil
}

func scanApplication(scan func(...any) error) (application.Application, error) {
	var (
		app         application.Application
		coverLetter sql.NullString
		resume      sql.NullString
		appliedAt   int64
	)
	if err := scan(&app.ID, &app.JobSeekerID, &app.JobID, &coverLetter, &resume, &app.Status, &appliedAt); err != nil {
		return application.Application{}, err
	}
	app.CoverLetter = coverLetter.String
	app.Resume = resume.String
	app.AppliedAt = fromMillis(appliedAt)
	return app, nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toNullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func isUniqueViolation(err error) bool {
	var serr *msqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	var serr *msqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY, sqlite3lib.SQLITE_CONSTRAINT_TRIGGER:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}
