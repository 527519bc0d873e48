// Package postgres implements the storage interfaces backed by
// PostgreSQL, for deployments that outgrow the single-file database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jobboardhq/jobboard/internal/app/domain/application"
	"github.com/jobboardhq/jobboard/internal/app/domain/job"
	"github.com/jobboardhq/jobboard/internal/app/domain/user"
	"github.com/jobboardhq/jobboard/internal/app/storage"
	"github.com/jobboardhq/jobboard/internal/app/storage/postgres/migrations"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.Store = (*Store)(nil)

// New creates a Store using the provided database handle. Migrations
// are not applied; use Open for that.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to url, verifies connectivity and applies pending
// schema migrations.
func Open(ctx context.Context, url string) (*Store, error) {
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres db: %w", err)
	}
	if err := runMigrations(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("prepare migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("prepare migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// --- UserStore --------------------------------------------------------------

type userRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Password  string    `db:"password"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r userRow) toDomain() user.User {
	return user.User{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Password:  r.Password,
		Role:      r.Role,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Name, u.Email, u.Password, u.Role, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			if pgConstraint(err) == "users_pkey" {
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
		SET name = $2, email = $3, password = $4, role = $5, updated_at = $6
		WHERE id = $1
	`, u.ID, u.Name, u.Email, u.Password, u.Role, u.UpdatedAt)
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
	var row userRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, email, password, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, fmt.Errorf("user %s not found: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return user.User{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, email, password, role, created_at, updated_at
		FROM users
		WHERE lower(email) = lower($1)
	`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, fmt.Errorf("user with email %s not found: %w", email, storage.ErrNotFound)
	}
	if err != nil {
		return user.User{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) ListUsers(ctx context.Context, p storage.ListParams) ([]user.User, int64, error) {
	p = p.Normalize()

	var total int64
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, 0, err
	}

	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, email, password, role, created_at, updated_at
		FROM users
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2
	`, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}

	result := make([]user.User, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.toDomain())
	}
	return result, total, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	var jobs int64
	if err := s.db.GetContext(ctx, &jobs, `SELECT COUNT(*) FROM jobs WHERE employer_id = $1`, id); err != nil {
		return err
	}
	if jobs > 0 {
		return fmt.Errorf("user %s still has job postings: %w", id, storage.ErrConflict)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
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

type jobRow struct {
	ID             string         `db:"id"`
	EmployerID     string         `db:"employer_id"`
	Title          string         `db:"title"`
	Description    string         `db:"description"`
	Location       string         `db:"location"`
	Salary         sql.NullString `db:"salary"`
	EmploymentType string         `db:"employment_type"`
	PostedAt       time.Time      `db:"posted_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r jobRow) toDomain() job.Job {
	return job.Job{
		ID:             r.ID,
		EmployerID:     r.EmployerID,
		Title:          r.Title,
		Description:    r.Description,
		Location:       r.Location,
		Salary:         r.Salary.String,
		EmploymentType: r.EmploymentType,
		PostedAt:       r.PostedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, j.ID, j.EmployerID, j.Title, j.Description, j.Location, toNullString(j.Salary), j.EmploymentType, j.PostedAt, j.UpdatedAt)
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
		SET title = $2, description = $3, location = $4, salary = $5, employment_type = $6, updated_at = $7
		WHERE id = $1
	`, j.ID, j.Title, j.Description, j.Location, toNullString(j.Salary), j.EmploymentType, j.UpdatedAt)
	if err != nil {
		return job.Job{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return job.Job{}, fmt.Errorf("job %s not found: %w", j.ID, storage.ErrNotFound)
	}
	return j, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (job.Job, error) {
	var row jobRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, employer_id, title, description, location, salary, employment_type, posted_at, updated_at
		FROM jobs
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return job.Job{}, fmt.Errorf("job %s not found: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return job.Job{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) ListJobs(ctx context.Context, employerID string, p storage.ListParams) ([]job.Job, int64, error) {
	p = p.Normalize()

	var total int64
	if err := s.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM jobs WHERE ($1 = '' OR employer_id = $1)
	`, employerID); err != nil {
		return nil, 0, err
	}

	var rows []jobRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, employer_id, title, description, location, salary, employment_type, posted_at, updated_at
		FROM jobs
		WHERE ($1 = '' OR employer_id = $1)
		ORDER BY posted_at, id
		LIMIT $2 OFFSET $3
	`, employerID, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}

	result := make([]job.Job, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.toDomain())
	}
	return result, total, nil
}

func (s *Store) DeleteJob(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("job %s not found: %w", id, storage.ErrNotFound)
	}
	return nil
}

// --- ApplicationStore -------------------------------------------------------

type applicationRow struct {
	ID          string         `db:"id"`
	JobSeekerID string         `db:"job_seeker_id"`
	JobID       string         `db:"job_id"`
	CoverLetter sql.NullString `db:"cover_letter"`
	Resume      sql.NullString `db:"resume"`
	Status      string         `db:"status"`
	AppliedAt   time.Time      `db:"applied_at"`
}

func (r applicationRow) toDomain() application.Application {
	return application.Application{
		ID:          r.ID,
		JobSeekerID: r.JobSeekerID,
		JobID:       r.JobID,
		CoverLetter: r.CoverLetter.String,
		Resume:      r.Resume.String,
		Status:      r.Status,
		AppliedAt:   r.AppliedAt.UTC(),
	}
}

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
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, app.ID, app.JobSeekerID, app.JobID, toNullString(app.CoverLetter), toNullString(app.Resume), app.Status, app.AppliedAt)
	if err != nil {
		if isUniqueViolation(err) {
			if pgConstraint(err) == "applications_pkey" {
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
		SET cover_letter = $2, resume = $3, status = $4
		WHERE id = $1
	`, app.ID, toNullString(app.CoverLetter), toNullString(app.Resume), app.Status)
	if err != nil {
		return application.Application{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return application.Application{}, fmt.Errorf("application %s not found: %w", app.ID, storage.ErrNotFound)
	}
	return app, nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (application.Application, error) {
	var row applicationRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, job_seeker_id, job_id, cover_letter, resume, status, applied_at
		FROM applications
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return application.Application{}, fmt.Errorf("application %s not found: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return application.Application{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) ListApplications(ctx context.Context, f storage.ApplicationFilter, p storage.ListParams) ([]application.Application, int64, error) {
	p = p.Normalize()

	const where = `
		WHERE ($1 = '' OR job_seeker_id = $1)
		  AND ($2 = '' OR job_id = $2)
		  AND ($3 = '' OR job_id IN (SELECT id FROM jobs WHERE employer_id = $3))
	`

	var total int64
	if err := s.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM applications`+where,
		f.JobSeekerID, f.JobID, f.EmployerID); err != nil {
		return nil, 0, err
	}

	var rows []applicationRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, job_seeker_id, job_id, cover_letter, resume, status, applied_at
		FROM applications`+where+`
		ORDER BY applied_at, id
		LIMIT $4 OFFSET $5
	`, f.JobSeekerID, f.JobID, f.EmployerID, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}

	result := make([]application.Application, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.toDomain())
	}
	return result, total, nil
}

func (s *Store) DeleteApplication(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, id)
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

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Maintain refreshes planner statistics. Invoked periodically by the
// maintenance service.
func (s *Store) Maintain(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `ANALYZE`); err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Backend names the storage engine.
func (s *Store) Backend() string { return "postgres" }

// Helpers --------------------------------------------------------------------

func (s *Store) requireUser(ctx context.Context, id string) error {
	var found int
	err := s.db.GetContext(ctx, &found, `SELECT 1 FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

func toNullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func isUniqueViolation(err error) bool {
	var perr *pq.Error
	return errors.As(err, &perr) && perr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var perr *pq.Error
	return errors.As(err, &perr) && perr.Code == "23503"
}

func pgConstraint(err error) string {
	var perr *pq.Error
	if errors.As(err, &perr) {
		return perr.Constraint
	}
	return ""
}
