package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jobboardhq/jobboard/internal/app/domain/application"
	"github.com/jobboardhq/jobboard/internal/app/domain/job"
	"github.com/jobboardhq/jobboard/internal/app/domain/user"
	"github.com/jobboardhq/jobboard/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestCreateUserAssignsIDAndTimestamps(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := store.CreateUser(context.Background(), user.User{
		Name:     "Dana",
		Email:    "dana@example.com",
		Password: "hash",
		Role:     user.RoleEmployer,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected assigned id")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateUserDuplicateEmailMapsConflict(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_lower_idx"})

	_, err := store.CreateUser(context.Background(), user.User{
		Name:     "Dana",
		Email:    "dana@example.com",
		Password: "hash",
		Role:     user.RoleEmployer,
	})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestGetUserNotFoundMapsSentinel(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM users").WillReturnError(sql.ErrNoRows)

	_, err := store.GetUser(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestUpdateJobPreservesEmployerAndPostedAt(t *testing.T) {
	store, mock := newMockStore(t)
	posted := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "employer_id", "title", "description", "location", "salary", "employment_type", "posted_at", "updated_at"}).
		AddRow("j1", "e1", "Old Title", "Desc", "Remote", nil, "full_time", posted, posted)
	mock.ExpectQuery("SELECT (.+) FROM jobs").WillReturnRows(rows)
	mock.ExpectExec("UPDATE jobs").WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := store.UpdateJob(context.Background(), job.Job{
		ID:             "j1",
		EmployerID:     "tampered",
		Title:          "New Title",
		Description:    "Desc",
		Location:       "Remote",
		EmploymentType: job.TypeFullTime,
	})
	if err != nil {
		t.Fatalf("update job: %v", err)
	}
	if updated.EmployerID != "e1" {
		t.Fatalf("employer_id = %q, want %q", updated.EmployerID, "e1")
	}
	if !updated.PostedAt.Equal(posted) {
		t.Fatalf("posted_at = %v, want %v", updated.PostedAt, posted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteUserRestrictedWhileJobsExist(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	err := store.DeleteUser(context.Background(), "e1")
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestDeleteApplicationNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM applications").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteApplication(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	store, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	employer, err := store.CreateUser(ctx, user.User{Name: "Boss", Email: "boss@example.com", Password: "hash", Role: user.RoleEmployer})
	if err != nil {
		t.Fatalf("create employer: %v", err)
	}
	seeker, err := store.CreateUser(ctx, user.User{Name: "Dev", Email: "dev@example.com", Password: "hash", Role: user.RoleJobSeeker})
	if err != nil {
		t.Fatalf("create seeker: %v", err)
	}
	posting, err := store.CreateJob(ctx, job.Job{EmployerID: employer.ID, Title: "Backend Engineer", Description: "n/a", Location: "Remote", EmploymentType: job.TypeFullTime})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if _, err := store.CreateApplication(ctx, application.Application{JobSeekerID: seeker.ID, JobID: posting.ID}); err != nil {
		t.Fatalf("create application: %v", err)
	}
}
