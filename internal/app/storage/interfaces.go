package storage

import (
	"context"

	"github.com/jobboardhq/jobboard/internal/app/domain/application"
	"github.com/jobboardhq/jobboard/internal/app/domain/job"
	"github.com/jobboardhq/jobboard/internal/app/domain/user"
)

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context, p ListParams) ([]user.User, int64, error)
	DeleteUser(ctx context.Context, id string) error
}

// JobStore persists job postings. ListJobs filters by employer when
// employerID is non-empty.
type JobStore interface {
	CreateJob(ctx context.Context, j job.Job) (job.Job, error)
	UpdateJob(ctx context.Context, j job.Job) (job.Job, error)
	GetJob(ctx context.Context, id string) (job.Job, error)
	ListJobs(ctx context.Context, employerID string, p ListParams) ([]job.Job, int64, error)
	DeleteJob(ctx context.Context, id string) error
}

// ApplicationFilter narrows ListApplications. Empty fields match
// everything; EmployerID matches applications to that employer's jobs.
type ApplicationFilter struct {
	JobSeekerID string
	JobID       string
	EmployerID  string
}

// ApplicationStore persists applications.
type ApplicationStore interface {
	CreateApplication(ctx context.Context, app application.Application) (application.Application, error)
	UpdateApplication(ctx context.Context, app application.Application) (application.Application, error)
	GetApplication(ctx context.Context, id string) (application.Application, error)
	ListApplications(ctx context.Context, f ApplicationFilter, p ListParams) ([]application.Application, int64, error)
	DeleteApplication(ctx context.Context, id string) error
}

// StatsStore reports row counts for monitoring surfaces.
type StatsStore interface {
	Stats(ctx context.Context) (Stats, error)
}

// Store is the complete persistence surface the server binds at
// startup. Backend names the underlying engine ("memory", "sqlite" or
// "postgres"); Maintain runs engine-specific housekeeping and is a
// no-op where none applies.
type Store interface {
	UserStore
	JobStore
	ApplicationStore
	StatsStore
	Ping(ctx context.Context) error
	Maintain(ctx context.Context) error
	Close() error
	Backend() string
}
