// Package applications implements job applications: seekers apply and
// withdraw, the posting employer reviews.
package applications

import (
	"context"
	"fmt"
	"strings"

	"github.com/jobboardhq/jobboard/internal/app/auth"
	"github.com/jobboardhq/jobboard/internal/app/domain/application"
	"github.com/jobboardhq/jobboard/internal/app/domain/user"
	"github.com/jobboardhq/jobboard/internal/app/services"
	"github.com/jobboardhq/jobboard/internal/app/storage"
	"github.com/jobboardhq/jobboard/pkg/logger"
)

// Service manages applications.
type Service struct {
	jobs  storage.JobStore
	store storage.ApplicationStore
	log   *logger.Logger
}

// New constructs an application service.
func New(jobs storage.JobStore, store storage.ApplicationStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("applications")
	}
	return &Service{jobs: jobs, store: store, log: log}
}

// Create files an application by the acting job seeker. One
// application per seeker and job; repeats are a conflict.
func (s *Service) Create(ctx context.Context, actor auth.Identity, app application.Application) (application.Application, error) {
	if actor.Role != user.RoleJobSeeker {
		return application.Application{}, fmt.Errorf("apply: %w", services.ErrRoleForbidden)
	}
	app.JobSeekerID = actor.UserID
	app.JobID = strings.TrimSpace(app.JobID)
	app.Status = application.StatusPending

	if app.JobID == "" {
		return application.Application{}, fmt.Errorf("job_id is required")
	}
	if _, err := s.jobs.GetJob(ctx, app.JobID); err != nil {
		return application.Application{}, fmt.Errorf("job validation failed: %w", err)
	}

	created, err := s.store.CreateApplication(ctx, app)
	if err != nil {
		return application.Application{}, err
	}
	s.log.WithField("application_id", created.ID).Info("application filed")
	return created, nil
}

// Get retrieves an application. Visible only to the applicant and the
// posting employer.
func (s *Service) Get(ctx context.Context, actor auth.Identity, id string) (application.Application, error) {
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return application.Application{}, err
	}
	if err := s.authorize(ctx, actor, app); err != nil {
		return application.Application{}, err
	}
	return app, nil
}

// List returns the applications the actor is entitled to see: their
// own for seekers, those against their postings for employers. A
// non-empty jobID narrows the result to one posting.
func (s *Service) List(ctx context.Context, actor auth.Identity, jobID string, p storage.ListParams) ([]application.Application, int64, error) {
	f := storage.ApplicationFilter{JobID: strings.TrimSpace(jobID)}
	switch actor.Role {
	case user.RoleJobSeeker:
		f.JobSeekerID = actor.UserID
	case user.RoleEmployer:
		f.EmployerID = actor.UserID
	default:
		return nil, 0, fmt.Errorf("list applications: %w", services.ErrRoleForbidden)
	}
	return s.store.ListApplications(ctx, f, p)
}

// Update carries optional application changes; nil fields are left
// untouched.
type Update struct {
	CoverLetter *string `json:"cover_letter"`
	Resume      *string `json:"resume"`
	Status      *string `json:"status"`
}

// Update applies a partial change. The applicant may revise their
// cover letter and resume; the posting employer may move the status.
func (s *Service) Update(ctx context.Context, actor auth.Identity, id string, upd Update) (application.Application, error) {
	existing, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return application.Application{}, err
	}

	posting, err := s.jobs.GetJob(ctx, existing.JobID)
	if err != nil {
		return application.Application{}, fmt.Errorf("job validation failed: %w", err)
	}

	isApplicant := actor.UserID == existing.JobSeekerID
	isEmployer := actor.UserID == posting.EmployerID
	if !isApplicant && !isEmployer {
		return application.Application{}, fmt.Errorf("update application %s: %w", id, services.ErrNotOwner)
	}

	if upd.CoverLetter != nil || upd.Resume != nil {
		if !isApplicant {
			return application.Application{}, fmt.Errorf("update application %s content: %w", id, services.ErrNotOwner)
		}
		if upd.CoverLetter != nil {
			existing.CoverLetter = *upd.CoverLetter
		}
		if upd.Resume != nil {
			existing.Resume = *upd.Resume
		}
	}
	if upd.Status != nil {
		if !isEmployer {
			return application.Application{}, fmt.Errorf("update application %s status: %w", id, services.ErrNotOwner)
		}
		if !application.ValidStatus(*upd.Status) {
			return application.Application{}, fmt.Errorf("status %q is not valid", *upd.Status)
		}
		existing.Status = *upd.Status
	}

	updated, err := s.store.UpdateApplication(ctx, existing)
	if err != nil {
		return application.Application{}, err
	}
	s.log.WithField("application_id", id).Info("application updated")
	return updated, nil
}

// Delete withdraws an application. Only the applicant may withdraw.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id string) error {
	existing, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return err
	}
	if actor.UserID != existing.JobSeekerID {
		return fmt.Errorf("withdraw application %s: %w", id, services.ErrNotOwner)
	}

	if err := s.store.DeleteApplication(ctx, id); err != nil {
		return err
	}
	s.log.WithField("application_id", id).Info("application withdrawn")
	return nil
}

func (s *Service) authorize(ctx context.Context, actor auth.Identity, app application.Application) error {
	if actor.UserID == app.JobSeekerID {
		return nil
	}
	posting, err := s.jobs.GetJob(ctx, app.JobID)
	if err != nil {
		return fmt.Errorf("job validation failed: %w", err)
	}
	if actor.UserID == posting.EmployerID {
		return nil
	}
	return fmt.Errorf("view application %s: %w", app.ID, services.ErrNotOwner)
}
