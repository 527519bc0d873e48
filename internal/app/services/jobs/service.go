// Package jobs implements posting management for employers.
package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/jobboardhq/jobboard/internal/app/auth"
	"github.com/jobboardhq/jobboard/internal/app/domain/job"
	"github.com/jobboardhq/jobboard/internal/app/domain/user"
	"github.com/jobboardhq/jobboard/internal/app/events"
	"github.com/jobboardhq/jobboard/internal/app/services"
	"github.com/jobboardhq/jobboard/internal/app/storage"
	"github.com/jobboardhq/jobboard/pkg/logger"
)

// Service manages job postings.
type Service struct {
	users storage.UserStore
	store storage.JobStore
	hub   *events.Hub
	log   *logger.Logger
}

// New constructs a job service.
func New(users storage.UserStore, store storage.JobStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("jobs")
	}
	return &Service{users: users, store: store, log: log}
}

// AttachEvents wires the broadcast hub. Without it job activity is
// simply not announced.
func (s *Service) AttachEvents(hub *events.Hub) {
	s.hub = hub
}

// Create posts a new job on behalf of the acting employer.
func (s *Service) Create(ctx context.Context, actor auth.Identity, j job.Job) (job.Job, error) {
	if actor.Role != user.RoleEmployer {
		return job.Job{}, fmt.Errorf("post job: %w", services.ErrRoleForbidden)
	}
	j.EmployerID = actor.UserID
	j.Title = strings.TrimSpace(j.Title)
	j.Description = strings.TrimSpace(j.Description)
	j.Location = strings.TrimSpace(j.Location)

	if j.Title == "" {
		return job.Job{}, fmt.Errorf("title is required")
	}
	if j.Description == "" {
		return job.Job{}, fmt.Errorf("description is required")
	}
	if j.Location == "" {
		return job.Job{}, fmt.Errorf("location is required")
	}
	if !job.ValidEmploymentType(j.EmploymentType) {
		return job.Job{}, fmt.Errorf("employment_type %q is not valid", j.EmploymentType)
	}

	if s.users != nil {
		if _, err := s.users.GetUser(ctx, j.EmployerID); err != nil {
			return job.Job{}, fmt.Errorf("employer validation failed: %w", err)
		}
	}

	created, err := s.store.CreateJob(ctx, j)
	if err != nil {
		return job.Job{}, err
	}
	s.log.WithField("job_id", created.ID).Info("job posted")
	s.publish(events.TypeJobCreated, created)
	return created, nil
}

// Get retrieves a job by identifier.
func (s *Service) Get(ctx context.Context, id string) (job.Job, error) {
	return s.store.GetJob(ctx, id)
}

// List returns a page of jobs, optionally narrowed to one employer.
func (s *Service) List(ctx context.Context, employerID string, p storage.ListParams) ([]job.Job, int64, error) {
	return s.store.ListJobs(ctx, employerID, p)
}

// Update carries optional posting changes; nil fields are left
// untouched.
type Update struct {
	Title          *string `json:"title"`
	Description    *string `json:"description"`
	Location       *string `json:"location"`
	Salary         *string `json:"salary"`
	EmploymentType *string `json:"employment_type"`
}

// Update applies a partial change to a posting. Only the posting
// employer may update it.
func (s *Service) Update(ctx context.Context, actor auth.Identity, id string, upd Update) (job.Job, error) {
	existing, err := s.store.GetJob(ctx, id)
	if err != nil {
		return job.Job{}, err
	}
	if existing.EmployerID != actor.UserID {
		return job.Job{}, fmt.Errorf("update job %s: %w", id, services.ErrNotOwner)
	}

	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return job.Job{}, fmt.Errorf("title cannot be empty")
		}
		existing.Title = title
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		if desc == "" {
			return job.Job{}, fmt.Errorf("description cannot be empty")
		}
		existing.Description = desc
	}
	if upd.Location != nil {
		loc := strings.TrimSpace(*upd.Location)
		if loc == "" {
			return job.Job{}, fmt.Errorf("location cannot be empty")
		}
		existing.Location = loc
	}
	if upd.Salary != nil {
		// Salary is free-form text; an empty value clears it.
		existing.Salary = strings.TrimSpace(*upd.Salary)
	}
	if upd.EmploymentType != nil {
		if !job.ValidEmploymentType(*upd.EmploymentType) {
			return job.Job{}, fmt.Errorf("employment_type %q is not valid", *upd.EmploymentType)
		}
		existing.EmploymentType = *upd.EmploymentType
	}

	updated, err := s.store.UpdateJob(ctx, existing)
	if err != nil {
		return job.Job{}, err
	}
	s.log.WithField("job_id", id).Info("job updated")
	s.publish(events.TypeJobUpdated, updated)
	return updated, nil
}

// Delete removes a posting and, through the store, any applications to
// it. Only the posting employer may delete it.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id string) error {
	existing, err := s.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if existing.EmployerID != actor.UserID {
		return fmt.Errorf("delete job %s: %w", id, services.ErrNotOwner)
	}

	if err := s.store.DeleteJob(ctx, id); err != nil {
		return err
	}
	s.log.WithField("job_id", id).Info("job deleted")
	s.publish(events.TypeJobDeleted, map[string]string{"id": id})
	return nil
}

func (s *Service) publish(eventType string, data any) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(events.Event{Type: eventType, Data: data})
}
