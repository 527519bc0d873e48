package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jobboardhq/jobboard/internal/app/domain/application"
	"github.com/jobboardhq/jobboard/internal/app/domain/job"
	"github.com/jobboardhq/jobboard/internal/app/domain/user"
	"github.com/jobboardhq/jobboard/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
// It mirrors the relational backends' constraints: unique emails, one
// application per seeker and job, and employers cannot be deleted while they
// still have postings.
type Store struct {
	mu              sync.RWMutex
	nextID          int64
	users           map[string]user.User
	usersByEmail    map[string]string
	jobs            map[string]job.Job
	applications    map[string]application.Application
	appsBySeekerJob map[string]string
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:          1,
		users:           make(map[string]user.User),
		usersByEmail:    make(map[string]string),
		jobs:            make(map[string]job.Job),
		applications:    make(map[string]application.Application),
		appsBySeekerJob: make(map[string]string),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s already exists: %w", u.ID, storage.ErrConflict)
	}

	key := emailKey(u.Email)
	if _, exists := s.usersByEmail[key]; exists {
		return user.User{}, fmt.Errorf("email %s already registered: %w", u.Email, storage.ErrConflict)
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.usersByEmail[key] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s not found: %w", u.ID, storage.ErrNotFound)
	}

	oldKey := emailKey(original.Email)
	newKey := emailKey(u.Email)
	if existing, exists := s.usersByEmail[newKey]; exists && existing != u.ID {
		return user.User{}, fmt.Errorf("email %s already registered: %w", u.Email, storage.ErrConflict)
	}

	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	s.users[u.ID] = u
	if oldKey != newKey {
		delete(s.usersByEmail, oldKey)
	}
	s.usersByEmail[newKey] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s not found: %w", id, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.usersByEmail[emailKey(email)]; ok {
		return s.users[id], nil
	}
	return user.User{}, fmt.Errorf("user with email %s not found: %w", email, storage.ErrNotFound)
}

func (s *Store) ListUsers(_ context.Context, p storage.ListParams) ([]user.User, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p = p.Normalize()
	all := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return idLess(all[i].ID, all[j].ID)
	})

	lo, hi := pageBounds(len(all), p)
	return all[lo:hi], int64(len(all)), nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s not found: %w", id, storage.ErrNotFound)
	}
	for _, j := range s.jobs {
		if j.EmployerID == id {
			return fmt.Errorf("user %s still has job postings: %w", id, storage.ErrConflict)
		}
	}

	delete(s.users, id)
	delete(s.usersByEmail, emailKey(u.Email))
	for appID, app := range s.applications {
		if app.JobSeekerID == id {
			delete(s.applications, appID)
			delete(s.appsBySeekerJob, seekerJobKey(app.JobSeekerID, app.JobID))
		}
	}
	return nil
}

// JobStore implementation -----------------------------------------------------

func (s *Store) CreateJob(_ context.Context, j job.Job) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[j.EmployerID]; !ok {
		return job.Job{}, fmt.Errorf("employer %s not found: %w", j.EmployerID, storage.ErrNotFound)
	}
	if j.ID == "" {
		j.ID = s.nextIDLocked()
	} else if _, exists := s.jobs[j.ID]; exists {
		return job.Job{}, fmt.Errorf("job %s already exists: %w", j.ID, storage.ErrConflict)
	}

	now := time.Now().UTC()
	j.PostedAt = now
	j.UpdatedAt = now

	s.jobs[j.ID] = j
	return j, nil
}

func (s *Store) UpdateJob(_ context.Context, j job.Job) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.jobs[j.ID]
	if !ok {
		return job.Job{}, fmt.Errorf("job %s not found: %w", j.ID, storage.ErrNotFound)
	}

	j.EmployerID = original.EmployerID
	j.PostedAt = original.PostedAt
	j.UpdatedAt = time.Now().UTC()

	s.jobs[j.ID] = j
	return j, nil
}

func (s *Store) GetJob(_ context.Context, id string) (job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return job.Job{}, fmt.Errorf("job %s not found: %w", id, storage.ErrNotFound)
	}
	return j, nil
}

func (s *Store) ListJobs(_ context.Context, employerID string, p storage.ListParams) ([]job.Job, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p = p.Normalize()
	all := make([]job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if employerID == "" || j.EmployerID == employerID {
			all = append(all, j)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].PostedAt.Equal(all[j].PostedAt) {
			return all[i].PostedAt.Before(all[j].PostedAt)
		}
		return idLess(all[i].ID, all[j].ID)
	})

	lo, hi := pageBounds(len(all), p)
	return all[lo:hi], int64(len(all)), nil
}

func (s *Store) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("job %s not found: %w", id, storage.ErrNotFound)
	}

	delete(s.jobs, id)
	for appID, app := range s.applications {
		if app.JobID == id {
			delete(s.applications, appID)
			delete(s.appsBySeekerJob, seekerJobKey(app.JobSeekerID, app.JobID))
		}
	}
	return nil
}

// ApplicationStore implementation ---------------------------------------------

func (s *Store) CreateApplication(_ context.Context, app application.Application) (application.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[app.JobSeekerID]; !ok {
		return application.Application{}, fmt.Errorf("user %s not found: %w", app.JobSeekerID, storage.ErrNotFound)
	}
	if _, ok := s.jobs[app.JobID]; !ok {
		return application.Application{}, fmt.Errorf("job %s not found: %w", app.JobID, storage.ErrNotFound)
	}

	key := seekerJobKey(app.JobSeekerID, app.JobID)
	if _, exists := s.appsBySeekerJob[key]; exists {
		return application.Application{}, fmt.Errorf("user %s already applied to job %s: %w", app.JobSeekerID, app.JobID, storage.ErrConflict)
	}

	if app.ID == "" {
		app.ID = s.nextIDLocked()
	} else if _, exists := s.applications[app.ID]; exists {
		return application.Application{}, fmt.Errorf("application %s already exists: %w", app.ID, storage.ErrConflict)
	}
	if app.Status == "" {
		app.Status = application.StatusPending
	}
	app.AppliedAt = time.Now().UTC()

	s.applications[app.ID] = app
	s.appsBySeekerJob[key] = app.ID
	return app, nil
}

func (s *Store) UpdateApplication(_ context.Context, app application.Application) (application.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.applications[app.ID]
	if !ok {
		return application.Application{}, fmt.Errorf("application %s not found: %w", app.ID, storage.ErrNotFound)
	}

	app.JobSeekerID = original.JobSeekerID
	app.JobID = original.JobID
	app.AppliedAt = original.AppliedAt

	s.applications[app.ID] = app
	return app, nil
}

func (s *Store) GetApplication(_ context.Context, id string) (application.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.applications[id]
	if !ok {
		return application.Application{}, fmt.Errorf("application %s not found: %w", id, storage.ErrNotFound)
	}
	return app, nil
}

func (s *Store) ListApplications(_ context.Context, f storage.ApplicationFilter, p storage.ListParams) ([]application.Application, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p = p.Normalize()
	all := make([]application.Application, 0)
	for _, app := range s.applications {
		if f.JobSeekerID != "" && app.JobSeekerID != f.JobSeekerID {
			continue
		}
		if f.JobID != "" && app.JobID != f.JobID {
			continue
		}
		if f.EmployerID != "" {
			j, ok := s.jobs[app.JobID]
			if !ok || j.EmployerID != f.EmployerID {
				continue
			}
		}
		all = append(all, app)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].AppliedAt.Equal(all[j].AppliedAt) {
			return all[i].AppliedAt.Before(all[j].AppliedAt)
		}
		return idLess(all[i].ID, all[j].ID)
	})

	lo, hi := pageBounds(len(all), p)
	return all[lo:hi], int64(len(all)), nil
}

func (s *Store) DeleteApplication(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.applications[id]
	if !ok {
		return fmt.Errorf("application %s not found: %w", id, storage.ErrNotFound)
	}
	delete(s.applications, id)
	delete(s.appsBySeekerJob, seekerJobKey(app.JobSeekerID, app.JobID))
	return nil
}

// Maintenance -----------------------------------------------------------------

func (s *Store) Stats(_ context.Context) (storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return storage.Stats{
		Users:        int64(len(s.users)),
		Jobs:         int64(len(s.jobs)),
		Applications: int64(len(s.applications)),
	}, nil
}

// Ping always succeeds; the store lives in process memory.
func (s *Store) Ping(_ context.Context) error { return nil }

// Maintain is a no-op for the in-memory backend.
func (s *Store) Maintain(_ context.Context) error { return nil }

// Close is a no-op for the in-memory backend.
func (s *Store) Close() error { return nil }

// Backend names the storage engine.
func (s *Store) Backend() string { return "memory" }

// Helpers ---------------------------------------------------------------------

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func seekerJobKey(seekerID, jobID string) string {
	return seekerID + "/" + jobID
}

// idLess orders store-assigned decimal ids numerically; caller-supplied
// ids still get a stable total order.
func idLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func pageBounds(total int, p storage.ListParams) (int, int) {
	lo := p.Offset
	if lo > total {
		lo = total
	}
	hi := lo + p.Limit
	if hi > total {
		hi = total
	}
	return lo, hi
}
