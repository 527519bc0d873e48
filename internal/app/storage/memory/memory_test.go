package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jobboardhq/jobboard/internal/app/domain/application"
	"github.com/jobboardhq/jobboard/internal/app/domain/job"
	"github.com/jobboardhq/jobboard/internal/app/domain/user"
	"github.com/jobboardhq/jobboard/internal/app/storage"
)

func TestCreateUserAssignsSequentialIDs(t *testing.T) {
	t.Parallel()

	store := New()
	for i := 1; i <= 3; i++ {
		u, err := store.CreateUser(context.Background(), user.User{
			Name:     "User",
			Email:    fmt.Sprintf("user%d@example.com", i),
			Password: "hash",
			Role:     user.RoleJobSeeker,
		})
		if err != nil {
			t.Fatalf("create user %d: %v", i, err)
		}
		if u.ID != fmt.Sprintf("%d", i) {
			t.Fatalf("id = %q, want %q", u.ID, fmt.Sprintf("%d", i))
		}
	}
}

func TestDuplicateEmailConflict(t *testing.T) {
	t.Parallel()

	store := New()
	if _, err := store.CreateUser(context.Background(), user.User{Name: "A", Email: "dana@example.com", Password: "hash", Role: user.RoleJobSeeker}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err := store.CreateUser(context.Background(), user.User{Name: "B", Email: "Dana@Example.COM", Password: "hash", Role: user.RoleEmployer})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestUpdateUserReleasesOldEmail(t *testing.T) {
	t.Parallel()

	store := New()
	u, err := store.CreateUser(context.Background(), user.User{Name: "A", Email: "old@example.com", Password: "hash", Role: user.RoleJobSeeker})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	u.Email = "new@example.com"
	if _, err := store.UpdateUser(context.Background(), u); err != nil {
		t.Fatalf("update user: %v", err)
	}

	if _, err := store.CreateUser(context.Background(), user.User{Name: "B", Email: "old@example.com", Password: "hash", Role: user.RoleJobSeeker}); err != nil {
		t.Fatalf("old email should be free again: %v", err)
	}
	if _, err := store.GetUserByEmail(context.Background(), "new@example.com"); err != nil {
		t.Fatalf("lookup by new email: %v", err)
	}
}

func TestApplicationLifecycle(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	employer := mustCreateUser(t, store, "boss@example.com", user.RoleEmployer)
	seeker := mustCreateUser(t, store, "dev@example.com", user.RoleJobSeeker)
	posting := mustCreateJob(t, store, employer.ID)

	app, err := store.CreateApplication(ctx, application.Application{
		JobSeekerID: seeker.ID,
		JobID:       posting.ID,
		CoverLetter: "Hello",
	})
	if err != nil {
		t.Fatalf("create application: %v", err)
	}
	if app.Status != application.StatusPending {
		t.Fatalf("status = %q, want %q", app.Status, application.StatusPending)
	}

	if _, err := store.CreateApplication(ctx, application.Application{JobSeekerID: seeker.ID, JobID: posting.ID}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("second application err = %v, want conflict", err)
	}

	app.Status = application.StatusAccepted
	app.JobID = "tampered"
	updated, err := store.UpdateApplication(ctx, app)
	if err != nil {
		t.Fatalf("update application: %v", err)
	}
	if updated.JobID != posting.ID {
		t.Fatalf("job_id = %q, want %q", updated.JobID, posting.ID)
	}

	if err := store.DeleteApplication(ctx, app.ID); err != nil {
		t.Fatalf("delete application: %v", err)
	}
	// Slot is free again once the application is gone.
	if _, err := store.CreateApplication(ctx, application.Application{JobSeekerID: seeker.ID, JobID: posting.ID}); err != nil {
		t.Fatalf("reapply after delete: %v", err)
	}
}

func TestDeleteUserConstraints(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	employer := mustCreateUser(t, store, "boss@example.com", user.RoleEmployer)
	seeker := mustCreateUser(t, store, "dev@example.com", user.RoleJobSeeker)
	posting := mustCreateJob(t, store, employer.ID)

	app, err := store.CreateApplication(ctx, application.Application{JobSeekerID: seeker.ID, JobID: posting.ID})
	if err != nil {
		t.Fatalf("create application: %v", err)
	}

	if err := store.DeleteUser(ctx, employer.ID); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("delete employer err = %v, want conflict", err)
	}

	if err := store.DeleteUser(ctx, seeker.ID); err != nil {
		t.Fatalf("delete seeker: %v", err)
	}
	if _, err := store.GetApplication(ctx, app.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("application err = %v, want not found", err)
	}

	if err := store.DeleteJob(ctx, posting.ID); err != nil {
		t.Fatalf("delete job: %v", err)
	}
	if err := store.DeleteUser(ctx, employer.ID); err != nil {
		t.Fatalf("delete employer after jobs removed: %v", err)
	}
}

func TestListUsersPagination(t *testing.T) {
	t.Parallel()

	store := New()
	for i := 1; i <= 5; i++ {
		mustCreateUser(t, store, fmt.Sprintf("user%d@example.com", i), user.RoleJobSeeker)
	}

	page, total, err := store.ListUsers(context.Background(), storage.ListParams{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(page) != 1 || page[0].ID != "5" {
		t.Fatalf("page = %+v, want single user 5", page)
	}

	// Offsets past the end yield an empty page, not an error.
	empty, total, err := store.ListUsers(context.Background(), storage.ListParams{Limit: 10, Offset: 50})
	if err != nil {
		t.Fatalf("list users past end: %v", err)
	}
	if total != 5 || len(empty) != 0 {
		t.Fatalf("got %d items (total %d), want 0 (total 5)", len(empty), total)
	}
}

func TestListApplicationsFilters(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	employerA := mustCreateUser(t, store, "a@example.com", user.RoleEmployer)
	employerB := mustCreateUser(t, store, "b@example.com", user.RoleEmployer)
	seeker := mustCreateUser(t, store, "dev@example.com", user.RoleJobSeeker)
	jobA := mustCreateJob(t, store, employerA.ID)
	jobB := mustCreateJob(t, store, employerB.ID)

	for _, jobID := range []string{jobA.ID, jobB.ID} {
		if _, err := store.CreateApplication(ctx, application.Application{JobSeekerID: seeker.ID, JobID: jobID}); err != nil {
			t.Fatalf("create application: %v", err)
		}
	}

	bySeeker, total, err := store.ListApplications(ctx, storage.ApplicationFilter{JobSeekerID: seeker.ID}, storage.ListParams{})
	if err != nil {
		t.Fatalf("list by seeker: %v", err)
	}
	if total != 2 || len(bySeeker) != 2 {
		t.Fatalf("by seeker: got %d (total %d), want 2", len(bySeeker), total)
	}

	byEmployer, total, err := store.ListApplications(ctx, storage.ApplicationFilter{EmployerID: employerA.ID}, storage.ListParams{})
	if err != nil {
		t.Fatalf("list by employer: %v", err)
	}
	if total != 1 || len(byEmployer) != 1 || byEmployer[0].JobID != jobA.ID {
		t.Fatalf("by employer: got %+v (total %d), want the posting for job %s", byEmployer, total, jobA.ID)
	}

	byJob, total, err := store.ListApplications(ctx, storage.ApplicationFilter{JobID: jobB.ID}, storage.ListParams{})
	if err != nil {
		t.Fatalf("list by job: %v", err)
	}
	if total != 1 || len(byJob) != 1 || byJob[0].JobID != jobB.ID {
		t.Fatalf("by job: got %+v (total %d)", byJob, total)
	}
}

func TestStatsCountsRows(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	employer := mustCreateUser(t, store, "boss@example.com", user.RoleEmployer)
	seeker := mustCreateUser(t, store, "dev@example.com", user.RoleJobSeeker)
	posting := mustCreateJob(t, store, employer.ID)
	if _, err := store.CreateApplication(ctx, application.Application{JobSeekerID: seeker.ID, JobID: posting.ID}); err != nil {
		t.Fatalf("create application: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Users != 2 || stats.Jobs != 1 || stats.Applications != 1 {
		t.Fatalf("stats = %+v, want 2 users, 1 job, 1 application", stats)
	}
}

func mustCreateUser(t *testing.T, s *Store, email, role string) user.User {
	t.Helper()

	u, err := s.CreateUser(context.Background(), user.User{
		Name:     "Test User",
		Email:    email,
		Password: "hash",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func mustCreateJob(t *testing.T, s *Store, employerID string) job.Job {
	t.Helper()

	j, err := s.CreateJob(context.Background(), job.Job{
		EmployerID:     employerID,
		Title:          "Backend Engineer",
		Description:    "Build and run the board",
		Location:       "Remote",
		EmploymentType: job.TypeFullTime,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return j
}
