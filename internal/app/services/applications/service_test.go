package applications

import (
	"context"
	"errors"
	"testing"

	"github.com/jobboardhq/jobboard/internal/app/auth"
	"github.com/jobboardhq/jobboard/internal/app/domain/application"
	"github.com/jobboardhq/jobboard/internal/app/domain/job"
	"github.com/jobboardhq/jobboard/internal/app/domain/user"
	"github.com/jobboardhq/jobboard/internal/app/services"
	"github.com/jobboardhq/jobboard/internal/app/storage"
	"github.com/jobboardhq/jobboard/internal/app/storage/memory"
)

type fixture struct {
	svc      *Service
	store    *memory.Store
	employer auth.Identity
	seeker   auth.Identity
	posting  job.Job
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	boss, err := store.CreateUser(ctx, user.User{Name: "Boss", Email: "boss@example.com", Password: "hash", Role: user.RoleEmployer})
	if err != nil {
		t.Fatalf("create employer: %v", err)
	}
	dev, err := store.CreateUser(ctx, user.User{Name: "Dev", Email: "dev@example.com", Password: "hash", Role: user.RoleJobSeeker})
	if err != nil {
		t.Fatalf("create seeker: %v", err)
	}
	posting, err := store.CreateJob(ctx, job.Job{
		EmployerID:     boss.ID,
		Title:          "Backend Engineer",
		Description:    "Build and run the board",
		Location:       "Remote",
		EmploymentType: job.TypeFullTime,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	return &fixture{
		svc:      New(store, store, nil),
		store:    store,
		employer: auth.Identity{UserID: boss.ID, Role: boss.Role},
		seeker:   auth.Identity{UserID: dev.ID, Role: dev.Role},
		posting:  posting,
	}
}

func (f *fixture) apply(t *testing.T) application.Application {
	t.Helper()
	app, err := f.svc.Create(context.Background(), f.seeker, application.Application{
		JobID:       f.posting.ID,
		CoverLetter: "Hello",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	return app
}

func TestCreateRequiresSeekerRole(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Create(context.Background(), f.employer, application.Application{JobID: f.posting.ID}); !errors.Is(err, services.ErrRoleForbidden) {
		t.Fatalf("err = %v, want ErrRoleForbidden", err)
	}
}

func TestCreateUnknownJob(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Create(context.Background(), f.seeker, application.Application{JobID: "missing"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateForcesPendingAndActor(t *testing.T) {
	f := newFixture(t)
	app, err := f.svc.Create(context.Background(), f.seeker, application.Application{
		JobID:       f.posting.ID,
		JobSeekerID: "spoofed",
		Status:      application.StatusAccepted,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if app.JobSeekerID != f.seeker.UserID {
		t.Fatalf("job_seeker_id = %q, want actor %q", app.JobSeekerID, f.seeker.UserID)
	}
	if app.Status != application.StatusPending {
		t.Fatalf("status = %q, want pending", app.Status)
	}
}

func TestCreateDuplicateConflict(t *testing.T) {
	f := newFixture(t)
	f.apply(t)
	if _, err := f.svc.Create(context.Background(), f.seeker, application.Application{JobID: f.posting.ID}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestGetVisibility(t *testing.T) {
	f := newFixture(t)
	app := f.apply(t)
	ctx := context.Background()

	if _, err := f.svc.Get(ctx, f.seeker, app.ID); err != nil {
		t.Fatalf("applicant get: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.employer, app.ID); err != nil {
		t.Fatalf("posting employer get: %v", err)
	}

	stranger := auth.Identity{UserID: "stranger", Role: user.RoleJobSeeker}
	if _, err := f.svc.Get(ctx, stranger, app.ID); !errors.Is(err, services.ErrNotOwner) {
		t.Fatalf("stranger get err = %v, want ErrNotOwner", err)
	}
}

func TestListScopedToActor(t *testing.T) {
	f := newFixture(t)
	f.apply(t)
	ctx := context.Background()

	mine, total, err := f.svc.List(ctx, f.seeker, "", storage.ListParams{})
	if err != nil {
		t.Fatalf("seeker list: %v", err)
	}
	if total != 1 || len(mine) != 1 {
		t.Fatalf("seeker sees %d (total %d), want 1", len(mine), total)
	}

	incoming, total, err := f.svc.List(ctx, f.employer, "", storage.ListParams{})
	if err != nil {
		t.Fatalf("employer list: %v", err)
	}
	if total != 1 || len(incoming) != 1 {
		t.Fatalf("employer sees %d (total %d), want 1", len(incoming), total)
	}

	other, err := f.store.CreateUser(ctx, user.User{Name: "Other", Email: "other@example.com", Password: "hash", Role: user.RoleEmployer})
	if err != nil {
		t.Fatalf("create employer: %v", err)
	}
	none, total, err := f.svc.List(ctx, auth.Identity{UserID: other.ID, Role: other.Role}, "", storage.ListParams{})
	if err != nil {
		t.Fatalf("other employer list: %v", err)
	}
	if total != 0 || len(none) != 0 {
		t.Fatalf("other employer sees %d (total %d), want 0", len(none), total)
	}
}

func TestUpdatePermissions(t *testing.T) {
	f := newFixture(t)
	app := f.apply(t)
	ctx := context.Background()

	letter := "Updated letter"
	updated, err := f.svc.Update(ctx, f.seeker, app.ID, Update{CoverLetter: &letter})
	if err != nil {
		t.Fatalf("applicant update: %v", err)
	}
	if updated.CoverLetter != letter {
		t.Fatalf("cover_letter = %q", updated.CoverLetter)
	}

	reviewed := application.StatusReviewed
	if _, err := f.svc.Update(ctx, f.seeker, app.ID, Update{Status: &reviewed}); !errors.Is(err, services.ErrNotOwner) {
		t.Fatalf("applicant status change err = %v, want ErrNotOwner", err)
	}

	updated, err = f.svc.Update(ctx, f.employer, app.ID, Update{Status: &reviewed})
	if err != nil {
		t.Fatalf("employer status update: %v", err)
	}
	if updated.Status != application.StatusReviewed {
		t.Fatalf("status = %q, want reviewed", updated.Status)
	}

	resume := "cv.pdf"
	if _, err := f.svc.Update(ctx, f.employer, app.ID, Update{Resume: &resume}); !errors.Is(err, services.ErrNotOwner) {
		t.Fatalf("employer content change err = %v, want ErrNotOwner", err)
	}

	bad := "on_hold"
	if _, err := f.svc.Update(ctx, f.employer, app.ID, Update{Status: &bad}); err == nil {
		t.Fatal("invalid status should be rejected")
	}

	stranger := auth.Identity{UserID: "stranger", Role: user.RoleJobSeeker}
	if _, err := f.svc.Update(ctx, stranger, app.ID, Update{CoverLetter: &letter}); !errors.Is(err, services.ErrNotOwner) {
		t.Fatalf("stranger update err = %v, want ErrNotOwner", err)
	}
}

func TestDeleteApplicantOnly(t *testing.T) {
	f := newFixture(t)
	app := f.apply(t)
	ctx := context.Background()

	if err := f.svc.Delete(ctx, f.employer, app.ID); !errors.Is(err, services.ErrNotOwner) {
		t.Fatalf("employer withdraw err = %v, want ErrNotOwner", err)
	}
	if err := f.svc.Delete(ctx, f.seeker, app.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.seeker, app.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("after withdraw err = %v, want ErrNotFound", err)
	}
}
