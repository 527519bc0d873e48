package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	app "github.com/jobboardhq/jobboard/internal/app"
	"github.com/jobboardhq/jobboard/internal/app/audit"
	"github.com/jobboardhq/jobboard/internal/app/auth"
	"github.com/jobboardhq/jobboard/internal/app/domain/application"
	"github.com/jobboardhq/jobboard/internal/app/domain/job"
	"github.com/jobboardhq/jobboard/internal/app/domain/user"
	"github.com/jobboardhq/jobboard/internal/app/events"
	"github.com/jobboardhq/jobboard/internal/app/metrics"
	"github.com/jobboardhq/jobboard/internal/app/services"
	applicationssvc "github.com/jobboardhq/jobboard/internal/app/services/applications"
	jobssvc "github.com/jobboardhq/jobboard/internal/app/services/jobs"
	userssvc "github.com/jobboardhq/jobboard/internal/app/services/users"
	"github.com/jobboardhq/jobboard/internal/app/storage"
	"github.com/jobboardhq/jobboard/internal/httputil"
	"github.com/jobboardhq/jobboard/internal/middleware"
	"github.com/jobboardhq/jobboard/pkg/logger"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app     *app.Application
	store   storage.Store
	audit   *audit.Log
	log     *logger.Logger
	version string
	started time.Time

	openapiJSON []byte
}

// NewHandler returns the API router. store may be nil when no combined
// store is bound (memory-backed tests); readiness and stats then report
// without a database. auditLog may be nil to disable the audit trail.
func NewHandler(application *app.Application, store storage.Store, auditLog *audit.Log, version string, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{
		app:         application,
		store:       store,
		audit:       auditLog,
		log:         log,
		version:     version,
		started:     time.Now().UTC(),
		openapiJSON: openapiDocument(version),
	}

	r := mux.NewRouter()
	r.Use(metrics.InstrumentHandler)
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	// Operational surfaces.
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.readyz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api-docs/openapi.json", h.openapi).Methods(http.MethodGet)
	r.HandleFunc("/swagger-ui", h.swaggerUI).Methods(http.MethodGet)

	// Public API: registration, login, browsing, event stream.
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/users", h.registerUser).Methods(http.MethodPost)
	v1.HandleFunc("/users", h.listUsers).Methods(http.MethodGet)
	v1.HandleFunc("/users/{id}", h.getUser).Methods(http.MethodGet)
	v1.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	v1.HandleFunc("/jobs", h.listJobs).Methods(http.MethodGet)
	v1.HandleFunc("/jobs/{id}", h.getJob).Methods(http.MethodGet)
	v1.Handle("/events", events.NewHandler(application.Events, log)).Methods(http.MethodGet)

	// Authenticated API.
	authed := r.PathPrefix("/v1").Subrouter()
	authed.Use(middleware.NewAuthMiddleware(application.Tokens, log).Handler)
	authed.HandleFunc("/users/{id}", h.updateUser).Methods(http.MethodPut)
	authed.HandleFunc("/users/{id}", h.deleteUser).Methods(http.MethodDelete)
	authed.HandleFunc("/jobs", h.createJob).Methods(http.MethodPost)
	authed.HandleFunc("/jobs/{id}", h.updateJob).Methods(http.MethodPut)
	authed.HandleFunc("/jobs/{id}", h.deleteJob).Methods(http.MethodDelete)
	authed.HandleFunc("/applications", h.createApplication).Methods(http.MethodPost)
	authed.HandleFunc("/applications", h.listApplications).Methods(http.MethodGet)
	authed.HandleFunc("/applications/{id}", h.getApplication).Methods(http.MethodGet)
	authed.HandleFunc("/applications/{id}", h.updateApplication).Methods(http.MethodPut)
	authed.HandleFunc("/applications/{id}", h.deleteApplication).Methods(http.MethodDelete)
	authed.HandleFunc("/system/status", h.systemStatus).Methods(http.MethodGet)
	authed.HandleFunc("/audit", h.auditEntries).Methods(http.MethodGet)

	return r
}

// --- users ---

func (h *handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := httputil.DecodeJSON(w, r, &payload); err != nil {
		h.badRequest(w, r, "user.register", "users", err)
		return
	}

	created, err := h.app.Users.Register(r.Context(), payload.Name, payload.Email, payload.Password, payload.Role)
	if err != nil {
		h.mutationError(w, r, "user.register", "users", err)
		return
	}
	h.record(r, "user.register", "users/"+created.ID, http.StatusCreated)
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	p := listParams(r)
	items, total, err := h.app.Users.List(r.Context(), p)
	if err != nil {
		readError(w, err)
		return
	}
	if items == nil {
		items = []user.User{}
	}
	httputil.WriteJSON(w, http.StatusOK, page{Page: p.Page(), Count: total, Items: items})
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Users.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		readError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var upd userssvc.Update
	if err := httputil.DecodeJSON(w, r, &upd); err != nil {
		h.badRequest(w, r, "user.update", "users/"+id, err)
		return
	}

	updated, err := h.app.Users.Update(r.Context(), identity(r), id, upd)
	if err != nil {
		h.mutationError(w, r, "user.update", "users/"+id, err)
		return
	}
	h.record(r, "user.update", "users/"+id, http.StatusOK)
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.app.Users.Delete(r.Context(), identity(r), id); err != nil {
		status, kind := errorStatus(err, http.StatusBadRequest, httputil.KindBadRequest)
		if errors.Is(err, storage.ErrConflict) {
			// Deleting an employer with live postings is a state
			// conflict, not a duplicate.
			kind = httputil.KindConflict
		}
		h.record(r, "user.delete", "users/"+id, status)
		httputil.WriteError(w, status, kind, err.Error())
		return
	}
	h.record(r, "user.delete", "users/"+id, http.StatusNoContent)
	w.WriteHeader(http.StatusNoContent)
}

// --- auth ---

// loginResponse is the session payload returned on authentication.
type loginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httputil.DecodeJSON(w, r, &payload); err != nil {
		h.badRequest(w, r, "auth.login", "sessions", err)
		return
	}

	session, err := h.app.Users.Authenticate(r.Context(), payload.Email, payload.Password)
	if err != nil {
		h.mutationError(w, r, "auth.login", "sessions", err)
		return
	}
	h.recordAs(r, session.User.ID, session.User.Role, "auth.login", "users/"+session.User.ID, http.StatusOK)
	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		TokenType: "bearer",
		ExpiresAt: session.ExpiresAt,
	})
}

// --- jobs ---

func (h *handler) createJob(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title          string `json:"title"`
		Description    string `json:"description"`
		Location       string `json:"location"`
		Salary         string `json:"salary"`
		EmploymentType string `json:"employment_type"`
	}
	if err := httputil.DecodeJSON(w, r, &payload); err != nil {
		h.badRequest(w, r, "job.create", "jobs", err)
		return
	}

	created, err := h.app.Jobs.Create(r.Context(), identity(r), job.Job{
		Title:          payload.Title,
		Description:    payload.Description,
		Location:       payload.Location,
		Salary:         payload.Salary,
		EmploymentType: payload.EmploymentType,
	})
	if err != nil {
		h.mutationError(w, r, "job.create", "jobs", err)
		return
	}
	h.record(r, "job.create", "jobs/"+created.ID, http.StatusCreated)
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	p := listParams(r)
	items, total, err := h.app.Jobs.List(r.Context(), r.URL.Query().Get("employer_id"), p)
	if err != nil {
		readError(w, err)
		return
	}
	if items == nil {
		items = []job.Job{}
	}
	httputil.WriteJSON(w, http.StatusOK, page{Page: p.Page(), Count: total, Items: items})
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.app.Jobs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		readError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, j)
}

func (h *handler) updateJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var upd jobssvc.Update
	if err := httputil.DecodeJSON(w, r, &upd); err != nil {
		h.badRequest(w, r, "job.update", "jobs/"+id, err)
		return
	}

	updated, err := h.app.Jobs.Update(r.Context(), identity(r), id, upd)
	if err != nil {
		h.mutationError(w, r, "job.update", "jobs/"+id, err)
		return
	}
	h.record(r, "job.update", "jobs/"+id, http.StatusOK)
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.app.Jobs.Delete(r.Context(), identity(r), id); err != nil {
		h.mutationError(w, r, "job.delete", "jobs/"+id, err)
		return
	}
	h.record(r, "job.delete", "jobs/"+id, http.StatusNoContent)
	w.WriteHeader(http.StatusNoContent)
}

// --- applications ---

func (h *handler) createApplication(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		JobID       string `json:"job_id"`
		CoverLetter string `json:"cover_letter"`
		Resume      string `json:"resume"`
	}
	if err := httputil.DecodeJSON(w, r, &payload); err != nil {
		h.badRequest(w, r, "application.create", "applications", err)
		return
	}

	created, err := h.app.Applications.Create(r.Context(), identity(r), application.Application{
		JobID:       payload.JobID,
		CoverLetter: payload.CoverLetter,
		Resume:      payload.Resume,
	})
	if err != nil {
		h.mutationError(w, r, "application.create", "applications", err)
		return
	}
	h.record(r, "application.create", "applications/"+created.ID, http.StatusCreated)
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) listApplications(w http.ResponseWriter, r *http.Request) {
	p := listParams(r)
	items, total, err := h.app.Applications.List(r.Context(), identity(r), r.URL.Query().Get("job_id"), p)
	if err != nil {
		readError(w, err)
		return
	}
	if items == nil {
		items = []application.Application{}
	}
	httputil.WriteJSON(w, http.StatusOK, page{Page: p.Page(), Count: total, Items: items})
}

func (h *handler) getApplication(w http.ResponseWriter, r *http.Request) {
	a, err := h.app.Applications.Get(r.Context(), identity(r), mux.Vars(r)["id"])
	if err != nil {
		readError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *handler) updateApplication(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var upd applicationssvc.Update
	if err := httputil.DecodeJSON(w, r, &upd); err != nil {
		h.badRequest(w, r, "application.update", "applications/"+id, err)
		return
	}

	updated, err := h.app.Applications.Update(r.Context(), identity(r), id, upd)
	if err != nil {
		h.mutationError(w, r, "application.update", "applications/"+id, err)
		return
	}
	h.record(r, "application.update", "applications/"+id, http.StatusOK)
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteApplication(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.app.Applications.Delete(r.Context(), identity(r), id); err != nil {
		h.mutationError(w, r, "application.delete", "applications/"+id, err)
		return
	}
	h.record(r, "application.delete", "applications/"+id, http.StatusNoContent)
	w.WriteHeader(http.StatusNoContent)
}

// --- operational ---

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

func (h *handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.log.WithContext(r.Context()).WithError(err).Warn("readiness ping failed")
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// statusResponse is the system status document.
type statusResponse struct {
	Status      string        `json:"status"`
	Version     string        `json:"version"`
	Backend     string        `json:"backend,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	UptimeSecs  int64         `json:"uptime_seconds"`
	Subscribers int           `json:"event_subscribers"`
	Rows        storage.Stats `json:"rows"`
}

func (h *handler) systemStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:      "ok",
		Version:     h.version,
		StartedAt:   h.started,
		UptimeSecs:  int64(time.Since(h.started).Seconds()),
		Subscribers: h.app.Events.SubscriberCount(),
	}
	if h.store != nil {
		resp.Backend = h.store.Backend()
		stats, err := h.store.Stats(r.Context())
		if err != nil {
			h.log.WithContext(r.Context()).WithError(err).Warn("collect row stats")
		} else {
			resp.Rows = stats
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		httputil.WriteJSON(w, http.StatusOK, []audit.Entry{})
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	httputil.WriteJSON(w, http.StatusOK, h.audit.Query(q.Get("field"), q.Get("value"), limit))
}

// --- helpers ---

// page is the envelope for every list response.
type page struct {
	Page  int64 `json:"page"`
	Count int64 `json:"count"`
	Items any   `json:"items"`
}

func listParams(r *http.Request) storage.ListParams {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return storage.ListParams{Limit: limit, Offset: offset}.Normalize()
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}

// errorStatus maps service errors onto a status and envelope kind,
// falling back to the given pair for unrecognized errors.
func errorStatus(err error, fallback int, fallbackKind string) (int, string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, httputil.KindNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, httputil.KindAlreadyExists
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, httputil.KindUnauthorized
	case errors.Is(err, services.ErrNotOwner), errors.Is(err, services.ErrRoleForbidden):
		return http.StatusForbidden, httputil.KindForbidden
	default:
		return fallback, fallbackKind
	}
}

func readError(w http.ResponseWriter, err error) {
	status, kind := errorStatus(err, http.StatusInternalServerError, httputil.KindInternalError)
	httputil.WriteError(w, status, kind, err.Error())
}

func (h *handler) mutationError(w http.ResponseWriter, r *http.Request, action, resource string, err error) {
	status, kind := errorStatus(err, http.StatusBadRequest, httputil.KindBadRequest)
	h.record(r, action, resource, status)
	httputil.WriteError(w, status, kind, err.Error())
}

func (h *handler) badRequest(w http.ResponseWriter, r *http.Request, action, resource string, err error) {
	h.record(r, action, resource, http.StatusBadRequest)
	httputil.WriteError(w, http.StatusBadRequest, httputil.KindBadRequest, err.Error())
}

func (h *handler) record(r *http.Request, action, resource string, status int) {
	actor, role := "", ""
	if id, ok := auth.IdentityFrom(r.Context()); ok {
		actor, role = id.UserID, id.Role
	}
	h.recordAs(r, actor, role, action, resource, status)
}

func (h *handler) recordAs(r *http.Request, actor, role, action, resource string, status int) {
	if h.audit == nil {
		return
	}
	h.audit.Add(audit.Entry{
		Actor:      actor,
		Role:       role,
		Action:     action,
		Resource:   resource,
		Status:     status,
		TraceID:    logger.TraceID(r.Context()),
		RemoteAddr: httputil.ClientIP(r),
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteError(w, http.StatusNotFound, httputil.KindNotFound, "no such route")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httputil.WriteError(w, http.StatusMethodNotAllowed, httputil.KindBadRequest, "method not allowed")
}
