package app

import (
	"context"
	"fmt"

	"github.com/jobboardhq/jobboard/internal/app/auth"
	"github.com/jobboardhq/jobboard/internal/app/events"
	"github.com/jobboardhq/jobboard/internal/app/metrics"
	"github.com/jobboardhq/jobboard/internal/app/services/applications"
	"github.com/jobboardhq/jobboard/internal/app/services/jobs"
	"github.com/jobboardhq/jobboard/internal/app/services/users"
	"github.com/jobboardhq/jobboard/internal/app/storage"
	"github.com/jobboardhq/jobboard/internal/app/storage/memory"
	"github.com/jobboardhq/jobboard/internal/app/system"
	"github.com/jobboardhq/jobboard/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users        storage.UserStore
	Jobs         storage.JobStore
	Applications storage.ApplicationStore
}

// Application ties the domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Tokens       *auth.Manager
	Users        *users.Service
	Jobs         *jobs.Service
	Applications *applications.Service
	Events       *events.Hub
}

// Option adjusts application construction.
type Option func(*settings)

type settings struct {
	hashCost int
}

// WithHashCost sets the bcrypt cost used for new password hashes.
func WithHashCost(cost int) Option {
	return func(s *settings) { s.hashCost = cost }
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, tokens *auth.Manager, log *logger.Logger, opts ...Option) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token manager is required")
	}

	var cfg settings
	for _, opt := range opts {
		opt(&cfg)
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Jobs == nil {
		stores.Jobs = mem
	}
	if stores.Applications == nil {
		stores.Applications = mem
	}

	manager := system.NewManager()

	hub := events.New(log)
	hub.Instrument(metrics.EventPublished)

	var userOpts []users.Option
	if cfg.hashCost > 0 {
		userOpts = append(userOpts, users.WithHashCost(cfg.hashCost))
	}
	userService := users.New(stores.Users, tokens, log, userOpts...)
	jobService := jobs.New(stores.Users, stores.Jobs, log)
	jobService.AttachEvents(hub)
	applicationService := applications.New(stores.Jobs, stores.Applications, log)

	for _, name := range []string{"users", "jobs", "applications"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}
	if err := manager.Register(hubService{hub: hub}); err != nil {
		return nil, fmt.Errorf("register events service: %w", err)
	}

	return &Application{
		manager:      manager,
		log:          log,
		Tokens:       tokens,
		Users:        userService,
		Jobs:         jobService,
		Applications: applicationService,
		Events:       hub,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// hubService closes the broadcast hub when the application stops so
// websocket subscribers get a clean close frame.
type hubService struct {
	hub *events.Hub
}

func (s hubService) Name() string { return "events" }

func (s hubService) Start(context.Context) error { return nil }

func (s hubService) Stop(context.Context) error {
	s.hub.Close()
	return nil
}
