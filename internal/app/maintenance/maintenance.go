// Package maintenance runs the background housekeeping jobs: periodic
// refresh of the monitoring gauges and scheduled database upkeep.
package maintenance

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/jobboardhq/jobboard/internal/app/metrics"
	"github.com/jobboardhq/jobboard/internal/app/storage"
	"github.com/jobboardhq/jobboard/pkg/logger"
)

// Config controls the maintenance schedule.
type Config struct {
	// Cron is the schedule for database upkeep ("@daily" and friends
	// or a five-field cron expression). Empty disables the job.
	Cron string
	// StatsInterval paces gauge refreshes. Zero or less disables them.
	StatsInterval time.Duration
	// DataDir is the directory whose free space is reported, normally
	// the directory holding the database file.
	DataDir string
}

// Service schedules housekeeping for the bound store. It satisfies
// system.Service and starts its jobs on Start.
type Service struct {
	cfg   Config
	store storage.Store
	log   *logger.Logger

	cron   *cron.Cron
	ticker *time.Ticker
	done   chan struct{}
}

// New builds a maintenance service for the given store. store may be
// nil; gauge refresh and upkeep then do nothing.
func New(cfg Config, store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("maintenance")
	}
	return &Service{
		cfg:   cfg,
		store: store,
		log:   log,
		done:  make(chan struct{}),
	}
}

func (s *Service) Name() string { return "maintenance" }

// Start registers the cron job and the gauge ticker.
func (s *Service) Start(ctx context.Context) error {
	if s.cfg.Cron != "" && s.store != nil {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(s.cfg.Cron, s.runUpkeep); err != nil {
			return err
		}
		s.cron.Start()
	}

	if s.cfg.StatsInterval > 0 {
		s.ticker = time.NewTicker(s.cfg.StatsInterval)
		go s.refreshLoop()
	}

	// Prime the gauges so the first scrape has data.
	s.refreshGauges()
	return nil
}

// Stop halts the scheduler and waits for a running upkeep to finish.
func (s *Service) Stop(ctx context.Context) error {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.done)
	if s.cron != nil {
		stopped := s.cron.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Service) refreshLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			s.refreshGauges()
		}
	}
}

// refreshGauges updates the row-count, disk and memory gauges.
func (s *Service) refreshGauges() {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		stats, err := s.store.Stats(ctx)
		cancel()
		if err != nil {
			s.log.WithError(err).Warn("collect row stats")
		} else {
			metrics.SetRowCounts(stats.Users, stats.Jobs, stats.Applications)
		}
	}

	if s.cfg.DataDir != "" {
		if usage, err := disk.Usage(s.cfg.DataDir); err == nil {
			metrics.SetDiskFree(usage.Free)
		}
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if pct, err := p.MemoryPercent(); err == nil {
			metrics.SetMemoryPercent(float64(pct))
		}
	}
}

// runUpkeep performs engine-specific housekeeping; backends without
// any report success immediately.
func (s *Service) runUpkeep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	if err := s.store.Maintain(ctx); err != nil {
		s.log.WithError(err).Warn("database maintenance failed")
		return
	}
	s.log.WithField("took", time.Since(start).String()).Info("database maintenance complete")
}
