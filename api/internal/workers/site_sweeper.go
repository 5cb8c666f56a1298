package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

// SiteScanner is the read-only slice of the site layout the sweeper needs.
type SiteScanner interface {
	OrphanedBackups() ([]string, error)
	DanglingLinks() ([]string, error)
}

// SweepRecorder receives the finding counts of each sweep.
type SweepRecorder interface {
	SetSweepFindings(orphans, dangling int)
}

// SiteSweeper periodically reports leftover backups and dangling links.
// It never deletes anything: a leftover backup may be the only good copy.
type SiteSweeper struct {
	sites    SiteScanner
	events   domain.EventPublisher
	metrics  SweepRecorder
	logger   *slog.Logger
	schedule string
	cron     *cron.Cron
	now      func() time.Time

	mu      sync.Mutex
	running bool
	last    *domain.SweepReport
}

func NewSiteSweeper(
	sites SiteScanner,
	events domain.EventPublisher,
	metrics SweepRecorder,
	schedule string,
	logger *slog.Logger,
) *SiteSweeper {
	return &SiteSweeper{
		sites:    sites,
		events:   events,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "site_sweeper")),
		schedule: schedule,
		cron:     cron.New(),
		now:      time.Now,
	}
}

// Start runs one sweep immediately and then on the cron schedule until ctx
// is cancelled. An empty schedule disables the job.
func (s *SiteSweeper) Start(ctx context.Context) error {
	if s.schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping sweeper")
		return nil
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("sweeper already running")
	}
	s.running = true
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.RunOnce(ctx)
	s.cron.Start()
	s.logger.Info("site sweeper started", slog.String("schedule", s.schedule))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *SiteSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("site sweeper stopped")
}

// RunOnce performs a single scan, publishes the findings and keeps the report.
func (s *SiteSweeper) RunOnce(ctx context.Context) *domain.SweepReport {
	report := &domain.SweepReport{
		RanAt:           s.now().UTC(),
		OrphanedBackups: []string{},
		DanglingLinks:   []string{},
	}

	var problems []string
	if orphans, err := s.sites.OrphanedBackups(); err != nil {
		problems = append(problems, "sites-available: "+err.Error())
	} else if orphans != nil {
		report.OrphanedBackups = orphans
	}
	if dangling, err := s.sites.DanglingLinks(); err != nil {
		problems = append(problems, "sites-enabled: "+err.Error())
	} else if dangling != nil {
		report.DanglingLinks = dangling
	}
	report.Error = strings.Join(problems, "; ")

	for _, name := range report.OrphanedBackups {
		s.logger.WarnContext(ctx, "orphaned backup left behind by an interrupted change", slog.String("file", name))
	}
	for _, name := range report.DanglingLinks {
		s.logger.WarnContext(ctx, "enabled site points at a missing config", slog.String("link", name))
	}
	if report.Error != "" {
		s.logger.ErrorContext(ctx, "site sweep incomplete", slog.String("error", report.Error))
	}

	s.metrics.SetSweepFindings(len(report.OrphanedBackups), len(report.DanglingLinks))
	s.events.Broadcast(domain.TopicNginx, domain.NewLifecycleEvent(domain.EventSitesSwept, "",
		fmt.Sprintf("%d orphaned backups, %d dangling links", len(report.OrphanedBackups), len(report.DanglingLinks))))

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
	return report
}

// LastReport returns the most recent sweep, or nil before the first one.
func (s *SiteSweeper) LastReport() *domain.SweepReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// NextRun returns the next scheduled sweep, if any.
func (s *SiteSweeper) NextRun() *time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
