// Package retention purges reports and uploads older than the configured age.
package retention

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/interfaces"
)

// defaultMaxAge applies when max_age is empty or invalid
const defaultMaxAge = 30 * 24 * time.Hour

// Stats summarises one sweep
type Stats struct {
	Reports  int
	Files    int
	Errors   int
	Duration time.Duration
}

// Scheduler runs retention sweeps on a cron schedule
type Scheduler struct {
	reports   interfaces.ReportService
	storage   interfaces.ReportStorage
	dirs      []string
	maxAge    time.Duration
	cron      *cron.Cron
	logger    arbor.ILogger
	protected map[string]bool
}

// NewScheduler creates a retention scheduler. Reports are deleted through
// the report service; stray files in the upload and report directories are
// removed by modification time.
func NewScheduler(config *common.Config, reports interfaces.ReportService, storage interfaces.ReportStorage, logger arbor.ILogger) *Scheduler {
	protected := map[string]bool{}
	if config.Report.TemplatePath != "" {
		if abs, err := filepath.Abs(config.Report.TemplatePath); err == nil {
			protected[abs] = true
		}
	}

	return &Scheduler{
		reports:   reports,
		storage:   storage,
		dirs:      []string{config.Storage.Filesystem.Uploads, config.Storage.Filesystem.Reports},
		maxAge:    common.ParseDurationOr(config.Retention.MaxAge, defaultMaxAge),
		cron:      cron.New(cron.WithSeconds()),
		logger:    logger,
		protected: protected,
	}
}

// Start begins the scheduled sweeps
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		// Default: daily at 03:00
		schedule = "0 0 3 * * *"
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.runSweep()
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Dur("max_age", s.maxAge).
		Msg("Retention scheduler started")

	return nil
}

// Stop stops the scheduler and waits for a running sweep
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Retention scheduler stopped")
}

// RunNow triggers an immediate sweep
func (s *Scheduler) RunNow() {
	s.logger.Info().Msg("Triggering immediate retention sweep")
	common.SafeGo(s.logger, "retentionSweep", s.runSweep)
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	stats, err := s.Sweep(ctx, time.Now())
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("Retention sweep failed")
		return
	}

	s.logger.Info().
		Int("reports", stats.Reports).
		Int("files", stats.Files).
		Int("errors", stats.Errors).
		Dur("duration", stats.Duration).
		Msg("Retention sweep completed")
}

// Sweep deletes every report created before now minus max age, then any
// file in the managed directories last modified before the same cutoff
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) (*Stats, error) {
	start := time.Now()
	cutoff := now.Add(-s.maxAge)
	stats := &Stats{}

	expired, err := s.storage.ListReportsBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	for _, report := range expired {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := s.reports.DeleteReport(ctx, report.ID); err != nil {
			stats.Errors++
			s.logger.Warn().Str("report_id", report.ID).Err(err).Msg("Failed to delete expired report")
			continue
		}
		stats.Reports++
	}

	for _, dir := range s.dirs {
		removed, failed := s.sweepDir(dir, cutoff)
		stats.Files += removed
		stats.Errors += failed
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// sweepDir removes regular files older than cutoff below dir and then
// any directories left empty
func (s *Scheduler) sweepDir(dir string, cutoff time.Time) (removed, failed int) {
	if dir == "" {
		return 0, 0
	}

	var emptied []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if path != dir {
				emptied = append(emptied, path)
			}
			return nil
		}
		if s.isProtected(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			failed++
			s.logger.Warn().Str("path", path).Err(err).Msg("Failed to remove expired file")
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		s.logger.Warn().Str("dir", dir).Err(err).Msg("Retention walk failed")
		failed++
	}

	// deepest first; os.Remove fails on directories that still hold files
	for i := len(emptied) - 1; i >= 0; i-- {
		_ = os.Remove(emptied[i])
	}
	return removed, failed
}

func (s *Scheduler) isProtected(path string) bool {
	abs, err := filepath.Abs(path)
	return err == nil && s.protected[abs]
}
