// Package scheduler runs Fundi's periodic jobs on cron expressions.
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fundamenta/fundi/internal/models"
)

// DefaultStatsCron snapshots provider statistics every fifteen minutes.
const DefaultStatsCron = "*/15 * * * *"

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler using the standard five-field parser.
// Panicking jobs are recovered and logged.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	logger := slogLogger{}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules task on expr. It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	if _, err := s.cron.AddFunc(expr, task); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// StatsSink persists provider statistics snapshots.
type StatsSink interface {
	SaveProviderStats(records []models.ProviderStatsRecord) error
}

// StatsSnapshotJob returns a job that copies the current provider counters into sink.
func StatsSnapshotJob(source func() []models.ProviderStatsRecord, sink StatsSink, now func() time.Time) func() {
	if now == nil {
		now = time.Now
	}
	return func() {
		records := source()
		if len(records) == 0 {
			slog.Debug("scheduler.StatsSnapshotJob: no provider activity yet")
			return
		}
		at := now()
		for i := range records {
			records[i].RecordedAt = at
		}
		if err := sink.SaveProviderStats(records); err != nil {
			slog.Error("scheduler.StatsSnapshotJob: save failed", "error", err)
			return
		}
		slog.Info("scheduler.StatsSnapshotJob: provider stats saved", "providers", len(records))
	}
}

// slogLogger routes cron's logging through slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
