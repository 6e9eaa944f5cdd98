package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/fundamenta/fundi/internal/models"
)

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	if err := s.AddJob(DefaultStatsCron, func() {}); err != nil {
		t.Errorf("expected no error adding job, got %v", err)
	}
	if err := s.AddJob("not a cron", func() {}); err == nil {
		t.Error("expected error for invalid expression")
	}
	// seconds field is not accepted by the five-field parser
	if err := s.AddJob("*/5 * * * * *", func() {}); err == nil {
		t.Error("expected error for six-field expression")
	}
}

type sinkFunc func([]models.ProviderStatsRecord) error

func (f sinkFunc) SaveProviderStats(r []models.ProviderStatsRecord) error { return f(r) }

func TestStatsSnapshotJob(t *testing.T) {
	at := time.Date(2024, 6, 1, 0, 15, 0, 0, time.UTC)
	var saved []models.ProviderStatsRecord
	sink := sinkFunc(func(r []models.ProviderStatsRecord) error {
		saved = append(saved, r...)
		return nil
	})
	source := func() []models.ProviderStatsRecord {
		return []models.ProviderStatsRecord{
			{Provider: "openai", Calls: 4, Wins: 4},
			{Provider: "huggingface", Calls: 1, Failures: 1},
		}
	}

	StatsSnapshotJob(source, sink, func() time.Time { return at })()

	if len(saved) != 2 {
		t.Fatalf("expected 2 records, got %+v", saved)
	}
	for _, r := range saved {
		if !r.RecordedAt.Equal(at) {
			t.Errorf("RecordedAt = %v, want %v", r.RecordedAt, at)
		}
	}
}

func TestStatsSnapshotJob_SkipsEmptyAndSurvivesErrors(t *testing.T) {
	calls := 0
	sink := sinkFunc(func([]models.ProviderStatsRecord) error {
		calls++
		return errors.New("disk full")
	})

	StatsSnapshotJob(func() []models.ProviderStatsRecord { return nil }, sink, nil)()
	if calls != 0 {
		t.Errorf("empty snapshot should not be saved, got %d calls", calls)
	}

	StatsSnapshotJob(func() []models.ProviderStatsRecord {
		return []models.ProviderStatsRecord{{Provider: "openai"}}
	}, sink, nil)()
	if calls != 1 {
		t.Errorf("expected one save attempt, got %d", calls)
	}
}
