package scheduler

import (
	"context"
	"time"

	"alphaspike/internal/usecase"
	applogger "alphaspike/pkg/logger"
	"alphaspike/pkg/util"

	"github.com/go-co-op/gocron"
)

// Scheduler runs the daily end-of-day pipeline in serve mode: sync
// the bar universe, then scan every feature at the fresh end date.
// Weekend runs resolve to the most recent weekday so a Saturday
// trigger still targets Friday's session.
type Scheduler struct {
	cron    *gocron.Scheduler
	syncer  *usecase.SyncOrchestrator
	scanner *usecase.ScanEngine
	syncAt  string // "17:30" local time
	l       *applogger.Logger
}

// New creates a scheduler. syncAt is an HH:MM local-time string.
func New(syncer *usecase.SyncOrchestrator, scanner *usecase.ScanEngine, syncAt string, l *applogger.Logger) *Scheduler {
	if l == nil {
		l = applogger.Nop()
	}
	return &Scheduler{
		cron:    gocron.NewScheduler(time.Local),
		syncer:  syncer,
		scanner: scanner,
		syncAt:  syncAt,
		l:       l,
	}
}

// Start registers the daily job and begins running it asynchronously.
func (s *Scheduler) Start() error {
	_, err := s.cron.Every(1).Day().At(s.syncAt).Do(s.runDaily)
	if err != nil {
		return err
	}
	s.cron.StartAsync()
	s.l.Info("scheduler started", applogger.String("sync_at", s.syncAt))
	return nil
}

// Stop halts the scheduler. A job already in flight finishes.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.l.Info("scheduler stopped")
}

func (s *Scheduler) runDaily() {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Hour)
	defer cancel()

	endDate := util.LastWeekday(util.Today())
	s.l.Info("daily pipeline starting", applogger.String("end_date", endDate))

	summary, err := s.syncer.Run(ctx, endDate)
	if err != nil {
		s.l.Error("daily sync failed", applogger.Error(err))
		return
	}
	if summary.Failed > 0 {
		s.l.Warn("daily sync had failures", applogger.Int("failed", summary.Failed))
	}

	if _, err := s.scanner.Scan(ctx, endDate, nil, false); err != nil {
		s.l.Error("daily scan failed", applogger.Error(err))
		return
	}
	s.l.Info("daily pipeline finished", applogger.String("end_date", endDate))
}
