/*
scheduler.go - Periodic attendance recompute

PURPOSE:
  Keeps computed records current while clock data trickles in. Every
  interval it runs Engine.Recompute over a trailing window ending yesterday,
  for all active employees.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Runs once immediately on start
  - Each run is a plain Recompute call, so overlapping windows converge
  - Run summaries land in the log; the batch reports land in run history

CONFIGURATION:
  - Interval:     How often to run (default: 1 hour)
  - LookbackDays: Window length ending yesterday (default: 7)
  - Enabled:      Whether the scheduler starts (default: true)

USAGE:
  scheduler := NewRecomputeScheduler(engine, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/attendance-engine/attendance"
)

// RecomputeScheduler runs Engine.Recompute on a ticker.
type RecomputeScheduler struct {
	Engine       *attendance.Engine
	Logger       *zap.Logger
	Interval     time.Duration
	LookbackDays int
	Enabled      bool

	// Now is the clock used to compute the window.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewRecomputeScheduler(engine *attendance.Engine, logger *zap.Logger) *RecomputeScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecomputeScheduler{
		Engine:       engine,
		Logger:       logger.Named("scheduler"),
		Interval:     time.Hour,
		LookbackDays: 7,
		Enabled:      true,
		Now:          time.Now,
	}
}

// Start begins the scheduler. A second Start is a no-op.
func (rs *RecomputeScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rs.cancel = cancel
	rs.stop = make(chan struct{})
	rs.ticker = time.NewTicker(rs.Interval)
	rs.wg.Add(1)

	go rs.run(ctx)

	rs.Logger.Info("started",
		zap.Duration("interval", rs.Interval),
		zap.Int("lookback_days", rs.LookbackDays))
}

// Stop cancels an in-flight run and waits for the goroutine to exit.
func (rs *RecomputeScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker == nil {
		return
	}
	rs.ticker.Stop()
	rs.cancel()
	close(rs.stop)
	rs.wg.Wait()
	rs.ticker = nil
	rs.Logger.Info("stopped")
}

func (rs *RecomputeScheduler) run(ctx context.Context) {
	defer rs.wg.Done()

	rs.recompute(ctx)

	for {
		select {
		case <-rs.ticker.C:
			rs.recompute(ctx)
		case <-rs.stop:
			return
		}
	}
}

// RunNow runs one recompute synchronously (for testing/admin).
func (rs *RecomputeScheduler) RunNow(ctx context.Context) (*attendance.PipelineReport, error) {
	return rs.recompute(ctx)
}

// Window is the range the next run covers: LookbackDays ending yesterday.
func (rs *RecomputeScheduler) Window() attendance.DateRange {
	loc := rs.Engine.Location
	if loc == nil {
		loc = time.UTC
	}
	yesterday := attendance.DateOf(rs.Now().In(loc)).AddDays(-1)
	days := rs.LookbackDays
	if days <= 0 {
		days = 1
	}
	return attendance.DateRange{From: yesterday.AddDays(-(days - 1)), To: yesterday}
}

// GetNextRunTime returns when the next scheduled run will occur.
func (rs *RecomputeScheduler) GetNextRunTime() time.Time {
	return rs.Now().Add(rs.Interval)
}

func (rs *RecomputeScheduler) recompute(ctx context.Context) (*attendance.PipelineReport, error) {
	window := rs.Window()
	report, err := rs.Engine.Recompute(ctx, attendance.RangeRequest{Range: window})
	if err != nil {
		rs.Logger.Error("recompute aborted", zap.String("range", window.String()), zap.Error(err))
		return report, err
	}

	failed := len(report.Daily.Failed) + len(report.Weekly.Failed)
	for _, m := range report.Monthly {
		failed += len(m.Failed)
	}
	rs.Logger.Info("recompute completed",
		zap.String("range", window.String()),
		zap.Int("employees", len(report.Daily.Processed)+len(report.Daily.Failed)),
		zap.Int("months", len(report.Monthly)),
		zap.Int("failed", failed),
		zap.Int("warnings", len(report.Daily.Warnings)),
		zap.Bool("succeeded", report.Succeeded()))
	return report, nil
}
