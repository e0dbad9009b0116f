package trader

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/ducminhle1904/crypto-signal-trader/internal/errors"
	"github.com/ducminhle1904/crypto-signal-trader/internal/monitoring"
	"github.com/ducminhle1904/crypto-signal-trader/internal/notifications"
)

// Venue failures within the rolling error window that raise one alert
const (
	errorWindow         = 20
	venueAlertThreshold = 5
)

// Runner serialises cycles on a fixed interval. Only one cycle is in flight
// at a time; a tick that arrives while a cycle runs is dropped.
type Runner struct {
	cycle    *Cycle
	interval time.Duration
	health   *monitoring.HealthChecker
	onReport func(*Report, error)
	errStats *apperrors.ErrorStats
	alerted  bool
	env
}

// NewRunner creates a runner. health may be nil.
func NewRunner(cycle *Cycle, interval time.Duration, health *monitoring.HealthChecker, opts ...Option) *Runner {
	return &Runner{
		cycle:    cycle,
		interval: interval,
		health:   health,
		errStats: apperrors.NewErrorStats(errorWindow),
		env:      newEnv(opts),
	}
}

// OnReport registers a callback invoked after every cycle
func (r *Runner) OnReport(fn func(*Report, error)) {
	r.onReport = fn
}

// RunOnce runs a single cycle and records its outcome
func (r *Runner) RunOnce(ctx context.Context) (*Report, error) {
	report, err := r.cycle.Run(ctx)
	if r.health != nil {
		r.health.RecordCycle(report.FinishedAt, report.OpenPositions, err, report.UnitErrors())
	}
	r.trackVenue(report)
	if r.onReport != nil {
		r.onReport(report, err)
	}
	return report, err
}

// Run starts a cycle immediately and then on every tick until ctx is done or
// a cycle stops on a fatal error. Shutdown through ctx returns nil.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("trading loop started", zap.Duration("interval", r.interval))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.Error("trading loop stopped on fatal error", zap.Error(err))
			return err
		}

		select {
		case <-ctx.Done():
			r.log.Info("trading loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// trackVenue raises a single alert when venue failures keep piling up across
// cycles and re-arms once a cycle completes cleanly
func (r *Runner) trackVenue(report *Report) {
	if len(report.Errors) == 0 {
		r.errStats = apperrors.NewErrorStats(errorWindow)
		r.alerted = false
		return
	}
	for _, u := range report.Errors {
		r.errStats.RecordError(apperrors.NewBotError(u.Category, "cycle", u.Unit, u.Message))
	}
	if r.alerted || !r.errStats.HasRecentErrors(apperrors.ErrorCategoryExchange, venueAlertThreshold) {
		return
	}
	r.alerted = true
	recent := r.errStats.Recent()
	r.log.Warn("exchange failing repeatedly", zap.Strings("recent_errors", recent))
	r.notify(notifications.LevelWarning, fmt.Sprintf("Exchange failing repeatedly, latest: %s", recent[len(recent)-1]))
}
