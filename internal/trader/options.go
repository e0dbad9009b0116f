package trader

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-signal-trader/internal/logger"
	"github.com/ducminhle1904/crypto-signal-trader/internal/monitoring"
	"github.com/ducminhle1904/crypto-signal-trader/internal/notifications"
	"github.com/ducminhle1904/crypto-signal-trader/internal/telemetry"
)

// env carries the collaborators every pipeline component shares
type env struct {
	log      *zap.Logger
	tracer   trace.Tracer
	metrics  *monitoring.Metrics
	notifier notifications.Notifier
	now      func() time.Time
}

// Option configures a pipeline component
type Option func(*env)

// WithLogger sets the structured logger
func WithLogger(log *zap.Logger) Option {
	return func(e *env) { e.log = log }
}

// WithTracer sets the tracer used for pipeline spans
func WithTracer(t trace.Tracer) Option {
	return func(e *env) { e.tracer = t }
}

// WithMetrics sets the Prometheus collectors
func WithMetrics(m *monitoring.Metrics) Option {
	return func(e *env) { e.metrics = m }
}

// WithNotifier sets the operator alert channel
func WithNotifier(n notifications.Notifier) Option {
	return func(e *env) { e.notifier = n }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(e *env) { e.now = now }
}

func newEnv(opts []Option) env {
	var e env
	for _, opt := range opts {
		opt(&e)
	}
	e.log = logger.OrNop(e.log)
	e.tracer = telemetry.OrNoop(e.tracer)
	e.notifier = notifications.OrNop(e.notifier)
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// notify sends an alert and only logs a delivery failure
func (e env) notify(level, message string) {
	if err := e.notifier.SendAlert(level, message); err != nil {
		e.log.Warn("notification failed", zap.String("level", level), zap.Error(err))
	}
}
