package authform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authform/internal/gate"
	"github.com/MrEthical07/authform/internal/limiters"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine owns the collaborators and shared infrastructure behind every form.
//
// Engine is safe for concurrent use after [Builder.Build]. Forms created from
// the same engine share its throttles, metrics and audit pipeline.
type Engine struct {
	config        Config
	lookup        EmailLookup
	backend       Backend
	lookupLimiter *limiters.LookupLimiter
	submitLimiter *limiters.SubmitLimiter
	audit         *auditDispatcher
	metrics       *Metrics
	logger        *zap.Logger
}

// Close drains the audit pipeline. Forms must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the counters. It is empty when metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// NewForm starts a form session in login mode.
func (e *Engine) NewForm(opts FormOptions) (*Form, error) {
	if e == nil || e.lookup == nil || e.backend == nil {
		return nil, ErrEngineNotReady
	}

	locale := opts.Locale
	if locale == "" {
		locale = e.config.Locale
	}
	if !SupportedLocale(locale) {
		return nil, fmt.Errorf("unsupported locale %q", locale)
	}

	f := &Form{
		engine:    e,
		id:        uuid.NewString(),
		locale:    locale,
		msgs:      MessagesFor(locale),
		onSuccess: opts.OnSuccess,
		onClose:   opts.OnClose,
		schedule:  scheduleAfter,
		mode:      ModeLogin,
		gate:      gate.New(e.config.Form.MaxEmailChecks),
	}
	f.logger = e.logger.With(zap.String("form_id", f.id))
	return f, nil
}

// verifyEmail asks the lookup collaborator whether normalizedEmail is taken.
// limited selects the blur path, which passes through the server-side lookup
// throttle; the pre-registration re-check does not. A recovered panic is
// reported as ErrUnexpectedFault.
func (e *Engine) verifyEmail(ctx context.Context, normalizedEmail string, limited bool) (bool, error) {
	if limited {
		if err := e.lookupLimiter.Enforce(ctx, normalizedEmail, clientIPFromContext(ctx)); err != nil {
			switch {
			case errors.Is(err, limiters.ErrLookupRateLimited):
				e.metricInc(MetricEmailCheckRateLimited)
				return false, ErrLookupRateLimited
			default:
				e.logger.Error("lookup throttle unavailable", zap.Error(err))
				return false, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
			}
		}
	}

	if timeout := e.config.Form.LookupTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var exists bool
	start := time.Now()
	err := e.guard("lookup", func() error {
		var err error
		exists, err = e.lookup.CheckEmailExists(ctx, normalizedEmail)
		return err
	})
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricLookupLatency, time.Since(start))
	}
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (e *Engine) enforceSubmit(ctx context.Context, mode Mode, normalizedEmail string) error {
	err := e.submitLimiter.Enforce(ctx, string(mode), normalizedEmail, clientIPFromContext(ctx))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrSubmitRateLimited):
		e.metricInc(MetricSubmitRateLimited)
		return ErrSubmitRateLimited
	default:
		e.logger.Error("submit throttle unavailable", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrSubmitUnavailable, err)
	}
}

// clearSubmit forgets earlier submit attempts for normalizedEmail after a
// successful login. Failures are logged only.
func (e *Engine) clearSubmit(ctx context.Context, mode Mode, normalizedEmail string) {
	if err := e.submitLimiter.Clear(ctx, string(mode), normalizedEmail); err != nil {
		e.logger.Warn("submit throttle clear failed", zap.Error(err))
	}
}

// guard runs fn and converts a panic into ErrUnexpectedFault.
func (e *Engine) guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.metricInc(MetricUnexpectedFault)
			e.logger.Error("collaborator panic recovered",
				zap.String("op", op),
				zap.Any("panic", r),
				zap.Stack("stack"))
			err = fmt.Errorf("%w: %v", ErrUnexpectedFault, r)
		}
	}()
	return fn()
}

func scheduleAfter(d time.Duration, fn func()) {
	if d <= 0 {
		go fn()
		return
	}
	time.AfterFunc(d, fn)
}
