package authform

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrEthical07/authform/email"
	"github.com/MrEthical07/authform/internal/gate"
	"go.uber.org/zap"
)

// Form is one credential-entry session: the field values, the email
// availability gate and the submission state.
//
// All methods are safe for concurrent use. Every event applies its state
// changes in one critical section, so [Form.View] never observes a partial
// update. Lookups and backend calls run outside the lock.
type Form struct {
	engine    *Engine
	id        string
	locale    string
	msgs      Messages
	onSuccess func(ctx context.Context, normalizedEmail string)
	onClose   func()
	schedule  func(time.Duration, func())
	logger    *zap.Logger

	mu         sync.Mutex
	mode       Mode
	fields     Fields
	emailRes   email.Result
	gate       gate.State
	errMsg     string
	successMsg string
	loading    bool
	// epoch advances on every reset; work started under an older epoch is dropped.
	epoch uint64
}

// ID is a random identifier used in logs and audit events.
func (f *Form) ID() string { return f.id }

func (f *Form) Locale() string { return f.locale }

func (f *Form) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// SetEmail records a new raw email value. Any change drops the availability
// verdict or running check and clears the displayed error.
func (f *Form) SetEmail(raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setEmailLocked(raw)
}

func (f *Form) setEmailLocked(raw string) {
	if raw == f.fields.Email {
		return
	}
	f.fields.Email = raw
	f.emailRes = email.Validate(raw)
	f.errMsg = ""
	if f.gate.Status() != gate.StatusIdle {
		f.logger.Debug("email edited, availability dropped",
			zap.Stringer("from", f.gate.Status()))
	}
	f.gate = f.gate.Edited()
}

func (f *Form) SetPassword(password string) {
	f.mu.Lock()
	f.fields.Password = password
	f.mu.Unlock()
}

func (f *Form) SetConfirmPassword(password string) {
	f.mu.Lock()
	f.fields.ConfirmPassword = password
	f.mu.Unlock()
}

func (f *Form) SetName(name string) {
	f.mu.Lock()
	f.fields.Name = name
	f.mu.Unlock()
}

// SetFields applies all four values as one event.
func (f *Form) SetFields(in Fields) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setEmailLocked(in.Email)
	f.fields.Password = in.Password
	f.fields.ConfirmPassword = in.ConfirmPassword
	f.fields.Name = in.Name
}

// BlurEmail runs the availability check when the email field loses focus. A
// lookup is issued only in register mode, for a non-empty valid email, while
// the gate is idle and the attempt budget is not spent. With the budget spent
// the rate-limit message is shown instead. BlurEmail returns once the lookup
// has been applied or discarded.
func (f *Form) BlurEmail(ctx context.Context) View {
	f.mu.Lock()
	if f.mode != ModeRegister || f.fields.Email == "" || !f.emailRes.Valid || f.gate.Status() != gate.StatusIdle {
		view := f.viewLocked()
		f.mu.Unlock()
		return view
	}

	norm := email.Normalize(f.fields.Email)
	next, ticket, err := f.gate.Begin(norm)
	if err != nil {
		if !errors.Is(err, gate.ErrExhausted) {
			view := f.viewLocked()
			f.mu.Unlock()
			return view
		}
		f.errMsg = f.msgs.CheckRateLimited
		view := f.viewLocked()
		f.mu.Unlock()

		f.engine.metricInc(MetricEmailCheckExhausted)
		f.logger.Info("email check refused, attempts exhausted", zap.Int("attempts", view.Attempts))
		f.emitAudit(ctx, auditEventEmailCheckExhausted, ModeRegister, norm, false, auditErrAttemptsExceeded, nil)
		return view
	}
	f.gate = next
	f.errMsg = ""
	f.mu.Unlock()

	f.engine.metricInc(MetricEmailCheckStarted)
	f.logger.Debug("email check started",
		zap.Uint64("ticket", ticket.ID),
		zap.Int("attempt", next.Attempts()))

	exists, lookupErr := f.engine.verifyEmail(ctx, norm, true)

	f.mu.Lock()
	var applied bool
	if lookupErr != nil {
		if next, applied = f.gate.Fail(ticket); applied {
			f.gate = next
			f.errMsg = f.msgs.checkFailed(lookupErr)
		}
	} else if next, applied = f.gate.Resolve(ticket, exists); applied {
		f.gate = next
	}
	view := f.viewLocked()
	f.mu.Unlock()

	if !applied {
		f.engine.metricInc(MetricEmailCheckStale)
		f.logger.Debug("stale email check discarded", zap.Uint64("ticket", ticket.ID))
		return view
	}

	if lookupErr != nil {
		f.engine.metricInc(MetricEmailCheckFailed)
		f.logger.Warn("email check failed", zap.Error(lookupErr))
		f.emitAudit(ctx, auditEventEmailCheck, ModeRegister, norm, false, auditErrorCode(lookupErr), nil)
		return view
	}

	if exists {
		f.engine.metricInc(MetricEmailCheckExists)
	} else {
		f.engine.metricInc(MetricEmailCheckAvailable)
	}
	f.logger.Debug("email check resolved", zap.Stringer("status", next.Status()))
	f.emitAudit(ctx, auditEventEmailCheck, ModeRegister, norm, true, "", func() map[string]string {
		return map[string]string{"status": next.Status().String()}
	})
	return view
}

// SwitchMode changes the mode and resets the whole form, including the
// attempt budget.
func (f *Form) SwitchMode(ctx context.Context, mode Mode) error {
	if !mode.Valid() {
		return ErrInvalidMode
	}
	f.mu.Lock()
	from := f.mode
	f.resetLocked(mode)
	f.mu.Unlock()

	f.afterReset(ctx, from, mode, "switch")
	return nil
}

// Close resets the form to login mode and runs the close callback.
func (f *Form) Close(ctx context.Context) {
	f.mu.Lock()
	from := f.mode
	f.resetLocked(ModeLogin)
	f.mu.Unlock()

	f.afterReset(ctx, from, ModeLogin, "close")
	if f.onClose != nil {
		f.onClose()
	}
}

// CanSubmit reports whether the submit action is enabled.
func (f *Form) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canSubmitLocked()
}

// View returns a consistent snapshot of the form.
func (f *Form) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewLocked()
}

func (f *Form) viewLocked() View {
	norm := email.Normalize(f.fields.Email)
	v := View{
		Mode:       f.mode,
		Email:      f.fields.Email,
		Name:       f.fields.Name,
		EmailValid: f.emailRes.Valid,
		Status:     availabilityFromGate(f.gate.VerdictFor(norm)),
		Attempts:   f.gate.Attempts(),
		Error:      f.errMsg,
		Success:    f.successMsg,
		Loading:    f.loading,
		CanSubmit:  f.canSubmitLocked(),
		Locale:     f.locale,
	}
	if f.fields.Email != "" {
		v.EmailError = f.msgs.EmailError(f.emailRes)
	}
	return v
}

func (f *Form) canSubmitLocked() bool {
	if f.loading || !f.emailRes.Valid {
		return false
	}
	switch f.gate.VerdictFor(email.Normalize(f.fields.Email)) {
	case gate.StatusChecking:
		return false
	case gate.StatusExists:
		return f.mode != ModeRegister
	}
	return true
}

func (f *Form) resetLocked(mode Mode) {
	f.mode = mode
	f.fields = Fields{}
	f.emailRes = email.Result{}
	f.gate = f.gate.Reset()
	f.errMsg = ""
	f.successMsg = ""
	f.loading = false
	f.epoch++
}

func (f *Form) afterReset(ctx context.Context, from, to Mode, cause string) {
	f.engine.metricInc(MetricFormReset)
	f.logger.Debug("form reset",
		zap.String("cause", cause),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	f.emitAudit(ctx, auditEventFormReset, to, "", true, "", func() map[string]string {
		return map[string]string{"cause": cause, "from": string(from)}
	})
}

// resetIfEpoch performs a delayed post-success reset unless the form has been
// reset since the submission started.
func (f *Form) resetIfEpoch(ctx context.Context, epoch uint64, mode Mode, cause string) bool {
	f.mu.Lock()
	if f.epoch != epoch {
		f.mu.Unlock()
		f.logger.Debug("delayed reset skipped, form already reset", zap.String("cause", cause))
		return false
	}
	from := f.mode
	f.resetLocked(mode)
	f.mu.Unlock()

	f.afterReset(ctx, from, mode, cause)
	return true
}
