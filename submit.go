package authform

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/MrEthical07/authform/email"
	"github.com/MrEthical07/authform/internal/gate"
	"go.uber.org/zap"
)

// Submit runs the action of the current mode and returns its outcome. The
// outcome message is also shown on the form.
//
// A submission already in flight or a running availability check blocks
// Submit: it returns ReasonBlocked and changes nothing. An invalid email, or an
// email known to be registered in register mode, is reported without calling
// any collaborator. The loading flag is set for the duration of the call and
// is always cleared, including after a recovered fault.
func (f *Form) Submit(ctx context.Context) (out Outcome) {
	f.mu.Lock()
	if f.loading || f.gate.VerdictFor(email.Normalize(f.fields.Email)) == gate.StatusChecking {
		f.mu.Unlock()
		f.engine.metricInc(MetricSubmitBlocked)
		return Outcome{Reason: ReasonBlocked}
	}

	f.errMsg = ""
	f.successMsg = ""
	f.emailRes = email.Validate(f.fields.Email)
	if !f.emailRes.Valid {
		msg := f.msgs.EmailError(f.emailRes)
		f.errMsg = msg
		f.mu.Unlock()
		f.engine.metricInc(MetricSubmitRejected)
		return Outcome{Message: msg, Reason: ReasonInvalidEmail}
	}

	mode := f.mode
	fields := f.fields
	norm := email.Normalize(fields.Email)
	if mode == ModeRegister && f.gate.VerdictFor(norm) == gate.StatusExists {
		f.errMsg = f.msgs.EmailTaken
		f.mu.Unlock()
		f.engine.metricInc(MetricSubmitRejected)
		return Outcome{Message: f.msgs.EmailTaken, Reason: ReasonEmailExists}
	}

	f.loading = true
	epoch := f.epoch
	f.mu.Unlock()

	var after func()
	defer func() {
		out.Mode, out.Email = mode, norm
		f.finishSubmit(epoch, out, after)
	}()
	defer func() {
		if r := recover(); r != nil {
			f.engine.metricInc(MetricUnexpectedFault)
			f.logger.Error("submit panic recovered",
				zap.String("mode", string(mode)),
				zap.Any("panic", r),
				zap.Stack("stack"))
			out = Outcome{Message: f.msgs.Unexpected, Reason: ReasonUnexpected}
			after = nil
		}
	}()

	switch mode {
	case ModeLogin:
		out, after = f.submitLogin(ctx, epoch, norm, fields)
	case ModeRegister:
		out, after = f.submitRegister(ctx, epoch, norm, fields)
	case ModeForgotPassword:
		out, after = f.submitReset(ctx, epoch, norm)
	default:
		panic(fmt.Sprintf("unknown form mode %q", mode))
	}
	return out
}

// finishSubmit clears loading and publishes the outcome, unless the form was
// reset while the submission ran. after schedules the delayed follow-up and
// runs in both cases; the follow-up checks the epoch itself before resetting.
func (f *Form) finishSubmit(epoch uint64, out Outcome, after func()) {
	f.mu.Lock()
	if f.epoch != epoch {
		f.mu.Unlock()
		f.logger.Debug("late submit result discarded", zap.String("reason", string(out.Reason)))
		if after != nil {
			after()
		}
		return
	}
	f.loading = false
	if out.Success {
		f.successMsg = out.Message
	} else {
		f.errMsg = out.Message
	}
	f.mu.Unlock()

	if after != nil {
		after()
	}
}

func (f *Form) submitLogin(ctx context.Context, epoch uint64, norm string, fields Fields) (Outcome, func()) {
	e := f.engine
	if err := e.enforceSubmit(ctx, ModeLogin, norm); err != nil {
		return f.throttled(ctx, ModeLogin, norm, err), nil
	}

	err := e.guard("login", func() error {
		return e.backend.Login(ctx, norm, fields.Password)
	})
	if err != nil {
		e.metricInc(MetricLoginFailure)
		f.emitAudit(ctx, auditEventLogin, ModeLogin, norm, false, auditErrorCode(err), nil)
		switch {
		case errors.Is(err, ErrUnexpectedFault):
			return Outcome{Message: f.msgs.Unexpected, Reason: ReasonUnexpected}, nil
		case isInvalidCredentials(err):
			return Outcome{Message: f.msgs.InvalidCredentials, Reason: ReasonInvalidCredentials}, nil
		default:
			f.logger.Warn("login failed", zap.Error(err))
			return Outcome{Message: err.Error(), Reason: ReasonBackendError}, nil
		}
	}

	e.metricInc(MetricLoginSuccess)
	e.clearSubmit(ctx, ModeLogin, norm)
	f.emitAudit(ctx, auditEventLogin, ModeLogin, norm, true, "", nil)

	delay := e.config.Form.LoginCloseDelay
	cbCtx := context.WithoutCancel(ctx)
	return Outcome{Success: true, Message: f.msgs.LoginSucceeded, Reason: ReasonSucceeded}, func() {
		f.schedule(delay, func() {
			// The reset is skipped if the form moved on; the callback always runs.
			if f.resetIfEpoch(cbCtx, epoch, ModeLogin, "login_success") && f.onClose != nil {
				f.onClose()
			}
			if f.onSuccess != nil {
				f.onSuccess(cbCtx, norm)
			}
		})
	}
}

func (f *Form) submitRegister(ctx context.Context, epoch uint64, norm string, fields Fields) (Outcome, func()) {
	e := f.engine
	if fields.Password != fields.ConfirmPassword {
		e.metricInc(MetricSubmitRejected)
		return Outcome{Message: f.msgs.PasswordMismatch, Reason: ReasonPasswordMismatch}, nil
	}
	if minLen := e.config.Form.MinPasswordLength; utf8.RuneCountInString(fields.Password) < minLen {
		e.metricInc(MetricSubmitRejected)
		return Outcome{Message: f.msgs.passwordTooShort(minLen), Reason: ReasonPasswordTooShort}, nil
	}
	if err := e.enforceSubmit(ctx, ModeRegister, norm); err != nil {
		return f.throttled(ctx, ModeRegister, norm, err), nil
	}

	// Final authoritative check: bypasses the per-form attempt budget and
	// leaves the gate untouched.
	exists, err := e.verifyEmail(ctx, norm, false)
	if err != nil {
		e.metricInc(MetricRaceGuardFailed)
		f.logger.Warn("pre-registration email check failed", zap.Error(err))
		f.emitAudit(ctx, auditEventRegisterRaceGuard, ModeRegister, norm, false, auditErrorCode(err), nil)
		return Outcome{Message: f.msgs.raceGuardFailed(err), Reason: ReasonRaceGuardFailed}, nil
	}
	if exists {
		e.metricInc(MetricRaceGuardExists)
		f.logger.Info("email registered since blur check")
		f.emitAudit(ctx, auditEventRegisterRaceGuard, ModeRegister, norm, false, auditErrEmailExists, nil)
		return Outcome{Message: f.msgs.RaceGuardTaken, Reason: ReasonRaceGuardExists}, nil
	}

	err = e.guard("register", func() error {
		return e.backend.Register(ctx, norm, fields.Password, fields.Name)
	})
	if err != nil {
		f.emitAudit(ctx, auditEventRegister, ModeRegister, norm, false, auditErrorCode(err), nil)
		switch {
		case errors.Is(err, ErrUnexpectedFault):
			e.metricInc(MetricRegisterFailure)
			return Outcome{Message: f.msgs.Unexpected, Reason: ReasonUnexpected}, nil
		case isAlreadyRegistered(err):
			e.metricInc(MetricRegisterDuplicate)
			return Outcome{Message: f.msgs.AlreadyRegistered, Reason: ReasonAlreadyRegistered}, nil
		default:
			e.metricInc(MetricRegisterFailure)
			f.logger.Warn("registration failed", zap.Error(err))
			return Outcome{Message: fmt.Sprintf(f.msgs.RegisterFailedFormat, err.Error()), Reason: ReasonBackendError}, nil
		}
	}

	e.metricInc(MetricRegisterSuccess)
	f.emitAudit(ctx, auditEventRegister, ModeRegister, norm, true, "", nil)

	delay := e.config.Form.RegisterResetDelay
	cbCtx := context.WithoutCancel(ctx)
	return Outcome{Success: true, Message: f.msgs.RegisterSucceeded, Reason: ReasonSucceeded}, func() {
		f.schedule(delay, func() {
			f.resetIfEpoch(cbCtx, epoch, ModeLogin, "register_success")
		})
	}
}

func (f *Form) submitReset(ctx context.Context, epoch uint64, norm string) (Outcome, func()) {
	e := f.engine
	if err := e.enforceSubmit(ctx, ModeForgotPassword, norm); err != nil {
		return f.throttled(ctx, ModeForgotPassword, norm, err), nil
	}

	err := e.guard("reset_password", func() error {
		return e.backend.ResetPassword(ctx, norm)
	})
	if err != nil {
		e.metricInc(MetricResetRequestFailure)
		f.emitAudit(ctx, auditEventPasswordResetRequest, ModeForgotPassword, norm, false, auditErrorCode(err), nil)
		if errors.Is(err, ErrUnexpectedFault) {
			return Outcome{Message: f.msgs.Unexpected, Reason: ReasonUnexpected}, nil
		}
		f.logger.Warn("password reset request failed", zap.Error(err))
		return Outcome{Message: err.Error(), Reason: ReasonBackendError}, nil
	}

	e.metricInc(MetricResetRequestSuccess)
	f.emitAudit(ctx, auditEventPasswordResetRequest, ModeForgotPassword, norm, true, "", nil)

	delay := e.config.Form.ResetReturnDelay
	cbCtx := context.WithoutCancel(ctx)
	return Outcome{Success: true, Message: f.msgs.ResetSucceeded, Reason: ReasonSucceeded}, func() {
		f.schedule(delay, func() {
			f.resetIfEpoch(cbCtx, epoch, ModeLogin, "reset_success")
		})
	}
}

func (f *Form) throttled(ctx context.Context, mode Mode, norm string, err error) Outcome {
	f.emitAudit(ctx, auditEventSubmitRateLimited, mode, norm, false, auditErrorCode(err), nil)
	if errors.Is(err, ErrSubmitRateLimited) {
		return Outcome{Message: f.msgs.SubmitRateLimited, Reason: ReasonRateLimited}
	}
	return Outcome{Message: f.msgs.Unexpected, Reason: ReasonBackendError}
}
