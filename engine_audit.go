package authform

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authform/email"
)

const (
	auditEventEmailCheck           = "email_check"
	auditEventEmailCheckExhausted  = "email_check_exhausted"
	auditEventLogin                = "login"
	auditEventRegister             = "register"
	auditEventRegisterRaceGuard    = "register_race_guard"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventSubmitRateLimited    = "submit_rate_limited"
	auditEventFormReset            = "form_reset"
)

// AuditErrorCode is the stable error classification recorded in [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAlreadyRegistered  AuditErrorCode = "already_registered"
	auditErrEmailExists        AuditErrorCode = "email_exists"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrAttemptsExceeded   AuditErrorCode = "attempts_exceeded"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrUnexpected         AuditErrorCode = "unexpected_fault"
	auditErrBackend            AuditErrorCode = "backend_error"
)

func (f *Form) emitAudit(
	ctx context.Context,
	eventType string,
	mode Mode,
	normalizedEmail string,
	success bool,
	code AuditErrorCode,
	metadataBuilder func() map[string]string,
) {
	e := f.engine
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	e.audit.Emit(ctx, AuditEvent{
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		FormID:      f.id,
		Mode:        mode,
		EmailDomain: email.Domain(normalizedEmail),
		IP:          clientIPFromContext(ctx),
		UserAgent:   userAgentFromContext(ctx),
		Success:     success,
		Error:       string(code),
		Metadata:    metadata,
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnexpectedFault):
		return auditErrUnexpected
	case errors.Is(err, ErrLookupRateLimited),
		errors.Is(err, ErrSubmitRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrLookupUnavailable),
		errors.Is(err, ErrSubmitUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return auditErrUnavailable
	case isInvalidCredentials(err):
		return auditErrInvalidCredentials
	case isAlreadyRegistered(err):
		return auditErrAlreadyRegistered
	default:
		return auditErrBackend
	}
}
