package authform

import (
	"context"
	"strings"

	"github.com/MrEthical07/authform/internal/gate"
)

// Mode selects which submission path a form runs and which fields are relevant.
type Mode string

const (
	ModeLogin          Mode = "login"
	ModeRegister       Mode = "register"
	ModeForgotPassword Mode = "forgot-password"
)

// ParseMode accepts the canonical mode names, ignoring case and surrounding whitespace.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeLogin, ModeRegister, ModeForgotPassword:
		return m, nil
	default:
		return "", ErrInvalidMode
	}
}

// Valid reports whether m is one of the three known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeLogin, ModeRegister, ModeForgotPassword:
		return true
	}
	return false
}

// AvailabilityStatus is the verdict of the blur-time availability check.
type AvailabilityStatus string

const (
	StatusIdle      AvailabilityStatus = "idle"
	StatusChecking  AvailabilityStatus = "checking"
	StatusExists    AvailabilityStatus = "exists"
	StatusAvailable AvailabilityStatus = "available"
)

func availabilityFromGate(s gate.Status) AvailabilityStatus {
	switch s {
	case gate.StatusChecking:
		return StatusChecking
	case gate.StatusExists:
		return StatusExists
	case gate.StatusAvailable:
		return StatusAvailable
	default:
		return StatusIdle
	}
}

// EmailLookup reports whether a normalized email already belongs to an account.
// A returned error is a reported lookup failure; its message is shown to the user.
type EmailLookup interface {
	CheckEmailExists(ctx context.Context, normalizedEmail string) (bool, error)
}

// EmailLookupFunc adapts a function to [EmailLookup].
type EmailLookupFunc func(ctx context.Context, normalizedEmail string) (bool, error)

// CheckEmailExists calls f.
func (f EmailLookupFunc) CheckEmailExists(ctx context.Context, normalizedEmail string) (bool, error) {
	return f(ctx, normalizedEmail)
}

// Backend is the authentication service a form delegates to. Emails are always
// normalized before any call. Errors are treated as opaque messages except for
// [ErrInvalidLoginCredentials] and [ErrAlreadyRegistered] (matched with errors.Is
// or by substring).
type Backend interface {
	Login(ctx context.Context, normalizedEmail, password string) error
	Register(ctx context.Context, normalizedEmail, password, name string) error
	ResetPassword(ctx context.Context, normalizedEmail string) error
}

// Fields holds the raw input of a form.
type Fields struct {
	Email           string
	Password        string
	ConfirmPassword string
	Name            string
}

// OutcomeReason classifies a submission result.
type OutcomeReason string

const (
	ReasonSucceeded          OutcomeReason = "succeeded"
	ReasonBlocked            OutcomeReason = "blocked"
	ReasonInvalidEmail       OutcomeReason = "invalid_email"
	ReasonEmailExists        OutcomeReason = "email_exists"
	ReasonPasswordMismatch   OutcomeReason = "password_mismatch"
	ReasonPasswordTooShort   OutcomeReason = "password_too_short"
	ReasonRaceGuardExists    OutcomeReason = "race_guard_exists"
	ReasonRaceGuardFailed    OutcomeReason = "race_guard_failed"
	ReasonInvalidCredentials OutcomeReason = "invalid_credentials"
	ReasonAlreadyRegistered  OutcomeReason = "already_registered"
	ReasonBackendError       OutcomeReason = "backend_error"
	ReasonRateLimited        OutcomeReason = "rate_limited"
	ReasonUnexpected         OutcomeReason = "unexpected"
)

// Outcome is the transient result of [Form.Submit]. Mode and Email record the
// mode and normalized email a submission ran with; they stay empty when Submit
// was blocked or rejected the email itself.
type Outcome struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Reason  OutcomeReason `json:"reason"`
	Mode    Mode          `json:"mode,omitempty"`
	Email   string        `json:"email,omitempty"`
}

// View is a consistent snapshot of a form, suitable for rendering.
type View struct {
	Mode       Mode               `json:"mode"`
	Email      string             `json:"email"`
	Name       string             `json:"name"`
	EmailValid bool               `json:"email_valid"`
	EmailError string             `json:"email_error,omitempty"`
	Status     AvailabilityStatus `json:"email_status"`
	Attempts   int                `json:"email_check_attempts"`
	Error      string             `json:"error,omitempty"`
	Success    string             `json:"success,omitempty"`
	Loading    bool               `json:"loading"`
	CanSubmit  bool               `json:"can_submit"`
	Locale     string             `json:"locale"`
}

// FormOptions configures one form instance.
type FormOptions struct {
	// Locale overrides Config.Locale for this form's messages.
	Locale string
	// OnSuccess runs once per successful login after the close delay, even if
	// the form was closed or switched mode in the meantime.
	OnSuccess func(ctx context.Context, normalizedEmail string)
	// OnClose runs whenever the form is closed, including after a successful login.
	OnClose func()
}
