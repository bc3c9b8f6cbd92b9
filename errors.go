package authform

import "errors"

var (
	// ErrInvalidLoginCredentials is the sign-in failure a backend reports for a wrong email/password pair.
	// Its text matches what hosted auth backends return so substring classification works for both.
	ErrInvalidLoginCredentials = errors.New("Invalid login credentials")
	// ErrAlreadyRegistered is the registration failure a backend reports for a taken email.
	ErrAlreadyRegistered = errors.New("User already registered")
	// ErrUnexpectedFault wraps a panic recovered from a collaborator call.
	ErrUnexpectedFault = errors.New("unexpected fault")
	// ErrLookupRateLimited is returned by a blur-time lookup denied by the server-side throttle.
	ErrLookupRateLimited = errors.New("email lookup rate limited")
	// ErrLookupUnavailable is returned when the lookup throttle backend cannot be reached.
	ErrLookupUnavailable = errors.New("email lookup throttle unavailable")
	// ErrSubmitRateLimited is returned by a submission denied by the server-side throttle.
	ErrSubmitRateLimited = errors.New("form submit rate limited")
	// ErrSubmitUnavailable is returned when the submit throttle backend cannot be reached.
	ErrSubmitUnavailable = errors.New("form submit throttle unavailable")
	// ErrInvalidMode is returned for a mode name outside login, register and forgot-password.
	ErrInvalidMode = errors.New("invalid form mode")
	// ErrEngineNotReady is returned when a nil or unbuilt engine is used.
	ErrEngineNotReady = errors.New("engine not initialized")
)
