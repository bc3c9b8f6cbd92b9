package email

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	maxAddressLength = 254
	maxLocalLength   = 64
	maxLabelLength   = 63
)

var (
	// ErrEmpty is returned for blank input.
	ErrEmpty = errors.New("email is required")
	// ErrMissingAt is returned when the input has no @ separator.
	ErrMissingAt = errors.New("email must contain @")
	// ErrMalformedLocal is returned when the part before @ is not a valid mailbox name.
	ErrMalformedLocal = errors.New("email local part is malformed")
	// ErrMalformedDomain is returned when the part after @ is not a valid domain.
	ErrMalformedDomain = errors.New("email domain is malformed")
	// ErrTooLong is returned for addresses over the RFC 5321 limits.
	ErrTooLong = errors.New("email is too long")
	// ErrInvalid is the catch-all for syntax the per-part checks let through.
	ErrInvalid = errors.New("email format is invalid")
)

var (
	localPattern = regexp.MustCompile("^[a-z0-9!#$%&'*+/=?^_`{|}~.-]+$")
	labelPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)
	tldPattern   = regexp.MustCompile(`^[a-z]{2,}$|^xn--[a-z0-9-]+$`)

	syntax = validator.New()
)

// Result is the outcome of [Validate]. Err is one of the package sentinels when
// Valid is false and nil otherwise.
type Result struct {
	Valid bool
	Err   error
}

// Message returns the human-readable reason for an invalid result, or "" when valid.
func (r Result) Message() string {
	if r.Valid || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Normalize returns the canonical lowercase, trimmed form of raw.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Validate classifies raw. Surrounding whitespace and letter case are ignored, so
// raw and Normalize(raw) always classify the same way.
func Validate(raw string) Result {
	addr := Normalize(raw)
	if addr == "" {
		return invalid(ErrEmpty)
	}
	if len(addr) > maxAddressLength {
		return invalid(ErrTooLong)
	}

	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return invalid(ErrMissingAt)
	}

	if err := checkLocal(addr[:at]); err != nil {
		return invalid(err)
	}
	if err := checkDomain(addr[at+1:]); err != nil {
		return invalid(err)
	}

	if err := syntax.Var(addr, "required,email"); err != nil {
		return invalid(ErrInvalid)
	}

	return Result{Valid: true}
}

// Domain returns the domain part of a normalized address, or "" when there is none.
func Domain(addr string) string {
	addr = Normalize(addr)
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return ""
	}
	return addr[at+1:]
}

func checkLocal(local string) error {
	switch {
	case local == "":
		return ErrMalformedLocal
	case len(local) > maxLocalLength:
		return ErrTooLong
	case strings.HasPrefix(local, "."), strings.HasSuffix(local, "."):
		return ErrMalformedLocal
	case strings.Contains(local, ".."):
		return ErrMalformedLocal
	case !localPattern.MatchString(local):
		return ErrMalformedLocal
	}
	return nil
}

func checkDomain(domain string) error {
	if domain == "" || !strings.Contains(domain, ".") {
		return ErrMalformedDomain
	}

	labels := strings.Split(domain, ".")
	for _, label := range labels {
		if label == "" || len(label) > maxLabelLength {
			return ErrMalformedDomain
		}
		if !labelPattern.MatchString(label) {
			return ErrMalformedDomain
		}
	}

	if !tldPattern.MatchString(labels[len(labels)-1]) {
		return ErrMalformedDomain
	}
	return nil
}

func invalid(err error) Result {
	return Result{Valid: false, Err: err}
}
