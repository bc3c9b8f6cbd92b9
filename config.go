package authform

import (
	"errors"
	"time"
)

// Config is the complete engine configuration. It is copied into the engine
// at Build; later changes have no effect.
type Config struct {
	Form           FormConfig
	Locale         string
	LookupThrottle ThrottleConfig
	SubmitThrottle ThrottleConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
}

/*
====================================
FORM CONFIG
====================================
*/

// FormConfig controls the availability gate and the post-submit transitions.
type FormConfig struct {
	// MaxEmailChecks bounds blur-time availability lookups per form between resets.
	MaxEmailChecks int
	// MinPasswordLength is the shortest password accepted at registration.
	MinPasswordLength int
	// LoginCloseDelay elapses between a successful login and the form closing.
	LoginCloseDelay time.Duration
	// RegisterResetDelay elapses between a successful registration and the switch to login.
	RegisterResetDelay time.Duration
	// ResetReturnDelay elapses between a sent recovery email and the return to login.
	ResetReturnDelay time.Duration
	// LookupTimeout bounds each availability lookup. Zero means no bound beyond the caller's context.
	LookupTimeout time.Duration
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig is a Redis fixed-window throttle. It needs a Redis client when
// either key class is enabled.
type ThrottleConfig struct {
	Enabled                  bool
	EnableIPThrottle         bool
	EnableIdentifierThrottle bool
	MaxAttempts              int
	Window                   time.Duration
}

// AuditConfig controls the asynchronous audit pipeline.
type AuditConfig struct {
	Enabled bool
	// BufferSize is the queue length between forms and the sink. Values below one mean one.
	BufferSize int
	// DropIfFull discards events when the queue is full instead of blocking the form.
	DropIfFull bool
}

// MetricsConfig controls the in-process counters read by the exporters.
type MetricsConfig struct {
	Enabled bool
	// EnableLatencyHistograms also records lookup latency buckets.
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults: three checks per form, six
// character passwords, pt-BR messages and no server-side throttles.
func DefaultConfig() Config {
	return Config{
		Form: FormConfig{
			MaxEmailChecks:     3,
			MinPasswordLength:  6,
			LoginCloseDelay:    time.Second,
			RegisterResetDelay: 2 * time.Second,
			ResetReturnDelay:   3 * time.Second,
			LookupTimeout:      5 * time.Second,
		},
		Locale: LocalePTBR,
		LookupThrottle: ThrottleConfig{
			Enabled:                  false,
			EnableIPThrottle:         true,
			EnableIdentifierThrottle: false,
			MaxAttempts:              30,
			Window:                   10 * time.Minute,
		},
		SubmitThrottle: ThrottleConfig{
			Enabled:                  false,
			EnableIPThrottle:         true,
			EnableIdentifierThrottle: true,
			MaxAttempts:              10,
			Window:                   15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	// Form
	if c.Form.MaxEmailChecks <= 0 {
		return errors.New("Form MaxEmailChecks must be > 0")
	}
	if c.Form.MinPasswordLength <= 0 {
		return errors.New("Form MinPasswordLength must be > 0")
	}
	if c.Form.LoginCloseDelay < 0 || c.Form.RegisterResetDelay < 0 || c.Form.ResetReturnDelay < 0 {
		return errors.New("Form delays must be >= 0")
	}
	if c.Form.LookupTimeout < 0 {
		return errors.New("Form LookupTimeout must be >= 0")
	}

	// Locale
	if !SupportedLocale(c.Locale) {
		return errors.New("Locale must be one of pt-BR, en")
	}

	// Throttles
	if err := c.LookupThrottle.validate("LookupThrottle"); err != nil {
		return err
	}
	if err := c.SubmitThrottle.validate("SubmitThrottle"); err != nil {
		return err
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	return nil
}

func (t ThrottleConfig) validate(name string) error {
	if !t.Enabled {
		return nil
	}
	if !t.EnableIPThrottle && !t.EnableIdentifierThrottle {
		return errors.New(name + " needs at least one of EnableIPThrottle, EnableIdentifierThrottle")
	}
	if t.MaxAttempts <= 0 {
		return errors.New(name + " MaxAttempts must be > 0")
	}
	if t.Window <= 0 {
		return errors.New(name + " Window must be > 0")
	}
	return nil
}
