package internaldefs

import (
	"github.com/MrEthical07/authform"
)

// CounterDef maps a counter to its exported name.
type CounterDef struct {
	ID   authform.MetricID
	Name string
	Help string
}

// HistogramDef maps a histogram to its exported name.
type HistogramDef struct {
	ID   authform.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: authform.MetricEmailCheckStarted, Name: "authform_email_check_started_total", Help: "Blur-time availability lookups started."},
	{ID: authform.MetricEmailCheckExists, Name: "authform_email_check_exists_total", Help: "Availability lookups that found an existing account."},
	{ID: authform.MetricEmailCheckAvailable, Name: "authform_email_check_available_total", Help: "Availability lookups that found the email free."},
	{ID: authform.MetricEmailCheckFailed, Name: "authform_email_check_failed_total", Help: "Availability lookups that failed or faulted."},
	{ID: authform.MetricEmailCheckStale, Name: "authform_email_check_stale_total", Help: "Availability results discarded because the email or form changed."},
	{ID: authform.MetricEmailCheckExhausted, Name: "authform_email_check_exhausted_total", Help: "Blur checks refused after the per-form attempt cap."},
	{ID: authform.MetricEmailCheckRateLimited, Name: "authform_email_check_rate_limited_total", Help: "Blur checks denied by the server-side lookup throttle."},
	{ID: authform.MetricSubmitBlocked, Name: "authform_submit_blocked_total", Help: "Submissions ignored while loading or checking."},
	{ID: authform.MetricSubmitRejected, Name: "authform_submit_rejected_total", Help: "Submissions rejected by local validation."},
	{ID: authform.MetricSubmitRateLimited, Name: "authform_submit_rate_limited_total", Help: "Submissions denied by the server-side submit throttle."},
	{ID: authform.MetricRaceGuardExists, Name: "authform_race_guard_exists_total", Help: "Registrations stopped because the pre-submit re-check found an account."},
	{ID: authform.MetricRaceGuardFailed, Name: "authform_race_guard_failed_total", Help: "Registrations stopped because the pre-submit re-check failed."},
	{ID: authform.MetricLoginSuccess, Name: "authform_login_success_total", Help: "Successful logins."},
	{ID: authform.MetricLoginFailure, Name: "authform_login_failure_total", Help: "Failed logins."},
	{ID: authform.MetricRegisterSuccess, Name: "authform_register_success_total", Help: "Successful registrations."},
	{ID: authform.MetricRegisterDuplicate, Name: "authform_register_duplicate_total", Help: "Registrations rejected by the backend as already registered."},
	{ID: authform.MetricRegisterFailure, Name: "authform_register_failure_total", Help: "Registrations that failed for other reasons."},
	{ID: authform.MetricResetRequestSuccess, Name: "authform_reset_request_success_total", Help: "Accepted password reset requests."},
	{ID: authform.MetricResetRequestFailure, Name: "authform_reset_request_failure_total", Help: "Failed password reset requests."},
	{ID: authform.MetricUnexpectedFault, Name: "authform_unexpected_fault_total", Help: "Collaborator panics recovered at the form boundary."},
	{ID: authform.MetricFormReset, Name: "authform_form_reset_total", Help: "Form resets from mode switches, closes and post-success transitions."},
}

// HistogramDefs lists the exported latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: authform.MetricLookupLatency, Name: "authform_lookup_latency_seconds", Help: "Email availability lookup latency histogram."},
}

// HistogramBounds holds the upper bounds of the eight latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds rendered for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
