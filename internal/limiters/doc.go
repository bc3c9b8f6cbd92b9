// Package limiters provides the server-side throttles built on top of the
// internal/rate primitive.
//
// # Limiters
//
//   - [LookupLimiter]: per-email and per-IP window on blur-time availability lookups.
//   - [SubmitLimiter]: per-mode window on form submissions, keyed by email and IP.
//
// All limiters are nil-safe: calling Enforce on a nil receiver returns nil.
//
// # What this package must NOT do
//
//   - Import authform or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting; the form decides what a denial means.
package limiters
