// Package authform drives credential-entry forms (login, registration and
// password recovery) on top of two black-box collaborators: an [EmailLookup]
// that reports whether an address is registered and a [Backend] that signs
// in, registers and starts password recovery.
//
// The core is the email availability gate. Leaving the email field in
// register mode issues an asynchronous lookup, bounded per form by
// Config.Form.MaxEmailChecks; the verdict is bound to the normalized address
// it was issued for, so editing the field or resetting the form discards it.
// Registration re-checks the address once more right before calling the
// backend, independent of the per-form budget.
//
// # Concurrency
//
// [Engine] is safe for concurrent use after [Builder.Build]. Each [Form]
// serializes its own events; collaborator calls run outside its lock and
// their results are applied only if the form has not moved on.
//
// # What this package must NOT do
//
//   - Expose Redis clients or limiter internals in its public API.
//   - Let a collaborator panic escape a Form method.
//   - Leave a form loading after Submit returns.
package authform
