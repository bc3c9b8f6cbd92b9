// Package email classifies raw email input and derives the canonical form used for
// every comparison and backend call.
//
// # Contract
//
// [Validate] and [Normalize] are pure: same input, same output, no I/O. Normalization
// is idempotent, so Normalize(Normalize(x)) == Normalize(x).
//
// # What this package must NOT do
//
//   - Check whether an address is registered (that is the lookup collaborator's job).
//   - Import any other authform package.
package email
