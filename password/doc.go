// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2] supports transparent parameter upgrades: if the stored hash was
// produced with weaker parameters, [Argon2.NeedsUpgrade] returns true so the caller
// can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. The form engine enforces the
// user-facing minimum length; the byte bounds here only guard the hasher input.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other authform package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
