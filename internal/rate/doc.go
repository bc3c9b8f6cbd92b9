// Package rate provides the Redis-backed fixed-window counter shared by every
// throttle in authform.
//
// # Window semantics
//
// INCR + conditional EXPIRE on the first hit of a window. Keys are namespaced by the
// prefix given to [New]; callers append their own discriminator (client IP, mode).
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the authform module.
package rate
