// Package directory is a Redis-backed account directory implementing both
// authform.EmailLookup and authform.Backend.
//
// Passwords are stored as Argon2id PHC strings and transparently rehashed on
// login when the configured cost changes. Failures use the same texts hosted
// auth backends return ("Invalid login credentials", "User already
// registered") so forms classify them without special casing.
//
// ResetPassword never reveals whether an account exists. When one does, a
// single-use token is stored and handed to a [Mailer]; ConfirmPasswordReset
// redeems it.
package directory
