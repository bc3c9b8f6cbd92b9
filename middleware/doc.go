// Package middleware guards HTTP routes with the session token issued after a
// successful login.
//
// [RequireSession] verifies the token only. [RequireSessionStrict] also asks
// the account directory whether the email still exists, so a deleted account
// loses access before its token expires.
//
// The token is read from the Authorization bearer header first and then from
// the [SessionCookie] cookie. Verified claims are placed in the request
// context; read them back with [SessionFromContext].
package middleware
