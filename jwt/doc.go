// Package jwt issues and verifies the signed session token handed to a client
// after a successful login. Ed25519 is the default; HS256 is available for
// single-process deployments.
package jwt
