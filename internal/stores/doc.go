// Package stores persists the reference directory's accounts and password
// reset records in Redis.
//
// Reset records are versioned, binary-encoded and stored with a TTL. Consume
// runs in a WATCH/MULTI transaction with retry on contention; records are
// single-use and removed after too many wrong secrets. Secrets are compared in
// constant time and never stored in plaintext.
package stores
