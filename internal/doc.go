// Package internal holds token helpers shared by the reference directory.
package internal
