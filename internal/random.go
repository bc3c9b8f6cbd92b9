package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

const (
	resetSecretSize   = 32
	resetTokenRawSize = 16 + resetSecretSize
)

// ErrMalformedResetToken is returned by DecodeResetToken for input that is not
// a base64url reset ID followed by its secret.
var ErrMalformedResetToken = errors.New("malformed reset token")

// NewResetToken returns a fresh reset ID, the opaque token handed to the user,
// and the secret hash to persist. The token embeds the ID so a single string
// both locates and proves the reset.
func NewResetToken() (resetID string, token string, secretHash [32]byte, err error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", "", secretHash, err
	}

	var secret [resetSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", "", secretHash, err
	}

	var raw [resetTokenRawSize]byte
	copy(raw[:16], id[:])
	copy(raw[16:], secret[:])

	return id.String(), base64.RawURLEncoding.EncodeToString(raw[:]), sha256.Sum256(secret[:]), nil
}

// DecodeResetToken splits token into its reset ID and the hash of its secret.
func DecodeResetToken(token string) (string, [32]byte, error) {
	var secretHash [32]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != resetTokenRawSize {
		return "", secretHash, ErrMalformedResetToken
	}

	id, err := uuid.FromBytes(raw[:16])
	if err != nil {
		return "", secretHash, ErrMalformedResetToken
	}

	return id.String(), sha256.Sum256(raw[16:]), nil
}
