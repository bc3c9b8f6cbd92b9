package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrAccountExists           = errors.New("account already exists")
	ErrAccountNotFound         = errors.New("account not found")
	ErrAccountRedisUnavailable = errors.New("account redis unavailable")
)

const (
	fieldPasswordHash = "hash"
	fieldName         = "name"
	fieldCreatedAt    = "created_at"
)

// Account is a registered email with its PHC password hash.
type Account struct {
	Email        string
	PasswordHash string
	Name         string
	CreatedAt    time.Time
}

// AccountStore keeps one Redis hash per account under prefix:email.
type AccountStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewAccountStore(redisClient redis.UniversalClient, prefix string) *AccountStore {
	if prefix == "" {
		prefix = "afa"
	}
	return &AccountStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *AccountStore) key(email string) string {
	return s.prefix + ":" + email
}

// Exists reports whether email has an account.
func (s *AccountStore) Exists(ctx context.Context, email string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(email)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrAccountRedisUnavailable, err)
	}
	return n > 0, nil
}

// Create stores acct unless its email is already taken.
func (s *AccountStore) Create(ctx context.Context, acct *Account) error {
	const maxRetries = 4
	key := s.key(acct.Email)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return ErrAccountExists
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key,
					fieldPasswordHash, acct.PasswordHash,
					fieldName, acct.Name,
					fieldCreatedAt, strconv.FormatInt(acct.CreatedAt.Unix(), 10),
				)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrAccountExists) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrAccountRedisUnavailable, err)
		}
		return nil
	}

	return ErrAccountExists
}

// Get loads the account for email.
func (s *AccountStore) Get(ctx context.Context, email string) (*Account, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountRedisUnavailable, err)
	}
	hash, ok := fields[fieldPasswordHash]
	if !ok {
		return nil, ErrAccountNotFound
	}

	acct := &Account{
		Email:        email,
		PasswordHash: hash,
		Name:         fields[fieldName],
	}
	if sec, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64); err == nil {
		acct.CreatedAt = time.Unix(sec, 0)
	}
	return acct, nil
}

// SetPasswordHash replaces the stored hash of an existing account.
func (s *AccountStore) SetPasswordHash(ctx context.Context, email, hash string) error {
	const maxRetries = 4
	key := s.key(email)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrAccountNotFound
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, fieldPasswordHash, hash)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrAccountRedisUnavailable, err)
		}
		return nil
	}

	return ErrAccountRedisUnavailable
}

// Delete removes the account for email. Deleting a missing account is not an error.
func (s *AccountStore) Delete(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrAccountRedisUnavailable, err)
	}
	return nil
}
