package redisstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
}

func NewStore(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.rdb.Ping(cctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// LoginThrottle counts failed logins per email in a fixed window that starts
// at the first failure.
type LoginThrottle struct {
	store  *Store
	max    int64
	window time.Duration
}

func (s *Store) LoginThrottle(max int, window time.Duration) *LoginThrottle {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &LoginThrottle{store: s, max: int64(max), window: window}
}

func loginKey(email string) string {
	return "login:fail:" + strings.ToLower(strings.TrimSpace(email))
}

func (t *LoginThrottle) Blocked(ctx context.Context, email string) (bool, error) {
	n, err := t.store.rdb.Get(ctx, loginKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return n >= t.max, nil
}

// RecordFailure counts one failed login. The window is set when the key is
// created, in the same MULTI as the increment, so a counter never outlives it.
func (t *LoginThrottle) RecordFailure(ctx context.Context, email string) error {
	key := loginKey(email)
	_, err := t.store.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, t.window)
		pipe.Incr(ctx, key)
		return nil
	})
	return err
}

func (t *LoginThrottle) Reset(ctx context.Context, email string) error {
	return t.store.rdb.Del(ctx, loginKey(email)).Err()
}
