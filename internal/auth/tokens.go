package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/suPer8Hu/prompt-history/internal/common"
)

// Pair is one login/refresh event's worth of credentials.
type Pair struct {
	Access     string
	Refresh    string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenService issues, rotates and revokes credential pairs.
//
// Concurrent refreshes presenting the same credential are not serialised:
// both can pass the match check before either rotation is written, and only
// the last write survives in the store.
type TokenService struct {
	store SessionStore
	cfg   TokenConfig
}

func NewTokenService(store SessionStore, cfg TokenConfig) *TokenService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenService{store: store, cfg: cfg}
}

// IssuePair signs both credentials from the same identity and stores the
// long-lived one, replacing whatever was stored before.
func (s *TokenService) IssuePair(ctx context.Context, id Identity) (Pair, error) {
	access, err := Sign(id, s.cfg.AccessSecret, s.cfg.AccessTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := Sign(id, s.cfg.RefreshSecret, s.cfg.RefreshTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	if err := s.store.Set(ctx, id.UserID, refresh); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Pair{}, common.Unauthenticated()
		}
		return Pair{}, common.Storage(err)
	}
	return Pair{
		Access:     access,
		Refresh:    refresh,
		AccessTTL:  s.cfg.AccessTTL,
		RefreshTTL: s.cfg.RefreshTTL,
	}, nil
}

// Refresh exchanges a long-lived credential for a new pair. The presented
// value must byte-equal the stored one; anything else is unauthenticated.
func (s *TokenService) Refresh(ctx context.Context, refresh string) (Identity, Pair, error) {
	if refresh == "" {
		return Identity{}, Pair{}, common.Unauthenticated()
	}
	claims, err := Verify(refresh, s.cfg.RefreshSecret)
	if err != nil {
		return Identity{}, Pair{}, common.Unauthenticated()
	}

	stored, err := s.store.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Identity{}, Pair{}, common.Unauthenticated()
		}
		return Identity{}, Pair{}, common.Storage(err)
	}
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(refresh)) != 1 {
		return Identity{}, Pair{}, common.Unauthenticated()
	}

	id := claims.Identity()
	pair, err := s.IssuePair(ctx, id)
	if err != nil {
		return Identity{}, Pair{}, err
	}
	return id, pair, nil
}

// Revoke drops the stored long-lived credential for userID.
func (s *TokenService) Revoke(ctx context.Context, userID uint64) error {
	if err := s.store.Clear(ctx, userID); err != nil {
		return common.Storage(err)
	}
	return nil
}

// Logout never fails. It revokes the account named by refresh when that
// credential verifies and reports which account, if any, was revoked.
func (s *TokenService) Logout(ctx context.Context, refresh string) (uint64, bool) {
	if refresh == "" {
		return 0, false
	}
	claims, err := Verify(refresh, s.cfg.RefreshSecret)
	if err != nil {
		return 0, false
	}
	if err := s.Revoke(ctx, claims.UserID); err != nil {
		log.Printf("[auth] logout revoke failed uid=%d err=%v", claims.UserID, err)
		return 0, false
	}
	return claims.UserID, true
}

// VerifyAccess validates a short-lived credential.
func (s *TokenService) VerifyAccess(token string) (Identity, error) {
	claims, err := Verify(token, s.cfg.AccessSecret)
	if err != nil {
		return Identity{}, err
	}
	return claims.Identity(), nil
}
