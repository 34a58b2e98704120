package auth

import (
	"context"
	"errors"

	"github.com/suPer8Hu/prompt-history/internal/models"
	"gorm.io/gorm"
)

var ErrAccountNotFound = errors.New("account not found")

// SessionStore holds the one long-lived credential an account may use.
// Set overwrites, which is what invalidates the previous credential.
type SessionStore interface {
	Get(ctx context.Context, userID uint64) (string, error)
	Set(ctx context.Context, userID uint64, value string) error
	Clear(ctx context.Context, userID uint64) error
}

// GormSessionStore keeps the credential on the users row.
type GormSessionStore struct {
	db *gorm.DB
}

func NewGormSessionStore(db *gorm.DB) *GormSessionStore {
	return &GormSessionStore{db: db}
}

// Get returns "" when the account exists but holds no credential.
func (s *GormSessionStore) Get(ctx context.Context, userID uint64) (string, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Select("id", "refresh_token").
		First(&u, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAccountNotFound
		}
		return "", err
	}
	return u.RefreshToken, nil
}

func (s *GormSessionStore) Set(ctx context.Context, userID uint64, value string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("refresh_token", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Clear is idempotent, including for unknown accounts.
func (s *GormSessionStore) Clear(ctx context.Context, userID uint64) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("refresh_token", "").Error
}
