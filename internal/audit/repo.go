package audit

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Insert ignores an event whose id is already stored, so redelivery is harmless.
func (r *Repo) Insert(ctx context.Context, e *Event) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(e).Error
}

// ListByUser returns an account's events oldest first.
func (r *Repo) ListByUser(ctx context.Context, userID uint64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []Event
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
