package history

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListMessages returns the account's messages oldest first. ULID ids sort in
// creation order, so id order is chronological order.
func (r *Repo) ListMessages(ctx context.Context, userID uint64) ([]Message, error) {
	msgs := make([]Message, 0)
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// DeleteMessages removes every message owned by userID and nothing else.
func (r *Repo) DeleteMessages(ctx context.Context, userID uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&Message{})
	return res.RowsAffected, res.Error
}
