package history

import "time"

// Message is one prompt/response exchange. Rows are never updated; they are
// only created by Submit and removed in bulk by Clear.
type Message struct {
	ID        string    `gorm:"primaryKey;size:26" json:"id"` // ULID
	UserID    uint64    `gorm:"index;not null" json:"-"`
	Prompt    string    `gorm:"type:text;not null" json:"prompt"`
	Response  string    `gorm:"type:text;not null" json:"response"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Message) TableName() string { return "messages" }
