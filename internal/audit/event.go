package audit

import (
	"time"

	"github.com/suPer8Hu/prompt-history/internal/common"
)

type EventType string

const (
	PromptCreated  EventType = "prompt.created"
	HistoryCleared EventType = "history.cleared"
	SessionRevoked EventType = "session.revoked"
)

// Event records a change to an account's history or session.
type Event struct {
	ID        string    `gorm:"primaryKey;size:26" json:"id"`
	Type      EventType `gorm:"type:varchar(32);index;not null" json:"type"`
	UserID    uint64    `gorm:"index;not null" json:"user_id"`
	MessageID *string   `gorm:"size:26" json:"message_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (Event) TableName() string { return "audit_events" }

func NewEvent(t EventType, userID uint64, messageID string) Event {
	e := Event{
		ID:        common.NewULID(),
		Type:      t,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if messageID != "" {
		e.MessageID = &messageID
	}
	return e
}
