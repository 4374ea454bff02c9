package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is an anonymous note stored in exactly one account's inbox.
type Message struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID string    `gorm:"type:uuid;not null;index:idx_messages_account_created,priority:1" json:"-"`
	Content   string    `gorm:"size:300;not null" json:"content"`
	CreatedAt time.Time `gorm:"not null;index:idx_messages_account_created,priority:2" json:"created_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
