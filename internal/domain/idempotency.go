package domain

import "time"

// Idempotency records the message produced by an HTTP send carrying an
// Idempotency-Key, keyed by (user_id, chat_room_id, key). A retry with the
// same key replays the stored message instead of appending a duplicate.
type Idempotency struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	UserID     string    `gorm:"type:varchar(36);not null;uniqueIndex:ux_idem_user_room_key,priority:1"`
	ChatRoomID string    `gorm:"type:varchar(36);not null;uniqueIndex:ux_idem_user_room_key,priority:2"`
	Key        string    `gorm:"column:idem_key;type:varchar(200);not null;uniqueIndex:ux_idem_user_room_key,priority:3"`
	MessageID  string    `gorm:"type:varchar(36);not null"`
	CreatedAt  time.Time `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency_keys" }
