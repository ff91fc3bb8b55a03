// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ChatMessage model, including the batched queries behind the inbox.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-marketplace-chat/internal/domain"
)

// MessageCursor is the (created_at, id) key of a message. Pages are cut
// strictly before it in (created_at, id) order.
type MessageCursor struct {
	CreatedAt time.Time
	ID        string
}

// CreateMessage inserts a new message row. IDs are UUIDv7 so that messages
// sharing a timestamp still sort in insertion order.
func CreateMessage(ctx context.Context, db *gorm.DB, roomID, senderID, text string, attachmentURL *string) (*domain.ChatMessage, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	now := Now()
	m := &domain.ChatMessage{
		ID:            id.String(),
		ChatRoomID:    roomID,
		SenderID:      senderID,
		Message:       text,
		AttachmentURL: attachmentURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetMessage fetches a message by ID or returns ErrNotFound.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessagesBefore returns up to limit messages of a room, newest first.
// When before is non-nil only messages strictly older than the cursor key are
// returned.
func ListMessagesBefore(ctx context.Context, db *gorm.DB, roomID string, before *MessageCursor, limit int) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	q := db.WithContext(ctx).Where("chat_room_id = ?", roomID)
	if before != nil {
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))",
			before.CreatedAt, before.CreatedAt, before.ID)
	}
	err := q.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkRoomRead flags every unread message in the room that readerID did not
// send as read, in a single statement, and returns how many rows changed.
func MarkRoomRead(ctx context.Context, db *gorm.DB, roomID, readerID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("chat_room_id = ? AND sender_id <> ? AND is_read = ?", roomID, readerID, false).
		UpdateColumns(map[string]any{"is_read": true, "updated_at": Now()})
	return res.RowsAffected, res.Error
}

// UnreadCountsByRoom returns, for each of roomIDs that has any, the number of
// unread messages not sent by readerID. It issues one grouped query.
func UnreadCountsByRoom(ctx context.Context, db *gorm.DB, roomIDs []string, readerID string) (map[string]int64, error) {
	out := make(map[string]int64, len(roomIDs))
	if len(roomIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ChatRoomID string
		Unread     int64
	}
	err := db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Select("chat_room_id, COUNT(*) AS unread").
		Where("chat_room_id IN ? AND is_read = ? AND sender_id <> ?", roomIDs, false, readerID).
		Group("chat_room_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ChatRoomID] = r.Unread
	}
	return out, nil
}

// latestPerRoomSQL ranks messages per room and keeps the newest. Only ids are
// selected so that timestamps are read back through the typed model query
// below rather than as SQLite expression results.
const latestPerRoomSQL = `
SELECT id FROM (
	SELECT id, ROW_NUMBER() OVER (
		PARTITION BY chat_room_id ORDER BY created_at DESC, id DESC
	) AS rn
	FROM chat_messages
	WHERE chat_room_id IN ?
) ranked
WHERE rn = 1`

// LatestMessagesByRoom returns the newest message of each room in roomIDs,
// keyed by room id. Rooms without messages are absent. It runs a fixed number
// of queries regardless of len(roomIDs).
func LatestMessagesByRoom(ctx context.Context, db *gorm.DB, roomIDs []string) (map[string]domain.ChatMessage, error) {
	out := make(map[string]domain.ChatMessage, len(roomIDs))
	if len(roomIDs) == 0 {
		return out, nil
	}
	var ids []string
	if err := db.WithContext(ctx).Raw(latestPerRoomSQL, roomIDs).Scan(&ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}
	var msgs []domain.ChatMessage
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&msgs).Error; err != nil {
		return nil, err
	}
	for _, m := range msgs {
		out[m.ChatRoomID] = m
	}
	return out, nil
}
