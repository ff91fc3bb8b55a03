// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) on the inbox endpoint.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-marketplace-chat/internal/domain"
)

// RoomsStats returns the number of rooms matching f and the greatest
// updated_at among them. Because appending a message advances updated_at,
// the pair changes whenever any conversation in the inbox changes. When no
// room matches, count is 0 and maxUpdatedAt is nil.
func RoomsStats(ctx context.Context, db *gorm.DB, f RoomFilter) (count int64, maxUpdatedAt *time.Time, err error) {
	q := f.apply(db.WithContext(ctx).Model(&domain.ChatRoom{}))

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Order+limit instead of MAX(): SQLite returns MAX() over DATETIME as TEXT.
	var row struct {
		UpdatedAt time.Time
	}
	q = f.apply(db.WithContext(ctx).Model(&domain.ChatRoom{}))
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// UnreadTotal returns the number of unread messages addressed to readerID
// across the rooms matching f. Read receipts do not move updated_at, so the
// inbox ETag folds this in as well.
func UnreadTotal(ctx context.Context, db *gorm.DB, f RoomFilter, readerID string) (int64, error) {
	var n int64
	sub := f.apply(db.WithContext(ctx).Model(&domain.ChatRoom{})).Select("chat_rooms.id")
	err := db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("chat_room_id IN (?) AND is_read = ? AND sender_id <> ?", sub, false, readerID).
		Count(&n).Error
	return n, err
}
