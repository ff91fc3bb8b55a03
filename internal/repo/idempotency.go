// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the Idempotency
// model that deduplicates retried HTTP message sends.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-marketplace-chat/internal/domain"
)

// GetIdempotency returns a non-expired record or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, userID, roomID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(roomID) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("user_id = ? AND chat_room_id = ? AND idem_key = ? AND expires_at > ?", userID, roomID, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency inserts a record and returns ErrDuplicate on unique violation.
// Expired records for the same tuple are removed first so a key can be reused
// once its TTL has passed.
func CreateIdempotency(ctx context.Context, db *gorm.DB, userID, roomID, key, messageID string, ttl time.Duration) (*domain.Idempotency, error) {
	now := Now()
	if err := db.WithContext(ctx).
		Where("user_id = ? AND chat_room_id = ? AND idem_key = ? AND expires_at <= ?", userID, roomID, key, now).
		Delete(&domain.Idempotency{}).Error; err != nil {
		return nil, err
	}
	rec := &domain.Idempotency{
		ID:         uuid.NewString(),
		UserID:     userID,
		ChatRoomID: roomID,
		Key:        key,
		MessageID:  messageID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}
