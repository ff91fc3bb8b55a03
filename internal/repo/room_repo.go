// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ChatRoom
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - Missing rows yield gorm.ErrRecordNotFound (exported as ErrNotFound).
//   - A second room for the same (store, buyer) pair yields ErrDuplicate.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-marketplace-chat/internal/domain"
)

// RoomFilter scopes room listings to one side of the conversation. Exactly
// one of the fields is expected to be set.
type RoomFilter struct {
	StoreID string
	BuyerID string
}

func (f RoomFilter) apply(q *gorm.DB) *gorm.DB {
	if f.StoreID != "" {
		q = q.Where("chat_rooms.store_id = ?", f.StoreID)
	}
	if f.BuyerID != "" {
		q = q.Where("chat_rooms.buyer_id = ?", f.BuyerID)
	}
	return q
}

// FindRoom returns the room for (storeID, buyerID) or ErrNotFound.
func FindRoom(ctx context.Context, db *gorm.DB, storeID, buyerID string) (*domain.ChatRoom, error) {
	var r domain.ChatRoom
	err := db.WithContext(ctx).
		Where("store_id = ? AND buyer_id = ?", storeID, buyerID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRoom inserts a room for (storeID, buyerID). When the unique
// (store_id, buyer_id) index rejects the row because a concurrent caller won
// the race, ErrDuplicate is returned and the caller should re-read.
func CreateRoom(ctx context.Context, db *gorm.DB, storeID, buyerID string) (*domain.ChatRoom, error) {
	now := Now()
	r := &domain.ChatRoom{
		ID:        uuid.NewString(),
		StoreID:   storeID,
		BuyerID:   buyerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return r, nil
}

// GetRoom fetches a room by id or returns ErrNotFound.
func GetRoom(ctx context.Context, db *gorm.DB, id string) (*domain.ChatRoom, error) {
	var r domain.ChatRoom
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// TouchRoom advances the room's updated_at to at. It returns ErrNotFound
// when the room does not exist.
func TouchRoom(ctx context.Context, db *gorm.DB, roomID string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.ChatRoom{}).
		Where("id = ?", roomID).
		UpdateColumn("updated_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountRooms returns the number of rooms matching f.
func CountRooms(ctx context.Context, db *gorm.DB, f RoomFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.ChatRoom{})).Count(&total).Error
	return total, err
}

// ListRoomsPage returns one page of rooms matching f, most recently active
// first, with the store and the buyer's profile preloaded.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*limit).
func ListRoomsPage(ctx context.Context, db *gorm.DB, f RoomFilter, offset, limit int) ([]domain.ChatRoom, error) {
	var out []domain.ChatRoom
	err := f.apply(db.WithContext(ctx)).
		Preload("Store").
		Preload("Store.Owner").
		Preload("Buyer").
		Preload("Buyer.Profile").
		Order("chat_rooms.updated_at desc").
		Order("chat_rooms.id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Now returns the current UTC time truncated to microseconds, the finest
// precision every supported database round-trips exactly.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
