// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read-only lookups into the user,
// profile, and store tables owned by the rest of the marketplace.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-marketplace-chat/internal/domain"
)

// GetStoreWithOwner fetches a store by id with its owner profile preloaded.
// Returns ErrNotFound when the store does not exist.
func GetStoreWithOwner(ctx context.Context, db *gorm.DB, storeID string) (*domain.Store, error) {
	var s domain.Store
	err := db.WithContext(ctx).
		Preload("Owner").
		Where("id = ?", storeID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetUserWithProfile fetches a user by id with the profile preloaded (nil
// when the user has none). Returns ErrNotFound when the user does not exist.
func GetUserWithProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Preload("Profile").
		Where("id = ?", userID).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindActiveStoreByOwnerUser returns the active store whose owner profile
// belongs to userID. Returns ErrNotFound when the user owns no active store.
func FindActiveStoreByOwnerUser(ctx context.Context, db *gorm.DB, userID string) (*domain.Store, error) {
	var s domain.Store
	err := db.WithContext(ctx).
		Preload("Owner").
		Select("stores.*").
		Joins("JOIN profiles ON profiles.id = stores.owner_id").
		Where("profiles.user_id = ? AND stores.store_status = ?", userID, domain.StoreActive).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}
