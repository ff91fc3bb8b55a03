package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-marketplace-chat/internal/domain"
	"github.com/tbourn/go-marketplace-chat/internal/repo"
)

// ----- Shared fixtures -----

// repoFuncs adapts the repo package functions to RoomRepo.
type repoFuncs struct{}

func (repoFuncs) GetStoreWithOwner(ctx context.Context, db *gorm.DB, id string) (*domain.Store, error) {
	return repo.GetStoreWithOwner(ctx, db, id)
}
func (repoFuncs) GetUserWithProfile(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return repo.GetUserWithProfile(ctx, db, id)
}
func (repoFuncs) FindRoom(ctx context.Context, db *gorm.DB, storeID, buyerID string) (*domain.ChatRoom, error) {
	return repo.FindRoom(ctx, db, storeID, buyerID)
}
func (repoFuncs) CreateRoom(ctx context.Context, db *gorm.DB, storeID, buyerID string) (*domain.ChatRoom, error) {
	return repo.CreateRoom(ctx, db, storeID, buyerID)
}
func (repoFuncs) GetRoom(ctx context.Context, db *gorm.DB, id string) (*domain.ChatRoom, error) {
	return repo.GetRoom(ctx, db, id)
}

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), fmt.Sprintf("svc_%d.db", time.Now().UnixNano()))
	db, err := repo.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string, role domain.Role, verified bool) *domain.User {
	t.Helper()
	u := &domain.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", Verified: verified}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	p := &domain.Profile{ID: uuid.NewString(), UserID: u.ID, FullName: name, Role: role}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	u.Profile = p
	return u
}

func seedStore(t *testing.T, db *gorm.DB, owner *domain.User, name string, status domain.StoreStatus) *domain.Store {
	t.Helper()
	s := &domain.Store{ID: uuid.NewString(), OwnerID: owner.Profile.ID, Name: name, Status: status}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return s
}

// world is a store with its seller, one verified buyer, and services over a
// fresh database.
type world struct {
	db     *gorm.DB
	seller *domain.User
	buyer  *domain.User
	store  *domain.Store
	rooms  *RoomService
	msgs   *MessageService
}

func newWorld(t *testing.T) *world {
	t.Helper()
	db := newServiceDB(t)
	seller := seedUser(t, db, "Sam Seller", domain.RoleSeller, true)
	buyer := seedUser(t, db, "Bea Buyer", domain.RoleBuyer, true)
	store := seedStore(t, db, seller, "Sam's Shop", domain.StoreActive)
	return &world{
		db:     db,
		seller: seller,
		buyer:  buyer,
		store:  store,
		rooms:  NewRoomService(db, repoFuncs{}),
		msgs:   &MessageService{DB: db, MaxMessageRunes: 2000, MaxAttachmentLen: 1000, IdempotencyTTL: time.Hour},
	}
}

func (w *world) buyerID() domain.Identity {
	return domain.Identity{UserID: w.buyer.ID, Role: domain.RoleBuyer}
}

func (w *world) sellerID() domain.Identity {
	return domain.Identity{UserID: w.seller.ID, Role: domain.RoleSeller}
}

func (w *world) room(t *testing.T) *RoomHandle {
	t.Helper()
	h, err := w.rooms.ResolveOrCreate(context.Background(), w.store.ID, w.buyer.ID)
	if err != nil {
		t.Fatalf("ResolveOrCreate: %v", err)
	}
	return h
}

func wantKind(t *testing.T, err error, k Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("want %s error, got nil", k)
	}
	if got := KindOf(err); got != k {
		t.Fatalf("want kind %s, got %s (%v)", k, got, err)
	}
}
