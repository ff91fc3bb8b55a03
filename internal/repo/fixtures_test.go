package repo

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-marketplace-chat/internal/domain"
)

// newRepoDB opens a migrated SQLite database in a temp dir via OpenSQLite, so
// tests run against the same PRAGMAs and pool settings as production.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
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

// seedMessage inserts a message with an explicit timestamp so ordering is deterministic.
func seedMessage(t *testing.T, db *gorm.DB, roomID, senderID, text string, at time.Time) *domain.ChatMessage {
	t.Helper()
	m := &domain.ChatMessage{
		ID:         uuid.NewString(),
		ChatRoomID: roomID,
		SenderID:   senderID,
		Message:    text,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return m
}
