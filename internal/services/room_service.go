// Package services – RoomService
//
// This file implements RoomService, which owns the mapping from a
// (store, buyer) pair to its single conversation room. It validates both
// parties, enforces the membership gate, and performs insert-or-fetch so that
// concurrent first contacts converge on one room.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-marketplace-chat/internal/domain"
	"github.com/tbourn/go-marketplace-chat/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	unknownStore = "Unknown Store"
	unknownBuyer = "Unknown Buyer"
	unknownUser  = "Unknown User"
)

// RoomRepo defines the repository contract required by RoomService.
type RoomRepo interface {
	// GetStoreWithOwner fetches a store with its owner profile.
	GetStoreWithOwner(ctx context.Context, db *gorm.DB, storeID string) (*domain.Store, error)

	// GetUserWithProfile fetches a user with its profile (may be nil).
	GetUserWithProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.User, error)

	// FindRoom returns the room for a (store, buyer) pair.
	FindRoom(ctx context.Context, db *gorm.DB, storeID, buyerID string) (*domain.ChatRoom, error)

	// CreateRoom inserts a room; repo.ErrDuplicate on a lost race.
	CreateRoom(ctx context.Context, db *gorm.DB, storeID, buyerID string) (*domain.ChatRoom, error)

	// GetRoom fetches a room by id.
	GetRoom(ctx context.Context, db *gorm.DB, id string) (*domain.ChatRoom, error)
}

// RoomHandle identifies a room together with both parties' display data.
type RoomHandle struct {
	RoomID     string
	StoreID    string
	StoreName  string
	SellerID   string // user id of the store owner
	SellerName string
	BuyerID    string
	BuyerName  string
}

// NameOf returns the display name of a party to the room.
func (h *RoomHandle) NameOf(userID string) string {
	switch userID {
	case h.BuyerID:
		return h.BuyerName
	case h.SellerID:
		return h.SellerName
	}
	return unknownUser
}

// CanAccess is the membership gate: a buyer may act on their own rooms, a
// seller on rooms of the store they own. Admins and everyone else are denied.
func CanAccess(room *RoomHandle, id domain.Identity) bool {
	if room == nil || id.UserID == "" {
		return false
	}
	switch id.Role {
	case domain.RoleBuyer:
		return id.UserID == room.BuyerID
	case domain.RoleSeller:
		return id.UserID == room.SellerID
	}
	return false
}

// RoomService resolves, creates, and describes conversation rooms.
type RoomService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the room repository used by this service.
	Repo RoomRepo
}

// NewRoomService constructs a RoomService.
func NewRoomService(db *gorm.DB, r RoomRepo) *RoomService {
	return &RoomService{DB: db, Repo: r}
}

// ResolveOrCreate returns the room for (storeID, buyerID), creating it on
// first contact. The store must exist and be active, the buyer must exist and
// be verified, and the buyer must not be the store's owner.
func (s *RoomService) ResolveOrCreate(ctx context.Context, storeID, buyerID string) (*RoomHandle, error) {
	tr := otel.Tracer("services/RoomService")
	ctx, span := tr.Start(ctx, "ResolveOrCreate",
		trace.WithAttributes(
			attribute.String("store.id", storeID),
			attribute.String("buyer.id", buyerID),
		),
	)
	defer span.End()

	h, err := s.parties(ctx, storeID, buyerID)
	if err != nil {
		return nil, err
	}
	if h.RoomID, err = s.ensureRoom(ctx, storeID, buyerID); err != nil {
		return nil, err
	}
	return h, nil
}

// Open is ResolveOrCreate behind the membership gate: the gate runs before
// any insert, so a caller who is not a party never causes a room to exist.
func (s *RoomService) Open(ctx context.Context, id domain.Identity, storeID, buyerID string) (*RoomHandle, error) {
	tr := otel.Tracer("services/RoomService")
	ctx, span := tr.Start(ctx, "Open",
		trace.WithAttributes(
			attribute.String("store.id", storeID),
			attribute.String("buyer.id", buyerID),
			attribute.String("user.id", id.UserID),
		),
	)
	defer span.End()

	h, err := s.parties(ctx, storeID, buyerID)
	if err != nil {
		return nil, err
	}
	if !CanAccess(h, id) {
		return nil, ErrForbidden
	}
	if h.RoomID, err = s.ensureRoom(ctx, storeID, buyerID); err != nil {
		return nil, err
	}
	return h, nil
}

// Details loads an existing room by id and applies the membership gate.
// Rooms of stores that are no longer active stay readable.
func (s *RoomService) Details(ctx context.Context, id domain.Identity, roomID string) (*RoomHandle, error) {
	tr := otel.Tracer("services/RoomService")
	ctx, span := tr.Start(ctx, "Details",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.String("user.id", id.UserID),
		),
	)
	defer span.End()

	h, _, err := s.load(ctx, id, roomID)
	return h, err
}

// ForSend is Details for callers about to append a message: the store must
// still be active, as it must be for Open.
func (s *RoomService) ForSend(ctx context.Context, id domain.Identity, roomID string) (*RoomHandle, error) {
	tr := otel.Tracer("services/RoomService")
	ctx, span := tr.Start(ctx, "ForSend",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.String("user.id", id.UserID),
		),
	)
	defer span.End()

	h, status, err := s.load(ctx, id, roomID)
	if err != nil {
		return nil, err
	}
	if status != domain.StoreActive {
		return nil, ErrStoreInactive
	}
	return h, nil
}

// load resolves a room by id behind the gate and reports its store's status.
func (s *RoomService) load(ctx context.Context, id domain.Identity, roomID string) (*RoomHandle, domain.StoreStatus, error) {
	room, err := s.Repo.GetRoom(ctx, s.DB, roomID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, "", ErrRoomNotFound
		}
		return nil, "", err
	}
	store, err := s.Repo.GetStoreWithOwner(ctx, s.DB, room.StoreID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, "", ErrStoreNotFound
		}
		return nil, "", err
	}
	h := &RoomHandle{
		RoomID:     room.ID,
		StoreID:    store.ID,
		StoreName:  orDefault(store.Name, unknownStore),
		SellerID:   store.Owner.UserID,
		SellerName: orDefault(store.Owner.FullName, unknownUser),
		BuyerID:    room.BuyerID,
		BuyerName:  unknownBuyer,
	}
	if !CanAccess(h, id) {
		return nil, "", ErrForbidden
	}
	buyer, err := s.Repo.GetUserWithProfile(ctx, s.DB, room.BuyerID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, "", err
	}
	if buyer != nil && buyer.Profile != nil {
		h.BuyerName = orDefault(buyer.Profile.FullName, unknownBuyer)
	}
	return h, store.Status, nil
}

// parties validates the store and buyer and returns a handle without RoomID.
func (s *RoomService) parties(ctx context.Context, storeID, buyerID string) (*RoomHandle, error) {
	if storeID == "" {
		return nil, ErrStoreNotFound
	}
	if buyerID == "" {
		return nil, ErrBuyerNotFound
	}
	store, err := s.Repo.GetStoreWithOwner(ctx, s.DB, storeID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrStoreNotFound
		}
		return nil, err
	}
	if store.Status != domain.StoreActive {
		return nil, ErrStoreInactive
	}
	buyer, err := s.Repo.GetUserWithProfile(ctx, s.DB, buyerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrBuyerNotFound
		}
		return nil, err
	}
	if !buyer.Verified {
		return nil, ErrBuyerNotFound
	}
	if buyer.ID == store.Owner.UserID {
		return nil, ErrSelfChat
	}
	h := &RoomHandle{
		StoreID:    store.ID,
		StoreName:  orDefault(store.Name, unknownStore),
		SellerID:   store.Owner.UserID,
		SellerName: orDefault(store.Owner.FullName, unknownUser),
		BuyerID:    buyer.ID,
		BuyerName:  unknownBuyer,
	}
	if buyer.Profile != nil {
		h.BuyerName = orDefault(buyer.Profile.FullName, unknownBuyer)
	}
	return h, nil
}

// ensureRoom performs insert-or-fetch in one transaction. The insert runs in
// a savepoint so that a unique violation leaves the outer transaction usable
// for the re-read. Databases whose snapshot hides the winner's row from that
// re-read (MySQL repeatable read) get one more read after commit.
func (s *RoomService) ensureRoom(ctx context.Context, storeID, buyerID string) (string, error) {
	var roomID string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.Repo.FindRoom(ctx, tx, storeID, buyerID)
		if err == nil {
			roomID = r.ID
			return nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		err = tx.Transaction(func(sp *gorm.DB) error {
			created, cerr := s.Repo.CreateRoom(ctx, sp, storeID, buyerID)
			if cerr != nil {
				return cerr
			}
			roomID = created.ID
			return nil
		})
		if !errors.Is(err, repo.ErrDuplicate) {
			return err
		}

		r, err = s.Repo.FindRoom(ctx, tx, storeID, buyerID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrRoomConflict
		}
		if err != nil {
			return err
		}
		roomID = r.ID
		return nil
	})
	if errors.Is(err, ErrRoomConflict) {
		r, ferr := s.Repo.FindRoom(ctx, s.DB, storeID, buyerID)
		if ferr != nil {
			return "", ErrRoomConflict
		}
		return r.ID, nil
	}
	if err != nil {
		return "", err
	}
	return roomID, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
