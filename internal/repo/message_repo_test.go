package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-marketplace-chat/internal/domain"
)

type roomFixture struct {
	db     *gorm.DB
	seller *domain.User
	buyer  *domain.User
	store  *domain.Store
	room   *domain.ChatRoom
}

func newRoomFixture(t *testing.T) roomFixture {
	t.Helper()
	db := newRepoDB(t)
	seller := seedUser(t, db, "Sam Seller", domain.RoleSeller, true)
	buyer := seedUser(t, db, "Bea Buyer", domain.RoleBuyer, true)
	store := seedStore(t, db, seller, "Sam's", domain.StoreActive)
	room, err := CreateRoom(context.Background(), db, store.ID, buyer.ID)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return roomFixture{db: db, seller: seller, buyer: buyer, store: store, room: room}
}

func TestCreateMessage_PersistsAndOrdersIDs(t *testing.T) {
	fx := newRoomFixture(t)
	ctx := context.Background()

	url := "https://cdn.example.com/x.png"
	m1, err := CreateMessage(ctx, fx.db, fx.room.ID, fx.buyer.ID, "hello", nil)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	m2, err := CreateMessage(ctx, fx.db, fx.room.ID, fx.seller.ID, "", &url)
	if err != nil {
		t.Fatalf("CreateMessage attachment: %v", err)
	}
	if m1.IsRead || m1.CreatedAt.IsZero() || m1.ChatRoomID != fx.room.ID {
		t.Fatalf("unexpected fields: %+v", m1)
	}
	if !(m1.ID < m2.ID) {
		t.Fatalf("ids should be time ordered: %s !< %s", m1.ID, m2.ID)
	}

	got, err := GetMessage(ctx, fx.db, m2.ID)
	if err != nil || got.AttachmentURL == nil || *got.AttachmentURL != url || got.Message != "" {
		t.Fatalf("GetMessage = %+v, %v", got, err)
	}
	if _, err := GetMessage(ctx, fx.db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListMessagesBefore_NewestFirstAndCursor(t *testing.T) {
	fx := newRoomFixture(t)
	ctx := context.Background()

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	var seeded []*domain.ChatMessage
	for i := 0; i < 5; i++ {
		seeded = append(seeded, seedMessage(t, fx.db, fx.room.ID, fx.buyer.ID, "m", base.Add(time.Duration(i)*time.Second)))
	}

	latest, err := ListMessagesBefore(ctx, fx.db, fx.room.ID, nil, 2)
	if err != nil {
		t.Fatalf("ListMessagesBefore: %v", err)
	}
	if len(latest) != 2 || latest[0].ID != seeded[4].ID || latest[1].ID != seeded[3].ID {
		t.Fatalf("unexpected newest page: %+v", latest)
	}

	cur := &MessageCursor{CreatedAt: seeded[3].CreatedAt, ID: seeded[3].ID}
	older, err := ListMessagesBefore(ctx, fx.db, fx.room.ID, cur, 10)
	if err != nil {
		t.Fatalf("ListMessagesBefore cursor: %v", err)
	}
	if len(older) != 3 || older[0].ID != seeded[2].ID || older[2].ID != seeded[0].ID {
		t.Fatalf("unexpected older page: %+v", older)
	}
}

func TestListMessagesBefore_TiesOnTimestampAreNotSkipped(t *testing.T) {
	fx := newRoomFixture(t)
	ctx := context.Background()

	at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b", "c"} {
		m := &domain.ChatMessage{ID: id, ChatRoomID: fx.room.ID, SenderID: fx.buyer.ID, Message: id, CreatedAt: at, UpdatedAt: at}
		if err := fx.db.Create(m).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	first, err := ListMessagesBefore(ctx, fx.db, fx.room.ID, nil, 2)
	if err != nil || len(first) != 2 || first[0].ID != "c" || first[1].ID != "b" {
		t.Fatalf("first page = %+v, %v", first, err)
	}
	next, err := ListMessagesBefore(ctx, fx.db, fx.room.ID, &MessageCursor{CreatedAt: at, ID: "b"}, 2)
	if err != nil || len(next) != 1 || next[0].ID != "a" {
		t.Fatalf("second page = %+v, %v", next, err)
	}
}

func TestMarkRoomRead_OnlyOthersAndIdempotent(t *testing.T) {
	fx := newRoomFixture(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	seedMessage(t, fx.db, fx.room.ID, fx.seller.ID, "s1", base)
	seedMessage(t, fx.db, fx.room.ID, fx.seller.ID, "s2", base.Add(time.Second))
	seedMessage(t, fx.db, fx.room.ID, fx.buyer.ID, "b1", base.Add(2*time.Second))

	n, err := MarkRoomRead(ctx, fx.db, fx.room.ID, fx.buyer.ID)
	if err != nil || n != 2 {
		t.Fatalf("MarkRoomRead = %d, %v; want 2", n, err)
	}
	n, err = MarkRoomRead(ctx, fx.db, fx.room.ID, fx.buyer.ID)
	if err != nil || n != 0 {
		t.Fatalf("second MarkRoomRead = %d, %v; want 0", n, err)
	}

	var ownUnread int64
	fx.db.Model(&domain.ChatMessage{}).Where("sender_id = ? AND is_read = ?", fx.buyer.ID, false).Count(&ownUnread)
	if ownUnread != 1 {
		t.Fatalf("reader's own message must stay unread, got %d unread", ownUnread)
	}
}

func TestUnreadCountsByRoom_GroupsAndExcludesReader(t *testing.T) {
	fx := newRoomFixture(t)
	ctx := context.Background()
	buyer2 := seedUser(t, fx.db, "Second Buyer", domain.RoleBuyer, true)
	room2, _ := CreateRoom(ctx, fx.db, fx.store.ID, buyer2.ID)
	empty := seedUser(t, fx.db, "Quiet Buyer", domain.RoleBuyer, true)
	room3, _ := CreateRoom(ctx, fx.db, fx.store.ID, empty.ID)

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	seedMessage(t, fx.db, fx.room.ID, fx.buyer.ID, "1", base)
	seedMessage(t, fx.db, fx.room.ID, fx.buyer.ID, "2", base.Add(time.Second))
	seedMessage(t, fx.db, fx.room.ID, fx.seller.ID, "mine", base.Add(2*time.Second))
	seedMessage(t, fx.db, room2.ID, buyer2.ID, "3", base)

	counts, err := UnreadCountsByRoom(ctx, fx.db, []string{fx.room.ID, room2.ID, room3.ID}, fx.seller.ID)
	if err != nil {
		t.Fatalf("UnreadCountsByRoom: %v", err)
	}
	if counts[fx.room.ID] != 2 || counts[room2.ID] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	if _, ok := counts[room3.ID]; ok {
		t.Fatalf("room without messages should be absent: %v", counts)
	}

	none, err := UnreadCountsByRoom(ctx, fx.db, nil, fx.seller.ID)
	if err != nil || len(none) != 0 {
		t.Fatalf("empty input = %v, %v", none, err)
	}
}

func TestLatestMessagesByRoom_PicksNewestPerRoom(t *testing.T) {
	fx := newRoomFixture(t)
	ctx := context.Background()
	buyer2 := seedUser(t, fx.db, "Second Buyer", domain.RoleBuyer, true)
	room2, _ := CreateRoom(ctx, fx.db, fx.store.ID, buyer2.ID)
	quiet := seedUser(t, fx.db, "Quiet Buyer", domain.RoleBuyer, true)
	room3, _ := CreateRoom(ctx, fx.db, fx.store.ID, quiet.ID)

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	seedMessage(t, fx.db, fx.room.ID, fx.buyer.ID, "old", base)
	newest := seedMessage(t, fx.db, fx.room.ID, fx.seller.ID, "new", base.Add(time.Minute))
	only := seedMessage(t, fx.db, room2.ID, buyer2.ID, "only", base.Add(time.Second))

	latest, err := LatestMessagesByRoom(ctx, fx.db, []string{fx.room.ID, room2.ID, room3.ID})
	if err != nil {
		t.Fatalf("LatestMessagesByRoom: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 rooms with messages, got %d: %+v", len(latest), latest)
	}
	if got := latest[fx.room.ID]; got.ID != newest.ID || got.Message != "new" || !got.CreatedAt.Equal(newest.CreatedAt) {
		t.Fatalf("room1 latest = %+v", got)
	}
	if got := latest[room2.ID]; got.ID != only.ID {
		t.Fatalf("room2 latest = %+v", got)
	}
}
