package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-marketplace-chat/internal/config"
	"github.com/tbourn/go-marketplace-chat/internal/domain"
	"github.com/tbourn/go-marketplace-chat/internal/services"
)

// ----- Fakes -----

type fakeRooms struct {
	mu     sync.Mutex
	room   *services.RoomHandle
	err    error
	opened int
}

func (f *fakeRooms) Open(_ context.Context, id domain.Identity, storeID, buyerID string) (*services.RoomHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if storeID != f.room.StoreID || buyerID != f.room.BuyerID {
		return nil, services.ErrStoreNotFound
	}
	if !services.CanAccess(f.room, id) {
		return nil, services.ErrForbidden
	}
	f.opened++
	return f.room, nil
}

func (f *fakeRooms) Details(_ context.Context, id domain.Identity, roomID string) (*services.RoomHandle, error) {
	if roomID != f.room.RoomID {
		return nil, services.ErrRoomNotFound
	}
	if !services.CanAccess(f.room, id) {
		return nil, services.ErrForbidden
	}
	return f.room, nil
}

type fakeMessages struct {
	mu       sync.Mutex
	appended []domain.ChatMessage
	unread   int64
	pageErr  error
	lastPage struct {
		roomID, before string
		limit          int
	}
}

func (f *fakeMessages) Append(_ context.Context, roomID, senderID, text, attachmentURL string) (*domain.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := domain.ChatMessage{
		ID:         "m" + string(rune('a'+len(f.appended))),
		ChatRoomID: roomID,
		SenderID:   senderID,
		Message:    text,
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if attachmentURL != "" {
		m.AttachmentURL = &attachmentURL
	}
	f.appended = append(f.appended, m)
	return &m, nil
}

func (f *fakeMessages) Page(_ context.Context, roomID, before string, limit int) ([]domain.ChatMessage, bool, error) {
	f.lastPage.roomID, f.lastPage.before, f.lastPage.limit = roomID, before, limit
	if f.pageErr != nil {
		return nil, false, f.pageErr
	}
	return []domain.ChatMessage{{ID: "old1", ChatRoomID: roomID}, {ID: "old2", ChatRoomID: roomID}}, false, nil
}

func (f *fakeMessages) MarkRead(_ context.Context, roomID, readerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.unread
	f.unread = 0
	return n, nil
}

// ----- Helpers -----

var (
	buyer  = domain.Identity{UserID: "buyer-1", Role: domain.RoleBuyer}
	seller = domain.Identity{UserID: "seller-1", Role: domain.RoleSeller}
)

func testRoom() *services.RoomHandle {
	return &services.RoomHandle{
		RoomID:     "room-1",
		StoreID:    "store-1",
		StoreName:  "Sam's Shop",
		SellerID:   seller.UserID,
		SellerName: "Sam",
		BuyerID:    buyer.UserID,
		BuyerName:  "Bea",
	}
}

func testWS() config.WSConfig {
	return config.WSConfig{
		WriteWait:       time.Second,
		PongWait:        5 * time.Second,
		MaxMessageBytes: 8 << 10,
		SendBuffer:      16,
		EventRPS:        1000,
		EventBurst:      1000,
	}
}

// testClient builds a connectionless client; frames are read back from send.
func testClient(t *testing.T, id domain.Identity) *Client {
	t.Helper()
	return newClient(id.UserID+"-conn", nil, id, testWS(), zerolog.Nop())
}

type gotFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// next returns the next queued frame or fails.
func next(t *testing.T, c *Client) gotFrame {
	t.Helper()
	select {
	case b := <-c.send:
		var f gotFrame
		if err := json.Unmarshal(b, &f); err != nil {
			t.Fatalf("bad frame %s: %v", b, err)
		}
		return f
	default:
		t.Fatalf("no frame queued for %s", c.id)
	}
	return gotFrame{}
}

func expectNone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case b := <-c.send:
		t.Fatalf("unexpected frame for %s: %s", c.id, b)
	default:
	}
}

func expectError(t *testing.T, c *Client, want string) {
	t.Helper()
	f := next(t, c)
	if f.Event != EventError {
		t.Fatalf("want error event, got %s", f.Event)
	}
	var p ErrorPayload
	_ = json.Unmarshal(f.Data, &p)
	if want != "" && p.Message != want {
		t.Fatalf("error message = %q, want %q", p.Message, want)
	}
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

var errBoom = errors.New("db exploded")
