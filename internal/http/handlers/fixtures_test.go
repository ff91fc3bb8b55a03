package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-marketplace-chat/internal/domain"
	"github.com/tbourn/go-marketplace-chat/internal/http/middleware"
	"github.com/tbourn/go-marketplace-chat/internal/realtime"
	"github.com/tbourn/go-marketplace-chat/internal/repo"
	"github.com/tbourn/go-marketplace-chat/internal/services"
)

// ---------- test DB + repo shim ----------

type testRoomRepo struct{}

func (testRoomRepo) GetStoreWithOwner(ctx context.Context, db *gorm.DB, id string) (*domain.Store, error) {
	return repo.GetStoreWithOwner(ctx, db, id)
}
func (testRoomRepo) GetUserWithProfile(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return repo.GetUserWithProfile(ctx, db, id)
}
func (testRoomRepo) FindRoom(ctx context.Context, db *gorm.DB, storeID, buyerID string) (*domain.ChatRoom, error) {
	return repo.FindRoom(ctx, db, storeID, buyerID)
}
func (testRoomRepo) CreateRoom(ctx context.Context, db *gorm.DB, storeID, buyerID string) (*domain.ChatRoom, error) {
	return repo.CreateRoom(ctx, db, storeID, buyerID)
}
func (testRoomRepo) GetRoom(ctx context.Context, db *gorm.DB, id string) (*domain.ChatRoom, error) {
	return repo.GetRoom(ctx, db, id)
}

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), fmt.Sprintf("h_%d.db", time.Now().UnixNano())))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string, role domain.Role) domain.Identity {
	t.Helper()
	u := &domain.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", Verified: true}
	p := &domain.Profile{ID: uuid.NewString(), UserID: u.ID, FullName: name, Role: role}
	if err := db.Create(u).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatal(err)
	}
	return domain.Identity{UserID: u.ID, Role: role}
}

func seedStore(t *testing.T, db *gorm.DB, owner domain.Identity, name string) string {
	t.Helper()
	var p domain.Profile
	if err := db.Where("user_id = ?", owner.UserID).First(&p).Error; err != nil {
		t.Fatal(err)
	}
	s := &domain.Store{ID: uuid.NewString(), OwnerID: p.ID, Name: name, Status: domain.StoreActive}
	if err := db.Create(s).Error; err != nil {
		t.Fatal(err)
	}
	return s.ID
}

// ---------- notifier spy ----------

type readEvent struct {
	roomID, readerID string
	except           *realtime.Client
}

type spyNotifier struct {
	mu       sync.Mutex
	messages []domain.ChatMessage
	reads    []readEvent
}

func (s *spyNotifier) DeliverMessage(_ *services.RoomHandle, m *domain.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, *m)
}

func (s *spyNotifier) DeliverRead(roomID, readerID string, except *realtime.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, readEvent{roomID, readerID, except})
}

// ---------- environment ----------

const (
	hdrTestUser = "X-Test-User"
	hdrTestRole = "X-Test-Role"
)

type env struct {
	db      *gorm.DB
	r       *gin.Engine
	notify  *spyNotifier
	buyer   domain.Identity
	other   domain.Identity
	seller  domain.Identity
	storeID string
}

// newEnv wires real services over SQLite behind the chat routes. Identity is
// injected from test headers in place of token authentication.
func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)

	e := &env{db: db, notify: &spyNotifier{}}
	e.seller = seedUser(t, db, "Sam Seller", domain.RoleSeller)
	e.buyer = seedUser(t, db, "Bea Buyer", domain.RoleBuyer)
	e.other = seedUser(t, db, "Otto Other", domain.RoleBuyer)
	e.storeID = seedStore(t, db, e.seller, "Sam's Shop")

	h := New(
		services.NewRoomService(db, testRoomRepo{}),
		&services.MessageService{DB: db, MaxMessageRunes: 500, MaxAttachmentLen: 1000, IdempotencyTTL: time.Hour},
		&services.InboxService{DB: db, PreviewMaxRunes: 100},
		e.notify,
	)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Header(middleware.HeaderRequestID, "rid-test")
		if uid := c.GetHeader(hdrTestUser); uid != "" {
			middleware.SetIdentity(c, domain.Identity{UserID: uid, Role: domain.Role(c.GetHeader(hdrTestRole))})
		}
		c.Next()
	})
	lookup := func(ctx context.Context, userID, roomID, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, userID, roomID, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
	chat := r.Group("/chat", middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, lookup))
	chat.GET("/init/:storeId", h.InitChat)
	chat.GET("/history/:storeId", h.ChatHistory)
	chat.GET("/my-chats", h.MyChats)
	chat.GET("/room/:roomId", h.RoomDetails)
	chat.POST("/room/:roomId/messages", h.PostMessage)
	chat.POST("/room/:roomId/read", h.MarkRead)
	e.r = r
	return e
}

func (e *env) do(t *testing.T, as *domain.Identity, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatal(err)
			}
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set(hdrTestUser, as.UserID)
		req.Header.Set(hdrTestRole, string(as.Role))
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

// openRoom runs the buyer's init call and returns the room id.
func (e *env) openRoom(t *testing.T) string {
	t.Helper()
	w := e.do(t, &e.buyer, http.MethodGet, "/chat/init/"+e.storeID, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("init: %d %s", w.Code, w.Body.String())
	}
	var r RoomResponse
	mustJSON(t, w, &r)
	return r.ChatRoomID
}

func (e *env) send(t *testing.T, as domain.Identity, roomID, text string) domain.ChatMessage {
	t.Helper()
	w := e.do(t, &as, http.MethodPost, "/chat/room/"+roomID+"/messages", SendMessageRequest{Message: text}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("send: %d %s", w.Code, w.Body.String())
	}
	var m domain.ChatMessage
	mustJSON(t, w, &m)
	return m
}

func mustJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func wantError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (%s)", w.Code, status, w.Body.String())
	}
	var er ErrorResponse
	mustJSON(t, w, &er)
	if er.Code != code || er.RequestID != "rid-test" {
		t.Fatalf("error = %+v, want code %q", er, code)
	}
	return er
}
