// Chat HTTP handlers.
//
// This file exposes the REST surface of buyer-store conversations:
//   - GET  /chat/init/{storeId}            (buyer opens a room)
//   - GET  /chat/history/{storeId}         (cursor-paginated history)
//   - GET  /chat/my-chats                  (inbox, paginated, ETag support)
//   - GET  /chat/room/{roomId}             (room details)
//   - POST /chat/room/{roomId}/messages    (send, Idempotency-Key support)
//   - POST /chat/room/{roomId}/read        (mark counterpart messages read)
//
// Handlers are transport-thin: they read the authenticated identity, validate
// query input, call services, and push realtime notifications for writes so
// websocket clients see HTTP-originated changes.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-marketplace-chat/internal/domain"
	"github.com/tbourn/go-marketplace-chat/internal/http/middleware"
	"github.com/tbourn/go-marketplace-chat/internal/realtime"
	"github.com/tbourn/go-marketplace-chat/internal/services"
	"github.com/tbourn/go-marketplace-chat/internal/utils"
)

//
// Service contracts (context-aware)
//

// RoomService resolves rooms behind the membership gate.
type RoomService interface {
	// Open resolves (creating on first contact) the room and checks access.
	Open(ctx context.Context, id domain.Identity, storeID, buyerID string) (*services.RoomHandle, error)
	// Details loads an existing room and checks access.
	Details(ctx context.Context, id domain.Identity, roomID string) (*services.RoomHandle, error)
	// ForSend is Details that also requires the store to be active.
	ForSend(ctx context.Context, id domain.Identity, roomID string) (*services.RoomHandle, error)
}

// MessageService reads and writes room messages.
type MessageService interface {
	// History returns one page of a room's messages for the caller.
	History(ctx context.Context, id domain.Identity, q services.HistoryQuery) (*services.HistoryPage, error)
	// SendOnce appends a message, replaying the stored one for a reused key.
	SendOnce(ctx context.Context, roomID, senderID, key, text, attachmentURL string) (*domain.ChatMessage, bool, error)
	// Replay returns the message already stored under the caller's key.
	Replay(ctx context.Context, roomID, senderID, key string) (*domain.ChatMessage, bool, error)
	// MarkRead flags the counterpart's unread messages as read.
	MarkRead(ctx context.Context, roomID, readerID string) (int64, error)
}

// InboxService lists the caller's conversations.
type InboxService interface {
	// List returns one page of conversation previews.
	List(ctx context.Context, id domain.Identity, page, limit int) (*services.InboxPage, error)
	// Stats summarizes the inbox for cache validation.
	Stats(ctx context.Context, id domain.Identity) (*services.InboxStats, error)
}

// Notifier pushes HTTP-originated changes to live websocket connections.
type Notifier interface {
	DeliverMessage(room *services.RoomHandle, m *domain.ChatMessage)
	DeliverRead(roomID, readerID string, except *realtime.Client)
}

//
// Handler wiring
//

// Handlers groups the chat endpoints.
type Handlers struct {
	rooms  RoomService
	msgs   MessageService
	inbox  InboxService
	notify Notifier
}

// New constructs Handlers. notify may be nil when no realtime hub runs.
func New(rooms RoomService, msgs MessageService, inbox InboxService, notify Notifier) *Handlers {
	return &Handlers{rooms: rooms, msgs: msgs, inbox: inbox, notify: notify}
}

// identity returns the authenticated caller or writes 401.
func identity(c *gin.Context) (domain.Identity, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
	}
	return id, ok
}

//
// DTOs
//

// PartyRef names one side of a conversation.
type PartyRef struct {
	ID   string `json:"id"   example:"6f1c1b7e-7c55-4c43-9a49-4a1f0b7b2f10"`
	Name string `json:"name" example:"Bea Buyer"`
}

// StoreRef names the store side of a conversation.
type StoreRef struct {
	ID       string `json:"id"       example:"1d7b0c7e-2d0b-4a9e-9d3b-9c1f2e0a5b11"`
	Name     string `json:"name"     example:"Sam's Shop"`
	SellerID string `json:"sellerId" example:"0b8e1f3a-3c6d-4e2b-8a1f-5d7c9e2b4a60"`
}

// RoomResponse is returned by the init and room-details endpoints.
type RoomResponse struct {
	ChatRoomID string   `json:"chatRoomId" example:"c2a8f6de-1b7e-4f0e-8f3a-2d6c4b9e1a77"`
	Buyer      PartyRef `json:"buyer"`
	Store      StoreRef `json:"store"`
}

// HistoryResponse is one page of history, oldest first.
type HistoryResponse struct {
	// ChatRoomID is null when the pair has never talked.
	ChatRoomID *string              `json:"chatRoomId"`
	Messages   []domain.ChatMessage `json:"messages"`
	// NextCursor is passed back as ?cursor= to load older messages.
	NextCursor *string `json:"nextCursor"`
	HasMore    bool    `json:"hasMore"`
}

// SendMessageRequest is the JSON payload of a message send.
type SendMessageRequest struct {
	Message       string `json:"message"       example:"Is this still available?"`
	AttachmentURL string `json:"attachmentUrl" example:"https://cdn.example.com/p/123.jpg"`
}

// MarkReadResponse reports how many messages were flagged.
type MarkReadResponse struct {
	Updated int64 `json:"updated" example:"3"`
}

func roomResponse(h *services.RoomHandle) RoomResponse {
	return RoomResponse{
		ChatRoomID: h.RoomID,
		Buyer:      PartyRef{ID: h.BuyerID, Name: h.BuyerName},
		Store:      StoreRef{ID: h.StoreID, Name: h.StoreName, SellerID: h.SellerID},
	}
}

//
// Helpers
//

// parseLimit reads ?limit= strictly: absent means the default, anything
// outside 1..MaxPageLimit is rejected.
func parseLimit(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return services.DefaultPageLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > services.MaxPageLimit {
		fail(c, http.StatusBadRequest, ErrCodeInvalidLimit,
			fmt.Sprintf("limit must be an integer between 1 and %d", services.MaxPageLimit))
		return 0, false
	}
	return n, true
}

// clampPagination reads ?page= and ?limit= for the inbox. page is coerced to
// at least 1; limit follows parseLimit.
func clampPagination(c *gin.Context) (page, limit int, valid bool) {
	page = utils.PageNumber(c.Query("page"))
	limit, valid = parseLimit(c)
	return page, limit, valid
}

// inboxETag derives a weak validator from the inbox shape. Unread counts are
// included so reading a conversation invalidates cached previews.
func inboxETag(userID string, st *services.InboxStats, page, limit int) string {
	var ts int64
	if st.LastActivity != nil {
		ts = st.LastActivity.UnixMicro()
	}
	return fmt.Sprintf(`W/"inbox:%s:%d:%d:%d:%d:%d"`, userID, st.Rooms, ts, st.Unread, page, limit)
}

func etagMatches(ifNoneMatch, etag string) bool {
	for _, cand := range strings.Split(ifNoneMatch, ",") {
		if cand = strings.TrimSpace(cand); cand == etag || cand == "*" {
			return true
		}
	}
	return false
}

//
// Handlers
//

// InitChat godoc
// @ID          initChat
// @Summary     Open a conversation with a store
// @Description Resolves the caller's room with the store, creating it on first contact. The caller acts as the buyer.
// @Tags        Chat
// @Produce     json
// @Security    BearerAuth
//
// @Param       storeId  path  string  true  "Store ID"  format(uuid)
//
// @Success     200  {object}  handlers.RoomResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     403  {object}  handlers.ErrorResponse  "Store inactive or own store"
// @Failure     404  {object}  handlers.ErrorResponse  "Store or buyer not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chat/init/{storeId} [get]
func (h *Handlers) InitChat(c *gin.Context) {
	id, authed := identity(c)
	if !authed {
		return
	}
	storeID := strings.TrimSpace(c.Param("storeId"))
	if storeID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "storeId is required")
		return
	}

	// Whoever opens the room is its buyer; the gate then requires the buyer role.
	room, err := h.rooms.Open(c.Request.Context(), id, storeID, id.UserID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, roomResponse(room))
}

// ChatHistory godoc
// @ID          chatHistory
// @Summary     Conversation history (cursor pagination)
// @Description Returns messages oldest first. Pass nextCursor back as cursor to load older messages. Sellers must name the buyer.
// @Tags        Chat
// @Produce     json
// @Security    BearerAuth
//
// @Param       storeId  path   string  true   "Store ID"  format(uuid)
// @Param       buyerId  query  string  false  "Buyer ID (required for sellers)"
// @Param       cursor   query  string  false  "Id of the oldest message already held"
// @Param       limit    query  int     false  "Page size"  minimum(1) maximum(100) default(50)
//
// @Success     200  {object}  handlers.HistoryResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad limit, cursor, or missing buyerId"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Store not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chat/history/{storeId} [get]
func (h *Handlers) ChatHistory(c *gin.Context) {
	id, authed := identity(c)
	if !authed {
		return
	}
	limit, valid := parseLimit(c)
	if !valid {
		return
	}

	page, err := h.msgs.History(c.Request.Context(), id, services.HistoryQuery{
		StoreID: strings.TrimSpace(c.Param("storeId")),
		BuyerID: strings.TrimSpace(c.Query("buyerId")),
		Cursor:  strings.TrimSpace(c.Query("cursor")),
		Limit:   limit,
	})
	if err != nil {
		failErr(c, err)
		return
	}

	resp := HistoryResponse{Messages: page.Messages, HasMore: page.HasMore}
	if resp.Messages == nil {
		resp.Messages = []domain.ChatMessage{}
	}
	if page.RoomID != "" {
		resp.ChatRoomID = &page.RoomID
	}
	if page.NextCursor != "" {
		resp.NextCursor = &page.NextCursor
	}
	ok(c, http.StatusOK, resp)
}

// MyChats godoc
// @ID          myChats
// @Summary     List my conversations (paginated)
// @Description Buyers see their rooms, sellers the rooms of their active store, most recent first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Chat
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       limit          query   int     false  "Items per page"  minimum(1) maximum(100) default(50)
//
// @Success     200  {object}  services.InboxPage
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad limit"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     403  {object}  handlers.ErrorResponse  "No inbox for this account"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chat/my-chats [get]
func (h *Handlers) MyChats(c *gin.Context) {
	id, authed := identity(c)
	if !authed {
		return
	}
	page, limit, valid := clampPagination(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()

	// ETag pre-check; a stats failure only costs the conditional response.
	if st, err := h.inbox.Stats(ctx, id); err == nil {
		etag := inboxETag(id.UserID, st, page, limit)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && etagMatches(inm, etag) {
			c.Status(http.StatusNotModified)
			return
		}
	}

	res, err := h.inbox.List(ctx, id, page, limit)
	if err != nil {
		c.Writer.Header().Del("ETag")
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// RoomDetails godoc
// @ID          roomDetails
// @Summary     Conversation details
// @Description Returns both parties of a room the caller takes part in.
// @Tags        Chat
// @Produce     json
// @Security    BearerAuth
//
// @Param       roomId  path  string  true  "Room ID"  format(uuid)
//
// @Success     200  {object}  handlers.RoomResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Room not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chat/room/{roomId} [get]
func (h *Handlers) RoomDetails(c *gin.Context) {
	id, authed := identity(c)
	if !authed {
		return
	}
	room, err := h.rooms.Details(c.Request.Context(), id, c.Param("roomId"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, roomResponse(room))
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a message
// @Description Appends a message to a room the caller takes part in and notifies live connections. A reused Idempotency-Key replays the stored message with 200 and Idempotent-Replay: true.
// @Tags        Chat
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       roomId           path    string  true   "Room ID"  format(uuid)
// @Param       Idempotency-Key  header  string  false  "Client key for safe retries"
// @Param       body             body    handlers.SendMessageRequest  true  "Message payload"
//
// @Success     201  {object}  domain.ChatMessage
// @Success     200  {object}  domain.ChatMessage  "Idempotent replay"
// @Header      200  {string}  Idempotent-Replay  "true on replay"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant or store not active"
// @Failure     404  {object}  handlers.ErrorResponse  "Room not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chat/room/{roomId}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	id, authed := identity(c)
	if !authed {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ctx := c.Request.Context()
	roomID := c.Param("roomId")
	key, _ := middleware.GetIdempotencyKey(c)

	// A live key was only ever stored for this sender in this room, so the
	// replay needs no membership lookup.
	if middleware.IsReplay(c) {
		msg, found, err := h.msgs.Replay(ctx, roomID, id.UserID, key)
		if err != nil {
			failErr(c, err)
			return
		}
		if found {
			c.Header("Idempotent-Replay", "true")
			ok(c, http.StatusOK, msg)
			return
		}
	}

	room, err := h.rooms.ForSend(ctx, id, roomID)
	if err != nil {
		failErr(c, err)
		return
	}

	msg, replayed, err := h.msgs.SendOnce(ctx, room.RoomID, id.UserID, key, req.Message, req.AttachmentURL)
	if err != nil {
		failErr(c, err)
		return
	}
	if replayed {
		c.Header("Idempotent-Replay", "true")
		ok(c, http.StatusOK, msg)
		return
	}

	if h.notify != nil {
		h.notify.DeliverMessage(room, msg)
	}
	ok(c, http.StatusCreated, msg)
}

// MarkRead godoc
// @ID          markRead
// @Summary     Mark a conversation read
// @Description Flags every unread message from the other party as read and notifies live connections when anything changed.
// @Tags        Chat
// @Produce     json
// @Security    BearerAuth
//
// @Param       roomId  path  string  true  "Room ID"  format(uuid)
//
// @Success     200  {object}  handlers.MarkReadResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Room not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chat/room/{roomId}/read [post]
func (h *Handlers) MarkRead(c *gin.Context) {
	id, authed := identity(c)
	if !authed {
		return
	}
	ctx := c.Request.Context()

	room, err := h.rooms.Details(ctx, id, c.Param("roomId"))
	if err != nil {
		failErr(c, err)
		return
	}
	n, err := h.msgs.MarkRead(ctx, room.RoomID, id.UserID)
	if err != nil {
		failErr(c, err)
		return
	}
	if n > 0 && h.notify != nil {
		h.notify.DeliverRead(room.RoomID, id.UserID, nil)
	}
	ok(c, http.StatusOK, MarkReadResponse{Updated: n})
}
