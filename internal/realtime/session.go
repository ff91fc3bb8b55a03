package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-marketplace-chat/internal/config"
	"github.com/tbourn/go-marketplace-chat/internal/domain"
	"github.com/tbourn/go-marketplace-chat/internal/services"
)

// Rooms resolves rooms behind the membership gate.
type Rooms interface {
	Open(ctx context.Context, id domain.Identity, storeID, buyerID string) (*services.RoomHandle, error)
	Details(ctx context.Context, id domain.Identity, roomID string) (*services.RoomHandle, error)
}

// Messages reads and writes room messages.
type Messages interface {
	Append(ctx context.Context, roomID, senderID, text, attachmentURL string) (*domain.ChatMessage, error)
	Page(ctx context.Context, roomID, beforeMessageID string, limit int) ([]domain.ChatMessage, bool, error)
	MarkRead(ctx context.Context, roomID, readerID string) (int64, error)
}

const (
	msgInternal    = "something went wrong, please try again"
	msgRateLimited = "rate limit exceeded"
	msgBadFrame    = "invalid message format"
	msgNotInRoom   = "join the room first"
)

// Handler runs websocket sessions.
type Handler struct {
	Rooms    Rooms
	Messages Messages
	Hub      *Hub
	WS       config.WSConfig

	// PageSize is the fetch-older-messages page size.
	PageSize int

	Log zerolog.Logger
}

// Serve runs the session for an authenticated connection and returns when
// the read side ends. On return the client is unregistered and its write pump
// is signalled; the pump then sends a close frame and closes the connection
// on its own goroutine, so the socket may outlive Serve briefly.
func (h *Handler) Serve(ctx context.Context, conn *websocket.Conn, id domain.Identity) {
	c := newClient(uuid.NewString(), conn, id, h.WS, h.Log)
	h.Hub.Registry.Register(id.UserID, c)
	c.log.Debug().Msg("connected")

	go c.writePump(ctx)

	defer func() {
		h.Hub.Groups.LeaveAll(c)
		remaining := h.Hub.Registry.Unregister(id.UserID, c)
		c.close()
		c.log.Debug().Int("remaining", remaining).Msg("disconnected")
	}()

	c.readPump(func(raw []byte) { h.Dispatch(ctx, c, raw) })
}

// Dispatch handles one inbound frame. Failures are reported to the client as
// error events and never end the session.
func (h *Handler) Dispatch(ctx context.Context, c *Client, raw []byte) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil || f.Event == "" {
		wsEvents.WithLabelValues("invalid", "rejected").Inc()
		c.emitError(msgBadFrame)
		return
	}
	event := f.Event
	if !knownEvent(event) {
		wsEvents.WithLabelValues("unknown", "rejected").Inc()
		c.emitError("unknown event: " + event)
		return
	}
	if !c.limiter.Allow() {
		wsEvents.WithLabelValues(event, "rejected").Inc()
		c.emitError(msgRateLimited)
		return
	}

	var err error
	switch event {
	case EventJoinRoom:
		err = h.joinRoom(ctx, c, f.Data)
	case EventFetchOlder:
		err = h.fetchOlder(ctx, c, f.Data)
	case EventSendMessage:
		err = h.sendMessage(ctx, c, f.Data)
	case EventMarkRead:
		err = h.markRead(ctx, c, f.Data)
	case EventTyping:
		err = h.typing(c, f.Data)
	case EventLeaveRoom:
		err = h.leaveRoom(c, f.Data)
	}

	if err != nil {
		wsEvents.WithLabelValues(event, "error").Inc()
		h.report(c, event, err)
		return
	}
	wsEvents.WithLabelValues(event, "ok").Inc()
}

func knownEvent(e string) bool {
	switch e {
	case EventJoinRoom, EventFetchOlder, EventSendMessage, EventMarkRead, EventTyping, EventLeaveRoom:
		return true
	}
	return false
}

// report maps a failure to an error event. Internal errors are logged and
// replaced with a generic message.
func (h *Handler) report(c *Client, event string, err error) {
	var se *services.Error
	switch {
	case errors.As(err, &se) && se.Kind != services.KindInternal:
		c.log.Debug().Str("event", event).Str("kind", se.Kind.String()).Msg(se.Msg)
		c.emitError(se.Msg)
	case isClientError(err):
		c.emitError(err.Error())
	default:
		c.log.Error().Err(err).Str("event", event).Msg("event failed")
		c.emitError(msgInternal)
	}
}

func (h *Handler) joinRoom(ctx context.Context, c *Client, data json.RawMessage) error {
	var p RoomRef
	if err := decode(data, &p); err != nil {
		return err
	}
	room, err := h.Rooms.Open(ctx, c.identity, p.StoreID, p.BuyerID)
	if err != nil {
		return err
	}
	h.Hub.Groups.Join(room.RoomID, c)

	n, err := h.Messages.MarkRead(ctx, room.RoomID, c.identity.UserID)
	if err != nil {
		return err
	}
	if n > 0 {
		h.Hub.DeliverRead(room.RoomID, c.identity.UserID, c)
	}
	return nil
}

func (h *Handler) fetchOlder(ctx context.Context, c *Client, data json.RawMessage) error {
	var p FetchOlderPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	room, err := h.Rooms.Open(ctx, c.identity, p.StoreID, p.BuyerID)
	if err != nil {
		return err
	}
	msgs, _, err := h.Messages.Page(ctx, room.RoomID, p.BeforeMessageID, h.PageSize)
	if err != nil {
		return err
	}
	c.Emit(EventOlderMessages, msgs)
	return nil
}

func (h *Handler) sendMessage(ctx context.Context, c *Client, data json.RawMessage) error {
	var p SendMessagePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if strings.TrimSpace(p.Message) == "" && strings.TrimSpace(p.AttachmentURL) == "" {
		return services.ErrEmptyMessage
	}
	room, err := h.Rooms.Open(ctx, c.identity, p.StoreID, p.BuyerID)
	if err != nil {
		return err
	}
	m, err := h.Messages.Append(ctx, room.RoomID, c.identity.UserID, p.Message, p.AttachmentURL)
	if err != nil {
		return err
	}
	h.Hub.DeliverMessage(room, m)
	return nil
}

func (h *Handler) markRead(ctx context.Context, c *Client, data json.RawMessage) error {
	var p RoomIDPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	room, err := h.Rooms.Details(ctx, c.identity, p.ChatRoomID)
	if err != nil {
		return err
	}
	n, err := h.Messages.MarkRead(ctx, room.RoomID, c.identity.UserID)
	if err != nil {
		return err
	}
	if n > 0 {
		h.Hub.DeliverRead(room.RoomID, c.identity.UserID, c)
	}
	return nil
}

func (h *Handler) typing(c *Client, data json.RawMessage) error {
	var p TypingPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if _, ok := c.rooms[p.ChatRoomID]; !ok {
		return clientError(msgNotInRoom)
	}
	h.Hub.Groups.Broadcast(p.ChatRoomID, EventUserTyping,
		UserTyping{UserID: c.identity.UserID, IsTyping: p.IsTyping}, c)
	return nil
}

func (h *Handler) leaveRoom(c *Client, data json.RawMessage) error {
	var p RoomIDPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	h.Hub.Groups.Leave(p.ChatRoomID, c)
	return nil
}
