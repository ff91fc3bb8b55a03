// Package realtime implements the websocket side of marketplace chat: the
// per-connection session loop, the user connection registry used for
// multi-device fan-out, and room broadcast groups.
//
// Frames are JSON objects {"event": "<name>", "data": <payload>} in both
// directions.
package realtime

import (
	"encoding/json"
	"time"
)

// Client to server events.
const (
	EventJoinRoom    = "join-room"
	EventFetchOlder  = "fetch-older-messages"
	EventSendMessage = "send-message"
	EventMarkRead    = "mark-read"
	EventTyping      = "typing"
	EventLeaveRoom   = "leave-room"
)

// Server to client events.
const (
	EventNewMessage    = "new-message"
	EventOlderMessages = "older-messages"
	EventMessagesRead  = "messages-read"
	EventUserTyping    = "user-typing"
	EventChatPreview   = "update-chat-preview"
	EventError         = "error"
)

// Frame is an inbound frame; Data is decoded per event.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func encode(event string, data any) ([]byte, error) {
	return json.Marshal(outFrame{Event: event, Data: data})
}

// RoomRef names a conversation by its parties.
type RoomRef struct {
	StoreID string `json:"storeId"`
	BuyerID string `json:"buyerId"`
}

// FetchOlderPayload asks for the page before BeforeMessageID.
type FetchOlderPayload struct {
	RoomRef
	BeforeMessageID string `json:"beforeMessageId,omitempty"`
}

// SendMessagePayload carries a new message.
type SendMessagePayload struct {
	RoomRef
	Message       string `json:"message,omitempty"`
	AttachmentURL string `json:"attachmentUrl,omitempty"`
}

// RoomIDPayload addresses a room by id.
type RoomIDPayload struct {
	ChatRoomID string `json:"chatRoomId"`
}

// TypingPayload is the inbound typing flag.
type TypingPayload struct {
	ChatRoomID string `json:"chatRoomId"`
	IsTyping   bool   `json:"isTyping"`
}

// MessagesRead tells the room who read the pending messages.
type MessagesRead struct {
	ReadBy string `json:"readBy"`
}

// UserTyping is the relayed typing flag.
type UserTyping struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// ChatPreview is pushed to both parties whenever a room gets a new message.
type ChatPreview struct {
	ChatRoomID      string    `json:"chatRoomId"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	SenderID        string    `json:"senderId"`
	SenderName      string    `json:"senderName"`
	StoreID         string    `json:"storeId"`
	SellerID        string    `json:"sellerId"`
	BuyerID         string    `json:"buyerId"`
	StoreName       string    `json:"storeName"`
	BuyerName       string    `json:"buyerName"`
}

// ErrorPayload is the body of an error event.
type ErrorPayload struct {
	Message string `json:"message"`
}
