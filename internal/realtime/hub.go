package realtime

import (
	"github.com/tbourn/go-marketplace-chat/internal/domain"
	"github.com/tbourn/go-marketplace-chat/internal/services"
)

// Hub delivers chat events to live connections. It is shared by the
// websocket sessions and the HTTP handlers.
type Hub struct {
	Registry *Registry
	Groups   *Groups

	// PreviewMaxRunes truncates lastMessage in preview notifications.
	PreviewMaxRunes int
}

// NewHub returns a Hub with empty registry and groups.
func NewHub(previewMaxRunes int) *Hub {
	return &Hub{
		Registry:        NewRegistry(),
		Groups:          NewGroups(),
		PreviewMaxRunes: previewMaxRunes,
	}
}

// DeliverMessage broadcasts a stored message to the room and pushes an inbox
// preview to every connection of both parties, joined or not.
func (h *Hub) DeliverMessage(room *services.RoomHandle, m *domain.ChatMessage) {
	h.Groups.Broadcast(room.RoomID, EventNewMessage, m, nil)

	p := ChatPreview{
		ChatRoomID:      room.RoomID,
		LastMessage:     services.Preview(m.Message, m.AttachmentURL, h.PreviewMaxRunes),
		LastMessageTime: m.CreatedAt,
		SenderID:        m.SenderID,
		SenderName:      room.NameOf(m.SenderID),
		StoreID:         room.StoreID,
		SellerID:        room.SellerID,
		BuyerID:         room.BuyerID,
		StoreName:       room.StoreName,
		BuyerName:       room.BuyerName,
	}
	h.Registry.FanOut(room.BuyerID, EventChatPreview, p)
	h.Registry.FanOut(room.SellerID, EventChatPreview, p)
}

// DeliverRead tells the room's other members that readerID has read it.
func (h *Hub) DeliverRead(roomID, readerID string, except *Client) {
	h.Groups.Broadcast(roomID, EventMessagesRead, MessagesRead{ReadBy: readerID}, except)
}
