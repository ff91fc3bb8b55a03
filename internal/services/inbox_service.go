// Package services – InboxService
//
// This file implements the "my conversations" view: one page of the caller's
// rooms, most recently active first, each enriched with its latest message
// and unread count. Enrichment is batched across the page so the number of
// queries does not grow with the page size.
package services

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-marketplace-chat/internal/domain"
	"github.com/tbourn/go-marketplace-chat/internal/repo"
	"github.com/tbourn/go-marketplace-chat/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// attachmentPreview stands in for the text of attachment-only messages.
const attachmentPreview = "[attachment]"

// ChatPreview is one inbox row.
type ChatPreview struct {
	ChatRoomID      string    `json:"chatRoomId"`
	StoreID         string    `json:"storeId"`
	BuyerID         string    `json:"buyerId"`
	StoreName       string    `json:"storeName"`
	BuyerName       string    `json:"buyerName"`
	LastMessage     *string   `json:"lastMessage,omitempty"`
	SenderID        *string   `json:"senderId,omitempty"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	UnreadCount     int64     `json:"unreadCount"`
}

// InboxPage is a page of previews plus pagination totals. Total counts rooms.
type InboxPage struct {
	Chats      []ChatPreview `json:"chats"`
	Limit      int           `json:"limit"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
}

// InboxStats summarizes the caller's inbox for cache validation.
type InboxStats struct {
	Rooms        int64
	LastActivity *time.Time
	Unread       int64
}

// InboxService lists a user's conversations.
type InboxService struct {
	DB *gorm.DB

	// PreviewMaxRunes truncates lastMessage; zero keeps full text.
	PreviewMaxRunes int
}

// List returns one page of the caller's conversations.
func (s *InboxService) List(ctx context.Context, id domain.Identity, page, limit int) (*InboxPage, error) {
	tr := otel.Tracer("services/InboxService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("user.id", id.UserID),
			attribute.Int("page", page),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	limit = ClampLimit(limit)

	party, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	f := filterFor(party)

	out := &InboxPage{Chats: []ChatPreview{}, Limit: limit, Page: page}
	out.Total, err = repo.CountRooms(ctx, s.DB, f)
	if err != nil {
		return nil, err
	}
	if out.Total == 0 {
		return out, nil
	}
	out.TotalPages = utils.TotalPages(out.Total, limit)

	rooms, err := repo.ListRoomsPage(ctx, s.DB, f, utils.Offset(page, limit), limit)
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return out, nil
	}

	ids := make([]string, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID
	}

	var (
		latest map[string]domain.ChatMessage
		unread map[string]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		latest, err = repo.LatestMessagesByRoom(gctx, s.DB, ids)
		return err
	})
	g.Go(func() error {
		var err error
		unread, err = repo.UnreadCountsByRoom(gctx, s.DB, ids, party.ActorID())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range rooms {
		p := ChatPreview{
			ChatRoomID:      r.ID,
			StoreID:         r.StoreID,
			BuyerID:         r.BuyerID,
			StoreName:       orDefault(r.Store.Name, unknownStore),
			BuyerName:       unknownBuyer,
			LastMessageTime: r.UpdatedAt,
			UnreadCount:     unread[r.ID],
		}
		if r.Buyer.Profile != nil {
			p.BuyerName = orDefault(r.Buyer.Profile.FullName, unknownBuyer)
		}
		if m, ok := latest[r.ID]; ok {
			text := Preview(m.Message, m.AttachmentURL, s.PreviewMaxRunes)
			sender := m.SenderID
			p.LastMessage = &text
			p.SenderID = &sender
			p.LastMessageTime = m.CreatedAt
		}
		out.Chats = append(out.Chats, p)
	}
	return out, nil
}

// Stats returns the room count, latest activity and unread total of the
// caller's inbox.
func (s *InboxService) Stats(ctx context.Context, id domain.Identity) (*InboxStats, error) {
	tr := otel.Tracer("services/InboxService")
	ctx, span := tr.Start(ctx, "Stats",
		trace.WithAttributes(attribute.String("user.id", id.UserID)),
	)
	defer span.End()

	party, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	f := filterFor(party)

	st := &InboxStats{}
	if st.Rooms, st.LastActivity, err = repo.RoomsStats(ctx, s.DB, f); err != nil {
		return nil, err
	}
	if st.Rooms == 0 {
		return st, nil
	}
	if st.Unread, err = repo.UnreadTotal(ctx, s.DB, f, party.ActorID()); err != nil {
		return nil, err
	}
	return st, nil
}

// Resolve maps the caller to the side of the conversations they act for. The
// account must exist and be verified; sellers need an active store.
func (s *InboxService) Resolve(ctx context.Context, id domain.Identity) (domain.Party, error) {
	u, err := repo.GetUserWithProfile(ctx, s.DB, id.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !u.Verified || u.Profile == nil {
		return nil, ErrUserNotFound
	}

	switch u.Profile.Role {
	case domain.RoleBuyer:
		return domain.BuyerParty{UserID: u.ID}, nil
	case domain.RoleSeller:
		st, err := repo.FindActiveStoreByOwnerUser(ctx, s.DB, u.ID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrNoInbox
			}
			return nil, err
		}
		return domain.SellerParty{StoreID: st.ID, OwnerID: u.ID}, nil
	}
	return nil, ErrNoInbox
}

func filterFor(p domain.Party) repo.RoomFilter {
	switch v := p.(type) {
	case domain.BuyerParty:
		return repo.RoomFilter{BuyerID: v.UserID}
	case domain.SellerParty:
		return repo.RoomFilter{StoreID: v.StoreID}
	}
	return repo.RoomFilter{}
}

// Preview renders a message for inbox rows and preview notifications: the
// text truncated to maxRunes, or a placeholder for attachment-only messages.
func Preview(text string, attachmentURL *string, maxRunes int) string {
	if text == "" && attachmentURL != nil {
		return attachmentPreview
	}
	if maxRunes > 0 && utf8.RuneCountInString(text) > maxRunes {
		return string([]rune(text)[:maxRunes]) + "…"
	}
	return text
}
