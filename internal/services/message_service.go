// Package services – MessageService
//
// This file implements MessageService, which owns the lifecycle of chat
// messages: validated appends that advance the room's activity time in the
// same transaction, cursor pagination in (created_at, id) order, bulk read
// receipts, the HTTP history view, and idempotent HTTP sends.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// room/user identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-marketplace-chat/internal/domain"
	"github.com/tbourn/go-marketplace-chat/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Page size bounds shared by every paginated read.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// HistoryQuery is the input of the HTTP history view.
type HistoryQuery struct {
	StoreID string
	BuyerID string // required when the caller is the seller
	Cursor  string // opaque: id of the oldest message already held
	Limit   int
}

// HistoryPage is one page of a room's history in chronological order.
// RoomID is empty when the pair has never talked.
type HistoryPage struct {
	RoomID     string
	Messages   []domain.ChatMessage
	NextCursor string
	HasMore    bool
}

// MessageService coordinates message persistence and retrieval.
type MessageService struct {
	DB *gorm.DB

	// Content limits; zero disables the check.
	MaxMessageRunes  int
	MaxAttachmentLen int

	// IdempotencyTTL bounds how long an Idempotency-Key replays its message.
	IdempotencyTTL time.Duration
}

// Append validates and stores a message, advancing the room's updated_at in
// the same transaction.
func (s *MessageService) Append(ctx context.Context, roomID, senderID, text, attachmentURL string) (*domain.ChatMessage, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Append",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.String("user.id", senderID),
		),
	)
	defer span.End()

	text, attachment, err := s.normalize(text, attachmentURL)
	if err != nil {
		return nil, err
	}

	var msg *domain.ChatMessage
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		msg, err = s.insert(ctx, tx, roomID, senderID, text, attachment)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// errIdemRace signals that a concurrent request stored the same key first.
var errIdemRace = errors.New("idempotency key stored concurrently")

// SendOnce appends like Append, but when key is non-empty a retry with the
// same (sender, room, key) within the TTL returns the originally stored
// message and replayed=true instead of appending again.
func (s *MessageService) SendOnce(ctx context.Context, roomID, senderID, key, text, attachmentURL string) (msg *domain.ChatMessage, replayed bool, err error) {
	if key == "" {
		msg, err = s.Append(ctx, roomID, senderID, text, attachmentURL)
		return msg, false, err
	}

	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "SendOnce",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.String("user.id", senderID),
		),
	)
	defer span.End()

	text, attachment, err := s.normalize(text, attachmentURL)
	if err != nil {
		return nil, false, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := repo.GetIdempotency(ctx, tx, senderID, roomID, key, time.Now().UTC())
		if err == nil {
			msg, err = repo.GetMessage(ctx, tx, rec.MessageID)
			replayed = err == nil
			return err
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		if msg, err = s.insert(ctx, tx, roomID, senderID, text, attachment); err != nil {
			return err
		}
		_, err = repo.CreateIdempotency(ctx, tx, senderID, roomID, key, msg.ID, s.ttl())
		if errors.Is(err, repo.ErrDuplicate) {
			return errIdemRace
		}
		return err
	})
	if errors.Is(err, errIdemRace) {
		rec, rerr := repo.GetIdempotency(ctx, s.DB, senderID, roomID, key, time.Now().UTC())
		if rerr != nil {
			return nil, false, rerr
		}
		msg, err = repo.GetMessage(ctx, s.DB, rec.MessageID)
		return msg, err == nil, err
	}
	if err != nil {
		return nil, false, err
	}
	return msg, replayed, nil
}

// Replay returns the message an earlier send stored under (sender, room, key)
// while the key is live. ok is false on a miss or an expired key.
func (s *MessageService) Replay(ctx context.Context, roomID, senderID, key string) (msg *domain.ChatMessage, ok bool, err error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Replay",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.String("user.id", senderID),
		),
	)
	defer span.End()

	rec, err := repo.GetIdempotency(ctx, s.DB, senderID, roomID, key, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	msg, err = repo.GetMessage(ctx, s.DB, rec.MessageID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return msg, true, nil
}

// Page returns up to limit messages of a room older than beforeMessageID (or
// the newest when empty) in chronological order. hasMore reports whether the
// page was full, i.e. older messages may exist.
func (s *MessageService) Page(ctx context.Context, roomID, beforeMessageID string, limit int) ([]domain.ChatMessage, bool, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Page",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.String("cursor", beforeMessageID),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	limit = ClampLimit(limit)

	var cur *repo.MessageCursor
	if beforeMessageID != "" {
		m, err := repo.GetMessage(ctx, s.DB, beforeMessageID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, false, ErrBadCursor
			}
			return nil, false, err
		}
		if m.ChatRoomID != roomID {
			return nil, false, ErrBadCursor
		}
		cur = &repo.MessageCursor{CreatedAt: m.CreatedAt, ID: m.ID}
	}

	rows, err := repo.ListMessagesBefore(ctx, s.DB, roomID, cur, limit)
	if err != nil {
		return nil, false, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	if rows == nil {
		rows = []domain.ChatMessage{}
	}
	return rows, len(rows) == limit, nil
}

// MarkRead marks every unread message in the room not sent by readerID as
// read and returns how many changed. Repeating it is a no-op returning 0.
func (s *MessageService) MarkRead(ctx context.Context, roomID, readerID string) (int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "MarkRead",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.String("user.id", readerID),
		),
	)
	defer span.End()

	return repo.MarkRoomRead(ctx, s.DB, roomID, readerID)
}

// History serves the HTTP history view for the caller's conversation with a
// store. Buyers read their own room; the store owner reads the room of the
// buyer named in the query. A pair that never talked yields an empty page.
func (s *MessageService) History(ctx context.Context, id domain.Identity, q HistoryQuery) (*HistoryPage, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(
			attribute.String("store.id", q.StoreID),
			attribute.String("user.id", id.UserID),
			attribute.Int("limit", q.Limit),
		),
	)
	defer span.End()

	store, err := repo.GetStoreWithOwner(ctx, s.DB, q.StoreID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrStoreNotFound
		}
		return nil, err
	}
	if store.Status != domain.StoreActive {
		return nil, ErrStoreInactive
	}

	var buyerID string
	switch id.Role {
	case domain.RoleBuyer:
		if q.BuyerID != "" && q.BuyerID != id.UserID {
			return nil, ErrForbidden
		}
		buyerID = id.UserID
	case domain.RoleSeller:
		if store.Owner.UserID != id.UserID {
			return nil, ErrForbidden
		}
		if q.BuyerID == "" {
			return nil, ErrBuyerIDRequired
		}
		buyerID = q.BuyerID
	default:
		return nil, ErrForbidden
	}

	room, err := repo.FindRoom(ctx, s.DB, store.ID, buyerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return &HistoryPage{Messages: []domain.ChatMessage{}}, nil
		}
		return nil, err
	}

	msgs, hasMore, err := s.Page(ctx, room.ID, q.Cursor, q.Limit)
	if err != nil {
		return nil, err
	}
	page := &HistoryPage{RoomID: room.ID, Messages: msgs, HasMore: hasMore}
	if hasMore && len(msgs) > 0 {
		page.NextCursor = msgs[0].ID
	}
	return page, nil
}

// insert stores a message and bumps the room inside tx.
func (s *MessageService) insert(ctx context.Context, tx *gorm.DB, roomID, senderID, text string, attachment *string) (*domain.ChatMessage, error) {
	m, err := repo.CreateMessage(ctx, tx, roomID, senderID, text, attachment)
	if err != nil {
		return nil, err
	}
	if err := repo.TouchRoom(ctx, tx, roomID, m.CreatedAt); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return m, nil
}

// normalize trims and NFC-normalizes text, trims the attachment URL, and
// enforces the content limits.
func (s *MessageService) normalize(text, attachmentURL string) (string, *string, error) {
	text = norm.NFC.String(strings.TrimSpace(text))
	attachmentURL = strings.TrimSpace(attachmentURL)
	if text == "" && attachmentURL == "" {
		return "", nil, ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(text) > s.MaxMessageRunes {
		return "", nil, ErrMessageTooLong
	}
	if s.MaxAttachmentLen > 0 && len(attachmentURL) > s.MaxAttachmentLen {
		return "", nil, ErrAttachmentTooLong
	}
	if attachmentURL == "" {
		return text, nil, nil
	}
	return text, &attachmentURL, nil
}

func (s *MessageService) ttl() time.Duration {
	if s.IdempotencyTTL <= 0 {
		return 24 * time.Hour
	}
	return s.IdempotencyTTL
}

// ClampLimit maps a requested page size into [1, MaxPageLimit], using
// DefaultPageLimit for non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageLimit
	case limit > MaxPageLimit:
		return MaxPageLimit
	}
	return limit
}
