// Package services defines the business logic for marketplace conversations.
// This file centralizes the service-level error taxonomy so that every
// operation fails with a value the transports can classify: HTTP handlers map
// the Kind to a status code, the realtime session maps it to an error event.
package services

import "errors"

// Kind classifies a service failure.
type Kind int

const (
	// KindInternal covers unexpected failures (storage, encoding). Its
	// message is never shown to clients.
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindInvalidArgument
	KindConflict
)

// String returns a stable lowercase name for logs.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified service failure with a client-safe message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// KindOf classifies err. Errors that are not (and do not wrap) *Error are
// internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func newErr(k Kind, msg string) *Error { return &Error{Kind: k, Msg: msg} }

// Room resolution and access.
var (
	// ErrStoreNotFound means the store does not exist.
	ErrStoreNotFound = newErr(KindNotFound, "store not found")

	// ErrStoreInactive means the store exists but is not accepting conversations.
	ErrStoreInactive = newErr(KindForbidden, "store is not active")

	// ErrBuyerNotFound means the buyer does not exist or is not verified.
	ErrBuyerNotFound = newErr(KindNotFound, "buyer not found")

	// ErrRoomNotFound means the room does not exist.
	ErrRoomNotFound = newErr(KindNotFound, "chat room not found")

	// ErrSelfChat is returned when a store owner tries to open a
	// conversation with their own store.
	ErrSelfChat = newErr(KindForbidden, "cannot start a chat with your own store")

	// ErrForbidden is returned when the caller is not a party to the room.
	ErrForbidden = newErr(KindForbidden, "you are not a participant of this chat")

	// ErrRoomConflict signals a lost insert race. Room resolution recovers
	// from it by re-reading; it only escapes if the winning row vanished.
	ErrRoomConflict = newErr(KindConflict, "chat room was created concurrently")
)

// Messages and history.
var (
	// ErrEmptyMessage is returned when neither text nor attachment is present.
	ErrEmptyMessage = newErr(KindInvalidArgument, "message or attachment is required")

	// ErrMessageTooLong is returned when the text exceeds the configured limit.
	ErrMessageTooLong = newErr(KindInvalidArgument, "message is too long")

	// ErrAttachmentTooLong is returned when the attachment URL exceeds the limit.
	ErrAttachmentTooLong = newErr(KindInvalidArgument, "attachment url is too long")

	// ErrBadCursor is returned when a pagination cursor does not name a
	// message of the room.
	ErrBadCursor = newErr(KindInvalidArgument, "invalid cursor")

	// ErrBuyerIDRequired is returned when a seller requests history without
	// naming the buyer.
	ErrBuyerIDRequired = newErr(KindInvalidArgument, "buyerId is required for sellers")
)

// Inbox.
var (
	// ErrUserNotFound means the caller's account is missing or unverified.
	ErrUserNotFound = newErr(KindNotFound, "user not found")

	// ErrNoInbox is returned when the caller is neither a buyer nor a seller
	// with an active store.
	ErrNoInbox = newErr(KindForbidden, "no conversations available for this account")
)
