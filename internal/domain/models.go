// Package domain defines the persistence models for marketplace
// conversations. These types are mapped with GORM and shared across the
// repository, service, and transport layers.
//
// Users, profiles, and stores are owned by other parts of the marketplace;
// they are modelled here only so that conversations can reference them and
// the schema can be migrated when the service runs standalone.
package domain

import "time"

// StoreStatus is the lifecycle state of a store.
type StoreStatus string

const (
	StoreIncomplete StoreStatus = "incomplete"
	StoreActive     StoreStatus = "active"
	StoreInactive   StoreStatus = "inactive"
	StoreSuspended  StoreStatus = "suspended"
)

// User is an account known to the auth service.
//
// Fields:
//   - ID: stable UUID primary key.
//   - Email: login address; unique.
//   - Verified: only verified accounts may take part in conversations.
//   - Profile: display data and marketplace role.
type User struct {
	ID        string    `json:"id"        gorm:"type:varchar(36);primaryKey"`
	Email     string    `json:"email"     gorm:"type:varchar(255);not null;uniqueIndex"`
	Verified  bool      `json:"verified"  gorm:"not null;default:false"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Profile *Profile `json:"profile,omitempty" gorm:"foreignKey:UserID;references:ID"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Profile carries the display name and role of a user.
type Profile struct {
	ID        string    `json:"id"       gorm:"type:varchar(36);primaryKey"`
	UserID    string    `json:"userId"   gorm:"type:varchar(36);not null;uniqueIndex"`
	FullName  string    `json:"fullName" gorm:"type:varchar(255);not null"`
	Role      Role      `json:"role"     gorm:"type:varchar(16);not null;default:'buyer'"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// Store is a seller's storefront. OwnerID references the owner's Profile,
// whose UserID is the identity that acts as seller in conversations.
type Store struct {
	ID        string      `json:"id"          gorm:"type:varchar(36);primaryKey"`
	OwnerID   string      `json:"ownerId"     gorm:"type:varchar(36);not null;uniqueIndex"`
	Name      string      `json:"storeName"   gorm:"column:store_name;type:varchar(255);not null"`
	Status    StoreStatus `json:"storeStatus" gorm:"column:store_status;type:varchar(16);not null;default:'incomplete'"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`

	Owner Profile `json:"-" gorm:"foreignKey:OwnerID;references:ID"`
}

// TableName returns the database table name for Store.
func (Store) TableName() string { return "stores" }

// ChatRoom is the single conversation between one buyer and one store.
//
// Fields:
//   - ID: UUID primary key.
//   - StoreID / BuyerID: the two parties; the pair is unique.
//   - CreatedAt: set once on creation.
//   - UpdatedAt: advanced whenever a message is appended; orders the inbox.
type ChatRoom struct {
	ID        string    `json:"id"        gorm:"type:varchar(36);primaryKey"`
	StoreID   string    `json:"storeId"   gorm:"type:varchar(36);not null;uniqueIndex:ux_chat_rooms_store_buyer,priority:1"`
	BuyerID   string    `json:"buyerId"   gorm:"type:varchar(36);not null;index;uniqueIndex:ux_chat_rooms_store_buyer,priority:2"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"index"`

	Store Store `json:"-" gorm:"foreignKey:StoreID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Buyer User  `json:"-" gorm:"foreignKey:BuyerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatRoom.
func (ChatRoom) TableName() string { return "chat_rooms" }

// ChatMessage is a single message within a room. At least one of Message or
// AttachmentURL is non-empty. Within a room, messages are ordered by
// (CreatedAt, ID); IDs are time-ordered UUIDs so the tie-break follows
// insertion order.
type ChatMessage struct {
	ID            string    `json:"id"                      gorm:"type:varchar(36);primaryKey"`
	ChatRoomID    string    `json:"chatRoomId"              gorm:"type:varchar(36);not null;index:idx_chat_messages_room_created,priority:1"`
	SenderID      string    `json:"senderId"                gorm:"type:varchar(36);not null;index"`
	Message       string    `json:"message"                 gorm:"type:varchar(2000);not null;default:''"`
	AttachmentURL *string   `json:"attachmentUrl,omitempty" gorm:"type:varchar(1000)"`
	IsRead        bool      `json:"isRead"                  gorm:"not null;default:false"`
	CreatedAt     time.Time `json:"createdAt"               gorm:"index:idx_chat_messages_room_created,priority:2"`
	UpdatedAt     time.Time `json:"updatedAt"`

	ChatRoom ChatRoom `json:"-" gorm:"foreignKey:ChatRoomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chat_messages" }
