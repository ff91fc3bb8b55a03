package domain

// Role is the marketplace role carried by an access token and a profile.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// ParseRole maps a raw claim value to a Role. Unknown values yield "".
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin, RoleBuyer, RoleSeller:
		return Role(s)
	}
	return ""
}

// Identity is the authenticated caller: who they are and which role their
// token was issued for.
type Identity struct {
	UserID string
	Role   Role
}

// Party is the caller's resolved side of the marketplace. It is either a
// BuyerParty or a SellerParty and is resolved once per operation.
type Party interface {
	isParty()
	// ActorID is the user id acting on behalf of this party.
	ActorID() string
}

// BuyerParty is a verified user acting as a buyer.
type BuyerParty struct {
	UserID string
}

func (BuyerParty) isParty()          {}
func (b BuyerParty) ActorID() string { return b.UserID }

// SellerParty is a user acting on behalf of the active store they own.
type SellerParty struct {
	StoreID string
	OwnerID string // user id of the store owner
}

func (SellerParty) isParty()          {}
func (s SellerParty) ActorID() string { return s.OwnerID }
