package types

import (
	"strings"
	"time"
)

// IdentityKind distinguishes anonymous browsers from authenticated users.
type IdentityKind string

const (
	IdentityGuest IdentityKind = "guest"
	IdentityUser  IdentityKind = "user"
)

// Identity names the owner of a synchronized collection. Guest identities are
// browser-scoped opaque ids; user identities are stable account ids.
type Identity struct {
	Kind IdentityKind `json:"kind"`
	ID   string       `json:"id"`
}

// Guest builds a guest identity from a browser/device-scoped id.
func Guest(id string) Identity {
	return Identity{Kind: IdentityGuest, ID: id}
}

// User builds an authenticated identity from a stable account id.
func User(id string) Identity {
	return Identity{Kind: IdentityUser, ID: id}
}

// IsGuest reports whether the identity is anonymous.
func (i Identity) IsGuest() bool {
	return i.Kind == IdentityGuest
}

// IsZero reports whether the identity is unset.
func (i Identity) IsZero() bool {
	return i.Kind == "" || strings.TrimSpace(i.ID) == ""
}

// Namespace yields the storage key segment for this identity. Guest and user
// namespaces can never collide, even for equal raw ids.
func (i Identity) Namespace() string {
	return string(i.Kind) + ":" + i.ID
}

// String implements fmt.Stringer.
func (i Identity) String() string {
	return i.Namespace()
}

// Item is one entry of a synchronized collection. Quantity is meaningful only
// for the cart; favorites carry the add time alone.
type Item struct {
	ProductRef string    `json:"product_ref"`
	Quantity   int       `json:"quantity,omitempty"`
	AddedAt    time.Time `json:"added_at,omitempty"`
}
