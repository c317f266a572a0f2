package domain

import "time"

// Capability names a feature-area permission carried by an identity token.
// The two flags are independent: an operator can hold both, either, or neither.
type Capability string

const (
	CapabilityAdministrator Capability = "administrator"
	CapabilitySalesAgent    Capability = "sales"
)

// Claims is the boolean claim map embedded in an identity token.
type Claims struct {
	Administrator bool `json:"admin"`
	Sales         bool `json:"sales"`
}

// Session is the resolved local view of an external identity. It is derived
// entirely from the token and the claims cache; it is never persisted.
//
// Version counts claim changes so readers can detect staleness instead of
// relying on implicit reactivity. RefreshedAt is the time the claims last
// changed, not the time of the last provider round-trip, so a refresh that
// finds no change yields a session identical to the previous one.
type Session struct {
	Identity        string    `json:"identity"`
	DisplayName     string    `json:"displayName"`
	Email           string    `json:"email"`
	AvatarRef       string    `json:"avatarRef,omitempty"`
	IsAdministrator bool      `json:"isAdministrator"`
	IsSalesAgent    bool      `json:"isSalesAgent"`
	Version         int64     `json:"version"`
	RefreshedAt     time.Time `json:"refreshedAt"`
}

func (s Session) IsAuthenticated() bool {
	return s.Identity != ""
}

func (s Session) Claims() Claims {
	return Claims{Administrator: s.IsAdministrator, Sales: s.IsSalesAgent}
}

// Allows reports whether the session carries the given capability.
// Which capability gates which feature is the router's concern.
func (s Session) Allows(c Capability) bool {
	switch c {
	case CapabilityAdministrator:
		return s.IsAdministrator
	case CapabilitySalesAgent:
		return s.IsSalesAgent
	}
	return false
}
