package domain

// Identity is the caller resolved from a session token.
// The zero value is the anonymous identity.
type Identity struct {
	UserID   int64
	Username string
	IsStaff  bool
}

// Anonymous returns the identity used when no session is present.
func Anonymous() Identity { return Identity{} }

// IsAuthenticated reports whether the identity belongs to a known user.
func (i Identity) IsAuthenticated() bool { return i.UserID != 0 }

// Owns reports whether the identity is the owner recorded on a resource.
func (i Identity) Owns(ownerID int64) bool {
	return i.IsAuthenticated() && i.UserID == ownerID
}
