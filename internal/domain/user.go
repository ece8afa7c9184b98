package domain

import "time"

// User is an account that can log in, own pools and moderate them.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	IsStaff      bool      `json:"is_staff"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity returns the request identity for this user.
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Username: u.Username, IsStaff: u.IsStaff}
}

// ProfileUpdate holds optional profile fields; nil means unchanged.
type ProfileUpdate struct {
	Email        *string
	FirstName    *string
	LastName     *string
	PasswordHash *string
}

// LoginAttempt is one recorded login try, used for lockout.
type LoginAttempt struct {
	Username  string
	IPAddress string
	Success   bool
	CreatedAt time.Time
}
