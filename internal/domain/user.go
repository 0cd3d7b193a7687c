package domain

import "time"

// User represents a registered account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the non-sensitive view of a user that leaves the service layer.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Identity strips the password hash and timestamps.
func (u *User) Identity() *Identity {
	if u == nil {
		return nil
	}
	return &Identity{ID: u.ID, Email: u.Email}
}
