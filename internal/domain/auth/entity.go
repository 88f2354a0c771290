// internal/domain/auth/entity.go
package auth

import "time"

// User is a users row including the password hash.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Username     string    `json:"username" db:"username"`
	FullName     string    `json:"full_name" db:"full_name"`
	Country      string    `json:"country" db:"country"`
	AvatarURL    string    `json:"avatar_url,omitempty" db:"avatar_url"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"-" db:"updated_at"`
}

// Profile is the public view of the signed-in user.
func (u *User) Profile() *Profile {
	return &Profile{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Username:  u.Username,
		Country:   u.Country,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
	}
}

type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Username  string    `json:"username"`
	Country   string    `json:"country"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserSummary is embedded next to books, requests, notifications and chats.
type UserSummary struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Donor is a user with at least one listed book.
type Donor struct {
	UserSummary
	Country       string `json:"country"`
	DonationCount int    `json:"donation_count"`
	ListedCount   int    `json:"listed_count"`
}
