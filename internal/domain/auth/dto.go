// internal/domain/auth/dto.go
package auth

import "time"

// RegisterRequest for user registration
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email,max=255"`
	Password  string `json:"password" binding:"required,min=8,max=72,special"`
	FullName  string `json:"full_name" binding:"required,min=2,max=50"`
	Username  string `json:"username" binding:"required,min=3,max=30,username"`
	Country   string `json:"country" binding:"required"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginRequest for user login
type LoginRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// RefreshRequest exchanges a refresh token for a new token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LoginResponse successful login response
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         UserInfo  `json:"user"`
}

// UserInfo minimal user information
type UserInfo struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Username string `json:"username"`
}

// UpdateProfileRequest for profile updates. Empty fields are left unchanged.
type UpdateProfileRequest struct {
	FullName  string `json:"full_name" binding:"omitempty,min=2,max=50"`
	Country   string `json:"country" binding:"omitempty,max=100"`
	AvatarURL string `json:"avatar_url" binding:"omitempty,max=1024"`
}
