// internal/pkg/session/types.go
package session

import "time"

// SessionData is one signed-in device. It lives from sign-in until sign-out
// or refresh expiry; access tokens rotate within it.
type SessionData struct {
	SessionID      string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	Email          string    `json:"email"`
	AccessJTI      string    `json:"access_jti"`
	RefreshJTI     string    `json:"refresh_jti"`
	IPAddress      string    `json:"ip_address"`
	UserAgent      string    `json:"user_agent"`
	LoginAt        time.Time `json:"login_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	IsActive       bool      `json:"is_active"`
}
