// internal/service/auth/auth.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"segmentbook-service/internal/domain/auth"
	xerrors "segmentbook-service/internal/pkg/errors"
	"segmentbook-service/internal/pkg/jwt"
	"segmentbook-service/internal/pkg/session"
)

// UserRepository is the slice of the users table auth needs.
type UserRepository interface {
	CreateUser(ctx context.Context, u *auth.User) error
	FindUserByEmail(ctx context.Context, email string) (*auth.User, error)
	FindUserByID(ctx context.Context, id string) (*auth.User, error)
}

// Sessions is implemented by *session.Manager.
type Sessions interface {
	CreateSession(ctx context.Context, s *session.SessionData) error
	GetSession(ctx context.Context, sessionID string) (*session.SessionData, error)
	Rotate(ctx context.Context, s *session.SessionData, accessJTI, refreshJTI string) error
	InvalidateSession(ctx context.Context, sessionID string) error
	IsTokenBlacklisted(ctx context.Context, jti string) (bool, error)
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// LoginLimiter is implemented by *session.RateLimiter.
type LoginLimiter interface {
	CheckLoginAttempt(ctx context.Context, ip, email string) (bool, int64, error)
	ResetLoginAttempts(ctx context.Context, ip, email string) error
}

// SessionNotifier tells connected sockets their session ended.
type SessionNotifier interface {
	ForceLogout(userID, sessionID, reason string)
}

var errInvalidCredentials = xerrors.New(xerrors.ErrUnauthorized, "Invalid email or password")

type AuthService struct {
	users       UserRepository
	jwtManager  *jwt.Manager
	sessions    Sessions
	rateLimiter LoginLimiter
	hub         SessionNotifier
	logger      *zap.Logger
	now         func() time.Time
}

func NewAuthService(
	users UserRepository,
	jwtManager *jwt.Manager,
	sessions Sessions,
	rateLimiter LoginLimiter,
	hub SessionNotifier,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		jwtManager:  jwtManager,
		sessions:    sessions,
		rateLimiter: rateLimiter,
		hub:         hub,
		logger:      logger,
		now:         time.Now,
	}
}

// SetNotifier attaches the realtime hub. The hub validates tokens through
// this service, so it is built afterwards.
func (s *AuthService) SetNotifier(hub SessionNotifier) {
	s.hub = hub
}

// ========== Registration ==========

// Register creates the account and signs it in.
func (s *AuthService) Register(ctx context.Context, req *auth.RegisterRequest) (*auth.LoginResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &auth.User{
		Email:        strings.TrimSpace(req.Email),
		Username:     strings.ToLower(strings.TrimSpace(req.Username)),
		FullName:     strings.TrimSpace(req.FullName),
		Country:      strings.TrimSpace(req.Country),
		PasswordHash: string(hash),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
	)
	return s.startSession(ctx, user, req.IPAddress, req.UserAgent)
}

// ========== Login ==========

func (s *AuthService) Login(ctx context.Context, req *auth.LoginRequest) (*auth.LoginResponse, error) {
	allowed, _, err := s.rateLimiter.CheckLoginAttempt(ctx, req.IPAddress, req.Email)
	if err != nil {
		// Redis trouble must not lock everyone out.
		s.logger.Warn("rate limiter unavailable", zap.Error(err))
	} else if !allowed {
		return nil, xerrors.New(xerrors.ErrRateLimited, "Too many login attempts. Please try again later")
	}

	user, err := s.users.FindUserByEmail(ctx, req.Email)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}

	if err := s.rateLimiter.ResetLoginAttempts(ctx, req.IPAddress, req.Email); err != nil {
		s.logger.Debug("failed to reset login attempts", zap.Error(err))
	}
	return s.startSession(ctx, user, req.IPAddress, req.UserAgent)
}

func (s *AuthService) startSession(ctx context.Context, user *auth.User, ip, userAgent string) (*auth.LoginResponse, error) {
	sessionID := uuid.NewString()
	access, refresh, err := s.issue(user, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	data := &session.SessionData{
		SessionID:      sessionID,
		UserID:         user.ID,
		Email:          user.Email,
		AccessJTI:      access.JTI,
		RefreshJTI:     refresh.JTI,
		IPAddress:      ip,
		UserAgent:      userAgent,
		LoginAt:        now,
		LastActivityAt: now,
		ExpiresAt:      refresh.ExpiresAt,
		IsActive:       true,
	}
	if err := s.sessions.CreateSession(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s.response(user, access, refresh), nil
}

func (s *AuthService) issue(user *auth.User, sessionID string) (*jwt.Token, *jwt.Token, error) {
	access, err := s.jwtManager.Generator.GenerateAccessToken(user.ID, user.Email, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.jwtManager.Generator.GenerateRefreshToken(user.ID, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return access, refresh, nil
}

func (s *AuthService) response(user *auth.User, access, refresh *jwt.Token) *auth.LoginResponse {
	return &auth.LoginResponse{
		AccessToken:  access.Value,
		RefreshToken: refresh.Value,
		TokenType:    "Bearer",
		ExpiresIn:    int(access.ExpiresAt.Sub(s.now()).Seconds()),
		ExpiresAt:    access.ExpiresAt,
		User: auth.UserInfo{
			ID:       user.ID,
			Email:    user.Email,
			FullName: user.FullName,
			Username: user.Username,
		},
	}
}

// ========== Refresh ==========

// Refresh rotates the token pair of a live session. A refresh token that is
// not the session's latest is refused.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*auth.LoginResponse, error) {
	claims, err := s.jwtManager.Verifier.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, xerrors.New(xerrors.ErrSessionExpired, "Your session has expired. Please sign in again")
	}

	sess, err := s.sessions.GetSession(ctx, claims.SessionID)
	if err != nil || sess.UserID != claims.UserID {
		return nil, xerrors.New(xerrors.ErrSessionExpired, "Your session has expired. Please sign in again")
	}
	if sess.RefreshJTI != claims.ID {
		s.logger.Warn("stale refresh token presented",
			zap.String("session_id", sess.SessionID),
			zap.String("user_id", sess.UserID),
		)
		return nil, xerrors.New(xerrors.ErrSessionExpired, "Your session has expired. Please sign in again")
	}

	user, err := s.users.FindUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	access, refresh, err := s.issue(user, sess.SessionID)
	if err != nil {
		return nil, err
	}
	oldAccess := sess.AccessJTI
	if err := s.sessions.Rotate(ctx, sess, access.JTI, refresh.JTI); err != nil {
		return nil, err
	}
	if err := s.sessions.BlacklistToken(ctx, oldAccess, s.jwtManager.Generator.Ttl); err != nil {
		s.logger.Warn("failed to blacklist rotated token", zap.Error(err))
	}
	return s.response(user, access, refresh), nil
}

// ========== Logout ==========

// Logout ends the session the access token belongs to.
func (s *AuthService) Logout(ctx context.Context, claims *jwt.Claims) error {
	if err := s.sessions.InvalidateSession(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}

	if claims.ExpiresAt != nil {
		if err := s.sessions.BlacklistToken(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
			s.logger.Warn("failed to blacklist token", zap.Error(err))
		}
	}

	if s.hub != nil {
		s.hub.ForceLogout(claims.UserID, claims.SessionID, "Signed out")
	}
	return nil
}

// ValidateToken checks an access token against the blacklist and its session.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := s.jwtManager.Verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrUnauthorized, err)
	}

	blacklisted, err := s.sessions.IsTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		s.logger.Warn("blacklist check failed", zap.Error(err))
	} else if blacklisted {
		return nil, fmt.Errorf("%w: token has been revoked", xerrors.ErrSessionExpired)
	}

	sess, err := s.sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrSessionExpired, err)
	}
	if sess.UserID != claims.UserID {
		return nil, fmt.Errorf("%w: session belongs to another user", xerrors.ErrSessionExpired)
	}
	return claims, nil
}
