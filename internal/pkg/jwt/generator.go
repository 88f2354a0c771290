// internal/pkg/jwt/generator.go
package jwt

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

type Generator struct {
	priv       *rsa.PrivateKey
	issuer     string
	audience   string
	kid        string // key id for rotation
	Ttl        time.Duration
	RefreshTtl time.Duration
}

func NewGenerator(priv *rsa.PrivateKey, issuer, audience, kid string, ttl, refreshTTL time.Duration) *Generator {
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &Generator{
		priv:       priv,
		issuer:     issuer,
		audience:   audience,
		kid:        kid,
		Ttl:        ttl,
		RefreshTtl: refreshTTL,
	}
}

// Token is a signed token plus its id and expiry.
type Token struct {
	Value     string
	JTI       string
	ExpiresAt time.Time
}

// Generate signs a token for userID bound to sessionID.
func (g *Generator) Generate(userID, email, sessionID, purpose string, ttl time.Duration) (*Token, error) {
	if g.priv == nil {
		return nil, fmt.Errorf("jwt generator has nil private key")
	}

	now := time.Now()
	jti := ulid.Make().String()
	exp := now.Add(ttl)

	claims := &Claims{
		UserID:         userID,
		Email:          email,
		SessionID:      sessionID,
		SessionPurpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   userID,
			Audience:  []string{g.audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	signed, err := tok.SignedString(g.priv)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{Value: signed, JTI: jti, ExpiresAt: exp}, nil
}

// GenerateAccessToken generates a standard access token
func (g *Generator) GenerateAccessToken(userID, email, sessionID string) (*Token, error) {
	return g.Generate(userID, email, sessionID, PurposeAccess, g.Ttl)
}

// GenerateRefreshToken generates a refresh token (longer TTL)
func (g *Generator) GenerateRefreshToken(userID, sessionID string) (*Token, error) {
	return g.Generate(userID, "", sessionID, PurposeRefresh, g.RefreshTtl)
}
