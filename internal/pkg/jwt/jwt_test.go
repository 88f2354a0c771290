package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{Issuer: "segmentbook", Audience: "segmentbook-users", TTL: time.Hour, RefreshTTL: 48 * time.Hour, KID: "k1"}
}

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestAccessTokenRoundTrip(t *testing.T) {
	key := newKey(t)
	m := Build(testConfig(), key, &key.PublicKey)

	tok, err := m.Generator.GenerateAccessToken("u1", "ada@example.com", "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.JTI)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 5*time.Second)

	claims, err := m.Verifier.VerifyAccessToken(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "s1", claims.SessionID)
	assert.Equal(t, tok.JTI, claims.ID)

	_, err = m.Verifier.VerifyRefreshToken(tok.Value)
	assert.Error(t, err)
}

func TestRefreshTokenUsesRefreshTTL(t *testing.T) {
	key := newKey(t)
	m := Build(testConfig(), key, &key.PublicKey)

	tok, err := m.Generator.GenerateRefreshToken("u1", "s1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), tok.ExpiresAt, 5*time.Second)

	claims, err := m.Verifier.VerifyRefreshToken(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, PurposeRefresh, claims.SessionPurpose)
}

func TestVerifyRejectsForeignKeyAndIssuer(t *testing.T) {
	key, other := newKey(t), newKey(t)
	m := Build(testConfig(), key, &key.PublicKey)
	tok, err := m.Generator.GenerateAccessToken("u1", "", "s1")
	require.NoError(t, err)

	_, err = NewVerifier(&other.PublicKey, "segmentbook", "segmentbook-users").Verify(tok.Value)
	assert.Error(t, err)

	_, err = NewVerifier(&key.PublicKey, "someone-else", "segmentbook-users").Verify(tok.Value)
	assert.ErrorContains(t, err, "invalid issuer")
}

func TestExpiredTokenIsRejected(t *testing.T) {
	key := newKey(t)
	m := Build(testConfig(), key, &key.PublicKey)
	tok, err := m.Generator.Generate("u1", "", "s1", PurposeAccess, -time.Minute)
	require.NoError(t, err)

	_, err = m.Verifier.VerifyAccessToken(tok.Value)
	assert.Error(t, err)
}

func TestLoadAndBuildFromPEMFiles(t *testing.T) {
	key := newKey(t)
	dir := t.TempDir()

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.PrivPath = filepath.Join(dir, "priv.pem")
	cfg.PubPath = filepath.Join(dir, "pub.pem")
	require.NoError(t, os.WriteFile(cfg.PrivPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}), 0o600))
	require.NoError(t, os.WriteFile(cfg.PubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o600))

	m, err := LoadAndBuild(cfg)
	require.NoError(t, err)

	tok, err := m.Generator.GenerateAccessToken("u1", "", "s1")
	require.NoError(t, err)
	_, err = m.Verifier.VerifyAccessToken(tok.Value)
	assert.NoError(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseRSAPrivateKeyPEM([]byte("not pem"))
	assert.Error(t, err)
	_, err = ParseRSAPublicKeyPEM(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}}))
	assert.Error(t, err)
}
