package auth_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rogerHuntGauntlet/outreach/internal/auth"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestJWTIssueAndValidate(t *testing.T) {
	mgr, err := auth.NewJWTManager("", "", time.Hour, quiet)
	require.NoError(t, err)

	subject := uuid.New()
	token, expiresAt, err := mgr.IssueToken(subject, auth.RoleOperator, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now().Add(59*time.Minute)))

	claims, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, subject, claims.SubjectID())
	assert.Equal(t, auth.RoleOperator, claims.Role)
	assert.Equal(t, "outreach", claims.Issuer)
}

func TestIssueToken_ExplicitTTL(t *testing.T) {
	mgr, err := auth.NewJWTManager("", "", 24*time.Hour, quiet)
	require.NoError(t, err)

	_, expiresAt, err := mgr.IssueToken(uuid.New(), auth.RoleAdmin, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, expiresAt.Before(time.Now().Add(6*time.Minute)))
}

func TestIssueToken_UnknownRole(t *testing.T) {
	mgr, err := auth.NewJWTManager("", "", time.Hour, quiet)
	require.NoError(t, err)

	_, _, err = mgr.IssueToken(uuid.New(), auth.Role("root"), 0)
	require.ErrorContains(t, err, "unknown role")
}

// writeKeys writes a fresh Ed25519 key pair to temp PEM files and returns the
// paths and the raw private key for forging tokens.
func writeKeys(t *testing.T) (string, string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	dir := t.TempDir()

	privBytes, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	privPath := filepath.Join(dir, "priv.pem")
	require.NoError(t, os.WriteFile(privPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privBytes}), 0o600))

	pubBytes, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	pubPath := filepath.Join(dir, "pub.pem")
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}), 0o600))

	return privPath, pubPath, priv
}

func newTestJWTManagerWithKey(t *testing.T) (*auth.JWTManager, ed25519.PrivateKey) {
	t.Helper()
	privPath, pubPath, priv := writeKeys(t)
	mgr, err := auth.NewJWTManager(privPath, pubPath, time.Hour, quiet)
	require.NoError(t, err)
	return mgr, priv
}

// forgeToken signs a JWT with the given private key and claims.
func forgeToken(t *testing.T, privKey ed25519.PrivateKey, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(privKey)
	require.NoError(t, err)
	return signed
}

func forgedClaims(subject, iss string, role auth.Role) *auth.Claims {
	now := time.Now().UTC()
	return &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    iss,
			Audience:  jwt.ClaimStrings{"outreach"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			ID:        uuid.New().String(),
		},
		Role: role,
	}
}

func TestValidateToken_WrongIssuer(t *testing.T) {
	mgr, privKey := newTestJWTManagerWithKey(t)
	token := forgeToken(t, privKey, forgedClaims(uuid.New().String(), "someone-else", auth.RoleOperator))

	_, err := mgr.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid issuer")
}

func TestValidateToken_EmptyIssuer(t *testing.T) {
	mgr, privKey := newTestJWTManagerWithKey(t)
	token := forgeToken(t, privKey, forgedClaims(uuid.New().String(), "", auth.RoleOperator))

	_, err := mgr.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid issuer")
}

func TestValidateToken_MalformedSubject(t *testing.T) {
	mgr, privKey := newTestJWTManagerWithKey(t)
	token := forgeToken(t, privKey, forgedClaims("not-a-uuid", "outreach", auth.RoleOperator))

	_, err := mgr.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid subject")
}

func TestValidateToken_UnknownRole(t *testing.T) {
	mgr, privKey := newTestJWTManagerWithKey(t)
	token := forgeToken(t, privKey, forgedClaims(uuid.New().String(), "outreach", auth.Role("superuser")))

	_, err := mgr.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid role")
}

func TestValidateToken_OtherKey(t *testing.T) {
	mgr, _ := newTestJWTManagerWithKey(t)
	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	token := forgeToken(t, otherPriv, forgedClaims(uuid.New().String(), "outreach", auth.RoleAdmin))

	_, err = mgr.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	mgr, privKey := newTestJWTManagerWithKey(t)
	claims := forgedClaims(uuid.New().String(), "outreach", auth.RoleOperator)
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	token := forgeToken(t, privKey, claims)

	_, err := mgr.ValidateToken(token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestNewJWTManager_MismatchedKeys(t *testing.T) {
	privPath, _, _ := writeKeys(t)
	_, otherPub, _ := writeKeys(t)

	_, err := auth.NewJWTManager(privPath, otherPub, time.Hour, quiet)
	require.ErrorContains(t, err, "does not match")
}

func TestNewJWTManager_MissingFile(t *testing.T) {
	_, err := auth.NewJWTManager(filepath.Join(t.TempDir(), "nope.pem"), "also-missing.pem", time.Hour, quiet)
	require.ErrorContains(t, err, "read private key")
}

func TestNewIssuer_TokensVerifyWithServerKeys(t *testing.T) {
	privPath, pubPath, _ := writeKeys(t)
	issuer, err := auth.NewIssuer(privPath, time.Hour)
	require.NoError(t, err)
	server, err := auth.NewJWTManager(privPath, pubPath, time.Hour, quiet)
	require.NoError(t, err)

	token, _, err := issuer.IssueToken(uuid.New(), auth.RoleAdmin, 0)
	require.NoError(t, err)
	claims, err := server.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
}

func TestWriteKeyPair(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	privPath, pubPath, err := auth.WriteKeyPair(dir)
	require.NoError(t, err)

	info, err := os.Stat(privPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = auth.NewJWTManager(privPath, pubPath, time.Hour, quiet)
	require.NoError(t, err)

	_, _, err = auth.WriteKeyPair(dir)
	require.ErrorIs(t, err, auth.ErrKeyExists)
}
