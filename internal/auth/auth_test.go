package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestAuthenticator() *Authenticator {
	return NewAuthenticator(models.AuthConfig{
		Enabled:   true,
		JWTSecret: testSecret,
		Issuer:    "marketplace-test",
		TokenTTL:  time.Hour,
	})
}

func TestAuthenticator_IssueAndValidate(t *testing.T) {
	a := newTestAuthenticator()

	token, err := a.Issue("user-42", []string{"seller", "admin"})
	require.NoError(t, err)

	principal, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", principal.Subject)
	assert.Equal(t, []string{"seller", "admin"}, principal.Roles, "role order is preserved")
}

func TestAuthenticator_IssueWithoutSubject(t *testing.T) {
	_, err := newTestAuthenticator().Issue("", nil)
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestAuthenticator_DefaultTTL(t *testing.T) {
	a := NewAuthenticator(models.AuthConfig{JWTSecret: testSecret})
	assert.Equal(t, DefaultTokenTTL, a.ttl)
}

func TestAuthenticator_RejectsExpiredToken(t *testing.T) {
	a := newTestAuthenticator()
	a.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := a.Issue("user-1", nil)
	require.NoError(t, err)

	a.now = time.Now
	_, err = a.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticator_RejectsWrongSecret(t *testing.T) {
	other := NewAuthenticator(models.AuthConfig{JWTSecret: "ffffffffffffffffffffffffffffffff", Issuer: "marketplace-test"})
	token, err := other.Issue("user-1", nil)
	require.NoError(t, err)

	_, err = newTestAuthenticator().ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticator_RejectsWrongIssuer(t *testing.T) {
	other := NewAuthenticator(models.AuthConfig{JWTSecret: testSecret, Issuer: "someone-else"})
	token, err := other.Issue("user-1", nil)
	require.NoError(t, err)

	_, err = newTestAuthenticator().ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticator_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "marketplace-test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = newTestAuthenticator().ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticator_RejectsMissingSubject(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "marketplace-test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = newTestAuthenticator().ValidateToken(token)
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestAuthenticator_RejectsGarbage(t *testing.T) {
	_, err := newTestAuthenticator().ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
