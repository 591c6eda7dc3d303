package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "this-is-a-very-long-secret-key-for-testing"

func TestNewService_ConfigValidation(t *testing.T) {
	_, err := NewService(Config{SecretKey: "", Duration: time.Hour})
	assert.ErrorIs(t, err, ErrEmptySecretKey)

	_, err = NewService(Config{SecretKey: "short", Duration: time.Hour})
	assert.ErrorIs(t, err, ErrWeakSecretKey)

	_, err = NewService(Config{SecretKey: testSecret, Duration: 0})
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	s, err := NewService(Config{SecretKey: testSecret, Duration: time.Hour})
	require.NoError(t, err)

	tok, err := s.GenerateToken("7f9c24e5-3b18-4f0a-9d22-cc1b5b1f8d10", "alice")
	require.NoError(t, err)

	claims, err := s.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "7f9c24e5-3b18-4f0a-9d22-cc1b5b1f8d10", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestJWTService_Expired(t *testing.T) {
	s, err := NewService(Config{SecretKey: testSecret, Duration: time.Hour})
	require.NoError(t, err)

	// Sign an already-expired token with the same key
	claims := &Claims{
		UserID:   "u1",
		Username: "bob",
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	got, err := s.ValidateToken(tok)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTService_MalformedAndInvalid(t *testing.T) {
	s, err := NewService(Config{SecretKey: testSecret, Duration: time.Hour})
	require.NoError(t, err)

	got, err := s.ValidateToken("not-a-token")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrMalformedToken)

	// Token signed with a different key is invalid, not malformed
	other, err := NewService(Config{SecretKey: "another-very-long-secret-key-for-testing", Duration: time.Hour})
	require.NoError(t, err)
	tok, err := other.GenerateToken("u1", "carol")
	require.NoError(t, err)

	got, err = s.ValidateToken(tok)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_MissingUserIDClaim(t *testing.T) {
	s, err := NewService(Config{SecretKey: testSecret, Duration: time.Hour})
	require.NoError(t, err)

	claims := &Claims{
		Username: "dave",
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	got, err := s.ValidateToken(tok)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrMalformedToken)
}
