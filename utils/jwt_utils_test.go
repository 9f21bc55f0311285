package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("c-1", RoleAdmin, secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "c-1", claims.UserID)
	require.True(t, claims.IsAdmin())
}

func TestParseTokenDefaultsToCustomer(t *testing.T) {
	token, err := GenerateToken("c-1", "", secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, RoleCustomer, claims.Role)
	require.False(t, claims.IsAdmin())
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken("c-1", RoleCustomer, secret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, secret)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestParseTokenRejectsInvalid(t *testing.T) {
	token, err := GenerateToken("c-1", RoleCustomer, secret, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, "other-secret")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken("not-a-token", secret)
	require.ErrorIs(t, err, ErrInvalidToken)

	noUser, err := GenerateToken("", RoleCustomer, secret, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(noUser, secret)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		UserID: "c-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = ParseToken(token, secret)
	require.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(none, secret)
	require.ErrorIs(t, err, ErrInvalidToken)
}
