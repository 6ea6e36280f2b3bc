package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	SetJWTSecret("unit-test-secret")

	token, err := GenerateToken(42, RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestParseTokenRejectsExpiredAndForeign(t *testing.T) {
	SetJWTSecret("unit-test-secret")

	expired, err := GenerateToken(1, RoleUser, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.Error(t, err)

	valid, err := GenerateToken(1, RoleUser, time.Hour)
	require.NoError(t, err)
	SetJWTSecret("another-secret")
	defer SetJWTSecret("unit-test-secret")
	_, err = ParseToken(valid)
	assert.Error(t, err)

	_, err = ParseToken("not-a-token")
	assert.Error(t, err)
}
