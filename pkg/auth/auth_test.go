package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T, secret string) *JWTValidator {
	t.Helper()
	v, err := NewJWTValidator(JWTConfig{
		SecretKey: secret,
		Issuer:    "coredetect",
		Audience:  []string{"coredetect-api"},
		TTL:       time.Hour,
	})
	require.NoError(t, err)
	return v
}

func TestJWTValidator_RoundTrip(t *testing.T) {
	// Arrange
	v := newValidator(t, "secret")
	token, err := v.GenerateToken("analyst-1", "a@example.com", []string{"analyst"})
	require.NoError(t, err)

	// Act
	claims, err := v.ValidateToken("Bearer " + token)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "analyst-1", claims.UserID)
	assert.Equal(t, []string{"analyst"}, claims.Roles)
}

func TestJWTValidator_Rejects(t *testing.T) {
	v := newValidator(t, "secret")
	valid, err := v.GenerateToken("analyst-1", "", nil)
	require.NoError(t, err)

	other := newValidator(t, "other-secret")
	forged, err := other.GenerateToken("analyst-1", "", nil)
	require.NoError(t, err)

	expiring := newValidator(t, "secret")
	expiring.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiring.GenerateToken("analyst-1", "", nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "missing", token: "", want: ErrMissingToken},
		{name: "garbage", token: "not-a-jwt", want: ErrInvalidToken},
		{name: "wrong key", token: forged, want: ErrInvalidSignature},
		{name: "expired", token: expired, want: ErrExpiredToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err = v.ValidateToken(valid)
	assert.NoError(t, err)
}

func TestNewJWTValidator_RequiresSecret(t *testing.T) {
	_, err := NewJWTValidator(JWTConfig{})
	assert.Error(t, err)
}

func TestUserContext(t *testing.T) {
	_, err := GetUserFromContext(context.Background())
	assert.Error(t, err)

	ctx := SetUserInContext(context.Background(), &UserContext{UserID: "u", Roles: []string{"admin"}})
	user, err := GetUserFromContext(ctx)
	require.NoError(t, err)
	assert.True(t, user.HasRole("analyst", "admin"))
	assert.False(t, user.HasRole("analyst"))
}

func TestKeyedLimiter(t *testing.T) {
	// Arrange
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewKeyedLimiter(60, 2, time.Minute)
	l.now = func() time.Time { return now }

	// Act / Assert
	assert.True(t, l.Allow("ip:1"))
	assert.True(t, l.Allow("ip:1"))
	assert.False(t, l.Allow("ip:1"))
	assert.True(t, l.Allow("ip:2"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("ip:1"))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, l.Sweep())
	assert.Equal(t, 0, l.Len())
}
