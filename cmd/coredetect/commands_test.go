package main

import (
	"bytes"
	"strings"
	"testing"

	"coredetect/pkg/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	// Arrange
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("JWT_ISSUER", "coredetect")

	// Act
	out, err := execute(t, "token", "--user", "analyst-7", "--roles", "analyst, admin")

	// Assert
	require.NoError(t, err)
	validator, err := auth.NewJWTValidator(auth.JWTConfig{SecretKey: "cli-secret", Issuer: "coredetect"})
	require.NoError(t, err)
	claims, err := validator.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "analyst-7", claims.UserID)
	assert.Equal(t, []string{"analyst", "admin"}, claims.Roles)
}

func TestTokenCommand_RequiresSecret(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "")

	_, err := execute(t, "token", "--user", "analyst-7")

	assert.Error(t, err)
}

func TestDetectCommand_SeedFlags(t *testing.T) {
	_, err := execute(t, "detect")
	assert.Error(t, err)

	_, err = execute(t, "detect", "--seed", "1", "--screen-name", "jack")
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a,,b "))
}
