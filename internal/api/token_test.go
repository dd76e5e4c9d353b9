package api

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelTokenRoundTrip(t *testing.T) {
	token, err := GenerateChannelToken("secret", "123456", "p3")
	require.NoError(t, err)

	claims, err := ValidateChannelToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "123456", claims.RoomID)
	assert.Equal(t, "p3", claims.PlayerID)
	assert.Equal(t, "p3", claims.Subject)
}

func TestChannelToken_WrongSecret(t *testing.T) {
	token, err := GenerateChannelToken("secret", "123456", "p0")
	require.NoError(t, err)

	_, err = ValidateChannelToken("other", token)
	assert.Error(t, err)
}

func TestChannelToken_WrongSigningMethod(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, ChannelClaims{RoomID: "123456", PlayerID: "p0"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateChannelToken("secret", token)
	assert.Error(t, err)
}

func TestChannelToken_Garbage(t *testing.T) {
	_, err := ValidateChannelToken("secret", "not-a-token")
	assert.Error(t, err)
}
