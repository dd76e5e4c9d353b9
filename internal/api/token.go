package api

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// channelTokenTTL bounds how long a join ticket stays usable. Long
// enough to cover a full game plus reconnects.
const channelTokenTTL = 12 * time.Hour

// ChannelClaims bind a websocket ticket to exactly one room and
// player. The ws endpoint refuses any mismatch with the path.
type ChannelClaims struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	jwt.RegisteredClaims
}

// GenerateChannelToken issues the ticket returned by create and join.
func GenerateChannelToken(secret, roomID, playerID string) (string, error) {
	claims := ChannelClaims{
		RoomID:   roomID,
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(channelTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   playerID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateChannelToken parses and verifies a ticket.
func ValidateChannelToken(secret, tokenString string) (*ChannelClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ChannelClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*ChannelClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
