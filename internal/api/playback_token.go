package api

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PlaybackClaims name the media-relay stream a client may attach to. The
// relay validates the HMAC with the shared secret; the core never carries
// media itself.
type PlaybackClaims struct {
	StreamKey string `json:"stream_key"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

func newPlaybackToken(streamKey, sessionID, userID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := PlaybackClaims{
		StreamKey: streamKey,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    "camhive",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(secret))
}
