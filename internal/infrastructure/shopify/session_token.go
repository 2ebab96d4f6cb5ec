package shopify

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"storefront-session-layer/internal/domain"
	"storefront-session-layer/internal/ports"

	"github.com/golang-jwt/jwt/v5"
)

// sessionTokenClaims is the payload of a platform session token. The dest
// claim carries the shop the token was issued for.
type sessionTokenClaims struct {
	Dest      string `json:"dest"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// SessionTokenDecoder validates HS256-signed session tokens issued to this
// app. The audience claim must match the app API key.
type SessionTokenDecoder struct {
	apiKey string
	secret []byte
}

// NewSessionTokenDecoder creates a decoder bound to the app credentials.
func NewSessionTokenDecoder(apiKey, apiSecret string) *SessionTokenDecoder {
	return &SessionTokenDecoder{
		apiKey: apiKey,
		secret: []byte(apiSecret),
	}
}

var _ ports.SessionTokenDecoder = (*SessionTokenDecoder)(nil)

// Decode validates the token signature, audience and expiry and extracts
// the shop from the destination claim.
func (d *SessionTokenDecoder) Decode(token string) (*domain.SessionTokenPayload, error) {
	claims := &sessionTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return d.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithAudience(d.apiKey),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", domain.ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, domain.ErrInvalidToken
	}

	if claims.Dest == "" {
		return nil, fmt.Errorf("%w: missing dest claim", domain.ErrInvalidToken)
	}
	shop := strings.TrimPrefix(claims.Dest, "https://")

	var userID int64
	if claims.Subject != "" {
		// The subject is the numeric id of the logged-in user. Offline
		// usage does not depend on it, so a non-numeric subject is not
		// fatal.
		userID, _ = strconv.ParseInt(claims.Subject, 10, 64)
	}

	payload := &domain.SessionTokenPayload{
		Shop:      shop,
		UserID:    userID,
		SessionID: claims.SessionID,
	}
	if claims.ExpiresAt != nil {
		payload.ExpiresAt = claims.ExpiresAt.Time
	}
	return payload, nil
}
