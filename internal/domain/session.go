package domain

import (
	"fmt"
	"time"
)

// Session is the durable record produced by a successful token exchange.
// Online sessions are tied to the storefront user that presented the session
// token and expire; the offline session is shop-scoped and does not.
type Session struct {
	ID          string     `json:"id" bson:"_id"`
	Shop        string     `json:"shop" bson:"shop"`
	APIKey      string     `json:"api_key" bson:"api_key"`
	AccessToken string     `json:"access_token" bson:"access_token"`
	Scope       string     `json:"scope" bson:"scope"`
	IsOnline    bool       `json:"is_online" bson:"is_online"`
	UserID      int64      `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Expires     *time.Time `json:"expires,omitempty" bson:"expires,omitempty"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
}

// OfflineSessionID returns the id of the single offline session for a shop.
func OfflineSessionID(shop string) string {
	return "offline_" + shop
}

// OnlineSessionID returns the id of the online session for a shop user.
func OnlineSessionID(shop string, userID int64) string {
	return fmt.Sprintf("%s_%d", shop, userID)
}

// SessionTokenPayload holds the claims extracted from a decoded session token.
// The token itself is never persisted.
type SessionTokenPayload struct {
	// Shop is the destination claim with any scheme prefix stripped.
	Shop      string
	UserID    int64
	SessionID string
	ExpiresAt time.Time
}

// AuthContext is the result of a successful authorization: the tenant the
// request acts on and the exchanged session backing it.
type AuthContext struct {
	Shop    string
	Session *Session
}
