package domain

import "time"

// Installation tracks per-shop install state. WebhooksRegistered is an
// advisory flag that lets the auth path skip redundant remote registration;
// the remote registration call itself is idempotent, so the flag is an
// optimization rather than a correctness gate.
type Installation struct {
	Shop               string     `json:"shop" bson:"shop"`
	WebhooksRegistered bool       `json:"webhooks_registered" bson:"webhooks_registered"`
	InstalledAt        time.Time  `json:"installed_at" bson:"installed_at"`
	UninstalledAt      *time.Time `json:"uninstalled_at,omitempty" bson:"uninstalled_at,omitempty"`
}
