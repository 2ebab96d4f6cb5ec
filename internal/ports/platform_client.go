package ports

import (
	"context"
	"net/http"

	"storefront-session-layer/internal/domain"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

// SessionTokenDecoder validates and decodes an inbound session token.
// Implementations return domain.ErrInvalidToken or domain.ErrExpiredToken.
type SessionTokenDecoder interface {
	Decode(token string) (*domain.SessionTokenPayload, error)
}

// PlatformClient is the app's view of the storefront platform: token
// exchange, webhook subscription management and webhook payload
// authenticity. Signature verification is a trusted primitive; this layer
// never reimplements it.
type PlatformClient interface {
	// ExchangeSessionToken trades a verified session token for a durable
	// access token of the requested audience. Failures are
	// domain.ErrExchangeFailed.
	ExchangeSessionToken(ctx context.Context, shop string, sessionToken string, online bool) (*domain.Session, error)

	// ListWebhooks returns the shop's current webhook subscriptions.
	ListWebhooks(ctx context.Context, shop string, accessToken string) ([]goshopify.Webhook, error)

	// CreateWebhook subscribes the shop to a topic delivered to address.
	CreateWebhook(ctx context.Context, shop string, accessToken string, topic domain.WebhookTopic, address string) (*goshopify.Webhook, error)

	// VerifyWebhookRequest checks the delivery signature against the raw
	// body already read from the request.
	VerifyWebhookRequest(r *http.Request, body []byte) error
}
