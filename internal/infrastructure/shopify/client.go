package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront-session-layer/internal/domain"
	"storefront-session-layer/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

const (
	tokenExchangeGrantType   = "urn:ietf:params:oauth:grant-type:token-exchange"
	sessionTokenType         = "urn:ietf:params:oauth:token-type:id_token"
	onlineAccessTokenType    = "urn:shopify:params:oauth:token-type:online-access-token"
	offlineAccessTokenType   = "urn:shopify:params:oauth:token-type:offline-access-token"
	tokenExchangeCallTimeout = 10 * time.Second
)

// Client adapts the platform SDK and the token-exchange endpoint to the
// ports the core consumes.
type Client struct {
	apiKey     string
	apiSecret  string
	app        goshopify.App
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a platform client for the given app credentials.
func NewClient(apiKey, apiSecret string, logger zerolog.Logger) *Client {
	app := goshopify.App{
		ApiKey:    apiKey,
		ApiSecret: apiSecret,
	}
	return &Client{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		app:        app,
		httpClient: &http.Client{Timeout: tokenExchangeCallTimeout},
		logger:     logger,
	}
}

var _ ports.PlatformClient = (*Client)(nil)

// tokenExchangeResponse is the access-token endpoint response. The
// associated user block is only present for online tokens.
type tokenExchangeResponse struct {
	AccessToken    string `json:"access_token"`
	Scope          string `json:"scope"`
	ExpiresIn      int64  `json:"expires_in"`
	AssociatedUser *struct {
		ID int64 `json:"id"`
	} `json:"associated_user"`
}

// ExchangeSessionToken trades a session token for a durable access token.
// The SDK does not expose the token-exchange grant, so the call goes
// directly to the shop's access-token endpoint.
func (c *Client) ExchangeSessionToken(ctx context.Context, shop string, sessionToken string, online bool) (*domain.Session, error) {
	requestedType := offlineAccessTokenType
	if online {
		requestedType = onlineAccessTokenType
	}

	body, err := json.Marshal(map[string]string{
		"client_id":            c.apiKey,
		"client_secret":        c.apiSecret,
		"grant_type":           tokenExchangeGrantType,
		"subject_token":        sessionToken,
		"subject_token_type":   sessionTokenType,
		"requested_token_type": requestedType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", domain.ErrExchangeFailed, err)
	}

	tokenURL := fmt.Sprintf("https://%s/admin/oauth/access_token", shop)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrExchangeFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Response bodies here carry remote error codes, never token
		// material, so the status alone is safe to surface.
		c.logger.Warn().
			Str("shop", shop).
			Int("status", resp.StatusCode).
			Msg("Token exchange rejected by platform")
		return nil, fmt.Errorf("%w: status %d", domain.ErrExchangeFailed, resp.StatusCode)
	}

	var exchange tokenExchangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&exchange); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrExchangeFailed, err)
	}
	if exchange.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token in response", domain.ErrExchangeFailed)
	}

	now := time.Now()
	session := &domain.Session{
		Shop:        shop,
		APIKey:      c.apiKey,
		AccessToken: exchange.AccessToken,
		Scope:       exchange.Scope,
		IsOnline:    online,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if online {
		if exchange.AssociatedUser != nil {
			session.UserID = exchange.AssociatedUser.ID
		}
		session.ID = domain.OnlineSessionID(shop, session.UserID)
		if exchange.ExpiresIn > 0 {
			expires := now.Add(time.Duration(exchange.ExpiresIn) * time.Second)
			session.Expires = &expires
		}
	} else {
		session.ID = domain.OfflineSessionID(shop)
	}

	c.logger.Debug().
		Str("shop", shop).
		Bool("online", online).
		Str("session_id", session.ID).
		Msg("Token exchange completed")

	return session, nil
}

// adminClient builds an SDK client scoped to one shop and access token.
func (c *Client) adminClient(shop string, accessToken string) (*goshopify.Client, error) {
	client, err := goshopify.NewClient(c.app, shop, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// ListWebhooks returns the shop's current webhook subscriptions.
func (c *Client) ListWebhooks(ctx context.Context, shop string, accessToken string) ([]goshopify.Webhook, error) {
	client, err := c.adminClient(shop, accessToken)
	if err != nil {
		return nil, err
	}
	webhooks, err := client.Webhook.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	return webhooks, nil
}

// CreateWebhook subscribes the shop to a topic delivered over HTTP to
// address.
func (c *Client) CreateWebhook(ctx context.Context, shop string, accessToken string, topic domain.WebhookTopic, address string) (*goshopify.Webhook, error) {
	client, err := c.adminClient(shop, accessToken)
	if err != nil {
		return nil, err
	}
	created, err := client.Webhook.Create(ctx, goshopify.Webhook{
		Topic:   string(topic),
		Address: address,
		Format:  "json",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook for topic %s: %w", topic, err)
	}
	return created, nil
}

// VerifyWebhookRequest checks the delivery HMAC. The raw body has already
// been consumed by the caller, so it is restored before handing the request
// to the SDK verifier.
func (c *Client) VerifyWebhookRequest(r *http.Request, body []byte) error {
	r.Body = io.NopCloser(bytes.NewReader(body))
	ok, err := c.app.VerifyWebhookRequestVerbose(r)
	if err != nil {
		return fmt.Errorf("webhook verification failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("webhook signature mismatch")
	}
	return nil
}
