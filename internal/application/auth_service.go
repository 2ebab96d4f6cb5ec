package application

import (
	"context"
	"fmt"
	"strings"

	"storefront-session-layer/internal/domain"
	"storefront-session-layer/internal/ports"

	"github.com/rs/zerolog"
)

const bearerPrefix = "Bearer "

// AuthService authenticates inbound requests: it verifies the presented
// session token, exchanges it for a durable access token, and keeps the
// per-shop session and installation state current.
type AuthService struct {
	decoder       ports.SessionTokenDecoder
	platform      ports.PlatformClient
	sessions      ports.SessionStore
	installations ports.InstallationStore
	registry      *WebhookRegistry
	logger        zerolog.Logger
}

// NewAuthService creates the authentication service.
func NewAuthService(
	decoder ports.SessionTokenDecoder,
	platform ports.PlatformClient,
	sessions ports.SessionStore,
	installations ports.InstallationStore,
	registry *WebhookRegistry,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		decoder:       decoder,
		platform:      platform,
		sessions:      sessions,
		installations: installations,
		registry:      registry,
		logger:        logger,
	}
}

// VerifyRequest validates the Authorization header value and exchanges the
// session token for access credentials of the requested audience. It has no
// side effects; persistence belongs to Authorize. Token contents are never
// logged.
func (s *AuthService) VerifyRequest(ctx context.Context, authorization string, online bool) (*domain.AuthContext, error) {
	if !strings.HasPrefix(authorization, bearerPrefix) {
		return nil, fmt.Errorf("%w: authorization header is not a bearer token", domain.ErrMalformedCredential)
	}
	token := strings.TrimPrefix(authorization, bearerPrefix)

	payload, err := s.decoder.Decode(token)
	if err != nil {
		return nil, err
	}

	session, err := s.platform.ExchangeSessionToken(ctx, payload.Shop, token, online)
	if err != nil {
		return nil, err
	}

	return &domain.AuthContext{Shop: payload.Shop, Session: session}, nil
}

// Authorize verifies the request and then persists what the verification
// produced: the exchanged session is saved, and webhook subscriptions are
// declared for the shop unless the installation record already shows them
// registered.
func (s *AuthService) Authorize(ctx context.Context, authorization string, online bool) (*domain.AuthContext, error) {
	authCtx, err := s.VerifyRequest(ctx, authorization, online)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Save(ctx, authCtx.Session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.ensureWebhooksRegistered(ctx, authCtx)

	return authCtx, nil
}

// ensureWebhooksRegistered performs remote webhook registration when the
// installation flag is unset. The flag is advisory: a race between two
// first requests means two registration calls, both safe. Failures are
// logged and left for the next authenticated request to retry, which is why
// this never fails the authorization itself.
func (s *AuthService) ensureWebhooksRegistered(ctx context.Context, authCtx *domain.AuthContext) {
	installation, err := s.installations.Get(ctx, authCtx.Shop)
	if err != nil {
		s.logger.Warn().Err(err).Str("shop", authCtx.Shop).Msg("Failed to read installation record")
		return
	}
	if installation != nil && installation.WebhooksRegistered {
		return
	}

	if err := s.registry.RegisterWithPlatform(ctx, authCtx.Session); err != nil {
		s.logger.Warn().Err(err).Str("shop", authCtx.Shop).Msg("Webhook registration failed, will retry on next request")
		return
	}

	if _, err := s.installations.EnsureRegistered(ctx, authCtx.Shop); err != nil {
		s.logger.Warn().Err(err).Str("shop", authCtx.Shop).Msg("Failed to persist installation record")
	}
}
