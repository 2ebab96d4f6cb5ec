package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"storefront-session-layer/internal/application"
	"storefront-session-layer/internal/domain"
	"storefront-session-layer/internal/infrastructure/metrics"
	"storefront-session-layer/internal/ports"

	"github.com/rs/zerolog"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const authContextKey contextKey = "auth_context"

// Server exposes the authenticated API surface and the webhook delivery
// endpoint over HTTP.
type Server struct {
	auth     *application.AuthService
	registry *application.WebhookRegistry
	platform ports.PlatformClient
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewServer creates the HTTP surface over the core services.
func NewServer(
	auth *application.AuthService,
	registry *application.WebhookRegistry,
	platform ports.PlatformClient,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Server {
	return &Server{
		auth:     auth,
		registry: registry,
		platform: platform,
		metrics:  m,
		logger:   logger,
	}
}

// AuthContextFrom extracts the authorized context placed by RequireSession.
func AuthContextFrom(ctx context.Context) (*domain.AuthContext, bool) {
	authCtx, ok := ctx.Value(authContextKey).(*domain.AuthContext)
	return authCtx, ok
}

// RequireSession authenticates the request before the wrapped handler
// runs. An expired token maps to 401 so the client knows to fetch a fresh
// one; every other rejection maps to 403.
func (s *Server) RequireSession(online bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, err := s.auth.Authorize(r.Context(), r.Header.Get("Authorization"), online)
			if err != nil {
				status := statusForAuthError(err)
				s.metrics.ObserveAuth(outcomeForStatus(status))
				// The error chain never carries token material, so
				// logging it is safe; the client only sees the status.
				s.logger.Warn().
					Err(err).
					Int("status", status).
					Str("path", r.URL.Path).
					Msg("Request rejected")
				writeUnauthorized(w, status)
				return
			}

			s.metrics.ObserveAuth("authorized")
			ctx := context.WithValue(r.Context(), authContextKey, authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HandleHello is the sample authenticated endpoint.
func (s *Server) HandleHello(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "success",
		"data":   map[string]string{"hello": "world"},
	})
}

// HandleWebhook accepts one delivered webhook event: verify the signature
// against the raw body, then dispatch by topic. Anything other than 200
// tells the platform to redeliver.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	topic := r.Header.Get("X-Shopify-Topic")
	if topic == "" {
		s.logger.Warn().Msg("Missing X-Shopify-Topic header")
		http.Error(w, "Missing X-Shopify-Topic header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read webhook payload")
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := s.platform.VerifyWebhookRequest(r, body); err != nil {
		s.metrics.ObserveWebhook(topic, "invalid_signature")
		s.logger.Warn().Err(err).Str("topic", topic).Msg("Webhook signature verification failed")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	shop := r.Header.Get("X-Shopify-Shop-Domain")
	if shop == "" {
		var payload map[string]interface{}
		if err := json.Unmarshal(body, &payload); err == nil {
			if d, ok := payload["domain"].(string); ok {
				shop = d
			} else if d, ok := payload["shop_domain"].(string); ok {
				shop = d
			}
		}
	}

	event := &domain.WebhookEvent{
		Topic:    topic,
		Shop:     shop,
		Payload:  body,
		Verified: true,
	}

	if err := s.registry.Dispatch(r.Context(), event); err != nil {
		s.metrics.ObserveWebhook(topic, "failed")
		s.logger.Error().
			Err(err).
			Str("topic", topic).
			Str("shop", shop).
			Msg("Failed to dispatch webhook event")
		http.Error(w, "Failed to process webhook event", http.StatusInternalServerError)
		return
	}

	s.metrics.ObserveWebhook(topic, "ok")
	w.WriteHeader(http.StatusOK)
}

func statusForAuthError(err error) int {
	if errors.Is(err, domain.ErrExpiredToken) {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

func outcomeForStatus(status int) string {
	if status == http.StatusUnauthorized {
		return "expired"
	}
	return "rejected"
}

func writeUnauthorized(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "error",
		"message": "unauthorized",
	})
}
