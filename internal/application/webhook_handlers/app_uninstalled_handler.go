package webhook_handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storefront-session-layer/internal/domain"
	"storefront-session-layer/internal/ports"

	"github.com/rs/zerolog"
)

// AppUninstalledHandler handles the app/uninstalled lifecycle event.
type AppUninstalledHandler struct {
	logger        zerolog.Logger
	installations ports.InstallationStore
	sessions      ports.SessionStore
}

// NewAppUninstalledHandler creates the uninstall webhook handler.
func NewAppUninstalledHandler(
	logger zerolog.Logger,
	installations ports.InstallationStore,
	sessions ports.SessionStore,
) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		logger:        logger,
		installations: installations,
		sessions:      sessions,
	}
}

// CanHandle returns true if this handler can process the given topic.
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == string(domain.TopicAppUninstalled)
}

// Handle marks the installation uninstalled and then deletes every session
// for the shop. The two mutations span two stores with no transaction, so
// both are attempted even when the first fails; any failure is returned so
// the delivery is not acknowledged and the platform redelivers.
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	shop := event.Shop
	if shop == "" {
		var payload map[string]interface{}
		if err := json.Unmarshal(event.Payload, &payload); err == nil {
			if d, ok := payload["domain"].(string); ok {
				shop = d
			} else if d, ok := payload["myshopify_domain"].(string); ok {
				shop = d
			}
		}
	}
	if shop == "" {
		return fmt.Errorf("app uninstalled event carries no shop domain")
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", shop).
		Msg("Processing app uninstalled event")

	var markErr error
	if err := h.installations.MarkUninstalled(ctx, shop); err != nil {
		h.logger.Error().Err(err).Str("shop", shop).Msg("Failed to mark installation uninstalled")
		markErr = fmt.Errorf("mark uninstalled: %w", err)
	}

	if err := h.sessions.DeleteByShop(ctx, shop); err != nil {
		h.logger.Error().Err(err).Str("shop", shop).Msg("Failed to delete sessions for shop")
		return errors.Join(markErr, fmt.Errorf("delete sessions: %w", err))
	}

	return markErr
}
