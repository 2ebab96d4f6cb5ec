package webhook_handlers

import (
	"context"

	"storefront-session-layer/internal/domain"

	"github.com/rs/zerolog"
)

// ComplianceHandler acknowledges the mandatory compliance topics. Deletion
// business logic is not implemented yet; the delivery must still succeed so
// the platform does not retry-storm or flag the app as non-compliant.
type ComplianceHandler struct {
	logger zerolog.Logger
}

// NewComplianceHandler creates the compliance webhook handler.
func NewComplianceHandler(logger zerolog.Logger) *ComplianceHandler {
	return &ComplianceHandler{logger: logger}
}

// CanHandle returns true if this handler can process the given topic.
func (h *ComplianceHandler) CanHandle(topic string) bool {
	switch domain.WebhookTopic(topic) {
	case domain.TopicCustomersDataRequest,
		domain.TopicCustomersRedact,
		domain.TopicShopRedact:
		return true
	}
	return false
}

// Handle records the request and acknowledges it.
func (h *ComplianceHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	// TODO: fulfil customer/shop data requests and redactions once the
	// data-retention layer exists. Acknowledging is required regardless.
	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Msg("Acknowledged compliance event")
	return nil
}
