package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"storefront-session-layer/internal/application/webhook_handlers"
	"storefront-session-layer/internal/domain"
	"storefront-session-layer/internal/ports"

	"github.com/rs/zerolog"
)

// WebhookHandler processes delivered webhook events for the topics it
// claims.
type WebhookHandler interface {
	CanHandle(topic string) bool
	Handle(ctx context.Context, event *domain.WebhookEvent) error
}

// WebhookRegistry owns the local topic-to-handler bindings and the remote
// webhook subscriptions for authenticated shops. It is constructed once per
// process and passed to every call site; there is no package-level state.
type WebhookRegistry struct {
	platform      ports.PlatformClient
	installations ports.InstallationStore
	sessions      ports.SessionStore
	callbackURL   string
	logger        zerolog.Logger

	mu       sync.Mutex
	handlers []WebhookHandler
	bound    bool
}

// NewWebhookRegistry creates a registry delivering to callbackURL.
func NewWebhookRegistry(
	platform ports.PlatformClient,
	installations ports.InstallationStore,
	sessions ports.SessionStore,
	callbackURL string,
	logger zerolog.Logger,
) *WebhookRegistry {
	return &WebhookRegistry{
		platform:      platform,
		installations: installations,
		sessions:      sessions,
		callbackURL:   callbackURL,
		logger:        logger,
	}
}

// RegisterHandler binds an additional handler ahead of the mandatory set.
func (r *WebhookRegistry) RegisterHandler(h WebhookHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

// AddHandlers binds the mandatory handler set: the three compliance topics
// plus app/uninstalled. Idempotent; concurrent callers bind at most once.
// The guard only prevents redundant local wiring, it is not a lock around
// remote subscription creation.
func (r *WebhookRegistry) AddHandlers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bound {
		return
	}
	r.handlers = append(r.handlers,
		webhook_handlers.NewComplianceHandler(r.logger),
		webhook_handlers.NewAppUninstalledHandler(r.logger, r.installations, r.sessions),
	)
	r.bound = true
	r.logger.Debug().Int("handlers", len(r.handlers)).Msg("Webhook handlers bound")
}

// Dispatch routes one delivered event to the handlers bound for its topic.
// When no handler claims the topic the mandatory set is bound lazily first:
// in a serverless-style deployment the first delivery can race process
// startup, so there is no single moment where binding is guaranteed to have
// happened. Unknown topics after binding are acknowledged and logged for
// forward compatibility with new event types.
func (r *WebhookRegistry) Dispatch(ctx context.Context, event *domain.WebhookEvent) error {
	matched := r.matchingHandlers(event.Topic)
	if len(matched) == 0 {
		r.AddHandlers()
		matched = r.matchingHandlers(event.Topic)
	}
	if len(matched) == 0 {
		r.logger.Warn().
			Str("topic", event.Topic).
			Str("shop", event.Shop).
			Msg("No handler bound for topic, acknowledging")
		return nil
	}

	var errs []error
	for _, h := range matched {
		if err := h.Handle(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("handle %s: %w", event.Topic, err))
		}
	}
	return errors.Join(errs...)
}

func (r *WebhookRegistry) matchingHandlers(topic string) []WebhookHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []WebhookHandler
	for _, h := range r.handlers {
		if h.CanHandle(topic) {
			matched = append(matched, h)
		}
	}
	return matched
}

// RegisterWithPlatform declares the mandatory subscriptions for the shop
// bound to the session. Existing subscriptions are left alone, so repeating
// the call wastes at most a round trip. Local binding happens first so a
// delivery arriving mid-registration still dispatches.
func (r *WebhookRegistry) RegisterWithPlatform(ctx context.Context, session *domain.Session) error {
	r.AddHandlers()

	existing, err := r.platform.ListWebhooks(ctx, session.Shop, session.AccessToken)
	if err != nil {
		return fmt.Errorf("list webhooks for %s: %w", session.Shop, err)
	}

	subscribed := make(map[string]bool, len(existing))
	for _, w := range existing {
		if w.Address == r.callbackURL {
			subscribed[w.Topic] = true
		}
	}

	created := 0
	for _, topic := range domain.MandatoryTopics() {
		if subscribed[string(topic)] {
			continue
		}
		if _, err := r.platform.CreateWebhook(ctx, session.Shop, session.AccessToken, topic, r.callbackURL); err != nil {
			return fmt.Errorf("subscribe %s for %s: %w", topic, session.Shop, err)
		}
		created++
	}

	r.logger.Info().
		Str("shop", session.Shop).
		Int("created", created).
		Int("existing", len(subscribed)).
		Msg("Webhook subscriptions declared")

	return nil
}
