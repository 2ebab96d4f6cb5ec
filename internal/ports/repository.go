package ports

import (
	"context"

	"storefront-session-layer/internal/domain"
)

// SessionStore persists exchanged sessions. Any key-value or relational
// backend satisfying this contract is interchangeable.
type SessionStore interface {
	// Save upserts a session by id.
	Save(ctx context.Context, session *domain.Session) error

	// FindByID returns the session with the given id, or nil if absent.
	FindByID(ctx context.Context, id string) (*domain.Session, error)

	// FindByShop returns all sessions for a shop created under the given
	// app API key.
	FindByShop(ctx context.Context, shop string, apiKey string) ([]*domain.Session, error)

	// DeleteByShop removes every session for a shop.
	DeleteByShop(ctx context.Context, shop string) error
}

// InstallationStore persists per-shop installation state.
type InstallationStore interface {
	// EnsureRegistered upserts the installation record with the webhook
	// registration flag set. It returns true whether it just created the
	// record or the flag was already set, and never rewrites the original
	// install timestamp.
	EnsureRegistered(ctx context.Context, shop string) (bool, error)

	// MarkUninstalled clears the registration flag and stamps the
	// uninstall time.
	MarkUninstalled(ctx context.Context, shop string) error

	// Get returns the installation record for a shop, or nil if absent.
	Get(ctx context.Context, shop string) (*domain.Installation, error)
}
