package application

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"storefront-session-layer/internal/domain"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

// fakeDecoder returns a canned payload or error and counts calls.
type fakeDecoder struct {
	payload *domain.SessionTokenPayload
	err     error
	calls   int
}

func (d *fakeDecoder) Decode(token string) (*domain.SessionTokenPayload, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.payload, nil
}

// fakePlatform implements ports.PlatformClient against in-memory state.
type fakePlatform struct {
	mu sync.Mutex

	exchangeErr   error
	exchanges     int
	existing      []goshopify.Webhook
	created       []goshopify.Webhook
	createErr     error
	verifyErr     error
	lastAudience  bool
	nextSessionID string
}

func (p *fakePlatform) ExchangeSessionToken(ctx context.Context, shop string, sessionToken string, online bool) (*domain.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchanges++
	p.lastAudience = online
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	id := p.nextSessionID
	if id == "" {
		id = domain.OfflineSessionID(shop)
	}
	return &domain.Session{
		ID:          id,
		Shop:        shop,
		APIKey:      "test-api-key",
		AccessToken: "shpat_test_token",
		IsOnline:    online,
	}, nil
}

func (p *fakePlatform) ListWebhooks(ctx context.Context, shop string, accessToken string) ([]goshopify.Webhook, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	all := append([]goshopify.Webhook{}, p.existing...)
	return append(all, p.created...), nil
}

func (p *fakePlatform) CreateWebhook(ctx context.Context, shop string, accessToken string, topic domain.WebhookTopic, address string) (*goshopify.Webhook, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	w := goshopify.Webhook{Topic: string(topic), Address: address}
	p.created = append(p.created, w)
	return &w, nil
}

func (p *fakePlatform) VerifyWebhookRequest(r *http.Request, body []byte) error {
	return p.verifyErr
}

func (p *fakePlatform) createdTopics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	topics := make([]string, 0, len(p.created))
	for _, w := range p.created {
		topics = append(topics, w.Topic)
	}
	return topics
}

// memSessionStore is an in-memory ports.SessionStore.
type memSessionStore struct {
	mu          sync.Mutex
	sessions    map[string]*domain.Session
	saveErr     error
	deleteErr   error
	deleteCalls int
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]*domain.Session)}
}

func (s *memSessionStore) Save(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *memSessionStore) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id], nil
}

func (s *memSessionStore) FindByShop(ctx context.Context, shop string, apiKey string) ([]*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Session
	for _, session := range s.sessions {
		if session.Shop == shop && session.APIKey == apiKey {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *memSessionStore) DeleteByShop(ctx context.Context, shop string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for id, session := range s.sessions {
		if session.Shop == shop {
			delete(s.sessions, id)
		}
	}
	return nil
}

// memInstallationStore is an in-memory ports.InstallationStore.
type memInstallationStore struct {
	mu            sync.Mutex
	installations map[string]*domain.Installation
	markErr       error
	ensureCalls   int
}

func newMemInstallationStore() *memInstallationStore {
	return &memInstallationStore{installations: make(map[string]*domain.Installation)}
}

func (s *memInstallationStore) EnsureRegistered(ctx context.Context, shop string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureCalls++
	if existing, ok := s.installations[shop]; ok {
		existing.WebhooksRegistered = true
		return true, nil
	}
	s.installations[shop] = &domain.Installation{
		Shop:               shop,
		WebhooksRegistered: true,
		InstalledAt:        time.Now(),
	}
	return true, nil
}

func (s *memInstallationStore) MarkUninstalled(ctx context.Context, shop string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	now := time.Now()
	existing, ok := s.installations[shop]
	if !ok {
		existing = &domain.Installation{Shop: shop}
		s.installations[shop] = existing
	}
	existing.WebhooksRegistered = false
	existing.UninstalledAt = &now
	return nil
}

func (s *memInstallationStore) Get(ctx context.Context, shop string) (*domain.Installation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	installation, ok := s.installations[shop]
	if !ok {
		return nil, nil
	}
	return installation, nil
}

var errBoom = fmt.Errorf("boom")
