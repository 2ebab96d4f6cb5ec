package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"storefront-session-layer/internal/application"
	"storefront-session-layer/internal/domain"
	"storefront-session-layer/internal/infrastructure/metrics"
	shopifyinfra "storefront-session-layer/internal/infrastructure/shopify"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey    = "test-api-key"
	testAPISecret = "test-api-secret"
	testShop      = "foo.myshopify.com"
)

// fakeExchanger wraps the real platform client but stubs token exchange so
// no network call happens; signature verification stays real.
type fakeExchanger struct {
	*shopifyinfra.Client
	mu        sync.Mutex
	exchanges int
}

func (f *fakeExchanger) ExchangeSessionToken(ctx context.Context, shop string, sessionToken string, online bool) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges++
	return &domain.Session{
		ID:          domain.OfflineSessionID(shop),
		Shop:        shop,
		APIKey:      testAPIKey,
		AccessToken: "shpat_test_token",
	}, nil
}

func (f *fakeExchanger) ListWebhooks(ctx context.Context, shop string, accessToken string) ([]goshopify.Webhook, error) {
	return []goshopify.Webhook{}, nil
}

func (f *fakeExchanger) CreateWebhook(ctx context.Context, shop string, accessToken string, topic domain.WebhookTopic, address string) (*goshopify.Webhook, error) {
	return &goshopify.Webhook{Topic: string(topic), Address: address}, nil
}

// memSessionStore / memInstallationStore are the package's in-memory
// store doubles.
type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]*domain.Session)}
}

func (s *memSessionStore) Save(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	for id, session := range s.sessions {
		if session.Shop == shop {
			delete(s.sessions, id)
		}
	}
	return nil
}

type memInstallationStore struct {
	mu            sync.Mutex
	installations map[string]*domain.Installation
}

func newMemInstallationStore() *memInstallationStore {
	return &memInstallationStore{installations: make(map[string]*domain.Installation)}
}

func (s *memInstallationStore) EnsureRegistered(ctx context.Context, shop string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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

type testEnv struct {
	router        chi.Router
	sessions      *memSessionStore
	installations *memInstallationStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()

	platform := &fakeExchanger{Client: shopifyinfra.NewClient(testAPIKey, testAPISecret, logger)}
	decoder := shopifyinfra.NewSessionTokenDecoder(testAPIKey, testAPISecret)
	sessions := newMemSessionStore()
	installations := newMemInstallationStore()

	registry := application.NewWebhookRegistry(platform, installations, sessions, "https://app.example/api/webhooks", logger)
	auth := application.NewAuthService(decoder, platform, sessions, installations, registry, logger)
	server := NewServer(auth, registry, platform, metrics.New(prometheus.NewRegistry()), logger)

	r := chi.NewRouter()
	r.Post("/api/webhooks", server.HandleWebhook)
	r.Group(func(r chi.Router) {
		r.Use(server.RequireSession(true))
		r.Get("/api/hello", server.HandleHello)
	})

	return &testEnv{router: r, sessions: sessions, installations: installations}
}

func mintSessionToken(t *testing.T, expires time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"dest": "https://" + testShop,
		"aud":  testAPIKey,
		"sub":  "902541635",
		"sid":  "session-id-1",
		"iat":  time.Now().Unix(),
		"exp":  expires.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAPISecret))
	require.NoError(t, err)
	return token
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testAPISecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestHello_ValidToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/hello", nil)
	req.Header.Set("Authorization", "Bearer "+mintSessionToken(t, time.Now().Add(time.Minute)))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Data   map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "world", body.Data["hello"])

	// Authorization persisted the exchanged session and the installation.
	saved, err := env.sessions.FindByShop(context.Background(), testShop, testAPIKey)
	require.NoError(t, err)
	assert.Len(t, saved, 1)

	installation, err := env.installations.Get(context.Background(), testShop)
	require.NoError(t, err)
	require.NotNil(t, installation)
	assert.True(t, installation.WebhooksRegistered)
}

func TestHello_ExpiredToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/hello", nil)
	req.Header.Set("Authorization", "Bearer "+mintSessionToken(t, time.Now().Add(-time.Hour)))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"unauthorized"}`, rec.Body.String())
}

func TestHello_RejectedTokens(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not a bearer token", header: "Token abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			req := httptest.NewRequest(http.MethodGet, "/api/hello", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusForbidden, rec.Code)
			assert.JSONEq(t, `{"status":"error","message":"unauthorized"}`, rec.Body.String())
		})
	}
}

func TestWebhook_AppUninstalled(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.sessions.Save(context.Background(), &domain.Session{
		ID:     domain.OfflineSessionID(testShop),
		Shop:   testShop,
		APIKey: testAPIKey,
	}))

	payload := []byte(`{"domain":"` + testShop + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks", bytes.NewReader(payload))
	req.Header.Set("X-Shopify-Topic", "app/uninstalled")
	req.Header.Set("X-Shopify-Shop-Domain", testShop)
	req.Header.Set("X-Shopify-Hmac-Sha256", signBody(payload))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	remaining, err := env.sessions.FindByShop(context.Background(), testShop, testAPIKey)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	installation, err := env.installations.Get(context.Background(), testShop)
	require.NoError(t, err)
	require.NotNil(t, installation)
	assert.False(t, installation.WebhooksRegistered)
	assert.NotNil(t, installation.UninstalledAt)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	env := newTestEnv(t)

	payload := []byte(`{"domain":"` + testShop + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks", bytes.NewReader(payload))
	req.Header.Set("X-Shopify-Topic", "app/uninstalled")
	req.Header.Set("X-Shopify-Hmac-Sha256", base64.StdEncoding.EncodeToString([]byte("forged")))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhook_MissingTopicHeader(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_ComplianceTopicAcknowledged(t *testing.T) {
	env := newTestEnv(t)

	payload := []byte(`{"shop_domain":"` + testShop + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks", bytes.NewReader(payload))
	req.Header.Set("X-Shopify-Topic", "customers/redact")
	req.Header.Set("X-Shopify-Hmac-Sha256", signBody(payload))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
