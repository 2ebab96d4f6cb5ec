package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-session-layer/internal/domain"
	"storefront-session-layer/internal/ports"

	"github.com/redis/go-redis/v9"
)

// RedisSessionRepository implements SessionStore over Redis: one JSON
// record per session plus a per-shop set of session ids for the by-shop
// operations. Interchangeable with the Mongo implementation.
type RedisSessionRepository struct {
	client *redis.Client
}

// NewRedisSessionRepository creates a Redis-backed session store.
func NewRedisSessionRepository(client *redis.Client) ports.SessionStore {
	return &RedisSessionRepository{client: client}
}

func sessionKey(id string) string {
	return "session:" + id
}

func shopSessionsKey(shop string) string {
	return "shop_sessions:" + shop
}

// Save upserts a session by id and indexes it under its shop. Online
// sessions expire with the token so stale records clean themselves up; the
// shop index is pruned on read instead.
func (r *RedisSessionRepository) Save(ctx context.Context, session *domain.Session) error {
	session.UpdatedAt = time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = session.UpdatedAt
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("%w: encode session: %v", domain.ErrStoreUnavailable, err)
	}

	var ttl time.Duration
	if session.Expires != nil {
		ttl = time.Until(*session.Expires)
		if ttl <= 0 {
			ttl = time.Second
		}
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.ID), data, ttl)
	pipe.SAdd(ctx, shopSessionsKey(session.Shop), session.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: save session: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// FindByID retrieves a session by id, nil when absent.
func (r *RedisSessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find session: %v", domain.ErrStoreUnavailable, err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%w: decode session: %v", domain.ErrStoreUnavailable, err)
	}
	return &session, nil
}

// FindByShop retrieves all live sessions for a shop under the given API
// key, pruning index entries whose records have expired.
func (r *RedisSessionRepository) FindByShop(ctx context.Context, shop string, apiKey string) ([]*domain.Session, error) {
	ids, err := r.client.SMembers(ctx, shopSessionsKey(shop)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list shop sessions: %v", domain.ErrStoreUnavailable, err)
	}

	var sessions []*domain.Session
	for _, id := range ids {
		session, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if session == nil {
			_ = r.client.SRem(ctx, shopSessionsKey(shop), id).Err()
			continue
		}
		if session.APIKey == apiKey {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

// DeleteByShop removes every session for a shop along with the shop index.
func (r *RedisSessionRepository) DeleteByShop(ctx context.Context, shop string) error {
	ids, err := r.client.SMembers(ctx, shopSessionsKey(shop)).Result()
	if err != nil {
		return fmt.Errorf("%w: list shop sessions: %v", domain.ErrStoreUnavailable, err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, shopSessionsKey(shop))

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: delete sessions: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}
