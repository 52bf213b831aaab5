package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:     client,
		cartTTL:    24 * time.Hour,
		pendingTTL: 30 * time.Minute,
	}
}

type RedisStore struct {
	client     *redis.Client
	cartTTL    time.Duration
	pendingTTL time.Duration
}

func (r *RedisStore) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	var cart domain.Cart
	if err := r.get(ctx, cartKey(sessionID), &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *RedisStore) SetCart(ctx context.Context, sessionID string, cart *domain.Cart) error {
	jitter := time.Duration(rand.Intn(5)) * time.Minute
	return r.set(ctx, cartKey(sessionID), cart, r.cartTTL+jitter)
}

func (r *RedisStore) DeleteCart(ctx context.Context, sessionID string) error {
	return r.del(ctx, cartKey(sessionID))
}

func (r *RedisStore) GetPendingCheckout(ctx context.Context, sessionID string) (*domain.PendingCheckout, error) {
	var pending domain.PendingCheckout
	if err := r.get(ctx, checkoutKey(sessionID), &pending); err != nil {
		return nil, err
	}
	return &pending, nil
}

func (r *RedisStore) SetPendingCheckout(ctx context.Context, sessionID string, pending *domain.PendingCheckout) error {
	return r.set(ctx, checkoutKey(sessionID), pending, r.pendingTTL)
}

func (r *RedisStore) DeletePendingCheckout(ctx context.Context, sessionID string) error {
	return r.del(ctx, checkoutKey(sessionID))
}

func (r *RedisStore) get(ctx context.Context, key string, v any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}

	if err2 := json.Unmarshal(data, v); err2 != nil {
		return fmt.Errorf("unmarshal %s failed: %w", key, err2)
	}
	return nil
}

func (r *RedisStore) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) del(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

func checkoutKey(sessionID string) string {
	return fmt.Sprintf("checkout:%s", sessionID)
}
