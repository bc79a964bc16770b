package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/gatehouse/internal/model"
)

// redisSessionPrefix はセッションキーの接頭辞。
const redisSessionPrefix = "gatehouse:session:"

// redisSession はRedisに保存するセッションの値。
type redisSession struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// 有効期限はキーのTTLで管理するため、期限切れの一括削除は不要。
type RedisSessionRepo struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
func NewRedisSessionRepo(client *redis.Client, timeout time.Duration) *RedisSessionRepo {
	return &RedisSessionRepo{client: client, timeout: timeout}
}

func (r *RedisSessionRepo) key(tokenHash string) string {
	return redisSessionPrefix + tokenHash
}

// Create はセッションをTTL付きで保存する。
func (r *RedisSessionRepo) Create(ctx context.Context, session *model.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session expires_at must be in the future: %s", session.ExpiresAt)
	}

	data, err := json.Marshal(redisSession{
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, r.key(session.TokenHash), data, ttl).Err(); err != nil {
		return model.StoreError("failed to create session", err)
	}
	return nil
}

// FindByTokenHash はセッションを取得する。存在しないか期限切れの場合はnilを返す。
func (r *RedisSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	val, err := r.client.Get(ctx, r.key(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, model.StoreError("failed to find session", err)
	}

	var stored redisSession
	if err := json.Unmarshal(val, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	session := &model.Session{
		TokenHash: tokenHash,
		UserID:    stored.UserID,
		ExpiresAt: stored.ExpiresAt,
		CreatedAt: stored.CreatedAt,
	}
	// TTLの丸めで期限直後に読めることがある
	if session.IsExpiredAt(time.Now()) {
		return nil, nil
	}
	return session, nil
}

// DeleteByTokenHash はセッションを削除する。
func (r *RedisSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Del(ctx, r.key(tokenHash)).Err(); err != nil {
		return model.StoreError("failed to delete session", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
