package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/collegeconnect/internal/model"
)

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// セッションはTTL付きのキーとして保存され、期限切れはRedisが削除する。
// ユーザーごとのセッションIDはSETで管理する。
type RedisSessionRepo struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
func NewRedisSessionRepo(client *redis.Client) *RedisSessionRepo {
	return &RedisSessionRepo{client: client, prefix: "collegeconnect"}
}

type redisSession struct {
	UserID    string    `json:"user_id"`
	Method    string    `json:"method,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *RedisSessionRepo) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, id)
}

func (r *RedisSessionRepo) userKey(userID string) string {
	return fmt.Sprintf("%s:user_sessions:%s", r.prefix, userID)
}

// Create はセッションを作成する。ExpiresAtまでのTTLを設定する。
func (r *RedisSessionRepo) Create(ctx context.Context, session *model.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s is already expired", session.ID)
	}

	data, err := json.Marshal(redisSession{
		UserID:    session.UserID,
		Method:    session.Method,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.sessionKey(session.ID), data, ttl)
	pipe.SAdd(ctx, r.userKey(session.UserID), session.ID)
	pipe.Expire(ctx, r.userKey(session.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。存在しないか期限切れの場合はnilを返す。
func (r *RedisSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	value, err := r.client.Get(ctx, r.sessionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var stored redisSession
	if err := json.Unmarshal([]byte(value), &stored); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if !stored.ExpiresAt.After(time.Now()) {
		return nil, nil
	}

	return &model.Session{
		ID:        id,
		UserID:    stored.UserID,
		Method:    stored.Method,
		ExpiresAt: stored.ExpiresAt,
		CreatedAt: stored.CreatedAt,
	}, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *RedisSessionRepo) DeleteByID(ctx context.Context, id string) error {
	session, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.sessionKey(id))
	if session != nil {
		pipe.SRem(ctx, r.userKey(session.UserID), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *RedisSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, r.sessionKey(id))
	}
	keys = append(keys, r.userKey(userID))

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
