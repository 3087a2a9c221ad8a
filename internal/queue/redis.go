package queue

import (
	"context"
	"time"

	"heavenly-backend/internal/domain"
	"github.com/redis/go-redis/v9"
)

type redisMailbox struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis builds a Mailbox over the given redis client.
func NewRedis(client *redis.Client, ttl time.Duration) Mailbox {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisMailbox{client: client, ttl: ttl}
}

func key(rec domain.Recipient) string {
	return "missedNotifications:" + rec.Key()
}

func (m *redisMailbox) Append(ctx context.Context, rec domain.Recipient, payload []byte) error {
	k := key(rec)
	pipe := m.client.TxPipeline()
	pipe.RPush(ctx, k, payload)
	pipe.Expire(ctx, k, m.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (m *redisMailbox) Drain(ctx context.Context, rec domain.Recipient) ([][]byte, error) {
	k := key(rec)
	vals, err := m.client.LRange(ctx, k, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	if err := m.client.Del(ctx, k).Err(); err != nil {
		return nil, err
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}
