package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soochol/dbadmin/internal/dbadmin"
)

// DefaultTrackingKey is the Redis list holding tracking events.
const DefaultTrackingKey = "dbadmin:tracking"

// RedisTrackingRepository keeps tracking events in a capped Redis list,
// newest at the head.
type RedisTrackingRepository struct {
	client   *redis.Client
	key      string
	capacity int
}

// NewRedisTrackingRepository connects to the Redis server at url
// (redis://[user:pass@]host:port/db) and keeps up to capacity events
// (1000 when capacity <= 0).
func NewRedisTrackingRepository(url string, capacity int) (*RedisTrackingRepository, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisTrackingRepositoryWithClient(client, DefaultTrackingKey, capacity), nil
}

func NewRedisTrackingRepositoryWithClient(client *redis.Client, key string, capacity int) *RedisTrackingRepository {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RedisTrackingRepository{client: client, key: key, capacity: capacity}
}

func (r *RedisTrackingRepository) Append(ctx context.Context, ev dbadmin.TrackingEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal tracking event: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, 0, int64(r.capacity-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append tracking event: %w", err)
	}
	return nil
}

func (r *RedisTrackingRepository) Recent(ctx context.Context, limit int) ([]dbadmin.TrackingEvent, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	items, err := r.client.LRange(ctx, r.key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list tracking events: %w", err)
	}
	out := make([]dbadmin.TrackingEvent, 0, len(items))
	for _, item := range items {
		var ev dbadmin.TrackingEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			slog.Warn("skipping malformed tracking event", "key", r.key, "err", err)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *RedisTrackingRepository) Close() error {
	return r.client.Close()
}
