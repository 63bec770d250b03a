package caching

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReportCache holds rendered admin reports for a short TTL so repeated
// dashboard polls do not re-aggregate the whole user table. Entries are
// never updated in place; mutations simply wait out the TTL.
type ReportCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

const reportKeyPrefix = "userhub:report:"

type redisReportCache struct {
	client *redis.Client
}

func NewRedisReportCache(addr, password string, db int) ReportCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisReportCache{client: client}
}

// NewReportCacheWithClient shares an existing redis client.
func NewReportCacheWithClient(client *redis.Client) ReportCache {
	return &redisReportCache{client: client}
}

func (r *redisReportCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.Get(ctx, reportKeyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// A corrupt entry is a miss, not a failure.
		return false, nil
	}
	return true, nil
}

func (r *redisReportCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, reportKeyPrefix+key, data, ttl).Err()
}

func (r *redisReportCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		prefixed = append(prefixed, reportKeyPrefix+key)
	}
	return r.client.Del(ctx, prefixed...).Err()
}
