package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenStore persists opaque bearer tokens. Only token hashes are
// stored; the per-user set exists so a login or a delete can revoke
// everything the user holds in one sweep.
type TokenStore interface {
	Save(ctx context.Context, tokenHash string, userID uuid.UUID, ttl time.Duration) error
	Lookup(ctx context.Context, tokenHash string) (uuid.UUID, bool, error)
	Delete(ctx context.Context, tokenHash string) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
	// PruneUserSets drops set members whose token key already expired.
	// Run periodically; the sets otherwise accumulate dead hashes.
	PruneUserSets(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

type redisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(addr, password string, db int) TokenStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisTokenStore{client: client}
}

// NewTokenStoreWithClient wires an existing client, mainly for tests.
func NewTokenStoreWithClient(client *redis.Client) TokenStore {
	return &redisTokenStore{client: client}
}

func tokenKey(tokenHash string) string {
	return "userhub:token:" + tokenHash
}

func userSetKey(userID uuid.UUID) string {
	return "userhub:usertokens:" + userID.String()
}

func (s *redisTokenStore) Save(ctx context.Context, tokenHash string, userID uuid.UUID, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, tokenKey(tokenHash), userID.String(), ttl)
	pipe.SAdd(ctx, userSetKey(userID), tokenHash)
	pipe.Expire(ctx, userSetKey(userID), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisTokenStore) Lookup(ctx context.Context, tokenHash string) (uuid.UUID, bool, error) {
	val, err := s.client.Get(ctx, tokenKey(tokenHash)).Result()
	if err != nil {
		if err == redis.Nil {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	userID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, err
	}
	return userID, true, nil
}

// Delete removes a single token by hash. Deleting an absent token is a
// no-op, which makes logout idempotent.
func (s *redisTokenStore) Delete(ctx context.Context, tokenHash string) error {
	val, err := s.client.Get(ctx, tokenKey(tokenHash)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, tokenKey(tokenHash))
	if userID, parseErr := uuid.Parse(val); parseErr == nil {
		pipe.SRem(ctx, userSetKey(userID), tokenHash)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisTokenStore) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	hashes, err := s.client.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	for _, hash := range hashes {
		pipe.Del(ctx, tokenKey(hash))
	}
	pipe.Del(ctx, userSetKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisTokenStore) PruneUserSets(ctx context.Context) (int, error) {
	pruned := 0
	iter := s.client.Scan(ctx, 0, "userhub:usertokens:*", 100).Iterator()
	for iter.Next(ctx) {
		setKey := iter.Val()
		hashes, err := s.client.SMembers(ctx, setKey).Result()
		if err != nil {
			return pruned, err
		}
		for _, hash := range hashes {
			exists, err := s.client.Exists(ctx, tokenKey(hash)).Result()
			if err != nil {
				return pruned, err
			}
			if exists == 0 {
				if err := s.client.SRem(ctx, setKey, hash).Err(); err != nil {
					return pruned, err
				}
				pruned++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return pruned, err
	}
	return pruned, nil
}

func (s *redisTokenStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
