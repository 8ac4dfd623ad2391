package crypto

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix    = "ek:key:"
	redisActivePtrKey = "ek:active"
)

// RedisKeyStore shares key material between instances through Redis. Keys are
// stored base64-encoded under ek:key:<id> with no TTL (retired keys must stay
// retrievable), and ek:active points at the current key id.
//
// This is the production-recommended implementation for distributed
// deployments; single instances can use InMemoryKeyStore.
type RedisKeyStore struct {
	client *redis.Client
}

// NewRedisKeyStore constructs the store and bootstraps an initial active key
// if none exists yet. Bootstrap uses SETNX so concurrent instances agree on
// one initial key.
func NewRedisKeyStore(ctx context.Context, client *redis.Client) (*RedisKeyStore, error) {
	s := &RedisKeyStore{client: client}

	_, err := client.Get(ctx, redisActivePtrKey).Result()
	if errors.Is(err, redis.Nil) {
		if err := s.bootstrap(ctx); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("check active key pointer: %w", err)
	}
	return s, nil
}

func (s *RedisKeyStore) bootstrap(ctx context.Context) error {
	key, err := generateKey()
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key.ID, encode(key.Material), 0).Err(); err != nil {
		return fmt.Errorf("store initial key: %w", err)
	}
	ok, err := s.client.SetNX(ctx, redisActivePtrKey, key.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("set active key pointer: %w", err)
	}
	if !ok {
		// Another instance won the bootstrap race; our orphan key is
		// harmless and unreferenced.
		return nil
	}
	return nil
}

func (s *RedisKeyStore) ActiveKey(ctx context.Context) (Key, error) {
	id, err := s.client.Get(ctx, redisActivePtrKey).Result()
	if errors.Is(err, redis.Nil) {
		return Key{}, fmt.Errorf("active key pointer: %w", ErrKeyNotFound)
	}
	if err != nil {
		return Key{}, fmt.Errorf("read active key pointer: %w", err)
	}
	return s.Key(ctx, id)
}

func (s *RedisKeyStore) Key(ctx context.Context, id string) (Key, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return Key{}, fmt.Errorf("key %q: %w", id, ErrKeyNotFound)
	}
	if err != nil {
		return Key{}, fmt.Errorf("read key %q: %w", id, err)
	}
	material, err := decode(raw)
	if err != nil {
		return Key{}, fmt.Errorf("decode key %q: %w", id, err)
	}
	return Key{ID: id, Material: material}, nil
}

// Rotate stores a new key and then swings the active pointer. Readers racing
// the rotation resolve either the old or the new id; both are decryptable.
func (s *RedisKeyStore) Rotate(ctx context.Context) (Key, error) {
	key, err := generateKey()
	if err != nil {
		return Key{}, err
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key.ID, encode(key.Material), 0).Err(); err != nil {
		return Key{}, fmt.Errorf("store rotated key: %w", err)
	}
	if err := s.client.Set(ctx, redisActivePtrKey, key.ID, 0).Err(); err != nil {
		return Key{}, fmt.Errorf("advance active key pointer: %w", err)
	}
	return key, nil
}

func (s *RedisKeyStore) List(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan keys: %w", err)
		}
		for _, k := range keys {
			ids = append(ids, k[len(redisKeyPrefix):])
		}
		if next == 0 {
			return ids, nil
		}
		cursor = next
	}
}

func encode(material []byte) string {
	return base64.StdEncoding.EncodeToString(material)
}

func decode(raw string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(raw)
}
