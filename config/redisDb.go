package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Redis backs sessions, the read-through resource cache, daily order-number
// counters, and the vendor lock. Every helper is nil-safe: with no client
// connected (unit tests, redis outage during startup) reads miss and writes
// are dropped, and the DB remains the source of truth.

var (
	rdb    *redis.Client
	locker *redislock.Client
	ctx    = context.Background()
)

func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisLock() *redislock.Client {
	return locker
}

func init() {
	// Same rule as the DB: never block in init(), connect from main() after
	// the listener is up.
	godotenv.Load()
}

// ConnectRedisWithRetry connects and sets the shared client plus the
// redislock client, retrying forever with capped exponential backoff.
func ConnectRedisWithRetry() {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		addr = "localhost:6379"
		log.Printf("REDIS_ADDRESS not set; defaulting to %s", addr)
	}

	for attempt := 1; ; attempt++ {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			PoolSize: 100,
		})
		if err := client.Ping(ctx).Err(); err == nil {
			rdb = client
			locker = redislock.New(client)
			log.Printf("connected to redis (attempt=%d addr=%s)", attempt, addr)
			return
		} else {
			sleep := backoff(attempt)
			log.Printf("failed to connect redis (attempt=%d addr=%s): %v; retrying in %s", attempt, addr, err, sleep)
			time.Sleep(sleep)
		}
	}
}

// GetRedisObject unmarshals the cached JSON at key into dest. The bool
// reports a cache hit.
func GetRedisObject(key string, dest interface{}) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(val), &dest); err != nil {
		return false, err
	}
	return true, nil
}

func GetRedisValue(key string) (string, bool, error) {
	if rdb == nil {
		return "", false, nil
	}
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func SetRedisObject(key string, obj interface{}, exp time.Duration) error {
	if rdb == nil {
		return nil
	}
	payload, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, payload, exp).Err()
}

func SetRedisValue(key string, value string, exp time.Duration) error {
	if rdb == nil {
		return nil
	}
	return rdb.Set(ctx, key, value, exp).Err()
}

func RemoveRedisKey(keys ...string) error {
	if rdb == nil {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}

// Sets track which cache keys exist per resource type so invalidation can
// sweep them without SCAN.
func AddRedisSet(setKey string, member string) error {
	if rdb == nil {
		return nil
	}
	return rdb.SAdd(ctx, setKey, member).Err()
}

func GetRedisSetMembers(setKey string) ([]string, error) {
	if rdb == nil {
		return nil, nil
	}
	return rdb.SMembers(ctx, setKey).Result()
}

func RemoveRedisSetMember(setKey string, member string) error {
	if rdb == nil {
		return nil
	}
	return rdb.SRem(ctx, setKey, member).Err()
}

// GetRedisCounter increments key and returns the new value; order-number
// sequences are day-scoped keys expired via ExpireRedisKey.
func GetRedisCounter(ctx context.Context, key string) (int64, error) {
	if rdb == nil {
		return 0, nil
	}
	return rdb.Incr(ctx, key).Result()
}

func ExpireRedisKey(ctx context.Context, key string, exp time.Duration) error {
	if rdb == nil {
		return nil
	}
	return rdb.Expire(ctx, key, exp).Err()
}

func ClearRedis(ctx context.Context) error {
	if rdb == nil {
		return nil
	}
	return rdb.FlushAll(ctx).Err()
}
