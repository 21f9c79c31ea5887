// Package walletcache wraps the Redis client used for idempotency caching,
// short-TTL quote caching, and the distributed named-lock table.
package walletcache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sparkwallet/spark-wallet-sdk/pkg/walletlog"
)

type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

var Client *redis.Client

func Init(cfg Config) error {
	opts := redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	rdb := redis.NewClient(&opts)

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		walletlog.Error("failed to connect to redis", zap.Error(err))
		return err
	}

	Client = rdb
	walletlog.Info("connected to redis", zap.String("host", cfg.Host))
	return nil
}

func Get(ctx context.Context, key string) (string, error) {
	val, err := Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	} else if err != nil {
		walletlog.Error("failed to get key from redis", zap.String("key", key), zap.Error(err))
		return "", err
	}
	return val, nil
}

func Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := Client.Set(ctx, key, value, expiration).Err(); err != nil {
		walletlog.Error("failed to set key in redis", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func Delete(ctx context.Context, keys ...string) (int64, error) {
	res, err := Client.Del(ctx, keys...).Result()
	if err != nil {
		walletlog.Error("failed to delete keys from redis", zap.Strings("keys", keys), zap.Error(err))
		return 0, err
	}
	return res, nil
}

func Exists(ctx context.Context, key string) (bool, error) {
	res, err := Client.Exists(ctx, key).Result()
	if err != nil {
		walletlog.Error("failed to check key existence in redis", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return res > 0, nil
}

// SetNX sets a key only if it does not already exist, returning whether this
// call was the one to set it. Used both for idempotency reservation and as
// the primitive underneath the distributed lock below.
func SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	set, err := Client.SetNX(ctx, key, value, expiration).Result()
	if err != nil {
		walletlog.Error("failed to setnx key in redis", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return set, nil
}

func Expire(ctx context.Context, key string, expiration time.Duration) error {
	if err := Client.Expire(ctx, key, expiration).Err(); err != nil {
		walletlog.Error("failed to set expiration on key in redis", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// releaseLockScript deletes key only if its value still matches the owner
// token, so a lock holder never releases a lock it no longer owns (e.g.
// after its TTL already expired and another owner acquired it).
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// refreshLockScript extends a lock's TTL only if the caller still owns it.
var refreshLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`)

func lockKey(name string) string {
	return "lock:" + name
}

// AcquireLock attempts to take the named distributed lock for owner, valid
// for ttl. Returns false (no error) when another owner currently holds it.
func AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	return SetNX(ctx, lockKey(name), owner, ttl)
}

// RefreshLock extends a held lock's TTL. Returns false if owner no longer
// holds the lock (expired or stolen).
func RefreshLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	res, err := refreshLockScript.Run(ctx, Client, []string{lockKey(name)}, owner, ttl.Milliseconds()).Int64()
	if err != nil {
		walletlog.Error("failed to refresh lock", zap.String("lock", name), zap.Error(err))
		return false, err
	}
	return res == 1, nil
}

// ReleaseLock drops the named lock if owner still holds it.
func ReleaseLock(ctx context.Context, name, owner string) error {
	_, err := releaseLockScript.Run(ctx, Client, []string{lockKey(name)}, owner).Result()
	if err != nil && err != redis.Nil {
		walletlog.Error("failed to release lock", zap.String("lock", name), zap.Error(err))
		return err
	}
	return nil
}

// Ping tests the Redis connection.
func Ping(ctx context.Context) error {
	return Client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func Close() error {
	if Client != nil {
		return Client.Close()
	}
	return nil
}
