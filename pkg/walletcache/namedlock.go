package walletcache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sparkwallet/spark-wallet-sdk/pkg/walletlog"
)

// Named locks support shared and exclusive holders for the same lock
// name (spec 4.11), on top of the single-owner AcquireLock above: a ZSET
// of holder -> expiry-at-millis tracks shared holders (membership doubles
// as a soft per-holder TTL since Redis hash/zset fields have no native
// expiry), and a plain string key tracks the exclusive holder, reusing
// the PX TTL go-redis already exposes.

func holdersKey(name string) string { return "lock:" + name + ":holders" }
func exclKey(name string) string    { return "lock:" + name + ":excl" }

var acquireSharedScript = redis.NewScript(`
local holder = redis.call("GET", KEYS[1])
if holder and holder ~= ARGV[1] then
	return 0
end
redis.call("ZADD", KEYS[2], ARGV[3], ARGV[1])
return 1
`)

var acquireExclusiveScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[2], "-inf", ARGV[2])
local count = redis.call("ZCARD", KEYS[2])
if count > 0 then
	local score = redis.call("ZSCORE", KEYS[2], ARGV[1])
	if (not score) or count > 1 then
		return 0
	end
end
local holder = redis.call("GET", KEYS[1])
if holder and holder ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[4])
redis.call("ZADD", KEYS[2], ARGV[3], ARGV[1])
return 1
`)

// SetLock implements set_lock(name, acquire=true, exclusive) from spec
// 4.11. A shared acquire succeeds unless another client holds the
// exclusive lock; an exclusive acquire succeeds only if no other client
// holds it, shared or exclusive.
func SetLock(ctx context.Context, name, clientID string, exclusive bool, ttl time.Duration) (bool, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	var script *redis.Script
	var args []any
	if exclusive {
		script = acquireExclusiveScript
		args = []any{clientID, now.UnixMilli(), expiresAt.UnixMilli(), ttl.Milliseconds()}
	} else {
		script = acquireSharedScript
		args = []any{clientID, now.UnixMilli(), expiresAt.UnixMilli()}
	}

	res, err := script.Run(ctx, Client, []string{exclKey(name), holdersKey(name)}, args...).Int64()
	if err != nil {
		walletlog.Error("failed to acquire named lock", zap.String("lock", name), zap.Bool("exclusive", exclusive), zap.Error(err))
		return false, err
	}
	return res == 1, nil
}

// ReleaseNamedLock implements set_lock(name, acquire=false, ...):
// releasing a lock the caller doesn't hold is a no-op.
func ReleaseNamedLock(ctx context.Context, name, clientID string) error {
	if err := Client.ZRem(ctx, holdersKey(name), clientID).Err(); err != nil {
		return err
	}
	if err := releaseLockScript.Run(ctx, Client, []string{exclKey(name)}, clientID).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// RefreshNamedLock extends clientID's hold on name, shared or exclusive,
// ahead of the 30s auto-expiry.
func RefreshNamedLock(ctx context.Context, name, clientID string, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl)
	if err := Client.ZAdd(ctx, holdersKey(name), redis.Z{Score: float64(expiresAt.UnixMilli()), Member: clientID}).Err(); err != nil {
		return err
	}
	if err := refreshLockScript.Run(ctx, Client, []string{exclKey(name)}, clientID, ttl.Milliseconds()).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// GetLock implements get_lock(name): true if any client currently holds
// it, shared or exclusive.
func GetLock(ctx context.Context, name string) (bool, error) {
	now := time.Now().UnixMilli()
	count, err := Client.ZCount(ctx, holdersKey(name), strconv.FormatInt(now, 10), "+inf").Result()
	if err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	exists, err := Exists(ctx, exclKey(name))
	if err != nil {
		return false, err
	}
	return exists, nil
}
