package nonce

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/utils/clock"
)

const DefaultKeyPrefix = "uiauth:"

// claimScript: KEYS[1]=record, ARGV[1]=expires_at ms, ARGV[2]=ttl ms.
// Returns 0 when the record is bound, 1 otherwise.
var claimScript = redis.NewScript(`
local txn = redis.call('HGET', KEYS[1], 'txn')
if txn and txn ~= '' then
  return 0
end
redis.call('HSET', KEYS[1], 'txn', '', 'expires_at', ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

// matchOrBindScript: KEYS[1]=record, ARGV[1]=txn.
var matchOrBindScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local txn = redis.call('HGET', KEYS[1], 'txn')
if not txn or txn == '' then
  redis.call('HSET', KEYS[1], 'txn', ARGV[1])
  return 1
end
if txn == ARGV[1] then
  return 1
end
return 0
`)

// RedisStore shares nonce records between processes. Each record is a hash
// whose TTL ends PruneGrace after its expiry, so Redis performs the sweep.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	clock     clock.PassiveClock
}

// NewRedisStore connects to the server at url (redis://...) and pings it.
func NewRedisStore(ctx context.Context, url string, clk clock.PassiveClock) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStoreWithClient(client, DefaultKeyPrefix, clk), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string, clk clock.PassiveClock) *RedisStore {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, clock: clk}
}

// key encodes the user id so that ':' inside it cannot collide with the separator.
func (s *RedisStore) key(userID, nonce string) string {
	return s.keyPrefix + "nonce:" + base64.RawURLEncoding.EncodeToString([]byte(userID)) + ":" + nonce
}

func (s *RedisStore) Claim(ctx context.Context, userID, nonce string, expiresAt time.Time) error {
	ttl := expiresAt.Add(PruneGrace).Sub(s.clock.Now())
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}

	res, err := claimScript.Run(ctx, s.client,
		[]string{s.key(userID, nonce)},
		strconv.FormatInt(expiresAt.UnixMilli(), 10),
		strconv.FormatInt(ttl.Milliseconds(), 10),
	).Int()
	if err != nil {
		return fmt.Errorf("claim nonce: %w", err)
	}
	if res == 0 {
		return ErrNonceAlreadyUsed
	}
	return nil
}

func (s *RedisStore) MatchOrBind(ctx context.Context, userID, nonce, txnID string) (bool, error) {
	res, err := matchOrBindScript.Run(ctx, s.client, []string{s.key(userID, nonce)}, txnID).Int()
	if err != nil {
		return false, fmt.Errorf("bind nonce: %w", err)
	}
	return res == 1, nil
}

// Prune is a no-op; expired records are dropped by their TTL.
func (s *RedisStore) Prune(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
