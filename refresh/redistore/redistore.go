// Package redistore provides a Redis-backed refresh.Store. Each record lives
// in a Redis hash keyed by the credential hash and expires with the
// credential, so Redis itself ages out dead records. Rotation runs as a
// single Lua script to guarantee one winner per credential.
package redistore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/larslab/authcore/refresh"
)

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

const defaultPrefix = "rc:"

const (
	rotateStatusNotFound int64 = 0
	rotateStatusRevoked  int64 = 1
	rotateStatusRotated  int64 = 2
)

// rotateScript revokes the old record and creates the replacement in one
// atomic unit. The revoked record keeps its remaining TTL so replays of the
// dead value keep reporting "revoked" until natural expiry.
const rotateScript = `
local old = redis.call("HGET", KEYS[1], "revoked")
if old == false then
  return 0
end
if old == "1" then
  return 1
end
redis.call("HSET", KEYS[1], "revoked", "1")
redis.call("HSET", KEYS[2],
  "id", ARGV[1],
  "user_id", ARGV[2],
  "expires_at", ARGV[3],
  "created_at", ARGV[4],
  "revoked", "0",
  "ua_hash", ARGV[5],
  "addr_hash", ARGV[6])
redis.call("PEXPIRE", KEYS[2], ARGV[7])
return 2
`

var rotateLua = redis.NewScript(rotateScript)

// Store implements refresh.Store over a Redis client.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// New returns a Store using the given client. An empty prefix defaults to
// "rc:".
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(hash string) string {
	return s.prefix + hash
}

func (s *Store) Insert(ctx context.Context, rec refresh.Record) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("record already expired at insert")
	}
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, s.key(rec.TokenHash), recordFields(rec))
	pipe.PExpire(ctx, s.key(rec.TokenHash), ttl)
	pipe.HSet(ctx, s.prefix+"id:"+rec.ID, "hash", rec.TokenHash)
	pipe.PExpire(ctx, s.prefix+"id:"+rec.ID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) FindByHash(ctx context.Context, hash string) (refresh.Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(hash)).Result()
	if err != nil {
		return refresh.Record{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return refresh.Record{}, refresh.ErrNotFound
	}
	return decodeRecord(hash, fields)
}

func (s *Store) MarkRevoked(ctx context.Context, id string) error {
	// Records are keyed by hash; revocation by id walks the id index.
	hash, err := s.redis.HGet(ctx, s.prefix+"id:"+id, "hash").Result()
	if errors.Is(err, redis.Nil) {
		return refresh.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if err := s.redis.HSet(ctx, s.key(hash), "revoked", "1").Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) Rotate(ctx context.Context, oldHash string, replacement refresh.Record) error {
	ttl := time.Until(replacement.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("replacement already expired")
	}
	status, err := rotateLua.Run(ctx, s.redis,
		[]string{s.key(oldHash), s.key(replacement.TokenHash)},
		replacement.ID,
		replacement.UserID,
		strconv.FormatInt(replacement.ExpiresAt.UnixMilli(), 10),
		strconv.FormatInt(replacement.CreatedAt.UnixMilli(), 10),
		replacement.UserAgentHash,
		replacement.AddrHash,
		strconv.FormatInt(ttl.Milliseconds(), 10),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	switch status {
	case rotateStatusNotFound:
		return refresh.ErrNotFound
	case rotateStatusRevoked:
		return refresh.ErrRevoked
	case rotateStatusRotated:
		s.indexID(ctx, replacement, ttl)
		return nil
	default:
		return fmt.Errorf("unexpected rotate status %d", status)
	}
}

// indexID maintains the id-to-hash index used by MarkRevoked. Best effort:
// a failed index write only degrades revocation-by-id, never rotation.
func (s *Store) indexID(ctx context.Context, rec refresh.Record, ttl time.Duration) {
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, s.prefix+"id:"+rec.ID, "hash", rec.TokenHash)
	pipe.PExpire(ctx, s.prefix+"id:"+rec.ID, ttl)
	_, _ = pipe.Exec(ctx)
}

func recordFields(rec refresh.Record) map[string]any {
	revoked := "0"
	if rec.Revoked {
		revoked = "1"
	}
	return map[string]any{
		"id":         rec.ID,
		"user_id":    rec.UserID,
		"expires_at": strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10),
		"created_at": strconv.FormatInt(rec.CreatedAt.UnixMilli(), 10),
		"revoked":    revoked,
		"ua_hash":    rec.UserAgentHash,
		"addr_hash":  rec.AddrHash,
	}
}

func decodeRecord(hash string, fields map[string]string) (refresh.Record, error) {
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return refresh.Record{}, fmt.Errorf("corrupt record %q: %v", hash, err)
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return refresh.Record{}, fmt.Errorf("corrupt record %q: %v", hash, err)
	}
	return refresh.Record{
		ID:            fields["id"],
		UserID:        fields["user_id"],
		TokenHash:     hash,
		ExpiresAt:     time.UnixMilli(expires),
		CreatedAt:     time.UnixMilli(created),
		Revoked:       fields["revoked"] == "1",
		UserAgentHash: fields["ua_hash"],
		AddrHash:      fields["addr_hash"],
	}, nil
}
