package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// pendingTTL bounds how long a crashed handler can block retries of its key.
const pendingTTL = time.Minute

// record is the value kept per key. A pending record only pins the request
// digest; a done record adds the response to replay.
type record struct {
	Done        bool      `json:"done"`
	Digest      string    `json:"digest"`
	Status      int       `json:"status,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Body        []byte    `json:"body,omitempty"`
	At          time.Time `json:"at"`
}

// recordKey scopes a request id to the calling account and to the resource
// the request acts on, so the same id sent to another borrower's loan or to a
// pool operation is a different request.
func recordKey(account, resource, requestID string) string {
	return "zkloan:idem:" + account + ":" + resource + ":" + requestID
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type replayStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// claim writes a pending record unless the key already exists.
func (s replayStore) claim(ctx context.Context, key string, r record) (bool, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return false, err
	}
	return s.rdb.SetNX(ctx, key, b, pendingTTL).Result()
}

// load reports found=false when the key expired after a failed claim.
func (s replayStore) load(ctx context.Context, key string) (record, bool, error) {
	var r record
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return r, false, nil
	}
	if err != nil {
		return r, false, err
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return r, false, fmt.Errorf("decode idempotency record %s: %w", key, err)
	}
	return r, true, nil
}

func (s replayStore) finish(ctx context.Context, key string, r record) error {
	r.Done = true
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, b, s.ttl).Err()
}

func (s replayStore) release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
