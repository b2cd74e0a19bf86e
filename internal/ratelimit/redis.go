package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// INCR と PEXPIRE を1往復・原子的に行う。期限のないキーが残っていても付け直す。
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if count == 1 or ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Redis は複数インスタンスでカウンタを共有する固定ウィンドウ。
type Redis struct {
	rdb    redis.Scripter
	prefix string
	now    func() time.Time
}

func NewRedis(rdb redis.Scripter, prefix string) *Redis {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &Redis{rdb: rdb, prefix: prefix, now: time.Now}
}

func (r *Redis) Check(ctx context.Context, clientID string, limit int, win time.Duration) (Decision, error) {
	key := r.prefix + ":" + clientID

	vals, err := fixedWindowScript.Run(ctx, r.rdb, []string{key}, win.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(vals) != 2 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected script result %v", vals)
	}

	now := r.now()
	ttl := time.Duration(vals[1]) * time.Millisecond
	if ttl <= 0 {
		ttl = win
	}
	return decide(vals[0], limit, now.Add(ttl), now), nil
}
