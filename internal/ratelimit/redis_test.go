package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScripter はスクリプトの戻り値 {count, ttl} だけを再現する。
type fakeScripter struct {
	mu       sync.Mutex
	counts   map[string]int64
	ttl      int64
	noScript bool // true なら EVALSHA は NOSCRIPT を返す
	err      error

	evalCalls int
	lastKeys  []string
	lastArgs  []interface{}
}

// サーバ側のエラー（redis.Error）として扱われる必要がある
type noScriptError struct{}

func (noScriptError) Error() string { return "NOSCRIPT No matching script. Please use EVAL." }
func (noScriptError) RedisError()   {}

func newFakeScripter(ttlMillis int64) *fakeScripter {
	return &fakeScripter{counts: map[string]int64{}, ttl: ttlMillis}
}

func (f *fakeScripter) run(keys []string, args []interface{}) *redis.Cmd {
	f.lastKeys = keys
	f.lastArgs = args
	if f.err != nil {
		return redis.NewCmdResult(nil, f.err)
	}
	f.counts[keys[0]]++
	return redis.NewCmdResult([]interface{}{f.counts[keys[0]], f.ttl}, nil)
}

func (f *fakeScripter) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evalCalls++
	return f.run(keys, args)
}

func (f *fakeScripter) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noScript {
		return redis.NewCmdResult(nil, noScriptError{})
	}
	return f.run(keys, args)
}

func (f *fakeScripter) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return f.Eval(ctx, script, keys, args...)
}

func (f *fakeScripter) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	return f.EvalSha(ctx, sha1, keys, args...)
}

func (f *fakeScripter) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeScripter) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func TestRedis_CountsAndLimits(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rdb := newFakeScripter(30_000)
	r := NewRedis(rdb, "")
	r.now = func() time.Time { return now }
	ctx := context.Background()

	const limit = 3
	for i := 1; i <= limit; i++ {
		d, err := r.Check(ctx, "1.2.3.4|/payments/:provider", limit, time.Minute)
		require.NoError(t, err)
		assert.False(t, d.Limited, "request %d", i)
		assert.Equal(t, limit-i, d.Remaining)
		assert.Equal(t, limit, d.Limit)
		// 残りTTLから reset を出す
		assert.Equal(t, now.Add(30*time.Second), d.ResetAt)
	}

	d, err := r.Check(ctx, "1.2.3.4|/payments/:provider", limit, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Limited)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 30, d.RetryAfterSeconds())

	assert.Equal(t, []string{"ratelimit:1.2.3.4|/payments/:provider"}, rdb.lastKeys)
	assert.Equal(t, []interface{}{int64(60_000)}, rdb.lastArgs)
}

func TestRedis_KeysArePrefixedPerClient(t *testing.T) {
	rdb := newFakeScripter(1_000)
	r := NewRedis(rdb, "sf:rl")
	ctx := context.Background()

	_, err := r.Check(ctx, "a", 1, time.Second)
	require.NoError(t, err)
	d, err := r.Check(ctx, "b", 1, time.Second)
	require.NoError(t, err)
	assert.False(t, d.Limited)

	assert.Equal(t, int64(1), rdb.counts["sf:rl:a"])
	assert.Equal(t, int64(1), rdb.counts["sf:rl:b"])
}

func TestRedis_MissingTTLFallsBackToWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rdb := newFakeScripter(-1)
	r := NewRedis(rdb, "")
	r.now = func() time.Time { return now }

	d, err := r.Check(context.Background(), "c", 5, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), d.ResetAt)
}

func TestRedis_FallsBackToEvalOnNoScript(t *testing.T) {
	rdb := newFakeScripter(1_000)
	rdb.noScript = true
	r := NewRedis(rdb, "")

	d, err := r.Check(context.Background(), "c", 5, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 4, d.Remaining)
	assert.Equal(t, 1, rdb.evalCalls)
}

func TestRedis_StoreErrorIsReturned(t *testing.T) {
	rdb := newFakeScripter(1_000)
	rdb.err = errors.New("dial tcp: connection refused")
	r := NewRedis(rdb, "")

	_, err := r.Check(context.Background(), "c", 5, time.Second)
	assert.ErrorContains(t, err, "connection refused")
}
