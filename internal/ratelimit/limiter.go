// Package ratelimit はクライアントごとの固定ウィンドウ・カウンタ。
// プロセス内（Memory）と複数インスタンス共有（Redis）の2実装がある。
package ratelimit

import (
	"context"
	"time"
)

type Decision struct {
	Limited    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration // Limited のときだけ意味がある
}

// RetryAfterSeconds は Retry-After ヘッダ用（切り上げ、最低1秒）。
func (d Decision) RetryAfterSeconds() int {
	if d.RetryAfter <= 0 {
		return 1
	}
	s := int((d.RetryAfter + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

type Limiter interface {
	// Check は呼ぶたびに1回分を数える。
	Check(ctx context.Context, clientID string, limit int, window time.Duration) (Decision, error)
}

func decide(count int64, limit int, resetAt, now time.Time) Decision {
	d := Decision{Limit: limit, ResetAt: resetAt}
	if count > int64(limit) {
		d.Limited = true
		d.RetryAfter = resetAt.Sub(now)
		return d
	}
	d.Remaining = limit - int(count)
	return d
}
