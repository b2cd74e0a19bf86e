package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int64
	resetAt time.Time
}

// Memory はプロセス内の固定ウィンドウ。再起動で消えてよい（課金ではなく濫用対策）。
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
	checks  int
}

func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{windows: map[string]*window{}, now: now}
}

func (m *Memory) Check(_ context.Context, clientID string, limit int, win time.Duration) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.checks++
	if m.checks%1024 == 0 {
		m.sweep(now)
	}

	w, ok := m.windows[clientID]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(win)}
		m.windows[clientID] = w
	}

	//上限を超えたら数えない（ウィンドウの残り時間だけ待たせる）
	if w.count < int64(limit) {
		w.count++
		return decide(w.count, limit, w.resetAt, now), nil
	}
	return decide(int64(limit)+1, limit, w.resetAt, now), nil
}

// 期限切れのウィンドウを捨てる
func (m *Memory) sweep(now time.Time) {
	for id, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, id)
		}
	}
}
