// Package memstore はプロセス内だけで完結するストア。ローカル開発とテスト用。
package memstore

import (
	"context"
	"sync"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type state struct {
	orders      map[string]model.Order
	items       map[string][]model.OrderItem
	attempts    map[string]model.PaymentAttempt
	products    map[string]model.Product
	auditLogs   []model.AuditLog
	nextItemID  int64
	nextAuditID int64
}

func newState() *state {
	return &state{
		orders:   map[string]model.Order{},
		items:    map[string][]model.OrderItem{},
		attempts: map[string]model.PaymentAttempt{},
		products: map[string]model.Product{},
	}
}

func (s *state) clone() *state {
	c := &state{
		orders:      make(map[string]model.Order, len(s.orders)),
		items:       make(map[string][]model.OrderItem, len(s.items)),
		attempts:    make(map[string]model.PaymentAttempt, len(s.attempts)),
		products:    make(map[string]model.Product, len(s.products)),
		auditLogs:   append([]model.AuditLog(nil), s.auditLogs...),
		nextItemID:  s.nextItemID,
		nextAuditID: s.nextAuditID,
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]model.OrderItem(nil), v...)
	}
	for k, v := range s.attempts {
		c.attempts[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	return c
}

// Store は1つのmutexで全操作を直列化する。
// WithinTx はコピーに対して fn を実行し、成功したときだけ差し替える。
type Store struct {
	mu   sync.Mutex
	data *state
}

func New() *Store {
	return &Store{data: newState()}
}

func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.data.clone()
	if err := fn(newRepos(func(f func(*state) error) error { return f(staged) })); err != nil {
		return err
	}
	s.data = staged
	return nil
}

// Repos はトランザクション外で使うrepo群。1メソッド呼び出しが1つの排他区間になる。
func (s *Store) Repos() repo.TxRepos {
	return newRepos(func(f func(*state) error) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return f(s.data)
	})
}

var _ repo.TransactionManager = (*Store)(nil)
